package storage

import "fmt"

// StreamKind tags the three kinds of mirrored entries. It owns the store key
// scheme so that the pipelines and the read API cannot drift apart.
type StreamKind uint8

const (
	BlockStream StreamKind = iota
	StateUpdateStream
	ClassStream
)

func (k StreamKind) String() string {
	switch k {
	case BlockStream:
		return "block"
	case StateUpdateStream:
		return "state"
	case ClassStream:
		return "class"
	default:
		// Should not happen.
		panic(fmt.Sprintf("unknown stream kind %d", k))
	}
}

// Key formats the store key for sequence number n of a sequential stream,
// e.g. "block_5" or "state_5".
func (k StreamKind) Key(n uint64) []byte {
	return fmt.Appendf(nil, "%s_%d", k, n)
}

// ClassKey formats the store key for a class hash, exactly as supplied by
// the gateway, e.g. "class_0x123abc".
func ClassKey(hash string) []byte {
	return fmt.Appendf(nil, "%s_%s", ClassStream, hash)
}
