// Package gateway re-serves mirrored feeder-gateway payloads over HTTP. The
// read path is storage-only: a key never ingested is reported as not found,
// it is never fetched on demand.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/NethermindEth/feedermirror/db"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/sync"
	"github.com/NethermindEth/feedermirror/utils"
)

type Handler struct {
	store     *storage.Store
	blockHead *sync.HeadTracker
	stateHead *sync.HeadTracker
	log       utils.SimpleLogger
}

func New(store *storage.Store, blockHead, stateHead *sync.HeadTracker, log utils.SimpleLogger) *Handler {
	return &Handler{
		store:     store,
		blockHead: blockHead,
		stateHead: stateHead,
		log:       log,
	}
}

// Router exposes the same paths the upstream feeder gateway serves, so
// consumers can be pointed at the mirror unchanged.
func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/feeder_gateway/get_block", h.GetBlock)
	mux.HandleFunc("/feeder_gateway/get_state_update", h.GetStateUpdate)
	mux.HandleFunc("/feeder_gateway/get_class_by_hash", h.GetClassByHash)
	mux.HandleFunc("/", h.Index)
	return mux
}

func (h *Handler) GetBlock(w http.ResponseWriter, req *http.Request) {
	number, ok := blockNumberParam(w, req)
	if !ok {
		return
	}
	h.serve(w, storage.BlockStream.Key(number), "Block not found")
}

func (h *Handler) GetStateUpdate(w http.ResponseWriter, req *http.Request) {
	number, ok := blockNumberParam(w, req)
	if !ok {
		return
	}
	h.serve(w, storage.StateUpdateStream.Key(number), "State update not found")
}

func (h *Handler) GetClassByHash(w http.ResponseWriter, req *http.Request) {
	hash := req.URL.Query().Get("classHash")
	if hash == "" {
		http.Error(w, "missing classHash parameter", http.StatusBadRequest)
		return
	}
	h.serve(w, storage.ClassKey(hash), "Class not found")
}

// Index reports how far each sequential stream has been mirrored.
func (h *Handler) Index(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	fmt.Fprintf(w, "blocks synced: %s, state updates synced: %s\n",
		describeHead(h.blockHead), describeHead(h.stateHead))
}

func (h *Handler) serve(w http.ResponseWriter, key []byte, notFound string) {
	payload, err := h.store.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			http.Error(w, notFound, http.StatusNotFound)
			return
		}
		h.log.Errorw("Failed reading from storage", "key", string(key), "err", err)
		http.Error(w, "failed reading from storage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload) //nolint:errcheck
}

func blockNumberParam(w http.ResponseWriter, req *http.Request) (uint64, bool) {
	raw := req.URL.Query().Get("blockNumber")
	if raw == "" {
		http.Error(w, "missing blockNumber parameter", http.StatusBadRequest)
		return 0, false
	}
	number, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "malformed blockNumber parameter", http.StatusBadRequest)
		return 0, false
	}
	return number, true
}

func describeHead(head *sync.HeadTracker) string {
	height, started := head.Head()
	if !started {
		return "none"
	}
	return strconv.FormatUint(height, 10)
}
