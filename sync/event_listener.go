package sync

import (
	"time"

	"github.com/NethermindEth/feedermirror/storage"
)

type EventListener interface {
	OnSyncStepDone(kind storage.StreamKind, number uint64, took time.Duration)
}

type SelectiveListener struct {
	OnSyncStepDoneCb func(kind storage.StreamKind, number uint64, took time.Duration)
}

func (l *SelectiveListener) OnSyncStepDone(kind storage.StreamKind, number uint64, took time.Duration) {
	if l.OnSyncStepDoneCb != nil {
		l.OnSyncStepDoneCb(kind, number, took)
	}
}
