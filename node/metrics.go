package node

import (
	"strconv"
	"time"

	"github.com/NethermindEth/feedermirror/db"
	"github.com/NethermindEth/feedermirror/feeder"
	"github.com/NethermindEth/feedermirror/storage"
	"github.com/NethermindEth/feedermirror/sync"
	"github.com/prometheus/client_golang/prometheus"
)

func makeDBMetrics() db.EventListener {
	readLatencyHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "read_latency",
	})
	writeLatencyHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "db",
		Name:      "write_latency",
	})

	prometheus.MustRegister(readLatencyHistogram, writeLatencyHistogram)
	return &db.SelectiveListener{
		OnIOCb: func(write bool, duration time.Duration) {
			if write {
				writeLatencyHistogram.Observe(float64(duration.Microseconds()))
			} else {
				readLatencyHistogram.Observe(float64(duration.Microseconds()))
			}
		},
	}
}

func makeFeederMetrics() feeder.EventListener {
	requestLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feeder",
		Subsystem: "client",
		Name:      "request_latency",
	}, []string{"method", "status"})

	prometheus.MustRegister(requestLatencies)
	return &feeder.SelectiveListener{
		OnResponseCb: func(urlPath string, status int, took time.Duration) {
			statusString := strconv.FormatInt(int64(status), 10)
			requestLatencies.WithLabelValues(urlPath, statusString).Observe(took.Seconds())
		},
	}
}

func makeSyncMetrics() sync.EventListener {
	syncedEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sync",
		Name:      "synced_entries",
	}, []string{"stream"})
	stepLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sync",
		Name:      "step_latency",
	}, []string{"stream"})

	prometheus.MustRegister(syncedEntries, stepLatencies)
	return &sync.SelectiveListener{
		OnSyncStepDoneCb: func(kind storage.StreamKind, _ uint64, took time.Duration) {
			syncedEntries.WithLabelValues(kind.String()).Inc()
			stepLatencies.WithLabelValues(kind.String()).Observe(took.Seconds())
		},
	}
}
