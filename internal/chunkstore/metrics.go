package chunkstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediastore",
		Subsystem: "chunkstore",
		Name:      "chunks_written_total",
		Help:      "Number of chunks flushed to the storage backend.",
	}, []string{"bucket", "compression"})

	bytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediastore",
		Subsystem: "chunkstore",
		Name:      "bytes_written_total",
		Help:      "Uncompressed payload bytes written to the storage backend.",
	}, []string{"bucket"})

	objects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediastore",
		Subsystem: "chunkstore",
		Name:      "objects_total",
		Help:      "Objects committed, aborted, deleted and swept.",
	}, []string{"bucket", "event"})
)
