package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uploads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediastore",
	Subsystem: "media",
	Name:      "uploads_total",
	Help:      "Number of uploads by outcome.",
}, []string{"bucket", "outcome"})
