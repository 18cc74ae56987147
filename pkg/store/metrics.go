package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatd_store_ops_total",
	Help: "Record store operations by op and record type.",
}, []string{"op", "type"})
