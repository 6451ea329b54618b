package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RelayBytesTotal       = promauto.NewCounterVec(prometheus.CounterOpts{Name: "spectro_relay_bytes_total", Help: "Bytes relayed by direction"}, []string{"direction"})
	SessionsTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "spectro_sessions_total", Help: "Relay sessions by outcome"}, []string{"result"})
	ActiveRelays          = promauto.NewGauge(prometheus.GaugeOpts{Name: "spectro_active_relays", Help: "Relays currently copying bytes"})
	RelayDurationSeconds  = promauto.NewHistogram(prometheus.HistogramOpts{Name: "spectro_relay_duration_seconds", Help: "Relay lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 20)})
	GatewayRejectedTotal  = promauto.NewCounterVec(prometheus.CounterOpts{Name: "spectro_gateway_rejected_total", Help: "Gateway connections rejected before relaying"}, []string{"reason"})
	InventoryLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "spectro_inventory_lookups_total", Help: "Inventory lookups by result"}, []string{"result"})
	ErrorsTotal           = promauto.NewCounterVec(prometheus.CounterOpts{Name: "spectro_errors_total", Help: "Errors by type"}, []string{"type"})
)
