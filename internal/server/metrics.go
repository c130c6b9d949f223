package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons reported on the dropped_messages_total counter.
const (
	dropFlood      = "flood"
	dropTooLarge   = "too_large"
	dropNoChannel  = "not_on_channel"
	dropNoPeer     = "unknown_peer"
	dropMalformed  = "malformed"
	dropUnexpected = "unexpected_kind"
)

type metrics struct {
	clients  prometheus.Gauge
	channels prometheus.Gauge
	relayed  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	bytes    prometheus.Counter
	denied   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bluewing",
			Name:      "clients",
			Help:      "Clients currently connected",
		}),
		channels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bluewing",
			Name:      "channels",
			Help:      "Channels currently open",
		}),
		relayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluewing",
			Name:      "relayed_messages_total",
			Help:      "Data messages accepted from clients, by frame kind and delivery class",
		}, []string{"kind", "class"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluewing",
			Name:      "dropped_messages_total",
			Help:      "Data messages discarded, by reason",
		}, []string{"reason"}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bluewing",
			Name:      "relayed_bytes_total",
			Help:      "Payload bytes accepted from clients",
		}),
		denied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bluewing",
			Name:      "denied_requests_total",
			Help:      "Requests answered with a denial, by request type",
		}, []string{"request"}),
	}
}
