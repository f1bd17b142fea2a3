package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "price_feed"

// Tick loop
var (
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total completed price ticks",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent generating and broadcasting one tick",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	TickPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_panics_total",
			Help:      "Ticks aborted by a recovered panic",
		},
	)
)

// Sessions and subscriptions
var (
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Open websocket connections",
		},
	)

	BoundSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bound_sessions",
			Help:      "Connections bound to an identity",
		},
	)

	KnownIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_identities",
			Help:      "Identities held in the subscription directory",
		},
	)

	InboundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Client events received by event name and outcome",
		},
		[]string{"event", "status"},
	)
)

// Delivery
var (
	DeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "priceUpdate events enqueued to clients",
		},
	)

	DeliveryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "priceUpdate events that could not be enqueued, by reason",
		},
		[]string{"reason"},
	)

	SinkPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_publish_total",
			Help:      "Ticks handed to external sinks by sink and status",
		},
		[]string{"sink", "status"},
	)

	SinkDroppedTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_dropped_ticks_total",
			Help:      "Ticks dropped because the sink queue was full",
		},
	)
)
