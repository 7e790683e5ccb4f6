package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the metrics hooks of the realtime core,
// the WebSocket transport, the poller and the HTTP layer.
type PrometheusCollector struct {
	// Gauges
	activeConnections prometheus.Gauge
	activeTopics      prometheus.Gauge
	activeRooms       prometheus.Gauge

	// Counters
	connectionsTotal  prometheus.Counter
	publishesTotal    *prometheus.CounterVec
	deliveriesTotal   *prometheus.CounterVec
	deliveryFailures  *prometheus.CounterVec
	relayedTotal      *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	rejectedTotal     *prometheus.CounterVec
	pollsTotal        *prometheus.CounterVec
	polledGames       *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec

	// Histograms
	connectionDuration  prometheus.Histogram
	pollDuration        *prometheus.HistogramVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers every metric on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sportshub_realtime_connections",
			Help: "Number of open realtime connections",
		}),

		activeTopics: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sportshub_realtime_topics",
			Help: "Number of topics with at least one subscriber",
		}),

		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sportshub_signaling_rooms",
			Help: "Number of screen-share signaling rooms with members",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sportshub_realtime_connections_total",
			Help: "Total number of realtime connections accepted",
		}),

		publishesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_broadcast_publishes_total",
			Help: "Total number of broadcast publishes by event",
		}, []string{"event"}),

		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_broadcast_deliveries_total",
			Help: "Total number of messages handed to connections by event",
		}, []string{"event"}),

		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_delivery_failures_total",
			Help: "Total number of failed sends to a connection by event",
		}, []string{"event"}),

		relayedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_signaling_relayed_total",
			Help: "Signaling messages relayed, by kind and outcome",
		}, []string{"kind", "outcome"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_ws_messages_received_total",
			Help: "Inbound WebSocket messages by event",
		}, []string{"event"}),

		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_ws_rejected_total",
			Help: "Refused connections and dropped inbound messages by reason",
		}, []string{"reason"}),

		pollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_polls_total",
			Help: "Sports adapter polls by adapter, kind and outcome",
		}, []string{"adapter", "kind", "outcome"}),

		polledGames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_polled_games_total",
			Help: "Games returned by sports adapter polls",
		}, []string{"adapter", "kind"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sportshub_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		connectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sportshub_realtime_connection_duration_seconds",
			Help:    "Lifetime of realtime connections",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),

		pollDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sportshub_poll_duration_seconds",
			Help:    "Duration of sports adapter polls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"adapter", "kind"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sportshub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) SetActiveConnections(n int) {
	p.activeConnections.Set(float64(n))
}

func (p *PrometheusCollector) SetActiveTopics(n int) {
	p.activeTopics.Set(float64(n))
}

func (p *PrometheusCollector) SetActiveRooms(n int) {
	p.activeRooms.Set(float64(n))
}

func (p *PrometheusCollector) RecordPublish(event string, recipients int) {
	p.publishesTotal.WithLabelValues(event).Inc()
	p.deliveriesTotal.WithLabelValues(event).Add(float64(recipients))
}

func (p *PrometheusCollector) RecordDeliveryFailure(event string) {
	p.deliveryFailures.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) RecordRelay(kind string, delivered bool) {
	outcome := "dropped"
	if delivered {
		outcome = "delivered"
	}
	p.relayedTotal.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed(lifetime time.Duration) {
	p.connectionDuration.Observe(lifetime.Seconds())
}

func (p *PrometheusCollector) MessageReceived(event string) {
	p.messagesReceived.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) Rejected(reason string) {
	p.rejectedTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) ObservePoll(adapter, kind string, duration time.Duration, games int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.pollsTotal.WithLabelValues(adapter, kind, outcome).Inc()
	p.polledGames.WithLabelValues(adapter, kind).Add(float64(games))
	p.pollDuration.WithLabelValues(adapter, kind).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
