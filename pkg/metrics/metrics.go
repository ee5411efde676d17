package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "rabbit_service"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	// Outcome label values for settled deliveries
	OutcomeAck     = "ack"
	OutcomeNack    = "nack"
	OutcomeReject  = "reject"
	OutcomeIgnored = "ignored"

	Consumer  = "consumer"
	Publisher = "publisher"
	HTTP      = "http"
)

// Metrics holds the collectors of one service instance.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Consumer side
	deliveriesReceived *prometheus.CounterVec   // by queue
	deliveriesSettled  *prometheus.CounterVec   // by queue, outcome
	handlerDuration    *prometheus.HistogramVec // by queue
	consumersActive    prometheus.Gauge

	// Publisher side
	published *prometheus.CounterVec // by exchange, status

	// HTTP ingress
	httpRequests *prometheus.CounterVec // by code, method
	httpDuration prometheus.Histogram
}

// New creates a Metrics instance and registers all collectors with reg.
// Returns an error if any registration fails.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		deliveriesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "deliveries_received_total",
			Help:      "Total deliveries received by queue",
		}, []string{"queue"}),
		deliveriesSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "deliveries_settled_total",
			Help:      "Total deliveries settled by queue and outcome",
		}, []string{"queue", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "handler_duration_seconds",
			Help:      "Handler execution time in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"queue"}),
		consumersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "active",
			Help:      "Number of running queue consume loops",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Publisher,
			Name:      "messages_total",
			Help:      "Total publish attempts by exchange and status",
		}, []string{"exchange", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "requests_total",
			Help:      "http requests by code, and method",
		}, []string{"code", "method"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "response_time_seconds",
			Help:      "http response time.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
	}

	collectors := []prometheus.Collector{
		m.deliveriesReceived,
		m.deliveriesSettled,
		m.handlerDuration,
		m.consumersActive,
		m.published,
		m.httpRequests,
		m.httpDuration,
	}

	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// DeliveryReceived counts one delivery read from queue.
func (m *Metrics) DeliveryReceived(queue string) {
	if m == nil {
		return
	}

	m.deliveriesReceived.WithLabelValues(queue).Inc()
}

// DeliverySettled counts how a delivery of queue ended.
func (m *Metrics) DeliverySettled(queue, outcome string) {
	if m == nil {
		return
	}

	m.deliveriesSettled.WithLabelValues(queue, outcome).Inc()
}

func (m *Metrics) ObserveHandler(queue string, d time.Duration) {
	if m == nil {
		return
	}

	m.handlerDuration.WithLabelValues(queue).Observe(d.Seconds())
}

func (m *Metrics) ConsumerStarted() {
	if m == nil {
		return
	}

	m.consumersActive.Inc()
}

func (m *Metrics) ConsumerStopped() {
	if m == nil {
		return
	}

	m.consumersActive.Dec()
}

// Published counts one publish attempt.
func (m *Metrics) Published(exchange, status string) {
	if m == nil {
		return
	}

	m.published.WithLabelValues(exchange, status).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(code, method string, d time.Duration) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(code, method).Inc()
	m.httpDuration.Observe(d.Seconds())
}
