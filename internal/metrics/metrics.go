package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects prediction and HTTP request statistics.
type Metrics struct {
	predictions     *prometheus.CounterVec
	errors          *prometheus.CounterVec
	predictDuration prometheus.Histogram
	requestDuration *prometheus.HistogramVec
	inflight        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skinclass_predictions_total",
			Help: "Number of classified images by predicted label",
		}, []string{"label"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skinclass_prediction_errors_total",
			Help: "Number of failed predictions by error kind",
		}, []string{"kind"}),
		predictDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skinclass_prediction_duration_seconds",
			Help:    "Time from decoded input to label",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skinclass_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skinclass_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
	reg.MustRegister(m.predictions, m.errors, m.predictDuration, m.requestDuration, m.inflight)
	return m
}

func (m *Metrics) ObservePrediction(label string, d time.Duration) {
	m.predictions.WithLabelValues(label).Inc()
	m.predictDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

// Instrument wraps next so every request is counted under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inflight.Inc()
		defer m.inflight.Dec()

		snoop := httpsnoop.CaptureMetrics(next, w, r)
		m.requestDuration.
			WithLabelValues(route, strconv.Itoa(snoop.Code)).
			Observe(snoop.Duration.Seconds())
	})
}
