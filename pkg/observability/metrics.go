package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound gateway call metrics
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmi_gateway_requests_total",
			Help: "Total number of gateway requests by transaction type and outcome",
		},
		[]string{"type", "outcome"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nmi_gateway_request_duration_seconds",
			Help:    "Duration of gateway requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Inbound HTTP facade metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business counters
	paymentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_attempts_total",
			Help: "Total number of payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	throttledAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_attempts_throttled_total",
			Help: "Payment attempts blocked by the weekly retry guard",
		},
	)
)

// RecordGatewayRequest records one outbound gateway call
func RecordGatewayRequest(transactionType, outcome string, elapsed time.Duration) {
	gatewayRequestsTotal.WithLabelValues(transactionType, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(transactionType).Observe(elapsed.Seconds())
}

// RecordPaymentAttempt records the business outcome of one payment attempt
func RecordPaymentAttempt(outcome string) {
	paymentAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordThrottledAttempt records a payment attempt stopped by the retry guard
func RecordThrottledAttempt() {
	throttledAttemptsTotal.Inc()
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMetricsMiddleware records Prometheus metrics for every HTTP request
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		httpRequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(recorder.status)).Inc()
	})
}
