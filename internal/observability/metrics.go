package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	opDurationBuckets   = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets     = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Workflow metrics
	StageTransitionsTotal  *prometheus.CounterVec
	InvalidTransitionsTotal *prometheus.CounterVec
	StepCompletionsTotal   *prometheus.CounterVec
	StepDuration           *prometheus.HistogramVec
	EpisodesActive         prometheus.Gauge

	// Deadline metrics
	DeadlinesGeneratedTotal *prometheus.CounterVec
	DeadlinesCompletedTotal *prometheus.CounterVec
	DeadlinesOverdue        prometheus.Gauge
	RemindersSentTotal      *prometheus.CounterVec
	SweepDuration           prometheus.Histogram

	// Equipment metrics
	EquipmentRequestsTotal *prometheus.CounterVec
	EquipmentClaimsTotal   *prometheus.CounterVec
	EquipmentClaimFailures *prometheus.CounterVec
	ItemsByStatus          *prometheus.GaugeVec

	// Reassignment metrics
	ReassignmentsTotal *prometheus.CounterVec

	// Notification metrics
	NotificationsDispatchedTotal *prometheus.CounterVec
	NotificationsDroppedTotal    prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenroom_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenroom_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenroom_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Workflow
		StageTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_stage_transitions_total",
			Help: "Total number of episode stage transitions.",
		}, []string{"from", "to"}),
		InvalidTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_invalid_transitions_total",
			Help: "Total number of rejected stage transitions.",
		}, []string{"from", "to"}),
		StepCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_step_completions_total",
			Help: "Total number of production step completions.",
		}, []string{"step"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greenroom_step_duration_seconds",
			Help:    "Time from step start to completion in seconds.",
			Buckets: prometheus.ExponentialBuckets(60, 4, 10),
		}, []string{"step"}),
		EpisodesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenroom_episodes_active",
			Help: "Number of episodes in a non-terminal stage.",
		}),

		// Deadlines
		DeadlinesGeneratedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_deadlines_generated_total",
			Help: "Total number of deadlines generated.",
		}, []string{"role"}),
		DeadlinesCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_deadlines_completed_total",
			Help: "Total number of deadlines completed.",
		}, []string{"role", "on_time"}),
		DeadlinesOverdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "greenroom_deadlines_overdue",
			Help: "Number of currently overdue deadlines.",
		}),
		RemindersSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_reminders_sent_total",
			Help: "Total number of deadline reminders sent.",
		}, []string{"kind"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenroom_deadline_sweep_duration_seconds",
			Help:    "Deadline sweep duration in seconds.",
			Buckets: opDurationBuckets,
		}),

		// Equipment
		EquipmentRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_equipment_requests_total",
			Help: "Total number of equipment requests by outcome.",
		}, []string{"outcome"}),
		EquipmentClaimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_equipment_claims_total",
			Help: "Total number of inventory items claimed.",
		}, []string{"item_name"}),
		EquipmentClaimFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_equipment_claim_failures_total",
			Help: "Total number of claims rejected for lack of stock.",
		}, []string{"item_name"}),
		ItemsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "greenroom_inventory_items",
			Help: "Number of inventory items by status.",
		}, []string{"status"}),

		// Reassignments
		ReassignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_reassignments_total",
			Help: "Total number of task reassignments.",
		}, []string{"task_type"}),

		// Notifications
		NotificationsDispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "greenroom_notifications_dispatched_total",
			Help: "Total number of notifications handed to the dispatcher.",
		}, []string{"type"}),
		NotificationsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "greenroom_notifications_dropped_total",
			Help: "Total number of notifications dropped on a full queue.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Workflow
		m.StageTransitionsTotal,
		m.InvalidTransitionsTotal,
		m.StepCompletionsTotal,
		m.StepDuration,
		m.EpisodesActive,
		// Deadlines
		m.DeadlinesGeneratedTotal,
		m.DeadlinesCompletedTotal,
		m.DeadlinesOverdue,
		m.RemindersSentTotal,
		m.SweepDuration,
		// Equipment
		m.EquipmentRequestsTotal,
		m.EquipmentClaimsTotal,
		m.EquipmentClaimFailures,
		m.ItemsByStatus,
		// Reassignments
		m.ReassignmentsTotal,
		// Notifications
		m.NotificationsDispatchedTotal,
		m.NotificationsDroppedTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordStageTransition records an accepted stage transition.
func (m *Metrics) RecordStageTransition(from, to string) {
	m.StageTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordInvalidTransition records a rejected stage transition.
func (m *Metrics) RecordInvalidTransition(from, to string) {
	m.InvalidTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordStepCompletion records a production step completion. The duration is
// zero when the step was auto-completed without a recorded start.
func (m *Metrics) RecordStepCompletion(step string, duration time.Duration) {
	m.StepCompletionsTotal.WithLabelValues(step).Inc()
	if duration > 0 {
		m.StepDuration.WithLabelValues(step).Observe(duration.Seconds())
	}
}

// RecordDeadlineGenerated records one generated deadline.
func (m *Metrics) RecordDeadlineGenerated(role string) {
	m.DeadlinesGeneratedTotal.WithLabelValues(role).Inc()
}

// RecordDeadlineCompleted records a deadline completion.
func (m *Metrics) RecordDeadlineCompleted(role string, onTime bool) {
	m.DeadlinesCompletedTotal.WithLabelValues(role, strconv.FormatBool(onTime)).Inc()
}

// SetDeadlinesOverdue sets the current overdue deadline count.
func (m *Metrics) SetDeadlinesOverdue(count float64) {
	m.DeadlinesOverdue.Set(count)
}

// RecordRemindersSent records reminders sent by a sweep. Kind is "reminder"
// or "overdue".
func (m *Metrics) RecordRemindersSent(kind string, count int) {
	m.RemindersSentTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordSweep records the duration of one deadline sweep.
func (m *Metrics) RecordSweep(duration time.Duration) {
	m.SweepDuration.Observe(duration.Seconds())
}

// RecordEquipmentRequest records a request outcome: created, approved,
// rejected, or returned.
func (m *Metrics) RecordEquipmentRequest(outcome string) {
	m.EquipmentRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordEquipmentClaim records a successful item claim.
func (m *Metrics) RecordEquipmentClaim(itemName string) {
	m.EquipmentClaimsTotal.WithLabelValues(itemName).Inc()
}

// RecordEquipmentClaimFailure records a claim rejected for lack of stock.
func (m *Metrics) RecordEquipmentClaimFailure(itemName string) {
	m.EquipmentClaimFailures.WithLabelValues(itemName).Inc()
}

// SetItemsByStatus sets the inventory gauge for one status.
func (m *Metrics) SetItemsByStatus(status string, count float64) {
	m.ItemsByStatus.WithLabelValues(status).Set(count)
}

// RecordReassignment records a task reassignment.
func (m *Metrics) RecordReassignment(taskType string) {
	m.ReassignmentsTotal.WithLabelValues(taskType).Inc()
}

// RecordNotificationDispatched records a notification handed to the dispatcher.
func (m *Metrics) RecordNotificationDispatched(notificationType string) {
	m.NotificationsDispatchedTotal.WithLabelValues(notificationType).Inc()
}

// RecordNotificationDropped records a notification dropped on a full queue.
func (m *Metrics) RecordNotificationDropped() {
	m.NotificationsDroppedTotal.Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
