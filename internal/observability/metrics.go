package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	loginAttemptsTotal    *prometheus.CounterVec
	tokenValidationsTotal *prometheus.CounterVec
	firestoreCallsTotal   *prometheus.CounterVec
	attendanceRunsTotal   *prometheus.CounterVec
	sessionEventsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gestion_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		loginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"})

		tokenValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_module_token_validations_total",
			Help: "Module token validations by module and reason.",
		}, []string{"module", "reason"})

		firestoreCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_firestore_calls_total",
			Help: "Upstream document API calls by method and status code.",
		}, []string{"method", "status"})

		attendanceRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_attendance_runs_total",
			Help: "Attendance processing and finalisation runs by stage and outcome.",
		}, []string{"stage", "outcome"})

		sessionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestion_session_events_total",
			Help: "Session lifecycle events: opened on login, closed on logout, expired on idle eviction.",
		}, []string{"event"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			loginAttemptsTotal,
			tokenValidationsTotal,
			firestoreCallsTotal,
			attendanceRunsTotal,
			sessionEventsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LoginAttempts counts logins labelled success, failed or error.
func LoginAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return loginAttemptsTotal
}

// TokenValidations counts module token checks.
func TokenValidations() *prometheus.CounterVec {
	RegisterMetrics()
	return tokenValidationsTotal
}

// FirestoreCalls counts upstream document API responses.
func FirestoreCalls() *prometheus.CounterVec {
	RegisterMetrics()
	return firestoreCallsTotal
}

// AttendanceRuns counts attendance pipeline runs.
func AttendanceRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return attendanceRunsTotal
}

// SessionEvents counts session lifecycle events by kind.
func SessionEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionEventsTotal
}
