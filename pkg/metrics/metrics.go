package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Upstream clinical API
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// Kiosk
	CheckinsTotal          *prometheus.CounterVec
	AppointmentsCheckedIn  prometheus.Counter
	AppointmentsStarted    prometheus.Counter
	WaitMinutes            prometheus.Histogram
	CredentialsInvalidated prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// New builds the metric set without registering it, so tests can create as
// many as they like.
func New(namespace string) *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the clinical API",
		}, []string{"method", "status"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests sent to the clinical API",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),

		CheckinsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kiosk",
			Name:      "checkins_total",
			Help:      "Kiosk check-in attempts by result",
		}, []string{"result"}),
		AppointmentsCheckedIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kiosk",
			Name:      "appointments_checked_in_total",
			Help:      "Appointments moved to Arrived by kiosk check-ins",
		}),
		AppointmentsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kiosk",
			Name:      "appointments_started_total",
			Help:      "Appointments moved to In Session from the dashboard",
		}),
		WaitMinutes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kiosk",
			Name:      "wait_minutes",
			Help:      "Minutes a patient waited between check-in and the start of the appointment",
			Buckets:   []float64{0, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180},
		}),
		CredentialsInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "credentials_invalidated_total",
			Help:      "Credentials dropped after the clinical API rejected them",
		}),

		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.CheckinsTotal,
		m.AppointmentsCheckedIn,
		m.AppointmentsStarted,
		m.WaitMinutes,
		m.CredentialsInvalidated,
		m.DatabaseOperations,
		m.DatabaseLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Checkin counts a kiosk check-in attempt. Safe on a nil receiver.
func (m *Metrics) Checkin(result string) {
	if m == nil {
		return
	}
	m.CheckinsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) CheckedIn(n int) {
	if m == nil {
		return
	}
	m.AppointmentsCheckedIn.Add(float64(n))
}

func (m *Metrics) Started(waited int64) {
	if m == nil {
		return
	}
	m.AppointmentsStarted.Inc()
	m.WaitMinutes.Observe(float64(waited))
}

func (m *Metrics) Upstream(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(method, status).Inc()
	m.UpstreamLatency.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) Invalidated() {
	if m == nil {
		return
	}
	m.CredentialsInvalidated.Inc()
}

func (m *Metrics) Database(operation string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DatabaseOperations.WithLabelValues(operation, status).Inc()
	m.DatabaseLatency.WithLabelValues(operation).Observe(seconds)
}
