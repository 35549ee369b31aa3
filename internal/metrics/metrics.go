package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gate's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	ChallengesIssued    prometheus.Counter
	Attempts            *prometheus.CounterVec
	BehaviorRejections  *prometheus.CounterVec
	LinksGenerated      *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg (or the default registerer if nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ChallengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hoopgate_challenges_issued_total",
			Help: "Challenges issued",
		}),
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopgate_attempts_total",
			Help: "Shot submissions by step and outcome",
		}, []string{"step", "outcome"}),
		BehaviorRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopgate_behavior_rejections_total",
			Help: "Drag traces rejected as non-human by reason",
		}, []string{"reason"}),
		LinksGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopgate_links_generated_total",
			Help: "Links generated by mode and shortener result",
		}, []string{"mode", "shortened"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopgate_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"route"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoopgate_http_requests_total",
			Help: "HTTP requests processed",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoopgate_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		m.ChallengesIssued, m.Attempts, m.BehaviorRejections, m.LinksGenerated,
		m.RateLimited, m.HTTPRequests, m.HTTPRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) Issued() {
	if m == nil {
		return
	}
	m.ChallengesIssued.Inc()
}

func (m *Metrics) Attempt(step, outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.BehaviorRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) LinkGenerated(mode string, shortened bool) {
	if m == nil {
		return
	}
	s := "false"
	if shortened {
		s = "true"
	}
	m.LinksGenerated.WithLabelValues(mode, s).Inc()
}

func (m *Metrics) Limited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) Request(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
