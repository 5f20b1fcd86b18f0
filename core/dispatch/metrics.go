package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsDispatched     *prometheus.CounterVec
	invitationsSent    *prometheus.CounterVec
	invitationFailures prometheus.Counter
	respondOutcomes    *prometheus.CounterVec
	acceptLatency      *prometheus.HistogramVec
	escalationRounds   prometheus.Counter
	exhaustedJobs      prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter) {
	jobs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_jobs_total",
			Help: "Number of jobs entering dispatch",
		},
		[]string{"urgency"},
	)
	sent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_invitations_sent_total",
			Help: "Number of contractor invitations delivered",
		},
		[]string{"urgency"},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_invitation_failures_total",
			Help: "Number of contractor invitations that failed to send",
		},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_respond_outcomes_total",
			Help: "Contractor response outcomes by kind",
		},
		[]string{"outcome"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_accept_latency_seconds",
			Help:    "Time from fan-out to winning acceptance",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"urgency"},
	)
	esc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_escalation_rounds_total",
			Help: "Number of escalation rounds started",
		},
	)
	exh := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_exhausted_jobs_total",
			Help: "Number of jobs that ran out of eligible contractors",
		},
	)
	return jobs, sent, fail, outcomes, lat, esc, exh
}

func init() {
	jobsDispatched, invitationsSent, invitationFailures, respondOutcomes, acceptLatency, escalationRounds, exhaustedJobs = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(jobsDispatched, invitationsSent, invitationFailures, respondOutcomes, acceptLatency, escalationRounds, exhaustedJobs)
}

// ResetMetrics reinitializes metric collectors for testing purposes.
func ResetMetrics(reg prometheus.Registerer) {
	jobsDispatched, invitationsSent, invitationFailures, respondOutcomes, acceptLatency, escalationRounds, exhaustedJobs = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
