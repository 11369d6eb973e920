package waitlist

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeCreated          = "created"
	outcomeRotated          = "rotated"
	outcomeAlreadyConfirmed = "already_confirmed"
	outcomeInvalid          = "invalid"
	outcomeConfirmed        = "confirmed"
	outcomeNotFound         = "not_found"
	outcomeFailed           = "failed"
)

type Metrics struct {
	registrations        *prometheus.CounterVec
	confirmations        *prometheus.CounterVec
	notificationFailures prometheus.Counter
}

// NewMetrics registers the waitlist counters on reg. A nil reg gets a
// private registry, which keeps the counters working but unexported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_registrations_total",
				Help: "Pre-registration attempts by outcome.",
			},
			[]string{"outcome"},
		),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_confirmations_total",
				Help: "Confirmation attempts by outcome.",
			},
			[]string{"outcome"},
		),
		notificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "waitlist_notification_failures_total",
				Help: "Confirmation emails that could not be sent.",
			},
		),
	}

	reg.MustRegister(m.registrations, m.confirmations, m.notificationFailures)
	return m
}
