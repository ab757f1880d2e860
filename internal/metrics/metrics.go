// Package metrics holds the Prometheus collectors for authentication and
// access-control outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authEvents counts auth service operations by outcome.
	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_auth_events_total",
		Help: "Total number of auth operations by event and outcome",
	}, []string{"event", "outcome"})

	// guardDecisions counts access guard decisions per operation.
	guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_guard_decisions_total",
		Help: "Total number of access guard decisions by operation and decision",
	}, []string{"operation", "decision"})

	// notifications counts outbound mail publish attempts.
	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_notifications_total",
		Help: "Total number of outbound notifications by kind and outcome",
	}, []string{"kind", "outcome"})

	// deliveries counts mails handed to SMTP by the queue consumer.
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_mail_deliveries_total",
		Help: "Total number of queued mails by kind and delivery outcome",
	}, []string{"kind", "outcome"})
)

// RecordAuthEvent increments the counter for event (e.g. "login") with
// outcome (e.g. "success", "invalid_credentials").
func RecordAuthEvent(event, outcome string) {
	authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordGuardDecision increments the counter for op.  decision is one of
// "allow", "unauthorized", "forbidden" or "error".
func RecordGuardDecision(op, decision string) {
	guardDecisions.WithLabelValues(op, decision).Inc()
}

// RecordNotification records a publish attempt for kind.
func RecordNotification(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	notifications.WithLabelValues(kind, outcome).Inc()
}

// RecordDelivery records the final outcome of delivering a queued mail.
func RecordDelivery(kind string, err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "dropped"
	}
	deliveries.WithLabelValues(kind, outcome).Inc()
}
