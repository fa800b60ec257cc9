package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for checkout and payment confirmation flows.
type PaymentMetrics struct {
	checkoutsStarted   *prometheus.CounterVec
	confirmations      *prometheus.CounterVec
	duplicateEvents    prometheus.Counter
	webhookFailures    *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	notificationErrors *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkoutsStarted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Checkout sessions opened, by purchase type.",
	}, []string{"type"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Purchases transitioned to paid, by confirmation path.",
	}, []string{"path"})
	duplicateEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_duplicate_events_total",
		Help: "Stripe events suppressed because they were already applied.",
	})
	webhookFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failures_total",
		Help: "Webhook deliveries that failed processing, by reason.",
	}, []string{"reason"})
	notificationsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Successful notification deliveries, by channel.",
	}, []string{"channel"})
	notificationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_errors_total",
		Help: "Failed notification deliveries, by channel.",
	}, []string{"channel"})
	reg.MustRegister(
		checkoutsStarted,
		confirmations,
		duplicateEvents,
		webhookFailures,
		notificationsSent,
		notificationErrors,
	)
	return &PaymentMetrics{
		checkoutsStarted:   checkoutsStarted,
		confirmations:      confirmations,
		duplicateEvents:    duplicateEvents,
		webhookFailures:    webhookFailures,
		notificationsSent:  notificationsSent,
		notificationErrors: notificationErrors,
	}
}

// IncCheckoutStarted increments the checkout counter for a purchase type.
func (m *PaymentMetrics) IncCheckoutStarted(purchaseType string) {
	if m == nil || m.checkoutsStarted == nil {
		return
	}
	m.checkoutsStarted.WithLabelValues(normalizeLabel(purchaseType)).Inc()
}

// IncConfirmation records a pending-to-paid transition for a path
// ("webhook" or "redirect").
func (m *PaymentMetrics) IncConfirmation(path string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncDuplicateEvent records a suppressed replayed Stripe event.
func (m *PaymentMetrics) IncDuplicateEvent() {
	if m == nil || m.duplicateEvents == nil {
		return
	}
	m.duplicateEvents.Inc()
}

// IncWebhookFailure records a failed webhook delivery for a reason label.
func (m *PaymentMetrics) IncWebhookFailure(reason string) {
	if m == nil || m.webhookFailures == nil {
		return
	}
	m.webhookFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncNotificationSent records a delivered notification on a channel.
func (m *PaymentMetrics) IncNotificationSent(channel string) {
	if m == nil || m.notificationsSent == nil {
		return
	}
	m.notificationsSent.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncNotificationError records a failed notification on a channel.
func (m *PaymentMetrics) IncNotificationError(channel string) {
	if m == nil || m.notificationErrors == nil {
		return
	}
	m.notificationErrors.WithLabelValues(normalizeLabel(channel)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
