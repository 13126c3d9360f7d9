package stripe

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// WebhookParser verifies Stripe webhook deliveries and normalizes them
type WebhookParser struct {
	secret string
	logger *logger.Logger
}

func NewWebhookParser(cfg *config.Configuration, logger *logger.Logger) *WebhookParser {
	return &WebhookParser{secret: cfg.Stripe.WebhookSecret, logger: logger}
}

// Parse verifies the signature and returns the event. Events that are not
// about payment intents come back with type intent.updated and no intent id.
func (p *WebhookParser) Parse(payload []byte, signature string) (*payment.GatewayEvent, error) {
	if p.secret == "" {
		return nil, ierr.NewError("stripe webhook secret is not configured").
			WithHint("Webhook verification is not configured").
			Mark(ierr.ErrInvalidOperation)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		p.logger.Errorw("stripe webhook verification failed", "error", err)
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	return p.normalize(&event)
}

func (p *WebhookParser) normalize(event *stripe.Event) (*payment.GatewayEvent, error) {
	eventType := types.WebhookEventType(event.Type)
	out := &payment.GatewayEvent{
		ID:   event.ID,
		Type: payment.GatewayEventIntentUpdated,
	}
	if !eventType.IsPaymentIntentEvent() {
		p.logger.Debugw("ignoring stripe event", "event_id", event.ID, "event_type", event.Type)
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid payment intent payload").
			WithReportableDetails(map[string]any{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	out.IntentID = pi.ID
	out.PaymentID = pi.Metadata["payment_id"]
	out.TenantID = pi.Metadata["tenant_id"]
	out.IntentStatus = intentStatus(pi.Status)
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}

	switch eventType {
	case types.WebhookEventTypePaymentIntentSucceeded:
		out.Type = payment.GatewayEventIntentSucceeded
	case types.WebhookEventTypePaymentIntentCanceled:
		out.Type = payment.GatewayEventIntentCanceled
	case types.WebhookEventTypePaymentIntentPaymentFailed:
		// a declined attempt sends the intent back to requires_payment_method
		// and it can still be paid, so only a terminal state settles anything
		switch out.IntentStatus {
		case payment.IntentStatusCanceled:
			out.Type = payment.GatewayEventIntentCanceled
		case payment.IntentStatusSucceeded:
			out.Type = payment.GatewayEventIntentSucceeded
		}
		p.logger.Infow("stripe payment attempt declined",
			"event_id", event.ID,
			"payment_intent_id", pi.ID,
			"intent_status", out.IntentStatus,
		)
	}
	return out, nil
}
