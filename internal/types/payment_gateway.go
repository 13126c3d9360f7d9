package types

import (
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
)

// PaymentGatewayType identifies the gateway that processed a payment
type PaymentGatewayType string

const (
	PaymentGatewayTypeStripe PaymentGatewayType = "stripe"
	// PaymentGatewayTypeNone marks payments settled without a gateway charge
	PaymentGatewayTypeNone PaymentGatewayType = "none"
)

// Validate validates the payment gateway type
func (p PaymentGatewayType) Validate() error {
	switch p {
	case PaymentGatewayTypeStripe, PaymentGatewayTypeNone:
		return nil
	default:
		return ierr.NewError("invalid payment gateway type").
			WithHint("Please provide a valid payment gateway type").
			WithReportableDetails(map[string]any{
				"allowed": []PaymentGatewayType{
					PaymentGatewayTypeStripe,
					PaymentGatewayTypeNone,
				},
			}).
			Mark(ierr.ErrValidation)
	}
}

// String returns the string representation of the payment gateway type
func (p PaymentGatewayType) String() string {
	return string(p)
}

// WebhookEventType is a raw event type sent by a gateway
type WebhookEventType string

const (
	// Stripe webhook events
	WebhookEventTypePaymentIntentSucceeded     WebhookEventType = "payment_intent.succeeded"
	WebhookEventTypePaymentIntentPaymentFailed WebhookEventType = "payment_intent.payment_failed"
	WebhookEventTypePaymentIntentCanceled      WebhookEventType = "payment_intent.canceled"
	WebhookEventTypePaymentIntentProcessing    WebhookEventType = "payment_intent.processing"
)

// String returns the string representation of the webhook event type
func (w WebhookEventType) String() string {
	return string(w)
}

// IsPaymentIntentEvent reports whether the event carries a payment intent
func (w WebhookEventType) IsPaymentIntentEvent() bool {
	switch w {
	case
		WebhookEventTypePaymentIntentSucceeded,
		WebhookEventTypePaymentIntentPaymentFailed,
		WebhookEventTypePaymentIntentCanceled,
		WebhookEventTypePaymentIntentProcessing:
		return true
	default:
		return false
	}
}
