package payment

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/types"
)

// IntentStatus is the gateway side state of a payment intent
type IntentStatus string

const (
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentStatusRequiresAction        IntentStatus = "requires_action"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusSucceeded             IntentStatus = "succeeded"
	IntentStatusCanceled              IntentStatus = "canceled"
	// IntentStatusFailed is only reported for a definitive failure
	IntentStatusFailed IntentStatus = "failed"
)

// IsTerminal reports whether the intent can no longer be paid
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusSucceeded || s == IntentStatusCanceled || s == IntentStatusFailed
}

// Intent is a gateway payment intent
type Intent struct {
	ID             string       `json:"id"`
	ClientSecret   string       `json:"client_secret,omitempty"`
	Status         IntentStatus `json:"status"`
	Amount         types.Money  `json:"amount"`
	FailureMessage string       `json:"failure_message,omitempty"`
}

// CreateIntentInput describes a charge to be collected by the gateway
type CreateIntentInput struct {
	Amount         types.Money
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Gateway is the external payment processor
type Gateway interface {
	Type() types.PaymentGatewayType
	CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// GatewayEventType is a normalized gateway notification
type GatewayEventType string

const (
	GatewayEventIntentSucceeded GatewayEventType = "intent.succeeded"
	GatewayEventIntentFailed    GatewayEventType = "intent.failed"
	GatewayEventIntentCanceled  GatewayEventType = "intent.canceled"
	GatewayEventIntentUpdated   GatewayEventType = "intent.updated"
)

// GatewayEvent is a verified notification received from the gateway
type GatewayEvent struct {
	ID       string
	Type     GatewayEventType
	IntentID string
	// PaymentID and TenantID are read from the intent metadata and may be empty
	PaymentID string
	TenantID  string
	// IntentStatus is the intent state carried by the notification, when known
	IntentStatus   IntentStatus
	FailureMessage string
}

// WebhookParser verifies a raw gateway notification and normalizes it
type WebhookParser interface {
	Parse(payload []byte, signature string) (*GatewayEvent, error)
}
