package payment

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// Payment is the local record of a family checkout. Its ID is the
// idempotency anchor for everything sent to the gateway.
type Payment struct {
	// Unique identifier for this payment
	ID string `json:"id"`
	// Derived from the checkout selection so that a resubmitted form finds the same pending payment
	IdempotencyKey string `json:"idempotency_key"`
	// The family paying
	FamilyID string `json:"family_id"`
	// What is being paid for
	PaymentType types.PaymentType `json:"payment_type"`
	// Student ids, or the single order id / enrollment id, depending on PaymentType
	TargetIDs []string `json:"target_ids"`
	// Invoice settled by this payment (optional)
	InvoiceID *string `json:"invoice_id,omitempty"`
	// Three-letter ISO code
	Currency string `json:"currency"`
	// Amounts as authorized at checkout time
	SubtotalAmount types.Money `json:"subtotal_amount"`
	DiscountAmount types.Money `json:"discount_amount"`
	TaxAmount      types.Money `json:"tax_amount"`
	TotalAmount    types.Money `json:"total_amount"`
	// Discount code applied upstream (optional)
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
	// pending, succeeded or failed
	PaymentStatus types.PaymentStatus `json:"payment_status"`
	// How the payment was settled once it succeeded
	PaymentMethodType *types.PaymentMethodType `json:"payment_method_type,omitempty"`
	// Gateway used to process this payment (optional)
	PaymentGateway *types.PaymentGatewayType `json:"payment_gateway,omitempty"`
	// The gateway intent currently linked to this payment (optional)
	GatewayIntentID *string        `json:"gateway_intent_id,omitempty"`
	SucceededAt     *time.Time     `json:"succeeded_at,omitempty"`
	FailedAt        *time.Time     `json:"failed_at,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	Metadata        types.Metadata `json:"metadata,omitempty"`

	types.BaseModel
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.FamilyID == "" {
		return ierr.NewError("family id is required").
			WithHint("Family id is invalid").
			Mark(ierr.ErrValidation)
	}
	if err := p.PaymentType.Validate(); err != nil {
		return err
	}
	if err := p.PaymentStatus.Validate(); err != nil {
		return err
	}
	if !types.IsValidCurrency(p.Currency) {
		return ierr.NewError("invalid currency").
			WithHint("Currency is invalid").
			Mark(ierr.ErrValidation)
	}
	for _, m := range []types.Money{p.SubtotalAmount, p.DiscountAmount, p.TaxAmount, p.TotalAmount} {
		if m.Currency() != p.Currency {
			return ierr.NewError("amount currency does not match payment currency").
				WithHint("All payment amounts must use the payment currency").
				Mark(ierr.ErrValidation)
		}
		if m.IsNegative() {
			return ierr.NewError("invalid amount").
				WithHint("Amounts cannot be negative").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// IsLinked reports whether a gateway intent is attached
func (p *Payment) IsLinked() bool {
	return lo.FromPtr(p.GatewayIntentID) != ""
}

// LinkIntent attaches a gateway intent and the amounts it was created for
func (p *Payment) LinkIntent(intentID string, gateway types.PaymentGatewayType, subtotal, discount, tax, total types.Money) {
	p.GatewayIntentID = lo.ToPtr(intentID)
	p.PaymentGateway = lo.ToPtr(gateway)
	p.SubtotalAmount = subtotal
	p.DiscountAmount = discount
	p.TaxAmount = tax
	p.TotalAmount = total
}

// Metadata keys kept on a payment across intent attempts
const (
	MetadataLastIntentID  = "last_intent_id"
	MetadataIntentAttempt = "intent_attempt"
)

// UnlinkIntent detaches the gateway intent so a retry creates a fresh one.
// The intent attempt moves on, so the next intent gets a new gateway
// idempotency key.
func (p *Payment) UnlinkIntent() {
	if p.IsLinked() {
		p.Metadata = p.Metadata.With(MetadataLastIntentID, lo.FromPtr(p.GatewayIntentID))
	}
	p.GatewayIntentID = nil
	p.Metadata = p.Metadata.With(MetadataIntentAttempt, strconv.Itoa(p.IntentAttempt()+1))
}

// IntentAttempt numbers the gateway intents created for this payment,
// starting at zero. It only changes when an intent is unlinked.
func (p *Payment) IntentAttempt() int {
	n, err := strconv.Atoi(p.Metadata[MetadataIntentAttempt])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MarkSucceeded settles the payment. A failed payment can still succeed
// because the gateway may collect on an intent it reported as failed.
// It returns false, changing nothing, when the payment already succeeded.
func (p *Payment) MarkSucceeded(method types.PaymentMethodType, at time.Time) bool {
	if p.PaymentStatus == types.PaymentStatusSucceeded {
		return false
	}
	p.PaymentStatus = types.PaymentStatusSucceeded
	p.PaymentMethodType = lo.ToPtr(method)
	p.SucceededAt = lo.ToPtr(at)
	p.FailedAt = nil
	p.ErrorMessage = nil
	p.releaseIdempotencyKey()
	return true
}

// MarkFailed moves a pending payment to failed.
// It returns false, changing nothing, when the payment is not pending.
func (p *Payment) MarkFailed(reason string, at time.Time) bool {
	if p.PaymentStatus != types.PaymentStatusPending {
		return false
	}
	p.PaymentStatus = types.PaymentStatusFailed
	p.FailedAt = lo.ToPtr(at)
	if reason != "" {
		p.ErrorMessage = lo.ToPtr(reason)
	}
	p.releaseIdempotencyKey()
	return true
}

// releaseIdempotencyKey frees the checkout key of a settled payment so the
// same selection can be checked out again later. Only pending payments are
// found by key.
func (p *Payment) releaseIdempotencyKey() {
	if p.IdempotencyKey == "" || strings.HasSuffix(p.IdempotencyKey, ":"+p.ID) {
		return
	}
	p.IdempotencyKey = p.IdempotencyKey + ":" + p.ID
}
