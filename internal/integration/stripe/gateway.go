package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v82"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

var _ payment.Gateway = (*Gateway)(nil)

// Gateway collects checkout payments with Stripe payment intents
type Gateway struct {
	client *stripe.Client
	logger *logger.Logger
}

// NewGateway creates a Stripe gateway from the configured secret key
func NewGateway(cfg *config.Configuration, logger *logger.Logger) *Gateway {
	if cfg.Stripe.SecretKey == "" {
		logger.Warnw("stripe secret key is not configured, gateway calls will fail")
	}
	return &Gateway{
		client: stripe.NewClient(cfg.Stripe.SecretKey, nil),
		logger: logger,
	}
}

func (g *Gateway) Type() types.PaymentGatewayType {
	return types.PaymentGatewayTypeStripe
}

func (g *Gateway) CreateIntent(ctx context.Context, input *payment.CreateIntentInput) (*payment.Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(input.Amount.MinorUnits()),
		Currency:    stripe.String(strings.ToLower(input.Amount.Currency())),
		Description: stripe.String(input.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: input.Metadata,
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	pi, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		g.logger.Errorw("failed to create stripe payment intent",
			"error", err,
			"amount", input.Amount.MinorUnits(),
			"currency", input.Amount.Currency(),
			"payment_id", input.Metadata["payment_id"],
		)
		return nil, stripeError(err, "Unable to start the card payment", map[string]any{
			"payment_id": input.Metadata["payment_id"],
		})
	}

	g.logger.Infow("created stripe payment intent",
		"payment_intent_id", pi.ID,
		"payment_id", input.Metadata["payment_id"],
		"status", pi.Status,
	)
	return toIntent(pi), nil
}

func (g *Gateway) RetrieveIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	pi, err := g.client.V1PaymentIntents.Retrieve(ctx, intentID, nil)
	if err != nil {
		g.logger.Errorw("failed to get stripe payment intent",
			"error", err,
			"payment_intent_id", intentID,
		)
		return nil, stripeError(err, "Unable to retrieve the payment intent", map[string]any{
			"payment_intent_id": intentID,
		})
	}
	return toIntent(pi), nil
}

// CancelIntent cancels the intent. An intent that is already canceled is not an error.
func (g *Gateway) CancelIntent(ctx context.Context, intentID string) error {
	_, err := g.client.V1PaymentIntents.Cancel(ctx, intentID, nil)
	if err == nil {
		g.logger.Infow("cancelled stripe payment intent", "payment_intent_id", intentID)
		return nil
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
		current, getErr := g.RetrieveIntent(ctx, intentID)
		if getErr == nil && current.Status == payment.IntentStatusCanceled {
			return nil
		}
	}

	g.logger.Errorw("failed to cancel stripe payment intent",
		"error", err,
		"payment_intent_id", intentID,
	)
	return stripeError(err, "Unable to cancel the payment intent", map[string]any{
		"payment_intent_id": intentID,
	})
}

func toIntent(pi *stripe.PaymentIntent) *payment.Intent {
	intent := &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       intentStatus(pi.Status),
		Amount:       types.NewMoney(pi.Amount, string(pi.Currency)),
	}
	if pi.LastPaymentError != nil {
		intent.FailureMessage = pi.LastPaymentError.Msg
	}
	return intent
}

// intentStatus maps Stripe statuses onto the gateway neutral ones. Stripe
// reports a declined attempt as requires_payment_method, which stays
// retryable and is not a failure.
func intentStatus(status stripe.PaymentIntentStatus) payment.IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return payment.IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return payment.IntentStatusCanceled
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return payment.IntentStatusProcessing
	case stripe.PaymentIntentStatusRequiresAction:
		return payment.IntentStatusRequiresAction
	case stripe.PaymentIntentStatusRequiresConfirmation:
		return payment.IntentStatusRequiresConfirmation
	default:
		return payment.IntentStatusRequiresPaymentMethod
	}
}

func stripeError(err error, hint string, details map[string]any) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		details = lo.Assign(details, map[string]any{
			"stripe_error_code": stripeErr.Code,
			"stripe_error_type": stripeErr.Type,
			"stripe_request_id": stripeErr.RequestID,
		})
	}
	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrGateway)
}
