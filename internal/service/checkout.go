package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/idempotency"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// CheckoutService turns a family's checkout form into at most one live
// gateway intent per pending payment and keeps the payment in step with it.
type CheckoutService interface {
	// StartCheckout creates or resumes the pending payment for the form and
	// returns what the client needs to collect the charge.
	StartCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)

	// SyncPaymentStatus reads the linked intent from the gateway and applies
	// its status to the payment.
	SyncPaymentStatus(ctx context.Context, paymentID string) (*dto.PaymentResponse, error)

	// HandleGatewayEvent applies a verified gateway notification. Redelivered
	// events are ignored.
	HandleGatewayEvent(ctx context.Context, event *payment.GatewayEvent) error

	// CancelCheckout abandons the linked intent of a pending payment. The
	// payment stays pending and a later checkout creates a fresh intent.
	CancelCheckout(ctx context.Context, paymentID string) (*dto.PaymentResponse, error)

	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)
}

type checkoutService struct {
	ServiceParams
	prices      PriceService
	calculator  LineItemCalculator
	fulfillment FulfillmentHook
	idempotency *idempotency.Generator
}

func NewCheckoutService(params ServiceParams, prices PriceService, fulfillment FulfillmentHook) CheckoutService {
	return &checkoutService{
		ServiceParams: params,
		prices:        prices,
		calculator:    NewLineItemCalculator(),
		fulfillment:   fulfillment,
		idempotency:   idempotency.NewGenerator(),
	}
}

func (s *checkoutService) StartCheckout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkTuitionPricing(ctx, req); err != nil {
		return nil, err
	}

	p, err := s.resolvePayment(ctx, req)
	if err != nil {
		return nil, err
	}

	switch p.PaymentStatus {
	case types.PaymentStatusSucceeded:
		return s.checkoutResponse(ctx, p, "", "", false)
	case types.PaymentStatusFailed:
		return nil, ierr.NewError("payment has failed").
			WithHint("This payment can no longer be completed, please start a new checkout").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if !req.DiscountedSubtotal().IsPositive() {
		return s.completeWithoutCharge(ctx, p, req)
	}

	if p.IsLinked() {
		resp, err := s.reuseIntent(ctx, p, req)
		if err != nil || resp != nil {
			return resp, err
		}
		// the dead intent was unlinked, which moved the intent attempt
		if p, err = s.PaymentRepo.Get(ctx, p.ID); err != nil {
			return nil, err
		}
		if p.PaymentStatus != types.PaymentStatusPending {
			return s.checkoutResponse(ctx, p, "", "", false)
		}
	}

	return s.createIntent(ctx, p, req)
}

// checkTuitionPricing requires an active tuition price for tuition checkouts
// and logs when the submitted subtotal disagrees with it.
func (s *checkoutService) checkTuitionPricing(ctx context.Context, req *dto.CheckoutRequest) error {
	if !req.PaymentType.IsTuition() {
		return nil
	}

	expected, err := s.prices.QuoteTuition(ctx, req.PaymentType, req.Currency, len(req.TargetIDs()))
	if err != nil {
		return err
	}

	if !expected.Equal(req.Subtotal()) {
		s.Logger.WithContext(ctx).Warnw("checkout subtotal does not match tuition price",
			"family_id", req.FamilyID,
			"payment_type", req.PaymentType,
			"expected_subtotal", expected.MinorUnits(),
			"subtotal_amount", req.SubtotalAmount,
			"error_code", ierr.ErrCodeAmountMismatch,
		)
	}
	return nil
}

// resolvePayment finds the payment this checkout belongs to. An explicit
// payment id wins; otherwise the form's idempotency key finds a pending
// payment or a new one is created.
func (s *checkoutService) resolvePayment(ctx context.Context, req *dto.CheckoutRequest) (*payment.Payment, error) {
	if req.PaymentID != "" {
		p, err := s.PaymentRepo.Get(ctx, req.PaymentID)
		if err != nil {
			return nil, err
		}
		if p.FamilyID != req.FamilyID || p.PaymentType != req.PaymentType || p.Currency != req.Subtotal().Currency() {
			return nil, ierr.NewError("payment does not match checkout").
				WithHint("The payment belongs to a different checkout").
				WithReportableDetails(map[string]any{
					"payment_id": p.ID,
				}).
				Mark(ierr.ErrValidation)
		}
		return p, nil
	}

	key := s.idempotency.GenerateKey(idempotency.ScopeCheckout, map[string]interface{}{
		"family_id":        req.FamilyID,
		"payment_type":     req.PaymentType,
		"target_ids":       req.TargetIDs(),
		"currency":         req.Subtotal().Currency(),
		"subtotal_amount":  req.SubtotalAmount,
		"discount_amount":  req.DiscountAmount,
		"total_amount":     req.TotalAmount,
		"discount_code_id": lo.FromPtr(req.DiscountCodeID),
		"invoice_id":       lo.FromPtr(req.InvoiceID),
	})

	existing, err := s.PaymentRepo.GetByIdempotencyKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	currency := req.Subtotal().Currency()
	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		IdempotencyKey: key,
		FamilyID:       req.FamilyID,
		PaymentType:    req.PaymentType,
		TargetIDs:      req.TargetIDs(),
		InvoiceID:      req.InvoiceID,
		Currency:       currency,
		SubtotalAmount: req.Subtotal(),
		DiscountAmount: req.Discount(),
		TaxAmount:      types.ZeroMoney(currency),
		TotalAmount:    req.Total(),
		DiscountCodeID: req.DiscountCodeID,
		PaymentStatus:  types.PaymentStatusPending,
		Metadata:       types.Metadata{},
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.PaymentRepo.Create(ctx, p); err != nil {
		if ierr.IsAlreadyExists(err) {
			// a concurrent submission of the same form created it first
			return s.PaymentRepo.GetByIdempotencyKey(ctx, key)
		}
		return nil, err
	}

	s.Logger.WithContext(ctx).Infow("created pending payment",
		"payment_id", p.ID,
		"family_id", p.FamilyID,
		"payment_type", p.PaymentType,
		"total", p.TotalAmount.MinorUnits(),
	)
	return p, nil
}

// completeWithoutCharge settles a checkout whose discount covers the whole
// subtotal. The gateway is never asked to charge.
func (s *checkoutService) completeWithoutCharge(ctx context.Context, p *payment.Payment, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	var (
		settled      *payment.Payment
		transitioned bool
		staleIntent  string
	)

	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.PaymentRepo.GetForUpdate(txCtx, p.ID)
		if err != nil {
			return err
		}
		settled = locked
		if locked.PaymentStatus != types.PaymentStatusPending {
			return nil
		}

		zero := types.ZeroMoney(locked.Currency)
		if locked.IsLinked() {
			staleIntent = lo.FromPtr(locked.GatewayIntentID)
			locked.UnlinkIntent()
		}
		locked.SubtotalAmount = req.Subtotal()
		locked.DiscountAmount = req.Discount()
		locked.TaxAmount = zero
		locked.TotalAmount = zero
		locked.DiscountCodeID = req.DiscountCodeID
		locked.PaymentGateway = lo.ToPtr(types.PaymentGatewayTypeNone)
		locked.Metadata = locked.Metadata.With("fully_discounted", "true")
		transitioned = locked.MarkSucceeded(types.PaymentMethodTypeFullyDiscounted, time.Now().UTC())
		locked.Touch(txCtx)

		if err := s.PaymentRepo.Update(txCtx, locked); err != nil {
			return err
		}
		return s.TaxSnapshotRepo.DeleteByOwner(txCtx, types.TaxSnapshotOwnerPayment, locked.ID)
	})
	if err != nil {
		return nil, err
	}

	if staleIntent != "" {
		s.cancelIntentBestEffort(ctx, settled.ID, staleIntent)
	}

	if transitioned {
		s.Logger.WithContext(ctx).Infow("payment completed without charge",
			"payment_id", settled.ID,
			"discount_code_id", lo.FromPtr(settled.DiscountCodeID),
		)
		s.fulfill(ctx, settled)
	}

	return s.checkoutResponse(ctx, settled, "", "", false)
}

// reuseIntent returns the live intent already linked to p. A nil response
// with a nil error means the intent is gone and a new one must be created.
func (s *checkoutService) reuseIntent(ctx context.Context, p *payment.Payment, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	intentID := lo.FromPtr(p.GatewayIntentID)
	intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, gatewayError(err, "retrieve intent", p.ID)
	}

	switch intent.Status {
	case payment.IntentStatusSucceeded, payment.IntentStatusFailed:
		updated, err := s.applyIntentStatus(ctx, p.ID, intent.ID, intent.Status, intent.FailureMessage)
		if err != nil {
			return nil, err
		}
		return s.checkoutResponse(ctx, updated, "", "", false)

	case payment.IntentStatusCanceled:
		if err := s.unlinkIntent(ctx, p.ID, intent.ID); err != nil {
			return nil, err
		}
		s.Logger.WithContext(ctx).Infow("linked intent was canceled, creating a new one",
			"payment_id", p.ID,
			"intent_id", intent.ID,
		)
		return nil, nil
	}

	if !p.TotalAmount.Equal(req.Total()) {
		s.Logger.WithContext(ctx).Warnw("checkout total differs from the linked intent",
			"payment_id", p.ID,
			"intent_id", intent.ID,
			"linked_total", p.TotalAmount.MinorUnits(),
			"total_amount", req.TotalAmount,
			"error_code", ierr.ErrCodeAmountMismatch,
		)
	}

	return s.checkoutResponse(ctx, p, intent.ID, intent.ClientSecret, true)
}

// reconcileTax decides the tax for the charge. Snapshots already stored for
// the payment are authoritative; a fresh calculation is used only when
// there are none, and a disagreement between the two is logged.
func (s *checkoutService) reconcileTax(ctx context.Context, p *payment.Payment, req *dto.CheckoutRequest) ([]taxsnapshot.TaxLine, types.Money, error) {
	currency := p.Currency

	resolver := NewBatchRateResolver(s.TaxRateRepo)
	ids, rates, err := resolver.RatesForInput(ctx, req.PaymentType.ItemType(), nil)
	if err != nil {
		return nil, types.Money{}, err
	}

	calc, err := s.calculator.Calculate(invoice.LineItemInput{
		ItemType:   req.PaymentType.ItemType(),
		UnitPrice:  req.Subtotal(),
		Quantity:   1,
		TaxRateIDs: ids,
	}, rates)
	if err != nil {
		return nil, types.Money{}, err
	}

	existing, err := s.TaxSnapshotRepo.ListByOwner(ctx, types.TaxSnapshotOwnerPayment, p.ID)
	if err != nil {
		return nil, types.Money{}, err
	}
	if len(existing) == 0 {
		return calc.TaxBreakdown, calc.TaxAmount, nil
	}

	snapshotTax, err := taxsnapshot.SumAmounts(currency, existing)
	if err != nil {
		return nil, types.Money{}, err
	}
	if !snapshotTax.Equal(calc.TaxAmount) {
		s.Logger.WithContext(ctx).Warnw("stored tax snapshot differs from current rates, keeping snapshot",
			"payment_id", p.ID,
			"snapshot_tax", snapshotTax.MinorUnits(),
			"current_tax", calc.TaxAmount.MinorUnits(),
			"error_code", ierr.ErrCodeAmountMismatch,
		)
	}

	return lo.Map(existing, func(snap *taxsnapshot.TaxSnapshot, _ int) taxsnapshot.TaxLine {
		return snap.TaxLine()
	}), snapshotTax, nil
}

// createIntent charges exactly the submitted total. If the intent cannot be
// linked to the payment it is cancelled once so no orphan charge remains.
func (s *checkoutService) createIntent(ctx context.Context, p *payment.Payment, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	log := s.Logger.WithContext(ctx)

	lines, tax, err := s.reconcileTax(ctx, p, req)
	if err != nil {
		return nil, err
	}

	total := req.Total()
	expected, err := req.DiscountedSubtotal().Add(tax)
	if err != nil {
		return nil, err
	}
	if !expected.Equal(total) {
		log.Warnw("checkout total does not match subtotal, discount and tax",
			"payment_id", p.ID,
			"expected_total", expected.MinorUnits(),
			"total_amount", total.MinorUnits(),
			"tax_amount", tax.MinorUnits(),
			"error_code", ierr.ErrCodeAmountMismatch,
		)
	}

	span, spanCtx := s.Sentry.StartGatewaySpan(ctx, "gateway.create_intent", map[string]interface{}{
		"payment_id": p.ID,
		"amount":     total.MinorUnits(),
		"currency":   total.Currency(),
	})
	intent, err := s.Gateway.CreateIntent(spanCtx, &payment.CreateIntentInput{
		Amount:      total,
		Description: fmt.Sprintf("%s payment for family %s", p.PaymentType, p.FamilyID),
		Metadata: map[string]string{
			"payment_id":   p.ID,
			"family_id":    p.FamilyID,
			"payment_type": string(p.PaymentType),
			"tenant_id":    p.TenantID,
		},
		IdempotencyKey: s.gatewayIdempotencyKey(p, total),
	})
	if span != nil {
		span.Finish()
	}
	if err != nil {
		log.Errorw("failed to create gateway intent",
			"payment_id", p.ID,
			"amount", total.MinorUnits(),
			"error", err,
		)
		return nil, gatewayError(err, "create intent", p.ID)
	}

	linked, err := s.linkIntent(ctx, p.ID, intent, req, tax, lines)
	if err != nil {
		if ierr.IsVersionConflict(err) {
			// another request finished first; answer with its state
			current, getErr := s.PaymentRepo.Get(ctx, p.ID)
			if getErr != nil {
				s.compensate(ctx, p.ID, intent.ID, err)
				return nil, getErr
			}
			// a concurrent request with the same idempotency key got the same intent
			if lo.FromPtr(current.GatewayIntentID) != intent.ID {
				s.compensate(ctx, p.ID, intent.ID, err)
			}
			if current.IsLinked() && current.PaymentStatus == types.PaymentStatusPending {
				resp, err := s.reuseIntent(ctx, current, req)
				if err != nil || resp != nil {
					return resp, err
				}
			}
			return s.checkoutResponse(ctx, current, "", "", false)
		}

		s.compensate(ctx, p.ID, intent.ID, err)

		return nil, ierr.WithError(err).
			WithHint("The payment could not be saved and has been cancelled, please try again").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrDatabase)
	}

	log.Infow("created gateway intent",
		"payment_id", linked.ID,
		"intent_id", intent.ID,
		"total", total.MinorUnits(),
		"tax", tax.MinorUnits(),
	)

	return s.checkoutResponse(ctx, linked, intent.ID, intent.ClientSecret, false)
}

// gatewayIdempotencyKey stays the same for a payment until its intent is
// unlinked. The gateway rejects a reused key with different parameters, so
// the amount is part of it.
func (s *checkoutService) gatewayIdempotencyKey(p *payment.Payment, total types.Money) string {
	return s.idempotency.GenerateKey(idempotency.ScopeGatewayIntent, map[string]interface{}{
		"payment_id": p.ID,
		"attempt":    p.IntentAttempt(),
		"amount":     total.MinorUnits(),
		"currency":   total.Currency(),
	})
}

// linkIntent records the intent and the final amounts and replaces the
// payment's tax snapshot, all in one transaction. Transient database
// failures are retried; losing a race to another request is not.
func (s *checkoutService) linkIntent(
	ctx context.Context,
	paymentID string,
	intent *payment.Intent,
	req *dto.CheckoutRequest,
	tax types.Money,
	lines []taxsnapshot.TaxLine,
) (*payment.Payment, error) {
	var linked *payment.Payment

	op := func() error {
		err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
			locked, err := s.PaymentRepo.GetForUpdate(txCtx, paymentID)
			if err != nil {
				return err
			}
			if locked.PaymentStatus != types.PaymentStatusPending || locked.IsLinked() {
				return ierr.NewError("payment changed while creating intent").
					WithHint("This payment was updated by another request").
					WithReportableDetails(map[string]any{
						"payment_id":     locked.ID,
						"payment_status": locked.PaymentStatus,
					}).
					Mark(ierr.ErrVersionConflict)
			}

			locked.LinkIntent(intent.ID, s.Gateway.Type(), req.Subtotal(), req.Discount(), tax, req.Total())
			locked.DiscountCodeID = req.DiscountCodeID
			if req.InvoiceID != nil {
				locked.InvoiceID = req.InvoiceID
			}
			locked.Touch(txCtx)
			if err := s.PaymentRepo.Update(txCtx, locked); err != nil {
				return err
			}

			if err := s.TaxSnapshotRepo.DeleteByOwner(txCtx, types.TaxSnapshotOwnerPayment, locked.ID); err != nil {
				return err
			}
			snapshots := taxsnapshot.FromTaxLines(txCtx, types.TaxSnapshotOwnerPayment, locked.ID, lines)
			if len(snapshots) > 0 {
				if err := s.TaxSnapshotRepo.CreateMany(txCtx, snapshots); err != nil {
					return err
				}
			}

			linked = locked
			return nil
		})
		if err != nil && !ierr.IsDatabase(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(s.Config.Billing.LinkRetryInterval),
			s.Config.Billing.LinkRetryAttempts,
		),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return linked, nil
}

// compensate cancels an intent that could not be linked. It calls the
// gateway once; a failure leaves a live orphan intent which is reported
// for manual follow up.
func (s *checkoutService) compensate(ctx context.Context, paymentID, intentID string, cause error) {
	log := s.Logger.WithContext(ctx)
	log.Errorw("failed to link gateway intent, cancelling it",
		"payment_id", paymentID,
		"intent_id", intentID,
		"error", cause,
	)

	if err := s.Gateway.CancelIntent(ctx, intentID); err != nil {
		log.Errorw("failed to cancel unlinked gateway intent",
			"payment_id", paymentID,
			"intent_id", intentID,
			"error", err,
		)
		s.Sentry.CaptureCritical(ctx, ierr.WithError(err).
			WithHint("A gateway intent exists without a local payment link").
			Mark(ierr.ErrGateway), map[string]string{
			"payment_id": paymentID,
			"intent_id":  intentID,
		})
		return
	}

	if ierr.IsVersionConflict(cause) {
		return
	}
	s.Sentry.CaptureException(ctx, cause)

	// the cancelled intent must not be replayed by the next attempt's key
	if err := s.retireIntent(ctx, paymentID, intentID); err != nil {
		log.Warnw("failed to advance intent attempt after cancelling",
			"payment_id", paymentID,
			"intent_id", intentID,
			"error", err,
		)
	}
}

// retireIntent records a cancelled intent that was never linked and moves
// the payment to its next intent attempt.
func (s *checkoutService) retireIntent(ctx context.Context, paymentID, intentID string) error {
	return s.DB.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.PaymentRepo.GetForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		if locked.IsLinked() || locked.PaymentStatus != types.PaymentStatusPending {
			return nil
		}
		locked.Metadata = locked.Metadata.With(payment.MetadataLastIntentID, intentID)
		locked.UnlinkIntent()
		locked.Touch(txCtx)
		return s.PaymentRepo.Update(txCtx, locked)
	})
}

func (s *checkoutService) SyncPaymentStatus(ctx context.Context, paymentID string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	// failed payments are still checked, the gateway may have collected since
	if p.PaymentStatus == types.PaymentStatusSucceeded || !p.IsLinked() {
		return s.paymentResponse(ctx, p)
	}

	intent, err := s.Gateway.RetrieveIntent(ctx, lo.FromPtr(p.GatewayIntentID))
	if err != nil {
		return nil, gatewayError(err, "retrieve intent", p.ID)
	}

	updated, err := s.applyIntentStatus(ctx, p.ID, intent.ID, intent.Status, intent.FailureMessage)
	if err != nil {
		return nil, err
	}
	return s.paymentResponse(ctx, updated)
}

func (s *checkoutService) HandleGatewayEvent(ctx context.Context, event *payment.GatewayEvent) error {
	log := s.Logger.WithContext(ctx)

	key := cache.GenerateKey(cache.PrefixWebhookEvent, event.ID)
	if !s.Cache.Add(ctx, key, event.Type, s.Config.Cache.WebhookEventTTL) {
		log.Infow("ignoring duplicate gateway event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}

	if err := s.handleGatewayEvent(ctx, event); err != nil {
		// allow the gateway's redelivery to be processed
		s.Cache.Delete(ctx, key)
		return err
	}
	return nil
}

func (s *checkoutService) handleGatewayEvent(ctx context.Context, event *payment.GatewayEvent) error {
	log := s.Logger.WithContext(ctx)

	var status payment.IntentStatus
	switch event.Type {
	case payment.GatewayEventIntentSucceeded:
		status = payment.IntentStatusSucceeded
	case payment.GatewayEventIntentFailed:
		status = payment.IntentStatusFailed
	case payment.GatewayEventIntentCanceled:
		status = payment.IntentStatusCanceled
	case payment.GatewayEventIntentUpdated:
		if event.IntentID == "" || event.IntentStatus.IsTerminal() {
			log.Debugw("ignoring gateway event",
				"event_id", event.ID,
				"event_type", event.Type,
			)
			return nil
		}
		status = event.IntentStatus
	default:
		log.Debugw("ignoring gateway event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}

	p, err := s.PaymentRepo.GetByGatewayIntentID(ctx, event.IntentID)
	if ierr.IsNotFound(err) && event.PaymentID != "" {
		// the intent may have been superseded; the payment id travels in its metadata
		p, err = s.PaymentRepo.Get(ctx, event.PaymentID)
	}
	if err != nil {
		if ierr.IsNotFound(err) {
			log.Warnw("no payment found for gateway event",
				"event_id", event.ID,
				"intent_id", event.IntentID,
				"payment_id", event.PaymentID,
			)
			return nil
		}
		return err
	}

	_, err = s.applyIntentStatus(ctx, p.ID, event.IntentID, status, event.FailureMessage)
	return err
}

// applyIntentStatus moves the payment according to a gateway intent status.
// A success from any intent of the payment settles it, even after a failure,
// since the money was collected. Failure and cancellation only count for the
// linked intent, and only a terminal failure fails the payment. A declined
// attempt keeps the payment pending and records the decline reason.
// Fulfillment runs after commit and only on the transition itself.
func (s *checkoutService) applyIntentStatus(ctx context.Context, paymentID, intentID string, status payment.IntentStatus, failureMessage string) (*payment.Payment, error) {
	var (
		updated      *payment.Payment
		transitioned bool
	)

	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.PaymentRepo.GetForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		updated = locked

		current := lo.FromPtr(locked.GatewayIntentID) == intentID
		now := time.Now().UTC()

		switch status {
		case payment.IntentStatusSucceeded:
			transitioned = locked.MarkSucceeded(types.PaymentMethodTypeCard, now)
			if transitioned && !current {
				locked.GatewayIntentID = lo.ToPtr(intentID)
			}
		case payment.IntentStatusFailed:
			if !current {
				return nil
			}
			transitioned = locked.MarkFailed(failureMessage, now)
		case payment.IntentStatusCanceled:
			if !current || locked.PaymentStatus != types.PaymentStatusPending {
				return nil
			}
			locked.UnlinkIntent()
		default:
			if !current || locked.PaymentStatus != types.PaymentStatusPending ||
				failureMessage == "" || lo.FromPtr(locked.ErrorMessage) == failureMessage {
				return nil
			}
			locked.ErrorMessage = lo.ToPtr(failureMessage)
		}

		locked.Touch(txCtx)
		return s.PaymentRepo.Update(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	if transitioned {
		s.Logger.WithContext(ctx).Infow("payment status changed",
			"payment_id", updated.ID,
			"intent_id", intentID,
			"payment_status", updated.PaymentStatus,
		)
		if updated.PaymentStatus == types.PaymentStatusSucceeded {
			s.fulfill(ctx, updated)
		}
	}
	return updated, nil
}

func (s *checkoutService) CancelCheckout(ctx context.Context, paymentID string) (*dto.PaymentResponse, error) {
	var (
		p        *payment.Payment
		intentID string
	)

	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.PaymentRepo.GetForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		p = locked

		if locked.PaymentStatus != types.PaymentStatusPending {
			return ierr.NewError("payment is not pending").
				WithHintf("A %s payment cannot be cancelled", locked.PaymentStatus).
				WithReportableDetails(map[string]any{
					"payment_id":     locked.ID,
					"payment_status": locked.PaymentStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		if !locked.IsLinked() {
			return nil
		}

		intentID = lo.FromPtr(locked.GatewayIntentID)
		locked.UnlinkIntent()
		locked.Touch(txCtx)
		return s.PaymentRepo.Update(txCtx, locked)
	})
	if err != nil {
		return nil, err
	}

	if intentID != "" {
		s.cancelIntentBestEffort(ctx, p.ID, intentID)
	}

	return s.paymentResponse(ctx, p)
}

func (s *checkoutService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	if id == "" {
		return nil, ierr.NewError("payment_id is required").
			WithHint("Payment ID is required").
			Mark(ierr.ErrValidation)
	}

	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.paymentResponse(ctx, p)
}

func (s *checkoutService) ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	if filter == nil {
		filter = types.NewPaymentFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.PaymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
		return &dto.PaymentResponse{Payment: p}
	})

	resp := types.NewListResponse(items, count, filter)
	return &resp, nil
}

func (s *checkoutService) unlinkIntent(ctx context.Context, paymentID, intentID string) error {
	return s.DB.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.PaymentRepo.GetForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		if lo.FromPtr(locked.GatewayIntentID) != intentID {
			return nil
		}
		locked.UnlinkIntent()
		locked.Touch(txCtx)
		return s.PaymentRepo.Update(txCtx, locked)
	})
}

func (s *checkoutService) cancelIntentBestEffort(ctx context.Context, paymentID, intentID string) {
	if err := s.Gateway.CancelIntent(ctx, intentID); err != nil {
		s.Logger.WithContext(ctx).Warnw("failed to cancel gateway intent",
			"payment_id", paymentID,
			"intent_id", intentID,
			"error", err,
		)
	}
}

func (s *checkoutService) fulfill(ctx context.Context, p *payment.Payment) {
	if s.fulfillment == nil {
		return
	}
	if err := s.fulfillment.OnPaymentSucceeded(ctx, p); err != nil {
		s.Logger.WithContext(ctx).Errorw("fulfillment failed for succeeded payment",
			"payment_id", p.ID,
			"family_id", p.FamilyID,
			"error", err,
		)
		s.Sentry.CaptureException(ctx, err)
	}
}

func (s *checkoutService) checkoutResponse(ctx context.Context, p *payment.Payment, intentID, clientSecret string, reused bool) (*dto.CheckoutResponse, error) {
	snapshots, err := s.TaxSnapshotRepo.ListByOwner(ctx, types.TaxSnapshotOwnerPayment, p.ID)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		PaymentID:      p.ID,
		PaymentStatus:  p.PaymentStatus,
		IntentID:       intentID,
		ClientSecret:   clientSecret,
		SubtotalAmount: p.SubtotalAmount,
		DiscountAmount: p.DiscountAmount,
		TaxAmount:      p.TaxAmount,
		TotalAmount:    p.TotalAmount,
		Taxes: lo.Map(snapshots, func(snap *taxsnapshot.TaxSnapshot, _ int) taxsnapshot.TaxLine {
			return snap.TaxLine()
		}),
		FullyDiscounted: lo.FromPtr(p.PaymentMethodType) == types.PaymentMethodTypeFullyDiscounted,
		Reused:          reused,
	}, nil
}

func (s *checkoutService) paymentResponse(ctx context.Context, p *payment.Payment) (*dto.PaymentResponse, error) {
	snapshots, err := s.TaxSnapshotRepo.ListByOwner(ctx, types.TaxSnapshotOwnerPayment, p.ID)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentResponse{Payment: p, Taxes: snapshots}, nil
}

func gatewayError(err error, op, paymentID string) error {
	if ierr.IsGateway(err) {
		return err
	}
	return ierr.WithError(err).
		WithHintf("Payment gateway could not %s", op).
		WithReportableDetails(map[string]any{
			"payment_id": paymentID,
		}).
		Mark(ierr.ErrGateway)
}
