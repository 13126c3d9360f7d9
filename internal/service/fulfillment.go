package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/logger"
)

// FulfillmentHook is called exactly once per payment, after the payment has
// been committed as succeeded. Enrollment, order and registration systems
// hang off this hook. An error is logged and does not undo the payment.
type FulfillmentHook interface {
	OnPaymentSucceeded(ctx context.Context, p *payment.Payment) error
}

// FulfillmentFunc adapts a function to FulfillmentHook
type FulfillmentFunc func(ctx context.Context, p *payment.Payment) error

func (f FulfillmentFunc) OnPaymentSucceeded(ctx context.Context, p *payment.Payment) error {
	return f(ctx, p)
}

type invoiceFulfillment struct {
	invoices InvoiceService
	logger   *logger.Logger
}

// NewInvoiceFulfillment settles the linked invoice, if any, when a checkout
// payment succeeds. Other targets are only logged.
func NewInvoiceFulfillment(invoices InvoiceService, logger *logger.Logger) FulfillmentHook {
	return &invoiceFulfillment{
		invoices: invoices,
		logger:   logger,
	}
}

func (f *invoiceFulfillment) OnPaymentSucceeded(ctx context.Context, p *payment.Payment) error {
	f.logger.WithContext(ctx).Infow("fulfilling payment",
		"payment_id", p.ID,
		"family_id", p.FamilyID,
		"payment_type", p.PaymentType,
		"target_ids", p.TargetIDs,
		"total", p.TotalAmount.MinorUnits(),
	)

	invoiceID := lo.FromPtr(p.InvoiceID)
	if invoiceID == "" || !p.TotalAmount.IsPositive() {
		return nil
	}

	_, err := f.invoices.RecordInvoicePayment(ctx, invoiceID, dto.RecordInvoicePaymentRequest{
		Amount:    p.TotalAmount.MinorUnits(),
		PaymentID: p.ID,
	})
	return err
}
