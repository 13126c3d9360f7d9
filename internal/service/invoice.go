package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	// ReplaceLineItems reprices every line item of a draft invoice and rewrites its totals
	ReplaceLineItems(ctx context.Context, id string, req dto.ReplaceLineItemsRequest) (*dto.InvoiceResponse, error)
	UpdateInvoiceStatus(ctx context.Context, id string, req dto.UpdateInvoiceStatusRequest) (*dto.InvoiceResponse, error)
	RecordInvoicePayment(ctx context.Context, id string, req dto.RecordInvoicePaymentRequest) (*dto.InvoiceResponse, error)
}

type invoiceService struct {
	ServiceParams
	calculator LineItemCalculator
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		calculator:    NewLineItemCalculator(),
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv := req.ToInvoice(ctx)

	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		items, totals, err := s.priceLineItems(txCtx, inv, req.LineItemInputs())
		if err != nil {
			return err
		}

		inv.ApplyTotals(totals)
		if err := inv.Validate(); err != nil {
			return err
		}

		if err := s.InvoiceRepo.Create(txCtx, inv); err != nil {
			return err
		}
		if err := s.persistLineItems(txCtx, items); err != nil {
			return err
		}

		inv.LineItems = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"family_id", inv.FamilyID,
		"total", inv.Total.MinorUnits(),
		"line_items", len(inv.LineItems),
	)

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.loadLineItems(ctx, inv); err != nil {
		return nil, err
	}

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv)
	})

	resp := types.NewListResponse(items, count, filter)
	return &resp, nil
}

func (s *invoiceService) ReplaceLineItems(ctx context.Context, id string, req dto.ReplaceLineItemsRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if !inv.IsDraft() {
			return invoice.NewNotDraftError(inv)
		}

		existing, err := s.InvoiceLineItemRepo.GetByInvoiceID(txCtx, inv.ID)
		if err != nil {
			return err
		}
		for _, item := range existing {
			if err := s.TaxSnapshotRepo.DeleteByOwner(txCtx, types.TaxSnapshotOwnerLineItem, item.ID); err != nil {
				return err
			}
		}
		if err := s.InvoiceLineItemRepo.DeleteByInvoiceID(txCtx, inv.ID); err != nil {
			return err
		}

		items, totals, err := s.priceLineItems(txCtx, inv, req.LineItemInputs(inv.Currency))
		if err != nil {
			return err
		}
		if err := s.persistLineItems(txCtx, items); err != nil {
			return err
		}

		inv.ApplyTotals(totals)
		inv.Touch(txCtx)
		if err := s.InvoiceRepo.Update(txCtx, inv); err != nil {
			return err
		}

		inv.LineItems = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, id string, req dto.UpdateInvoiceStatusRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if inv.InvoiceStatus == req.Status {
			return nil
		}
		if !inv.InvoiceStatus.CanTransitionTo(req.Status) {
			return invoice.NewInvalidTransitionError(inv, req.Status)
		}

		now := time.Now().UTC()
		inv.InvoiceStatus = req.Status
		if req.Status == types.InvoiceStatusPaid {
			inv.PaidAt = lo.ToPtr(now)
		}
		inv.Touch(txCtx)
		return s.InvoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("updated invoice status",
		"invoice_id", inv.ID,
		"invoice_status", inv.InvoiceStatus,
	)

	return dto.NewInvoiceResponse(inv), nil
}

// RecordInvoicePayment adds a settled amount to the invoice and moves it to
// partially_paid or paid. Overpayment is rejected.
func (s *invoiceService) RecordInvoicePayment(ctx context.Context, id string, req dto.RecordInvoicePaymentRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var inv *invoice.Invoice
	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if !inv.InvoiceStatus.AcceptsPayment() {
			return ierr.NewError("invoice does not accept payments").
				WithHintf("Payments cannot be recorded on a %s invoice", inv.InvoiceStatus).
				WithReportableDetails(map[string]any{
					"invoice_id":     inv.ID,
					"invoice_status": inv.InvoiceStatus,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		amount := types.NewMoney(req.Amount, inv.Currency)
		paid, err := inv.AmountPaid.Add(amount)
		if err != nil {
			return err
		}
		if paid.MinorUnits() > inv.Total.MinorUnits() {
			return ierr.NewError("payment exceeds amount remaining").
				WithHintf("At most %s can be applied to this invoice", inv.AmountRemaining()).
				WithReportableDetails(map[string]any{
					"invoice_id":       inv.ID,
					"amount":           amount.MinorUnits(),
					"amount_remaining": inv.AmountRemaining().MinorUnits(),
				}).
				Mark(ierr.ErrValidation)
		}

		now := time.Now().UTC()
		inv.AmountPaid = paid
		if paid.Equal(inv.Total) {
			inv.InvoiceStatus = types.InvoiceStatusPaid
			inv.PaidAt = lo.ToPtr(now)
		} else {
			inv.InvoiceStatus = types.InvoiceStatusPartiallyPaid
		}
		inv.Touch(txCtx)
		return s.InvoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded invoice payment",
		"invoice_id", inv.ID,
		"payment_id", req.PaymentID,
		"amount", req.Amount,
		"invoice_status", inv.InvoiceStatus,
	)

	return dto.NewInvoiceResponse(inv), nil
}

// priceLineItems runs the calculator over every input with rates resolved
// once for the whole invoice, and aggregates the totals.
func (s *invoiceService) priceLineItems(ctx context.Context, inv *invoice.Invoice, inputs []invoice.LineItemInput) ([]*invoice.InvoiceLineItem, invoice.Totals, error) {
	resolver := NewBatchRateResolver(s.TaxRateRepo)
	items := make([]*invoice.InvoiceLineItem, 0, len(inputs))
	calcs := make([]*invoice.LineItemCalculation, 0, len(inputs))

	for i, input := range inputs {
		if input.UnitPrice.Currency() != inv.Currency {
			return nil, invoice.Totals{}, ierr.NewError("line item currency does not match invoice").
				WithHintf("Line item %d must be priced in %s", i+1, inv.Currency).
				Mark(ierr.ErrCurrencyMismatch)
		}

		ids, rates, err := resolver.RatesForInput(ctx, input.ItemType, input.TaxRateIDs)
		if err != nil {
			return nil, invoice.Totals{}, err
		}
		input.TaxRateIDs = ids

		calc, err := s.calculator.Calculate(input, rates)
		if err != nil {
			return nil, invoice.Totals{}, err
		}
		if unresolved := unresolvedRateIDs(calc.TaxBreakdown); len(unresolved) > 0 {
			s.Logger.Warnw("tax rates not applied to line item",
				"invoice_id", inv.ID,
				"line_item", i+1,
				"tax_rate_ids", unresolved,
			)
		}

		item := &invoice.InvoiceLineItem{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			InvoiceID:       inv.ID,
			ItemType:        input.ItemType,
			Description:     input.Description,
			Currency:        inv.Currency,
			UnitPrice:       input.UnitPrice,
			Quantity:        input.Quantity,
			DiscountPercent: input.DiscountPercent,
			TaxRateIDs:      lo.Uniq(ids),
			SortOrder:       i,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		item.ApplyCalculation(calc)
		item.Taxes = taxsnapshot.FromTaxLines(ctx, types.TaxSnapshotOwnerLineItem, item.ID, calc.TaxBreakdown)

		items = append(items, item)
		calcs = append(calcs, calc)
	}

	totals, err := AggregateInvoiceTotals(inv.Currency, calcs)
	if err != nil {
		return nil, invoice.Totals{}, err
	}
	return items, totals, nil
}

func (s *invoiceService) persistLineItems(ctx context.Context, items []*invoice.InvoiceLineItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.InvoiceLineItemRepo.CreateMany(ctx, items); err != nil {
		return err
	}
	snapshots := lo.FlatMap(items, func(item *invoice.InvoiceLineItem, _ int) []*taxsnapshot.TaxSnapshot {
		return item.Taxes
	})
	if len(snapshots) == 0 {
		return nil
	}
	return s.TaxSnapshotRepo.CreateMany(ctx, snapshots)
}

func (s *invoiceService) loadLineItems(ctx context.Context, inv *invoice.Invoice) error {
	items, err := s.InvoiceLineItemRepo.GetByInvoiceID(ctx, inv.ID)
	if err != nil {
		return err
	}

	ids := lo.Map(items, func(item *invoice.InvoiceLineItem, _ int) string { return item.ID })
	snapshots, err := s.TaxSnapshotRepo.ListByOwners(ctx, types.TaxSnapshotOwnerLineItem, ids)
	if err != nil {
		return err
	}

	byOwner := lo.GroupBy(snapshots, func(snap *taxsnapshot.TaxSnapshot) string { return snap.OwnerID })
	for _, item := range items {
		item.Taxes = byOwner[item.ID]
	}
	inv.LineItems = items
	return nil
}
