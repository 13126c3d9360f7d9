package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type PriceService interface {
	CreatePrice(ctx context.Context, req dto.CreateTuitionPriceRequest) (*dto.TuitionPriceResponse, error)
	GetPrice(ctx context.Context, id string) (*dto.TuitionPriceResponse, error)
	ListPrices(ctx context.Context, filter *types.QueryFilter) (*dto.ListTuitionPricesResponse, error)
	DeactivatePrice(ctx context.Context, id string) error

	// QuoteTuition returns the expected subtotal for a tuition checkout of the
	// given number of students. It fails with ErrPricingUnavailable when no
	// active price is configured.
	QuoteTuition(ctx context.Context, paymentType types.PaymentType, currency string, students int) (types.Money, error)
}

type priceService struct {
	ServiceParams
}

func NewPriceService(params ServiceParams) PriceService {
	return &priceService{ServiceParams: params}
}

// CreatePrice creates a tuition price and deactivates the previous active
// price for the same payment type and currency.
func (s *priceService) CreatePrice(ctx context.Context, req dto.CreateTuitionPriceRequest) (*dto.TuitionPriceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := req.ToTuitionPrice(ctx)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err := s.DB.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.PriceRepo.GetActive(txCtx, p.PaymentType, p.Currency)
		if err != nil && !ierr.IsNotFound(err) {
			return err
		}
		if current != nil {
			current.IsActive = false
			current.Touch(txCtx)
			if err := s.PriceRepo.Update(txCtx, current); err != nil {
				return err
			}
		}
		return s.PriceRepo.Create(txCtx, p)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created tuition price",
		"price_id", p.ID,
		"payment_type", p.PaymentType,
		"amount", p.Amount.MinorUnits(),
		"currency", p.Currency,
	)

	return &dto.TuitionPriceResponse{TuitionPrice: p}, nil
}

func (s *priceService) GetPrice(ctx context.Context, id string) (*dto.TuitionPriceResponse, error) {
	p, err := s.PriceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.TuitionPriceResponse{TuitionPrice: p}, nil
}

func (s *priceService) ListPrices(ctx context.Context, filter *types.QueryFilter) (*dto.ListTuitionPricesResponse, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	prices, err := s.PriceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(prices, func(p *price.TuitionPrice, _ int) *dto.TuitionPriceResponse {
		return &dto.TuitionPriceResponse{TuitionPrice: p}
	})

	resp := types.NewListResponse(items, len(items), filter)
	return &resp, nil
}

func (s *priceService) DeactivatePrice(ctx context.Context, id string) error {
	p, err := s.PriceRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return nil
	}
	p.IsActive = false
	p.Touch(ctx)
	return s.PriceRepo.Update(ctx, p)
}

func (s *priceService) QuoteTuition(ctx context.Context, paymentType types.PaymentType, currency string, students int) (types.Money, error) {
	if err := paymentType.Validate(); err != nil {
		return types.Money{}, err
	}
	if students < 1 {
		return types.Money{}, ierr.NewError("students must be positive").
			WithHint("At least one student is required").
			Mark(ierr.ErrValidation)
	}

	currency = strings.ToLower(currency)
	p, err := s.PriceRepo.GetActive(ctx, paymentType, currency)
	if err != nil {
		if ierr.IsNotFound(err) {
			return types.Money{}, ierr.NewError("no active tuition price").
				WithHintf("No active %s price is configured for %s", paymentType, strings.ToUpper(currency)).
				WithReportableDetails(map[string]any{
					"payment_type": paymentType,
					"currency":     currency,
				}).
				Mark(ierr.ErrPricingUnavailable)
		}
		return types.Money{}, err
	}
	return p.Amount.MulInt(int64(students)), nil
}
