package service

import (
	"context"

	"github.com/samber/lo"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type TaxRateService interface {
	// Core CRUD operations
	CreateTaxRate(ctx context.Context, req dto.CreateTaxRateRequest) (*dto.TaxRateResponse, error)
	GetTaxRate(ctx context.Context, id string) (*dto.TaxRateResponse, error)
	ListTaxRates(ctx context.Context, filter *types.TaxRateFilter) (*dto.ListTaxRatesResponse, error)
	UpdateTaxRate(ctx context.Context, id string, req dto.UpdateTaxRateRequest) (*dto.TaxRateResponse, error)
	DeleteTaxRate(ctx context.Context, id string) error

	// ResolveApplicableRates returns the active rates configured for an item type
	ResolveApplicableRates(ctx context.Context, itemType types.ItemType) ([]*taxrate.TaxRate, error)
}

type taxRateService struct {
	ServiceParams
}

// NewTaxRateService creates a new instance of TaxRateService
func NewTaxRateService(params ServiceParams) TaxRateService {
	return &taxRateService{
		ServiceParams: params,
	}
}

// CreateTaxRate creates a new tax rate
func (s *taxRateService) CreateTaxRate(ctx context.Context, req dto.CreateTaxRateRequest) (*dto.TaxRateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taxRate := req.ToTaxRate(ctx)
	if err := taxRate.Validate(); err != nil {
		return nil, err
	}

	if err := s.TaxRateRepo.Create(ctx, taxRate); err != nil {
		return nil, err
	}

	s.Logger.Infow("created tax rate",
		"tax_rate_id", taxRate.ID,
		"name", taxRate.Name,
		"rate", taxRate.Rate.String(),
	)

	return dto.NewTaxRateResponse(taxRate), nil
}

// GetTaxRate retrieves a tax rate by ID
func (s *taxRateService) GetTaxRate(ctx context.Context, id string) (*dto.TaxRateResponse, error) {
	if id == "" {
		return nil, ierr.NewError("tax_rate_id is required").
			WithHint("Tax rate ID is required").
			Mark(ierr.ErrValidation)
	}

	taxRate, err := s.TaxRateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return dto.NewTaxRateResponse(taxRate), nil
}

// ListTaxRates lists tax rates based on the provided filter
func (s *taxRateService) ListTaxRates(ctx context.Context, filter *types.TaxRateFilter) (*dto.ListTaxRatesResponse, error) {
	if filter == nil {
		filter = types.NewTaxRateFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	taxRates, err := s.TaxRateRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	count, err := s.TaxRateRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(taxRates, func(t *taxrate.TaxRate, _ int) *dto.TaxRateResponse {
		return dto.NewTaxRateResponse(t)
	})

	resp := types.NewListResponse(items, count, filter)
	return &resp, nil
}

// UpdateTaxRate changes a rate in place. Amounts already calculated keep
// their own snapshot of the rate, so editing never alters past documents.
func (s *taxRateService) UpdateTaxRate(ctx context.Context, id string, req dto.UpdateTaxRateRequest) (*dto.TaxRateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taxRate, err := s.TaxRateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(ctx, taxRate)
	if err := taxRate.Validate(); err != nil {
		return nil, err
	}

	if err := s.TaxRateRepo.Update(ctx, taxRate); err != nil {
		return nil, err
	}

	return dto.NewTaxRateResponse(taxRate), nil
}

// DeleteTaxRate archives a tax rate. Existing snapshots are unaffected.
func (s *taxRateService) DeleteTaxRate(ctx context.Context, id string) error {
	taxRate, err := s.TaxRateRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.TaxRateRepo.Delete(ctx, taxRate)
}

func (s *taxRateService) ResolveApplicableRates(ctx context.Context, itemType types.ItemType) ([]*taxrate.TaxRate, error) {
	if err := itemType.Validate(); err != nil {
		return nil, err
	}
	return s.TaxRateRepo.ListActiveForItemType(ctx, itemType)
}

// RateResolver answers rate lookups for a single batch, such as all line
// items of one invoice, so each item type and rate id is read at most once.
// It must not outlive the batch.
type RateResolver struct {
	repo       taxrate.Repository
	byItemType map[types.ItemType][]*taxrate.TaxRate
	byID       map[string]*taxrate.TaxRate
	missing    map[string]struct{}
}

func NewBatchRateResolver(repo taxrate.Repository) *RateResolver {
	return &RateResolver{
		repo:       repo,
		byItemType: make(map[types.ItemType][]*taxrate.TaxRate),
		byID:       make(map[string]*taxrate.TaxRate),
		missing:    make(map[string]struct{}),
	}
}

// ResolveApplicableRates returns the active rates for itemType ordered by creation
func (r *RateResolver) ResolveApplicableRates(ctx context.Context, itemType types.ItemType) ([]*taxrate.TaxRate, error) {
	if rates, ok := r.byItemType[itemType]; ok {
		return rates, nil
	}

	rates, err := r.repo.ListActiveForItemType(ctx, itemType)
	if err != nil {
		return nil, err
	}

	r.byItemType[itemType] = rates
	for _, rate := range rates {
		r.byID[rate.ID] = rate
	}
	return rates, nil
}

// ResolveByIDs returns the rates found among ids keyed by id. Ids that do
// not exist are absent from the result; inactive rates are included.
func (r *RateResolver) ResolveByIDs(ctx context.Context, ids []string) (map[string]*taxrate.TaxRate, error) {
	unknown := lo.Filter(lo.Uniq(ids), func(id string, _ int) bool {
		_, found := r.byID[id]
		_, miss := r.missing[id]
		return !found && !miss
	})

	if len(unknown) > 0 {
		rates, err := r.repo.GetByIDs(ctx, unknown)
		if err != nil {
			return nil, err
		}
		for _, rate := range rates {
			r.byID[rate.ID] = rate
		}
		for _, id := range unknown {
			if _, ok := r.byID[id]; !ok {
				r.missing[id] = struct{}{}
			}
		}
	}

	result := make(map[string]*taxrate.TaxRate, len(ids))
	for _, id := range ids {
		if rate, ok := r.byID[id]; ok {
			result[id] = rate
		}
	}
	return result, nil
}

// RatesForInput returns the rate ids to apply and their lookup map. A nil
// id list means the active rates for the item type.
func (r *RateResolver) RatesForInput(ctx context.Context, itemType types.ItemType, ids []string) ([]string, map[string]*taxrate.TaxRate, error) {
	if ids == nil {
		rates, err := r.ResolveApplicableRates(ctx, itemType)
		if err != nil {
			return nil, nil, err
		}
		return lo.Map(rates, func(t *taxrate.TaxRate, _ int) string { return t.ID }),
			lo.SliceToMap(rates, func(t *taxrate.TaxRate) (string, *taxrate.TaxRate) { return t.ID, t }),
			nil
	}

	byID, err := r.ResolveByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return ids, byID, nil
}
