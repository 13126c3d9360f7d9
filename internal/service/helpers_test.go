package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	"github.com/tuitionbill/tuitionbill/internal/testutil"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:              s.GetLogger(),
		Config:              s.GetConfig(),
		DB:                  s.GetDB(),
		Sentry:              s.GetSentry(),
		Cache:               s.GetCache(),
		TaxRateRepo:         stores.TaxRateRepo,
		TaxSnapshotRepo:     stores.TaxSnapshotRepo,
		InvoiceRepo:         stores.InvoiceRepo,
		InvoiceLineItemRepo: stores.InvoiceLineItemRepo,
		PaymentRepo:         stores.PaymentRepo,
		PriceRepo:           stores.PriceRepo,
		Gateway:             s.GetGateway(),
	}
}

// seedTaxRate stores an active rate given as a percentage string, e.g. "7.25"
func seedTaxRate(ctx context.Context, s *testutil.BaseServiceTestSuite, id, name, percent string, itemTypes ...types.ItemType) *taxrate.TaxRate {
	t := &taxrate.TaxRate{
		ID:                 id,
		Name:               name,
		Description:        name + " tax",
		Rate:               decimal.RequireFromString(percent).Div(decimal.NewFromInt(100)),
		AppliesToItemTypes: itemTypes,
		IsActive:           true,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().TaxRateRepo.Create(ctx, t))
	return t
}

func seedTuitionPrice(ctx context.Context, s *testutil.BaseServiceTestSuite, paymentType types.PaymentType, amount int64) *price.TuitionPrice {
	p := &price.TuitionPrice{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TUITION_PRICE),
		PaymentType: paymentType,
		Description: string(paymentType),
		Amount:      types.NewMoney(amount, "usd"),
		Currency:    "usd",
		IsActive:    true,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PriceRepo.Create(ctx, p))
	return p
}

func usd(minor int64) types.Money {
	return types.NewMoney(minor, "usd")
}

func pct(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
