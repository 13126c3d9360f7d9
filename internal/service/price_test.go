package service

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/testutil"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type PriceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service PriceService
}

func TestPriceService(t *testing.T) {
	suite.Run(t, new(PriceServiceSuite))
}

func (s *PriceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPriceService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *PriceServiceSuite) TestCreatePriceReplacesActivePrice() {
	ctx := s.GetContext()

	first, err := s.service.CreatePrice(ctx, dto.CreateTuitionPriceRequest{
		PaymentType: types.PaymentTypeMonthlyGroup,
		Amount:      12000,
		Currency:    "USD",
	})
	s.Require().NoError(err)
	s.True(first.IsActive)
	s.Equal("usd", first.Currency)

	second, err := s.service.CreatePrice(ctx, dto.CreateTuitionPriceRequest{
		PaymentType: types.PaymentTypeMonthlyGroup,
		Amount:      13000,
		Currency:    "usd",
	})
	s.Require().NoError(err)

	old, err := s.service.GetPrice(ctx, first.ID)
	s.Require().NoError(err)
	s.False(old.IsActive)

	active, err := s.GetStores().PriceRepo.GetActive(ctx, types.PaymentTypeMonthlyGroup, "usd")
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)

	// other payment types keep their prices
	_, err = s.service.CreatePrice(ctx, dto.CreateTuitionPriceRequest{
		PaymentType: types.PaymentTypeYearlyGroup,
		Amount:      120000,
		Currency:    "usd",
	})
	s.Require().NoError(err)

	current, err := s.service.GetPrice(ctx, second.ID)
	s.Require().NoError(err)
	s.True(current.IsActive)

	list, err := s.service.ListPrices(ctx, nil)
	s.Require().NoError(err)
	s.Len(list.Items, 3)
}

func (s *PriceServiceSuite) TestCreatePriceValidation() {
	_, err := s.service.CreatePrice(s.GetContext(), dto.CreateTuitionPriceRequest{
		PaymentType: "season_pass",
		Amount:      100,
		Currency:    "usd",
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PriceServiceSuite) TestQuoteTuition() {
	ctx := s.GetContext()
	seedTuitionPrice(ctx, &s.BaseServiceTestSuite, types.PaymentTypeMonthlyGroup, 12000)

	quote, err := s.service.QuoteTuition(ctx, types.PaymentTypeMonthlyGroup, "USD", 3)
	s.Require().NoError(err)
	s.Equal(int64(36000), quote.MinorUnits())
	s.Equal("usd", quote.Currency())

	_, err = s.service.QuoteTuition(ctx, types.PaymentTypeYearlyGroup, "usd", 1)
	s.Require().Error(err)
	s.True(ierr.IsPricingUnavailable(err))
	s.False(ierr.IsNotFound(err))
}

func (s *PriceServiceSuite) TestDeactivatePrice() {
	ctx := s.GetContext()
	p := seedTuitionPrice(ctx, &s.BaseServiceTestSuite, types.PaymentTypeIndividualSession, 5000)

	s.Require().NoError(s.service.DeactivatePrice(ctx, p.ID))
	s.Require().NoError(s.service.DeactivatePrice(ctx, p.ID))

	_, err := s.service.QuoteTuition(ctx, types.PaymentTypeIndividualSession, "usd", 1)
	s.Require().Error(err)
	s.True(ierr.IsPricingUnavailable(err))
}
