package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/testutil"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(newTestServiceParams(&s.BaseServiceTestSuite))
	s.setupRates()
}

func (s *InvoiceServiceSuite) setupRates() {
	ctx := s.GetContext()
	seedTaxRate(ctx, &s.BaseServiceTestSuite, "taxrate_state", "State", "5", types.ItemTypeClassEnrollment, types.ItemTypeProduct)
	seedTaxRate(ctx, &s.BaseServiceTestSuite, "taxrate_city", "City", "7", types.ItemTypeClassEnrollment)
}

func (s *InvoiceServiceSuite) createInvoice(items ...dto.InvoiceLineItemRequest) *dto.InvoiceResponse {
	resp, err := s.service.CreateInvoice(s.GetContext(), dto.CreateInvoiceRequest{
		FamilyID:  "family_1",
		Currency:  "USD",
		LineItems: items,
	})
	s.Require().NoError(err)
	return resp
}

func (s *InvoiceServiceSuite) TestCreateInvoiceWithDefaultRates() {
	resp := s.createInvoice(
		dto.InvoiceLineItemRequest{
			ItemType:    types.ItemTypeClassEnrollment,
			Description: "Spring term",
			UnitPrice:   10000,
			Quantity:    1,
		},
		dto.InvoiceLineItemRequest{
			ItemType:        types.ItemTypeProduct,
			Description:     "Workbook",
			UnitPrice:       2000,
			Quantity:        2,
			DiscountPercent: pct("50"),
		},
	)

	s.Equal(types.InvoiceStatusDraft, resp.InvoiceStatus)
	s.Equal("usd", resp.Currency)
	s.Require().Len(resp.LineItems, 2)

	enrollment := resp.LineItems[0]
	s.ElementsMatch([]string{"taxrate_state", "taxrate_city"}, enrollment.TaxRateIDs)
	s.Equal(int64(1200), enrollment.TaxAmount.MinorUnits())
	s.Equal(int64(11200), enrollment.FinalAmount.MinorUnits())
	s.Len(enrollment.Taxes, 2)

	workbook := resp.LineItems[1]
	s.Equal([]string{"taxrate_state"}, workbook.TaxRateIDs)
	s.Equal(int64(2000), workbook.DiscountAmount.MinorUnits())
	s.Equal(int64(200), workbook.TaxAmount.MinorUnits())

	s.Equal(int64(14000), resp.Subtotal.MinorUnits())
	s.Equal(int64(2000), resp.DiscountAmount.MinorUnits())
	s.Equal(int64(1400), resp.TaxAmount.MinorUnits())
	s.Equal(int64(13400), resp.Total.MinorUnits())
	s.Equal(int64(13400), resp.AmountRemaining.MinorUnits())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceExplicitEmptyRates() {
	resp := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:   types.ItemTypeClassEnrollment,
		UnitPrice:  10000,
		Quantity:   1,
		TaxRateIDs: []string{},
	})

	s.Require().Len(resp.LineItems, 1)
	s.Empty(resp.LineItems[0].TaxRateIDs)
	s.Empty(resp.LineItems[0].Taxes)
	s.True(resp.TaxAmount.IsZero())
	s.Equal(int64(10000), resp.Total.MinorUnits())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceUnknownRateIsNotCharged() {
	resp := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:   types.ItemTypeFee,
		UnitPrice:  5000,
		Quantity:   1,
		TaxRateIDs: []string{"taxrate_state", "taxrate_gone"},
	})

	s.Equal(int64(250), resp.TaxAmount.MinorUnits())
	taxes := resp.LineItems[0].Taxes
	s.Require().Len(taxes, 2)
	s.True(taxes[0].Resolved)
	s.False(taxes[1].Resolved)
	s.True(taxes[1].Amount.IsZero())
}

func (s *InvoiceServiceSuite) TestCreateInvoiceValidation() {
	_, err := s.service.CreateInvoice(s.GetContext(), dto.CreateInvoiceRequest{
		Currency: "usd",
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateInvoice(s.GetContext(), dto.CreateInvoiceRequest{
		FamilyID: "family_1",
		Currency: "usd",
		LineItems: []dto.InvoiceLineItemRequest{{
			ItemType:        types.ItemTypeFee,
			UnitPrice:       100,
			Quantity:        1,
			DiscountPercent: pct("120"),
		}},
	})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestSnapshotsSurviveRateChanges() {
	ctx := s.GetContext()
	created := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:   types.ItemTypeClassEnrollment,
		UnitPrice:  10000,
		Quantity:   1,
		TaxRateIDs: []string{"taxrate_state"},
	})

	rate, err := s.GetStores().TaxRateRepo.Get(ctx, "taxrate_state")
	s.Require().NoError(err)
	rate.Name = "Renamed"
	rate.Rate = pct("0.09")
	s.Require().NoError(s.GetStores().TaxRateRepo.Update(ctx, rate))

	got, err := s.service.GetInvoice(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(got.LineItems, 1)
	s.Require().Len(got.LineItems[0].Taxes, 1)

	snap := got.LineItems[0].Taxes[0]
	s.Equal("State", snap.NameSnapshot)
	s.True(snap.RateSnapshot.Equal(pct("0.05")))
	s.Equal(int64(500), snap.Amount.MinorUnits())
	s.Equal(int64(10500), got.Total.MinorUnits())
}

func (s *InvoiceServiceSuite) TestReplaceLineItems() {
	ctx := s.GetContext()
	created := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:  types.ItemTypeClassEnrollment,
		UnitPrice: 10000,
		Quantity:  1,
	})

	resp, err := s.service.ReplaceLineItems(ctx, created.ID, dto.ReplaceLineItemsRequest{
		LineItems: []dto.InvoiceLineItemRequest{{
			ItemType:  types.ItemTypeProduct,
			UnitPrice: 3000,
			Quantity:  1,
		}},
	})
	s.Require().NoError(err)
	s.Equal(int64(3150), resp.Total.MinorUnits())

	got, err := s.service.GetInvoice(ctx, created.ID)
	s.Require().NoError(err)
	s.Require().Len(got.LineItems, 1)
	s.Equal(types.ItemTypeProduct, got.LineItems[0].ItemType)
	s.Len(got.LineItems[0].Taxes, 1)
	s.Equal(int64(3150), got.Total.MinorUnits())
}

func (s *InvoiceServiceSuite) TestReplaceLineItemsFailureKeepsOriginal() {
	ctx := s.GetContext()
	created := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:  types.ItemTypeClassEnrollment,
		UnitPrice: 10000,
		Quantity:  1,
	})
	s.Require().Equal(int64(11200), created.Total.MinorUnits())
	replace := dto.ReplaceLineItemsRequest{
		LineItems: []dto.InvoiceLineItemRequest{{
			ItemType:  types.ItemTypeProduct,
			UnitPrice: 3000,
			Quantity:  1,
		}},
	}

	tests := []struct {
		name string
		fail func(stores testutil.Stores)
	}{
		{
			name: "line items",
			fail: func(stores testutil.Stores) {
				stores.InvoiceLineItemRepo.FailOn("CreateMany", testutil.DatabaseError("connection reset"), 1)
			},
		},
		{
			name: "tax snapshots",
			fail: func(stores testutil.Stores) {
				stores.TaxSnapshotRepo.FailOn("CreateMany", testutil.DatabaseError("connection reset"), 1)
			},
		},
		{
			name: "invoice totals",
			fail: func(stores testutil.Stores) {
				stores.InvoiceRepo.FailOn("Update", testutil.DatabaseError("connection reset"), 1)
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			stores := s.GetStores()
			tt.fail(stores)

			_, err := s.service.ReplaceLineItems(ctx, created.ID, replace)
			s.Require().Error(err)
			s.True(ierr.IsDatabase(err))

			stored, err := stores.InvoiceRepo.Get(ctx, created.ID)
			s.Require().NoError(err)
			s.Equal(int64(11200), stored.Total.MinorUnits())
			s.Equal(int64(1200), stored.TaxAmount.MinorUnits())
			s.True(stored.UpdatedAt.Equal(created.UpdatedAt))

			got, err := s.service.GetInvoice(ctx, created.ID)
			s.Require().NoError(err)
			s.Require().Len(got.LineItems, 1)
			s.Equal(types.ItemTypeClassEnrollment, got.LineItems[0].ItemType)
			s.Equal(created.LineItems[0].ID, got.LineItems[0].ID)
			s.Len(got.LineItems[0].Taxes, 2)
		})
	}

	resp, err := s.service.ReplaceLineItems(ctx, created.ID, replace)
	s.Require().NoError(err)
	s.Equal(int64(3150), resp.Total.MinorUnits())
}

func (s *InvoiceServiceSuite) TestReplaceLineItemsRequiresDraft() {
	ctx := s.GetContext()
	created := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:  types.ItemTypeFee,
		UnitPrice: 1000,
		Quantity:  1,
	})

	_, err := s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusSent})
	s.Require().NoError(err)

	_, err = s.service.ReplaceLineItems(ctx, created.ID, dto.ReplaceLineItemsRequest{})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	got, err := s.service.GetInvoice(ctx, created.ID)
	s.Require().NoError(err)
	s.Len(got.LineItems, 1)
}

func (s *InvoiceServiceSuite) TestUpdateInvoiceStatus() {
	ctx := s.GetContext()
	created := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:  types.ItemTypeFee,
		UnitPrice: 1000,
		Quantity:  1,
	})

	_, err := s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusPaid})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	resp, err := s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusSent})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusSent, resp.InvoiceStatus)

	resp, err = s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusPaid})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)
	s.NotNil(resp.PaidAt)

	_, err = s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: "archived"})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestRecordInvoicePayment() {
	ctx := s.GetContext()
	created := s.createInvoice(dto.InvoiceLineItemRequest{
		ItemType:   types.ItemTypeFee,
		UnitPrice:  10000,
		Quantity:   1,
		TaxRateIDs: []string{},
	})

	// drafts do not accept payments
	_, err := s.service.RecordInvoicePayment(ctx, created.ID, dto.RecordInvoicePaymentRequest{Amount: 100})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.UpdateInvoiceStatus(ctx, created.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusSent})
	s.Require().NoError(err)

	resp, err := s.service.RecordInvoicePayment(ctx, created.ID, dto.RecordInvoicePaymentRequest{Amount: 4000, PaymentID: "pay_1"})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPartiallyPaid, resp.InvoiceStatus)
	s.Equal(int64(6000), resp.AmountRemaining.MinorUnits())

	_, err = s.service.RecordInvoicePayment(ctx, created.ID, dto.RecordInvoicePaymentRequest{Amount: 6001})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	resp, err = s.service.RecordInvoicePayment(ctx, created.ID, dto.RecordInvoicePaymentRequest{Amount: 6000, PaymentID: "pay_2"})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, resp.InvoiceStatus)
	s.True(resp.AmountRemaining.IsZero())
	s.NotNil(resp.PaidAt)
}

func (s *InvoiceServiceSuite) TestListInvoices() {
	for i := 0; i < 3; i++ {
		s.createInvoice(dto.InvoiceLineItemRequest{
			ItemType:  types.ItemTypeFee,
			UnitPrice: 1000,
			Quantity:  1,
		})
	}

	resp, err := s.service.ListInvoices(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(resp.Items, 3)
	s.Equal(3, resp.Pagination.Total)

	filter := types.NewInvoiceFilter()
	filter.InvoiceStatus = []types.InvoiceStatus{types.InvoiceStatusSent}
	resp, err = s.service.ListInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Empty(resp.Items)

	filter = types.NewInvoiceFilter()
	filter.FamilyID = "family_1"
	filter.Limit = lo.ToPtr(2)
	resp, err = s.service.ListInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(resp.Items, 2)
	s.Equal(3, resp.Pagination.Total)
}
