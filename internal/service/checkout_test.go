package service

import (
	"context"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/testutil"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type CheckoutServiceSuite struct {
	testutil.BaseServiceTestSuite
	service   CheckoutService
	mu        sync.Mutex
	fulfilled []*payment.Payment
}

func TestCheckoutService(t *testing.T) {
	suite.Run(t, new(CheckoutServiceSuite))
}

func (s *CheckoutServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.fulfilled = nil
	s.service = s.newService(newTestServiceParams(&s.BaseServiceTestSuite))

	ctx := s.GetContext()
	seedTaxRate(ctx, &s.BaseServiceTestSuite, "taxrate_state", "State", "5", types.ItemTypeProduct, types.ItemTypeClassEnrollment)
	seedTaxRate(ctx, &s.BaseServiceTestSuite, "taxrate_city", "City", "7", types.ItemTypeProduct)
}

func (s *CheckoutServiceSuite) newService(params ServiceParams) CheckoutService {
	return NewCheckoutService(params, NewPriceService(params), FulfillmentFunc(func(ctx context.Context, p *payment.Payment) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.fulfilled = append(s.fulfilled, p)
		return nil
	}))
}

func (s *CheckoutServiceSuite) fulfilledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fulfilled)
}

func storeCheckout(orderID string, subtotal, discount, total int64) *dto.CheckoutRequest {
	return &dto.CheckoutRequest{
		FamilyID:       "family_1",
		PaymentType:    types.PaymentTypeStorePurchase,
		OrderID:        orderID,
		Currency:       "usd",
		SubtotalAmount: subtotal,
		DiscountAmount: discount,
		TotalAmount:    total,
	}
}

func (s *CheckoutServiceSuite) getPayment(id string) *payment.Payment {
	p, err := s.GetStores().PaymentRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return p
}

func (s *CheckoutServiceSuite) TestStartCheckoutChargesSubmittedTotal() {
	resp, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	s.Equal(types.PaymentStatusPending, resp.PaymentStatus)
	s.NotEmpty(resp.IntentID)
	s.Equal(resp.IntentID+"_secret", resp.ClientSecret)
	s.False(resp.Reused)
	s.Equal(int64(1200), resp.TaxAmount.MinorUnits())
	s.Equal(int64(11200), resp.TotalAmount.MinorUnits())
	s.Len(resp.Taxes, 2)

	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 1)
	s.Equal(int64(11200), created[0].Amount.MinorUnits())
	s.Equal(resp.PaymentID, created[0].Metadata["payment_id"])
	s.NotEmpty(created[0].IdempotencyKey)

	p := s.getPayment(resp.PaymentID)
	s.Equal(resp.IntentID, lo.FromPtr(p.GatewayIntentID))
	s.Equal(types.PaymentGatewayTypeStripe, lo.FromPtr(p.PaymentGateway))
	s.Equal([]string{"order_1"}, p.TargetIDs)
}

func (s *CheckoutServiceSuite) TestTotalMismatchStillChargesSubmittedTotal() {
	// 10000 with 12% tax would be 11200
	resp, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11000))
	s.Require().NoError(err)

	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 1)
	s.Equal(int64(11000), created[0].Amount.MinorUnits())
	s.Equal(int64(11000), resp.TotalAmount.MinorUnits())
	s.Equal(int64(1200), resp.TaxAmount.MinorUnits())
}

func (s *CheckoutServiceSuite) TestFullyDiscountedCheckoutSkipsGateway() {
	resp, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 5000, 5000, 0))
	s.Require().NoError(err)

	s.Empty(s.GetGateway().CreatedIntents())
	s.Equal(types.PaymentStatusSucceeded, resp.PaymentStatus)
	s.True(resp.FullyDiscounted)
	s.Empty(resp.IntentID)
	s.True(resp.TaxAmount.IsZero())
	s.True(resp.TotalAmount.IsZero())
	s.Empty(resp.Taxes)
	s.Equal(1, s.fulfilledCount())

	p := s.getPayment(resp.PaymentID)
	s.Equal(types.PaymentMethodTypeFullyDiscounted, lo.FromPtr(p.PaymentMethodType))
	s.Equal(types.PaymentGatewayTypeNone, lo.FromPtr(p.PaymentGateway))
	s.NotNil(p.SucceededAt)
}

func (s *CheckoutServiceSuite) TestFullDiscountCancelsLinkedIntent() {
	ctx := s.GetContext()
	first, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 5000, 0, 5600))
	s.Require().NoError(err)

	req := storeCheckout("order_1", 5000, 5000, 0)
	req.PaymentID = first.PaymentID
	req.DiscountCodeID = lo.ToPtr("code_free")
	resp, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	s.Equal(first.PaymentID, resp.PaymentID)
	s.Equal(types.PaymentStatusSucceeded, resp.PaymentStatus)
	s.Equal([]string{first.IntentID}, s.GetGateway().CancelledIntents())
	s.Empty(resp.Taxes)

	p := s.getPayment(first.PaymentID)
	s.False(p.IsLinked())
	s.Equal(first.IntentID, p.Metadata["last_intent_id"])
	s.Equal("code_free", lo.FromPtr(p.DiscountCodeID))
}

func (s *CheckoutServiceSuite) TestStoredTaxSnapshotWins() {
	ctx := s.GetContext()
	p := &payment.Payment{
		ID:             "pay_seeded",
		IdempotencyKey: "seeded",
		FamilyID:       "family_1",
		PaymentType:    types.PaymentTypeStorePurchase,
		TargetIDs:      []string{"order_1"},
		Currency:       "usd",
		SubtotalAmount: usd(5000),
		DiscountAmount: usd(0),
		TaxAmount:      usd(300),
		TotalAmount:    usd(5300),
		PaymentStatus:  types.PaymentStatusPending,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	s.Require().NoError(s.GetStores().PaymentRepo.Create(ctx, p))
	s.GetStores().TaxSnapshotRepo.Seed(&taxsnapshot.TaxSnapshot{
		ID:           "snap_1",
		OwnerType:    types.TaxSnapshotOwnerPayment,
		OwnerID:      p.ID,
		TaxRateID:    "taxrate_old",
		NameSnapshot: "Old sales tax",
		RateSnapshot: pct("0.06"),
		Amount:       usd(300),
		Resolved:     true,
	})

	// current rates give 600, the stored snapshot says 300
	req := storeCheckout("order_1", 5000, 0, 5300)
	req.PaymentID = p.ID
	resp, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 1)
	s.Equal(int64(5300), created[0].Amount.MinorUnits())
	s.Equal(int64(300), resp.TaxAmount.MinorUnits())
	s.Require().Len(resp.Taxes, 1)
	s.Equal("taxrate_old", resp.Taxes[0].TaxRateID)
	s.Equal(int64(300), resp.Taxes[0].Amount.MinorUnits())

	stored, err := s.GetStores().TaxSnapshotRepo.ListByOwner(ctx, types.TaxSnapshotOwnerPayment, p.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal("Old sales tax", stored[0].NameSnapshot)
}

func (s *CheckoutServiceSuite) TestRepeatedCheckoutReusesIntent() {
	ctx := s.GetContext()
	req := storeCheckout("order_1", 10000, 0, 11200)

	first, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	second, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	s.Len(s.GetGateway().CreatedIntents(), 1)
	s.Equal(first.PaymentID, second.PaymentID)
	s.Equal(first.IntentID, second.IntentID)
	s.Equal(first.ClientSecret, second.ClientSecret)
	s.True(second.Reused)

	payments, err := s.service.ListPayments(ctx, nil)
	s.Require().NoError(err)
	s.Len(payments.Items, 1)
}

func (s *CheckoutServiceSuite) TestDifferentSelectionCreatesNewPayment() {
	ctx := s.GetContext()
	first, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)
	second, err := s.service.StartCheckout(ctx, storeCheckout("order_2", 10000, 0, 11200))
	s.Require().NoError(err)

	s.NotEqual(first.PaymentID, second.PaymentID)
	s.Len(s.GetGateway().CreatedIntents(), 2)
}

func (s *CheckoutServiceSuite) TestLinkFailureCancelsIntentOnce() {
	ctx := s.GetContext()
	s.GetStores().PaymentRepo.FailOn("Update", testutil.DatabaseError("connection reset"), 0)

	_, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))

	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 1)
	cancelled := s.GetGateway().CancelledIntents()
	s.Require().Len(cancelled, 1)

	payments, err := s.service.ListPayments(ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(payments.Items, 1)
	s.False(payments.Items[0].IsLinked())
	s.Equal(types.PaymentStatusPending, payments.Items[0].PaymentStatus)

	// once the database recovers the same form gets a fresh intent
	s.GetStores().PaymentRepo.Reset()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)
	s.Equal(payments.Items[0].ID, resp.PaymentID)
	s.Len(s.GetGateway().CreatedIntents(), 2)
	s.NotEqual(cancelled[0], resp.IntentID)
}

func (s *CheckoutServiceSuite) TestLinkRetriesTransientFailure() {
	s.GetStores().PaymentRepo.FailOn("Update", testutil.DatabaseError("deadlock detected"), 1)

	resp, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)
	s.NotEmpty(resp.IntentID)
	s.Empty(s.GetGateway().CancelledIntents())
	s.True(s.getPayment(resp.PaymentID).IsLinked())
}

func (s *CheckoutServiceSuite) TestCompensationCancelFailureIsSwallowed() {
	s.GetStores().PaymentRepo.FailOn("Update", testutil.DatabaseError("connection reset"), 0)
	s.GetGateway().FailOn("CancelIntent", ierr.NewError("gateway down").Mark(ierr.ErrGateway), 0)

	_, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11200))
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))
	s.Len(s.GetGateway().CancelledIntents(), 1)
}

func (s *CheckoutServiceSuite) TestGatewayCreateFailure() {
	s.GetGateway().FailOn("CreateIntent", ierr.NewError("card network unavailable").Mark(ierr.ErrGateway), 1)

	_, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11200))
	s.Require().Error(err)
	s.True(ierr.IsGateway(err))
	s.Empty(s.GetGateway().CancelledIntents())

	resp, err := s.service.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)
	s.NotEmpty(resp.IntentID)

	// the gateway may have made the first intent before failing, so the
	// retry must send the same key for the gateway to return it
	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 2)
	s.Equal(resp.PaymentID, created[0].Metadata["payment_id"])
	s.Equal(resp.PaymentID, created[1].Metadata["payment_id"])
	s.NotEmpty(created[0].IdempotencyKey)
	s.Equal(created[0].IdempotencyKey, created[1].IdempotencyKey)
}

func (s *CheckoutServiceSuite) TestReplacedIntentGetsNewIdempotencyKey() {
	ctx := s.GetContext()
	req := storeCheckout("order_1", 10000, 0, 11200)
	first, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.Equal(0, s.getPayment(first.PaymentID).IntentAttempt())

	s.GetGateway().SetStatus(first.IntentID, payment.IntentStatusCanceled, "")
	second, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.NotEqual(first.IntentID, second.IntentID)

	_, err = s.service.CancelCheckout(ctx, first.PaymentID)
	s.Require().NoError(err)
	third, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.Equal(first.PaymentID, third.PaymentID)

	p := s.getPayment(first.PaymentID)
	s.Equal(2, p.IntentAttempt())
	s.Equal(second.IntentID, p.Metadata[payment.MetadataLastIntentID])

	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 3)
	keys := lo.Uniq(lo.Map(created, func(in *payment.CreateIntentInput, _ int) string {
		return in.IdempotencyKey
	}))
	s.Len(keys, 3)
}

// racingGateway links a competing intent to the payment while CreateIntent
// is in flight, as a concurrent checkout of the same form would.
type racingGateway struct {
	*testutil.MockGateway
	store  *testutil.InMemoryPaymentStore
	winner string
}

func (g *racingGateway) CreateIntent(ctx context.Context, input *payment.CreateIntentInput) (*payment.Intent, error) {
	intent, err := g.MockGateway.CreateIntent(ctx, input)
	if err != nil || g.winner != "" {
		return intent, err
	}

	winner, err := g.MockGateway.CreateIntent(ctx, input)
	if err != nil {
		return nil, err
	}
	g.winner = winner.ID

	p, err := g.store.Get(ctx, input.Metadata["payment_id"])
	if err != nil {
		return nil, err
	}
	p.GatewayIntentID = lo.ToPtr(winner.ID)
	if err := g.store.Update(ctx, p); err != nil {
		return nil, err
	}
	return intent, nil
}

func (s *CheckoutServiceSuite) TestLostLinkRaceReusesWinningIntent() {
	gateway := &racingGateway{MockGateway: s.GetGateway(), store: s.GetStores().PaymentRepo}
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	params.Gateway = gateway
	svc := s.newService(params)

	resp, err := svc.StartCheckout(s.GetContext(), storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	created := s.GetGateway().CreatedIntents()
	s.Require().Len(created, 2)
	cancelled := s.GetGateway().CancelledIntents()
	s.Require().Len(cancelled, 1)
	s.NotEqual(gateway.winner, cancelled[0])

	s.Equal(gateway.winner, resp.IntentID)
	s.True(resp.Reused)
}

func (s *CheckoutServiceSuite) TestWebhookSuccessFulfillsOnce() {
	ctx := s.GetContext()
	req := storeCheckout("order_1", 10000, 0, 11200)
	resp, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	event := &payment.GatewayEvent{
		ID:       "evt_1",
		Type:     payment.GatewayEventIntentSucceeded,
		IntentID: resp.IntentID,
	}
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, event))
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, event))

	// a second event for the same intent does not fulfil again
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:       "evt_2",
		Type:     payment.GatewayEventIntentSucceeded,
		IntentID: resp.IntentID,
	}))

	s.Equal(1, s.fulfilledCount())
	p := s.getPayment(resp.PaymentID)
	s.Equal(types.PaymentStatusSucceeded, p.PaymentStatus)
	s.Equal(types.PaymentMethodTypeCard, lo.FromPtr(p.PaymentMethodType))

	// succeeded payments are returned as is
	again := storeCheckout("order_1", 10000, 0, 11200)
	again.PaymentID = resp.PaymentID
	settled, err := s.service.StartCheckout(ctx, again)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSucceeded, settled.PaymentStatus)
	s.Empty(settled.IntentID)

	// the same selection can be bought again
	next, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.NotEqual(resp.PaymentID, next.PaymentID)
}

func (s *CheckoutServiceSuite) TestWebhookProcessingErrorAllowsRedelivery() {
	ctx := s.GetContext()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	event := &payment.GatewayEvent{
		ID:       "evt_1",
		Type:     payment.GatewayEventIntentSucceeded,
		IntentID: resp.IntentID,
	}
	s.GetStores().PaymentRepo.FailOn("GetForUpdate", testutil.DatabaseError("connection reset"), 1)
	err = s.service.HandleGatewayEvent(ctx, event)
	s.Require().Error(err)
	s.True(ierr.IsDatabase(err))
	s.Equal(0, s.fulfilledCount())

	s.Require().NoError(s.service.HandleGatewayEvent(ctx, event))
	s.Equal(1, s.fulfilledCount())
	s.Equal(types.PaymentStatusSucceeded, s.getPayment(resp.PaymentID).PaymentStatus)
}

func (s *CheckoutServiceSuite) TestWebhookDeclineKeepsPaymentPayable() {
	ctx := s.GetContext()
	req := storeCheckout("order_1", 10000, 0, 11200)
	resp, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:             "evt_1",
		Type:           payment.GatewayEventIntentUpdated,
		IntentID:       resp.IntentID,
		PaymentID:      resp.PaymentID,
		IntentStatus:   payment.IntentStatusRequiresPaymentMethod,
		FailureMessage: "card_declined",
	}))

	p := s.getPayment(resp.PaymentID)
	s.Equal(types.PaymentStatusPending, p.PaymentStatus)
	s.Equal("card_declined", lo.FromPtr(p.ErrorMessage))
	s.Nil(p.FailedAt)
	s.Equal(resp.IntentID, lo.FromPtr(p.GatewayIntentID))

	// the family retries with another card on the same intent
	retry, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.Equal(resp.IntentID, retry.IntentID)
	s.True(retry.Reused)

	s.GetGateway().SetStatus(resp.IntentID, payment.IntentStatusSucceeded, "")
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:           "evt_2",
		Type:         payment.GatewayEventIntentSucceeded,
		IntentID:     resp.IntentID,
		PaymentID:    resp.PaymentID,
		IntentStatus: payment.IntentStatusSucceeded,
	}))

	p = s.getPayment(resp.PaymentID)
	s.Equal(types.PaymentStatusSucceeded, p.PaymentStatus)
	s.Nil(p.ErrorMessage)
	s.Equal(1, s.fulfilledCount())
	s.Len(s.GetGateway().CreatedIntents(), 1)
}

func (s *CheckoutServiceSuite) TestWebhookTerminalFailureMarksFailed() {
	ctx := s.GetContext()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:             "evt_1",
		Type:           payment.GatewayEventIntentFailed,
		IntentID:       resp.IntentID,
		IntentStatus:   payment.IntentStatusFailed,
		FailureMessage: "card_declined",
	}))

	p := s.getPayment(resp.PaymentID)
	s.Equal(types.PaymentStatusFailed, p.PaymentStatus)
	s.Equal("card_declined", lo.FromPtr(p.ErrorMessage))
	s.NotNil(p.FailedAt)
	s.Equal(0, s.fulfilledCount())

	req := storeCheckout("order_1", 10000, 0, 11200)
	req.PaymentID = resp.PaymentID
	_, err = s.service.StartCheckout(ctx, req)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *CheckoutServiceSuite) TestSuccessAfterFailureSettlesPayment() {
	ctx := s.GetContext()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:             "evt_1",
		Type:           payment.GatewayEventIntentFailed,
		IntentID:       resp.IntentID,
		FailureMessage: "card_declined",
	}))
	s.Equal(types.PaymentStatusFailed, s.getPayment(resp.PaymentID).PaymentStatus)

	// the gateway collected on the intent after all
	s.GetGateway().SetStatus(resp.IntentID, payment.IntentStatusSucceeded, "")
	synced, err := s.service.SyncPaymentStatus(ctx, resp.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSucceeded, synced.PaymentStatus)

	// the webhook for the same collection does not fulfil again
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:       "evt_2",
		Type:     payment.GatewayEventIntentSucceeded,
		IntentID: resp.IntentID,
	}))

	p := s.getPayment(resp.PaymentID)
	s.Equal(types.PaymentStatusSucceeded, p.PaymentStatus)
	s.Nil(p.FailedAt)
	s.Nil(p.ErrorMessage)
	s.NotNil(p.SucceededAt)
	s.Equal(1, s.fulfilledCount())
}

func (s *CheckoutServiceSuite) TestWebhookCanceledUnlinksIntent() {
	ctx := s.GetContext()
	req := storeCheckout("order_1", 10000, 0, 11200)
	first, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:       "evt_1",
		Type:     payment.GatewayEventIntentCanceled,
		IntentID: first.IntentID,
	}))

	p := s.getPayment(first.PaymentID)
	s.Equal(types.PaymentStatusPending, p.PaymentStatus)
	s.False(p.IsLinked())
	s.Equal(first.IntentID, p.Metadata["last_intent_id"])

	second, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.Equal(first.PaymentID, second.PaymentID)
	s.NotEqual(first.IntentID, second.IntentID)
	s.False(second.Reused)
	s.Len(s.GetGateway().CreatedIntents(), 2)

	// a late failure of the superseded intent is ignored
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:        "evt_2",
		Type:      payment.GatewayEventIntentFailed,
		IntentID:  first.IntentID,
		PaymentID: first.PaymentID,
	}))
	s.Equal(types.PaymentStatusPending, s.getPayment(first.PaymentID).PaymentStatus)

	// money collected on the superseded intent still settles the payment
	s.Require().NoError(s.service.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:        "evt_3",
		Type:      payment.GatewayEventIntentSucceeded,
		IntentID:  first.IntentID,
		PaymentID: first.PaymentID,
	}))
	p = s.getPayment(first.PaymentID)
	s.Equal(types.PaymentStatusSucceeded, p.PaymentStatus)
	s.Equal(first.IntentID, lo.FromPtr(p.GatewayIntentID))
	s.Equal(1, s.fulfilledCount())
}

func (s *CheckoutServiceSuite) TestWebhookUnknownIntentIsIgnored() {
	s.Require().NoError(s.service.HandleGatewayEvent(s.GetContext(), &payment.GatewayEvent{
		ID:       "evt_1",
		Type:     payment.GatewayEventIntentSucceeded,
		IntentID: "pi_unknown",
	}))
	s.Require().NoError(s.service.HandleGatewayEvent(s.GetContext(), &payment.GatewayEvent{
		ID:   "evt_2",
		Type: payment.GatewayEventIntentUpdated,
	}))
	s.Equal(0, s.fulfilledCount())
}

func (s *CheckoutServiceSuite) TestGatewayCanceledIntentIsReplaced() {
	ctx := s.GetContext()
	req := storeCheckout("order_1", 10000, 0, 11200)
	first, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)

	s.GetGateway().SetStatus(first.IntentID, payment.IntentStatusCanceled, "")

	second, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.NotEqual(first.IntentID, second.IntentID)
	s.False(second.Reused)
	s.Equal(second.IntentID, lo.FromPtr(s.getPayment(first.PaymentID).GatewayIntentID))
}

func (s *CheckoutServiceSuite) TestSyncPaymentStatus() {
	ctx := s.GetContext()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	synced, err := s.service.SyncPaymentStatus(ctx, resp.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, synced.PaymentStatus)
	s.Len(synced.Taxes, 2)

	s.GetGateway().SetStatus(resp.IntentID, payment.IntentStatusSucceeded, "")
	synced, err = s.service.SyncPaymentStatus(ctx, resp.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusSucceeded, synced.PaymentStatus)

	_, err = s.service.SyncPaymentStatus(ctx, resp.PaymentID)
	s.Require().NoError(err)
	s.Equal(1, s.fulfilledCount())
}

func (s *CheckoutServiceSuite) TestCancelCheckout() {
	ctx := s.GetContext()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	cancelled, err := s.service.CancelCheckout(ctx, resp.PaymentID)
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusPending, cancelled.PaymentStatus)
	s.False(cancelled.IsLinked())
	s.Equal([]string{resp.IntentID}, s.GetGateway().CancelledIntents())

	_, err = s.service.CancelCheckout(ctx, resp.PaymentID)
	s.Require().NoError(err)
	s.Len(s.GetGateway().CancelledIntents(), 1)

	done, err := s.service.StartCheckout(ctx, storeCheckout("order_2", 1000, 1000, 0))
	s.Require().NoError(err)
	_, err = s.service.CancelCheckout(ctx, done.PaymentID)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *CheckoutServiceSuite) TestTuitionRequiresActivePrice() {
	ctx := s.GetContext()
	req := &dto.CheckoutRequest{
		FamilyID:       "family_1",
		PaymentType:    types.PaymentTypeMonthlyGroup,
		StudentIDs:     []string{"student_1", "student_2"},
		Currency:       "usd",
		SubtotalAmount: 24000,
		TotalAmount:    25200,
	}

	_, err := s.service.StartCheckout(ctx, req)
	s.Require().Error(err)
	s.True(ierr.IsPricingUnavailable(err))
	s.Empty(s.GetGateway().CreatedIntents())

	seedTuitionPrice(ctx, &s.BaseServiceTestSuite, types.PaymentTypeMonthlyGroup, 12000)
	resp, err := s.service.StartCheckout(ctx, req)
	s.Require().NoError(err)
	s.Equal(int64(1200), resp.TaxAmount.MinorUnits())
	s.Require().Len(resp.Taxes, 1)
	s.Equal("taxrate_state", resp.Taxes[0].TaxRateID)
}

func (s *CheckoutServiceSuite) TestCheckoutValidation() {
	tests := []struct {
		name string
		req  *dto.CheckoutRequest
	}{
		{name: "discount above subtotal", req: storeCheckout("order_1", 1000, 2000, 0)},
		{name: "total below discounted subtotal", req: storeCheckout("order_1", 1000, 100, 800)},
		{name: "missing order", req: storeCheckout("", 1000, 0, 1120)},
		{
			name: "students on a store purchase",
			req: &dto.CheckoutRequest{
				FamilyID:       "family_1",
				PaymentType:    types.PaymentTypeStorePurchase,
				OrderID:        "order_1",
				StudentIDs:     []string{"student_1"},
				Currency:       "usd",
				SubtotalAmount: 1000,
				TotalAmount:    1120,
			},
		},
		{
			name: "unknown currency",
			req: &dto.CheckoutRequest{
				FamilyID:       "family_1",
				PaymentType:    types.PaymentTypeStorePurchase,
				OrderID:        "order_1",
				Currency:       "zzz",
				SubtotalAmount: 1000,
				TotalAmount:    1120,
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.StartCheckout(s.GetContext(), tt.req)
			s.Require().Error(err)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Empty(s.GetGateway().CreatedIntents())
}

func (s *CheckoutServiceSuite) TestExplicitPaymentMustMatchForm() {
	ctx := s.GetContext()
	resp, err := s.service.StartCheckout(ctx, storeCheckout("order_1", 10000, 0, 11200))
	s.Require().NoError(err)

	req := storeCheckout("order_1", 10000, 0, 11200)
	req.PaymentID = resp.PaymentID
	req.FamilyID = "family_2"
	_, err = s.service.StartCheckout(ctx, req)
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *CheckoutServiceSuite) TestSuccessSettlesLinkedInvoice() {
	ctx := s.GetContext()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	invoices := NewInvoiceService(params)
	svc := NewCheckoutService(params, NewPriceService(params), NewInvoiceFulfillment(invoices, s.GetLogger()))

	inv, err := invoices.CreateInvoice(ctx, dto.CreateInvoiceRequest{
		FamilyID: "family_1",
		Currency: "usd",
		LineItems: []dto.InvoiceLineItemRequest{{
			ItemType:  types.ItemTypeProduct,
			UnitPrice: 10000,
			Quantity:  1,
		}},
	})
	s.Require().NoError(err)
	s.Require().Equal(int64(11200), inv.Total.MinorUnits())
	_, err = invoices.UpdateInvoiceStatus(ctx, inv.ID, dto.UpdateInvoiceStatusRequest{Status: types.InvoiceStatusSent})
	s.Require().NoError(err)

	req := storeCheckout("order_1", 10000, 0, 11200)
	req.InvoiceID = lo.ToPtr(inv.ID)
	resp, err := svc.StartCheckout(ctx, req)
	s.Require().NoError(err)

	s.Require().NoError(svc.HandleGatewayEvent(ctx, &payment.GatewayEvent{
		ID:       "evt_1",
		Type:     payment.GatewayEventIntentSucceeded,
		IntentID: resp.IntentID,
	}))

	settled, err := invoices.GetInvoice(ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, settled.InvoiceStatus)
	s.True(settled.AmountRemaining.IsZero())
}

func (s *CheckoutServiceSuite) TestGetPayment() {
	_, err := s.service.GetPayment(s.GetContext(), "")
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.GetPayment(s.GetContext(), "pay_missing")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}
