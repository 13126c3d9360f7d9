package testutil

import (
	"context"
	"sync"

	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

var _ payment.Gateway = (*MockGateway)(nil)

// MockGateway is an in-memory payment gateway that records every call
type MockGateway struct {
	Failures
	mu      sync.Mutex
	intents map[string]*payment.Intent
	created []*payment.CreateIntentInput
	cancels []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents: make(map[string]*payment.Intent),
	}
}

func (g *MockGateway) Type() types.PaymentGatewayType {
	return types.PaymentGatewayTypeStripe
}

func (g *MockGateway) CreateIntent(ctx context.Context, input *payment.CreateIntentInput) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.created = append(g.created, input)
	if err := g.check("CreateIntent"); err != nil {
		return nil, err
	}

	id := types.GenerateUUIDWithPrefix("pi")
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       payment.IntentStatusRequiresPaymentMethod,
		Amount:       input.Amount,
	}
	g.intents[id] = intent
	c := *intent
	return &c, nil
}

func (g *MockGateway) RetrieveIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check("RetrieveIntent"); err != nil {
		return nil, err
	}
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, ierr.NewError("intent not found").
			WithHintf("No such payment intent: %s", intentID).
			Mark(ierr.ErrGateway)
	}
	c := *intent
	return &c, nil
}

func (g *MockGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cancels = append(g.cancels, intentID)
	if err := g.check("CancelIntent"); err != nil {
		return err
	}
	if intent, ok := g.intents[intentID]; ok && intent.Status != payment.IntentStatusSucceeded {
		intent.Status = payment.IntentStatusCanceled
	}
	return nil
}

// SetStatus simulates the customer or the gateway moving an intent
func (g *MockGateway) SetStatus(intentID string, status payment.IntentStatus, failureMessage string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[intentID]; ok {
		intent.Status = status
		intent.FailureMessage = failureMessage
	}
}

// CreatedIntents returns the inputs of every CreateIntent call
func (g *MockGateway) CreatedIntents() []*payment.CreateIntentInput {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*payment.CreateIntentInput(nil), g.created...)
}

// CancelledIntents returns the ids of every CancelIntent call
func (g *MockGateway) CancelledIntents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancels...)
}

func (g *MockGateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents = make(map[string]*payment.Intent)
	g.created = nil
	g.cancels = nil
	g.Failures.Reset()
}
