package testutil

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type txMarker struct{}

// MockPostgresClient is a mock implementation of postgres client for testing.
// It counts transactions and, when fn fails, restores the tracked stores to
// their state at the start of the outermost transaction.
type MockPostgresClient struct {
	logger *logger.Logger
	txs    int
	stores []Snapshotter
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	c.txs++
	restores := make([]func(), 0, len(c.stores))
	for _, store := range c.stores {
		restores = append(restores, store.Snapshot())
	}

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		c.logger.Debugw("rolling back test transaction", "error", err)
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// Track registers stores to roll back with failed transactions
func (c *MockPostgresClient) Track(stores ...Snapshotter) {
	c.stores = append(c.stores, stores...)
}

// Transactions returns how many outermost transactions were started
func (c *MockPostgresClient) Transactions() int {
	return c.txs
}
