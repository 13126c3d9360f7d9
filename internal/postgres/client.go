package postgres

import (
	"context"

	"github.com/tuitionbill/tuitionbill/internal/logger"
	sentryService "github.com/tuitionbill/tuitionbill/internal/sentry"
	"go.uber.org/fx"
)

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction. Nested calls join the
	// outer transaction through a savepoint.
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Client exposes transaction management on top of DB
type Client struct {
	db     *DB
	logger *logger.Logger
}

// Module provides an fx.Option to integrate the postgres client with the application
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient creates a new transaction client, instrumented with sentry spans
func NewClient(db *DB, logger *logger.Logger, sentry *sentryService.Service) IClient {
	return NewSentryClient(&Client{db: db, logger: logger}, sentry, logger)
}

// WithTx wraps the given function in a transaction
func (c *Client) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return c.db.WithTx(ctx, fn)
}

func registerHooks(lc fx.Lifecycle, db *DB, logger *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing postgres connection")
			db.Close()
			return nil
		},
	})
}
