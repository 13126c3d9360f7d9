package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tuitionbill/tuitionbill/internal/api"
	v1 "github.com/tuitionbill/tuitionbill/internal/api/v1"
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/integration/stripe"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/repository"
	"github.com/tuitionbill/tuitionbill/internal/sentry"
	"github.com/tuitionbill/tuitionbill/internal/service"
	"github.com/tuitionbill/tuitionbill/internal/types"
	"github.com/tuitionbill/tuitionbill/internal/validator"
	"go.uber.org/fx"
)

// @title TuitionBill API
// @version 1.0
// @description Tuition checkout, invoicing and tax service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.NewInMemoryCache,

			// Repositories
			repository.NewTaxRateRepository,
			repository.NewTaxSnapshotRepository,
			repository.NewInvoiceRepository,
			repository.NewInvoiceLineItemRepository,
			repository.NewPaymentRepository,
			repository.NewPriceRepository,

			// Payment gateway
			provideGateway,
			provideWebhookParser,
		),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewTaxRateService,
			service.NewPriceService,
			service.NewInvoiceService,
			service.NewInvoiceFulfillment,
			service.NewCheckoutService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideGateway(cfg *config.Configuration, logger *logger.Logger) payment.Gateway {
	return stripe.NewGateway(cfg, logger)
}

func provideWebhookParser(cfg *config.Configuration, logger *logger.Logger) payment.WebhookParser {
	return stripe.NewWebhookParser(cfg, logger)
}

func provideHandlers(
	logger *logger.Logger,
	db *postgres.DB,
	checkoutService service.CheckoutService,
	invoiceService service.InvoiceService,
	taxRateService service.TaxRateService,
	priceService service.PriceService,
	webhookParser payment.WebhookParser,
) api.Handlers {
	return api.Handlers{
		Health:   v1.NewHealthHandler(db, logger),
		Checkout: v1.NewCheckoutHandler(checkoutService, logger),
		Invoice:  v1.NewInvoiceHandler(invoiceService, logger),
		TaxRate:  v1.NewTaxRateHandler(taxRateService, logger),
		Price:    v1.NewPriceHandler(priceService, logger),
		Webhook:  v1.NewWebhookHandler(webhookParser, checkoutService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func startServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Configuration,
	db *postgres.DB,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startMigrations(lc, db, log, nil)
		startAPIServer(lc, r, cfg, log)
	case types.ModeAPI:
		if cfg.Postgres.AutoMigrate {
			startMigrations(lc, db, log, nil)
		}
		startAPIServer(lc, r, cfg, log)
	case types.ModeMigrate:
		startMigrations(lc, db, log, shutdowner)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

// startMigrations applies pending migrations before the server starts. With a
// shutdowner the app exits once they are applied.
func startMigrations(lc fx.Lifecycle, db *postgres.DB, log *logger.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Applying database migrations...")
			if err := db.MigrateUp(); err != nil {
				return err
			}
			if shutdowner != nil {
				return shutdowner.Shutdown()
			}
			return nil
		},
	})
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
