package service

import (
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	"github.com/tuitionbill/tuitionbill/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Sentry *sentry.Service
	Cache  cache.Cache

	// Repositories
	TaxRateRepo         taxrate.Repository
	TaxSnapshotRepo     taxsnapshot.Repository
	InvoiceRepo         invoice.Repository
	InvoiceLineItemRepo invoice.LineItemRepository
	PaymentRepo         payment.Repository
	PriceRepo           price.Repository

	// Gateway is the payment processor used for checkouts
	Gateway payment.Gateway
}

// NewServiceParams creates a new ServiceParams instance
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	sentry *sentry.Service,
	cache cache.Cache,
	taxRateRepo taxrate.Repository,
	taxSnapshotRepo taxsnapshot.Repository,
	invoiceRepo invoice.Repository,
	invoiceLineItemRepo invoice.LineItemRepository,
	paymentRepo payment.Repository,
	priceRepo price.Repository,
	gateway payment.Gateway,
) ServiceParams {
	return ServiceParams{
		Logger:              logger,
		Config:              config,
		DB:                  db,
		Sentry:              sentry,
		Cache:               cache,
		TaxRateRepo:         taxRateRepo,
		TaxSnapshotRepo:     taxSnapshotRepo,
		InvoiceRepo:         invoiceRepo,
		InvoiceLineItemRepo: invoiceLineItemRepo,
		PaymentRepo:         paymentRepo,
		PriceRepo:           priceRepo,
		Gateway:             gateway,
	}
}
