package repository

import (
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/domain/invoice"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	"github.com/tuitionbill/tuitionbill/internal/domain/price"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxrate"
	"github.com/tuitionbill/tuitionbill/internal/domain/taxsnapshot"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/postgres"
	postgresRepo "github.com/tuitionbill/tuitionbill/internal/repository/postgres"
)

func NewTaxRateRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) taxrate.Repository {
	return postgresRepo.NewTaxRateRepository(db, logger, cache)
}

func NewTaxSnapshotRepository(db *postgres.DB, logger *logger.Logger) taxsnapshot.Repository {
	return postgresRepo.NewTaxSnapshotRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewInvoiceLineItemRepository(db *postgres.DB, logger *logger.Logger) invoice.LineItemRepository {
	return postgresRepo.NewInvoiceLineItemRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewPriceRepository(db *postgres.DB, logger *logger.Logger, cache cache.Cache) price.Repository {
	return postgresRepo.NewPriceRepository(db, logger, cache)
}
