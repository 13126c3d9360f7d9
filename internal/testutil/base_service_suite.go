package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tuitionbill/tuitionbill/internal/cache"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/sentry"
	"github.com/tuitionbill/tuitionbill/internal/types"
	"github.com/tuitionbill/tuitionbill/internal/validator"
)

// Stores holds all the in-memory repositories for testing
type Stores struct {
	TaxRateRepo         *InMemoryTaxRateStore
	TaxSnapshotRepo     *InMemoryTaxSnapshotStore
	InvoiceRepo         *InMemoryInvoiceStore
	InvoiceLineItemRepo *InMemoryInvoiceLineItemStore
	PaymentRepo         *InMemoryPaymentStore
	PriceRepo           *InMemoryPriceStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	stores  Stores
	gateway *MockGateway
	db      *MockPostgresClient
	cache   cache.Cache
	sentry  *sentry.Service
	logger  *logger.Logger
	config  *config.Configuration
	now     time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.sentry = sentry.NewSentryService(cfg, s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		TaxRateRepo:         NewInMemoryTaxRateStore(),
		TaxSnapshotRepo:     NewInMemoryTaxSnapshotStore(),
		InvoiceRepo:         NewInMemoryInvoiceStore(),
		InvoiceLineItemRepo: NewInMemoryInvoiceLineItemStore(),
		PaymentRepo:         NewInMemoryPaymentStore(),
		PriceRepo:           NewInMemoryPriceStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.db.Track(
		s.stores.TaxRateRepo,
		s.stores.TaxSnapshotRepo,
		s.stores.InvoiceRepo,
		s.stores.InvoiceLineItemRepo,
		s.stores.PaymentRepo,
		s.stores.PriceRepo,
	)
	s.gateway = NewMockGateway()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.TaxRateRepo.Clear()
	s.stores.TaxSnapshotRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.InvoiceLineItemRepo.Clear()
	s.stores.PaymentRepo.Clear()
	s.stores.PriceRepo.Clear()
	s.gateway.Clear()
	s.cache = cache.NewInMemoryCache(s.config, s.logger)
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the recording payment gateway
func (s *BaseServiceTestSuite) GetGateway() *MockGateway {
	return s.gateway
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetSentry returns a disabled sentry service
func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
