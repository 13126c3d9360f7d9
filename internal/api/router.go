package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/tuitionbill/tuitionbill/internal/api/v1"
	"github.com/tuitionbill/tuitionbill/internal/config"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/rest/middleware"
)

type Handlers struct {
	Health   *v1.HealthHandler
	Checkout *v1.CheckoutHandler
	Invoice  *v1.InvoiceHandler
	TaxRate  *v1.TaxRateHandler
	Price    *v1.PriceHandler
	Webhook  *v1.WebhookHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestIDMiddleware)
	router.Use(middleware.SentryMiddleware(cfg)...)
	router.Use(
		middleware.CORSMiddleware(cfg),
		// the logger wraps the error handler so it sees the final status
		middleware.RequestLogger(logger),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)

	// Webhooks carry their tenant in the gateway metadata
	webhooks := router.Group("/v1/webhooks")
	{
		webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)
		webhooks.POST("/stripe/:tenant_id", handlers.Webhook.HandleStripeWebhook)
	}

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.GuestAuthenticateMiddleware)
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	checkout := router.Group("/checkout")
	{
		checkout.POST("", handlers.Checkout.StartCheckout)
		checkout.GET("/:id", handlers.Checkout.SyncPaymentStatus)
		checkout.POST("/:id/cancel", handlers.Checkout.CancelCheckout)
	}

	payments := router.Group("/payments")
	{
		payments.GET("", handlers.Checkout.ListPayments)
		payments.GET("/:id", handlers.Checkout.GetPayment)
	}

	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id/line-items", handlers.Invoice.ReplaceLineItems)
		invoices.POST("/:id/status", handlers.Invoice.UpdateInvoiceStatus)
		invoices.POST("/:id/payments", handlers.Invoice.RecordInvoicePayment)
	}

	taxRates := router.Group("/tax-rates")
	{
		taxRates.POST("", handlers.TaxRate.CreateTaxRate)
		taxRates.GET("", handlers.TaxRate.ListTaxRates)
		taxRates.GET("/:id", handlers.TaxRate.GetTaxRate)
		taxRates.PUT("/:id", handlers.TaxRate.UpdateTaxRate)
		taxRates.DELETE("/:id", handlers.TaxRate.DeleteTaxRate)
	}

	prices := router.Group("/prices")
	{
		prices.POST("", handlers.Price.CreatePrice)
		prices.GET("", handlers.Price.ListPrices)
		prices.GET("/quote", handlers.Price.QuoteTuition)
		prices.GET("/:id", handlers.Price.GetPrice)
		prices.DELETE("/:id", handlers.Price.DeactivatePrice)
	}
}
