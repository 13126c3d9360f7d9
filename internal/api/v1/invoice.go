package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/service"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type InvoiceHandler struct {
	service service.InvoiceService
	logger  *logger.Logger
}

func NewInvoiceHandler(service service.InvoiceService, logger *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		logger:  logger,
	}
}

// @Summary Create a new invoice
// @Description Create an invoice and price its line items
// @Tags Invoices
// @Accept json
// @Produce json
// @Param invoice body dto.CreateInvoiceRequest true "Invoice request"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid request").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetInvoice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param filter query types.InvoiceFilter false "Filter"
// @Success 200 {object} dto.ListInvoicesResponse
// @Router /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	filter := types.NewInvoiceFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Replace invoice line items
// @Description Reprice every line item of a draft invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.ReplaceLineItemsRequest true "Line items"
// @Success 200 {object} dto.InvoiceResponse
// @Router /invoices/{id}/line-items [put]
func (h *InvoiceHandler) ReplaceLineItems(c *gin.Context) {
	var req dto.ReplaceLineItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ReplaceLineItems(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update invoice status
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.UpdateInvoiceStatusRequest true "Status"
// @Success 200 {object} dto.InvoiceResponse
// @Router /invoices/{id}/status [post]
func (h *InvoiceHandler) UpdateInvoiceStatus(c *gin.Context) {
	var req dto.UpdateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateInvoiceStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Record an invoice payment
// @Description Apply an amount collected outside checkout to an invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param request body dto.RecordInvoicePaymentRequest true "Payment"
// @Success 200 {object} dto.InvoiceResponse
// @Router /invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordInvoicePayment(c *gin.Context) {
	var req dto.RecordInvoicePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.RecordInvoicePayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
