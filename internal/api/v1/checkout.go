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

type CheckoutHandler struct {
	service service.CheckoutService
	log     *logger.Logger
}

func NewCheckoutHandler(service service.CheckoutService, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, log: log}
}

// @Summary Start a checkout
// @Description Create or resume the pending payment for a checkout form and return the gateway client secret
// @Tags Checkout
// @Accept json
// @Produce json
// @Param checkout body dto.CheckoutRequest true "Checkout form"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /checkout [post]
func (h *CheckoutHandler) StartCheckout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.StartCheckout(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Sync a checkout
// @Description Read the linked gateway intent and apply its status to the payment
// @Tags Checkout
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /checkout/{id} [get]
func (h *CheckoutHandler) SyncPaymentStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("id is required").
			WithHint("Payment ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.SyncPaymentStatus(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a checkout
// @Description Cancel the linked gateway intent; the payment stays pending
// @Tags Checkout
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Router /checkout/{id}/cancel [post]
func (h *CheckoutHandler) CancelCheckout(c *gin.Context) {
	resp, err := h.service.CancelCheckout(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Router /payments/{id} [get]
func (h *CheckoutHandler) GetPayment(c *gin.Context) {
	resp, err := h.service.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List payments
// @Tags Payments
// @Produce json
// @Param filter query types.PaymentFilter false "Filter"
// @Success 200 {object} dto.ListPaymentsResponse
// @Router /payments [get]
func (h *CheckoutHandler) ListPayments(c *gin.Context) {
	filter := types.NewPaymentFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPayments(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
