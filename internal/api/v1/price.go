package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tuitionbill/tuitionbill/internal/api/dto"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/service"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

type PriceHandler struct {
	service service.PriceService
	log     *logger.Logger
}

func NewPriceHandler(service service.PriceService, log *logger.Logger) *PriceHandler {
	return &PriceHandler{service: service, log: log}
}

// @Summary Create a tuition price
// @Description Publish a new per-student price; the previous active price for the same type and currency is deactivated
// @Tags Prices
// @Accept json
// @Produce json
// @Param price body dto.CreateTuitionPriceRequest true "Price"
// @Success 201 {object} dto.TuitionPriceResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /prices [post]
func (h *PriceHandler) CreatePrice(c *gin.Context) {
	var req dto.CreateTuitionPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreatePrice(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a tuition price
// @Tags Prices
// @Produce json
// @Param id path string true "Price ID"
// @Success 200 {object} dto.TuitionPriceResponse
// @Router /prices/{id} [get]
func (h *PriceHandler) GetPrice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("price ID is required").
			WithHint("Price ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetPrice(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List tuition prices
// @Tags Prices
// @Produce json
// @Param filter query types.QueryFilter false "Filter"
// @Success 200 {object} dto.ListTuitionPricesResponse
// @Router /prices [get]
func (h *PriceHandler) ListPrices(c *gin.Context) {
	filter := types.NewDefaultQueryFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPrices(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Quote tuition
// @Description Price a tuition purchase for a number of students at the active price
// @Tags Prices
// @Produce json
// @Param payment_type query string true "Payment type"
// @Param currency query string true "Currency"
// @Param students query int true "Number of students"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} middleware.ErrorResponse
// @Router /prices/quote [get]
func (h *PriceHandler) QuoteTuition(c *gin.Context) {
	students, err := strconv.Atoi(c.DefaultQuery("students", "1"))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("students must be a whole number").
			Mark(ierr.ErrValidation))
		return
	}

	quote, err := h.service.QuoteTuition(
		c.Request.Context(),
		types.PaymentType(c.Query("payment_type")),
		c.Query("currency"),
		students,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"amount":   quote.Major(),
		"currency": quote.Currency(),
		"students": students,
	})
}

// @Summary Deactivate a tuition price
// @Tags Prices
// @Param id path string true "Price ID"
// @Success 204
// @Router /prices/{id} [delete]
func (h *PriceHandler) DeactivatePrice(c *gin.Context) {
	if err := h.service.DeactivatePrice(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
