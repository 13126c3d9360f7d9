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

type TaxRateHandler struct {
	service service.TaxRateService
	log     *logger.Logger
}

func NewTaxRateHandler(service service.TaxRateService, log *logger.Logger) *TaxRateHandler {
	return &TaxRateHandler{service: service, log: log}
}

// @Summary Create a tax rate
// @Tags Tax Rates
// @Accept json
// @Produce json
// @Param tax_rate body dto.CreateTaxRateRequest true "Tax rate"
// @Success 201 {object} dto.TaxRateResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /tax-rates [post]
func (h *TaxRateHandler) CreateTaxRate(c *gin.Context) {
	var req dto.CreateTaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateTaxRate(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a tax rate
// @Tags Tax Rates
// @Produce json
// @Param id path string true "Tax rate ID"
// @Success 200 {object} dto.TaxRateResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /tax-rates/{id} [get]
func (h *TaxRateHandler) GetTaxRate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("tax rate ID is required").
			WithHint("Tax rate ID is required").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetTaxRate(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List tax rates
// @Tags Tax Rates
// @Produce json
// @Param filter query types.TaxRateFilter false "Filter"
// @Success 200 {object} dto.ListTaxRatesResponse
// @Router /tax-rates [get]
func (h *TaxRateHandler) ListTaxRates(c *gin.Context) {
	filter := types.NewTaxRateFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListTaxRates(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update a tax rate
// @Tags Tax Rates
// @Accept json
// @Produce json
// @Param id path string true "Tax rate ID"
// @Param tax_rate body dto.UpdateTaxRateRequest true "Changes"
// @Success 200 {object} dto.TaxRateResponse
// @Router /tax-rates/{id} [put]
func (h *TaxRateHandler) UpdateTaxRate(c *gin.Context) {
	var req dto.UpdateTaxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateTaxRate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Archive a tax rate
// @Tags Tax Rates
// @Param id path string true "Tax rate ID"
// @Success 204
// @Router /tax-rates/{id} [delete]
func (h *TaxRateHandler) DeleteTaxRate(c *gin.Context) {
	if err := h.service.DeleteTaxRate(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
