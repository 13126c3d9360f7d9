package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tuitionbill/tuitionbill/internal/domain/payment"
	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/logger"
	"github.com/tuitionbill/tuitionbill/internal/service"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// WebhookHandler receives gateway notifications
type WebhookHandler struct {
	parser   payment.WebhookParser
	checkout service.CheckoutService
	logger   *logger.Logger
}

func NewWebhookHandler(
	parser payment.WebhookParser,
	checkout service.CheckoutService,
	logger *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		parser:   parser,
		checkout: checkout,
		logger:   logger,
	}
}

// @Summary Handle Stripe webhook events
// @Description Verify a Stripe event and apply it to the matching payment
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param tenant_id path string false "Tenant ID"
// @Param Stripe-Signature header string true "Stripe webhook signature"
// @Success 200 {object} map[string]interface{} "Webhook processed successfully"
// @Failure 400 {object} middleware.ErrorResponse
// @Router /webhooks/stripe/{tenant_id} [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.Error(ierr.NewError("missing Stripe-Signature header").
			WithHint("Missing Stripe-Signature header").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := h.parser.Parse(body, signature)
	if err != nil {
		c.Error(err)
		return
	}

	// the intent metadata is authoritative, the path only covers older intents
	ctx := c.Request.Context()
	switch {
	case event.TenantID != "":
		ctx = types.SetTenantID(ctx, event.TenantID)
	case c.Param("tenant_id") != "":
		ctx = types.SetTenantID(ctx, c.Param("tenant_id"))
	}

	h.logger.WithContext(ctx).Infow("received stripe webhook",
		"event_id", event.ID,
		"event_type", event.Type,
		"intent_id", event.IntentID,
	)

	if err := h.checkout.HandleGatewayEvent(ctx, event); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
