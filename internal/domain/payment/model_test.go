package payment

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

func TestMarkSucceededAfterFailure(t *testing.T) {
	now := time.Now().UTC()
	p := &Payment{
		ID:             "pay_1",
		IdempotencyKey: "checkout-abc",
		PaymentStatus:  types.PaymentStatusPending,
	}

	assert.True(t, p.MarkFailed("card_declined", now))
	assert.False(t, p.MarkFailed("card_declined", now))
	assert.Equal(t, "checkout-abc:pay_1", p.IdempotencyKey)

	assert.True(t, p.MarkSucceeded(types.PaymentMethodTypeCard, now))
	assert.Equal(t, types.PaymentStatusSucceeded, p.PaymentStatus)
	assert.Nil(t, p.FailedAt)
	assert.Nil(t, p.ErrorMessage)
	assert.Equal(t, "checkout-abc:pay_1", p.IdempotencyKey)

	assert.False(t, p.MarkSucceeded(types.PaymentMethodTypeCard, now))
	assert.False(t, p.MarkFailed("late", now))
	assert.Equal(t, types.PaymentStatusSucceeded, p.PaymentStatus)
}

func TestUnlinkIntentAdvancesAttempt(t *testing.T) {
	p := &Payment{ID: "pay_1"}
	assert.Equal(t, 0, p.IntentAttempt())

	p.GatewayIntentID = lo.ToPtr("pi_1")
	p.UnlinkIntent()
	assert.False(t, p.IsLinked())
	assert.Equal(t, 1, p.IntentAttempt())
	assert.Equal(t, "pi_1", p.Metadata[MetadataLastIntentID])

	p.GatewayIntentID = lo.ToPtr("pi_2")
	p.UnlinkIntent()
	assert.Equal(t, 2, p.IntentAttempt())
	assert.Equal(t, "pi_2", p.Metadata[MetadataLastIntentID])

	p.Metadata[MetadataIntentAttempt] = "garbage"
	assert.Equal(t, 0, p.IntentAttempt())
}
