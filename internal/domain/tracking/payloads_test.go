package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEventPayload() EventPayload {
	return EventPayload{
		EventName:      "click",
		Source:         "product_card",
		VisitorID:      "visitor-0001",
		SessionID:      "session-0001",
		PagePath:       "/products/sneakers",
		IdempotencyKey: "evt-key-0001",
	}
}

func TestEventPayloadNormalize(t *testing.T) {
	t.Run("valid payload builds event", func(t *testing.T) {
		payload := validEventPayload()
		event, err := payload.Normalize()
		require.NoError(t, err)
		assert.Equal(t, EventClick, event.EventName)
		assert.Equal(t, SourceProductCard, event.Source)
		assert.Equal(t, "evt-key-0001", event.IdempotencyKey)
		assert.Nil(t, event.OccurredAt)
	})

	t.Run("missing source defaults to unknown", func(t *testing.T) {
		payload := validEventPayload()
		payload.Source = ""
		event, err := payload.Normalize()
		require.NoError(t, err)
		assert.Equal(t, SourceUnknown, event.Source)
	})

	t.Run("explicit bad source rejected", func(t *testing.T) {
		payload := validEventPayload()
		payload.Source = "sidebar"
		_, err := payload.Normalize()
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "source", validation.Field)
	})

	t.Run("unknown event name rejected", func(t *testing.T) {
		payload := validEventPayload()
		payload.EventName = "pageview"
		_, err := payload.Normalize()
		assert.Error(t, err)
	})

	t.Run("missing idempotency key is a hard failure", func(t *testing.T) {
		payload := validEventPayload()
		payload.IdempotencyKey = ""
		_, err := payload.Normalize()
		assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
	})

	t.Run("short identifier rejected not truncated", func(t *testing.T) {
		payload := validEventPayload()
		payload.VisitorID = "short"
		_, err := payload.Normalize()
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "visitor_id", validation.Field)
	})

	t.Run("absolute page path rejected", func(t *testing.T) {
		payload := validEventPayload()
		payload.PagePath = "https://evil.example/products"
		_, err := payload.Normalize()
		assert.Error(t, err)
	})

	t.Run("protocol relative page path rejected", func(t *testing.T) {
		payload := validEventPayload()
		payload.PagePath = "//evil.example/products"
		_, err := payload.Normalize()
		assert.Error(t, err)
	})

	t.Run("occurred_at parses RFC3339 to UTC", func(t *testing.T) {
		payload := validEventPayload()
		raw := "2026-03-01T10:30:00+02:00"
		payload.OccurredAt = &raw
		event, err := payload.Normalize()
		require.NoError(t, err)
		require.NotNil(t, event.OccurredAt)
		assert.Equal(t, time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC), *event.OccurredAt)
	})

	t.Run("malformed occurred_at rejected", func(t *testing.T) {
		payload := validEventPayload()
		raw := "yesterday"
		payload.OccurredAt = &raw
		_, err := payload.Normalize()
		assert.Error(t, err)
	})
}

func validRequestPayload() RequestPayload {
	return RequestPayload{
		Source:         "product_detail",
		VisitorID:      "visitor-0001",
		SessionID:      "session-0001",
		PagePath:       "/products/sneakers",
		IdempotencyKey: "req-key-0001",
		Items: []RequestItemPayload{
			{ProductID: "prod-1", UnitPriceCents: 15000, Quantity: 2},
		},
	}
}

func TestRequestPayloadNormalize(t *testing.T) {
	t.Run("valid payload builds submitted request", func(t *testing.T) {
		payload := validRequestPayload()
		request, err := payload.Normalize()
		require.NoError(t, err)
		assert.Equal(t, StatusSubmitted, request.Status)
		require.Len(t, request.Items, 1)
		assert.Equal(t, 2, request.Items[0].Quantity)
	})

	t.Run("source is mandatory", func(t *testing.T) {
		payload := validRequestPayload()
		payload.Source = ""
		_, err := payload.Normalize()
		var validation *ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "source", validation.Field)
	})

	t.Run("empty items rejected", func(t *testing.T) {
		payload := validRequestPayload()
		payload.Items = nil
		_, err := payload.Normalize()
		assert.Error(t, err)
	})

	t.Run("duplicate product lines merge keeping first snapshot", func(t *testing.T) {
		size := "42"
		payload := validRequestPayload()
		payload.Items = []RequestItemPayload{
			{ProductID: "prod-1", VariantSize: &size, UnitPriceCents: 15000, Quantity: 1},
			{ProductID: "prod-2", UnitPriceCents: 9000, Quantity: 1},
			{ProductID: "prod-1", UnitPriceCents: 14000, Quantity: 3},
		}
		request, err := payload.Normalize()
		require.NoError(t, err)
		require.Len(t, request.Items, 2)
		assert.Equal(t, "prod-1", request.Items[0].ProductID)
		assert.Equal(t, 4, request.Items[0].Quantity)
		assert.Equal(t, 15000, request.Items[0].UnitPriceCents)
		require.NotNil(t, request.Items[0].VariantSize)
		assert.Equal(t, "42", *request.Items[0].VariantSize)
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		payload := validRequestPayload()
		payload.Items[0].Quantity = 0
		_, err := payload.Normalize()
		assert.Error(t, err)
	})

	t.Run("negative price rejected", func(t *testing.T) {
		payload := validRequestPayload()
		payload.Items[0].UnitPriceCents = -1
		_, err := payload.Normalize()
		assert.Error(t, err)
	})
}

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("abc-123.XYZ_9"))
	assert.False(t, ValidIdentifier("short"))
	assert.False(t, ValidIdentifier("has spaces here"))
	assert.False(t, ValidIdentifier(""))

	long := make([]byte, 121)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidIdentifier(string(long)))
	assert.True(t, ValidIdentifier(string(long[:120])))
}

func TestCTR(t *testing.T) {
	assert.Equal(t, 0.0, CTR(10, 0))
	assert.Equal(t, 50.0, CTR(1, 2))
	assert.Equal(t, 33.33, CTR(1, 3))
	assert.Equal(t, 66.67, CTR(2, 3))
	assert.Equal(t, 100.0, CTR(5, 5))
}
