package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		expected int64
	}{
		{"150.00", "usd", 15000},
		{"0.01", "usd", 1},
		{"19.995", "eur", 2000},
		{"0", "usd", 0},
		{"1500", "JPY", 1500},
		{"1500.6", "krw", 1501},
	}
	for _, tt := range tests {
		t.Run(tt.amount+" "+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("150.25").Equal(FromMinorUnits(15025, "usd")))
	assert.True(t, decimal.NewFromInt(900).Equal(FromMinorUnits(900, "jpy")))
}

func TestNoopGateway(t *testing.T) {
	var g Gateway = NoopGateway{}
	_, err := g.CreateIntent(context.Background(), &IntentRequest{RegistrationID: "reg-1"})
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
	_, err = g.ParseWebhook([]byte("{}"), "sig")
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
	assert.NoError(t, g.Refund(context.Background(), "pi_1", "reg-1"))
	assert.Equal(t, "noop", g.Name())
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	_, err := NewStripeGateway(StripeConfig{})
	assert.Error(t, err)
}

type recordedRequest struct {
	Path           string
	IdempotencyKey string
	Form           url.Values
}

func newStripeTestGateway(t *testing.T, handler func(w http.ResponseWriter, r *recordedRequest)) (*StripeGateway, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		rec := recordedRequest{Path: r.URL.Path, IdempotencyKey: r.Header.Get("Idempotency-Key"), Form: form}
		requests = append(requests, rec)
		w.Header().Set("Content-Type", "application/json")
		handler(w, &rec)
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	g, err := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret, Backend: backend})
	require.NoError(t, err)
	return g, &requests
}

func TestStripeGateway_CreateIntent(t *testing.T) {
	g, requests := newStripeTestGateway(t, func(w http.ResponseWriter, r *recordedRequest) {
		fmt.Fprintf(w, `{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc",
			"status":"requires_payment_method","amount":%s,"currency":"%s"}`,
			r.Form.Get("amount"), r.Form.Get("currency"))
	})

	intent, err := g.CreateIntent(context.Background(), &IntentRequest{
		RegistrationID: "reg-1",
		BuyerID:        "buyer-1",
		Amount:         decimal.RequireFromString("285.00"),
		Currency:       "USD",
		Description:    "VIP x2",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, int64(28500), intent.AmountMinor)
	assert.Equal(t, "usd", intent.Currency)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "/v1/payment_intents", req.Path)
	assert.Equal(t, "intent-reg-1", req.IdempotencyKey)
	assert.Equal(t, "28500", req.Form.Get("amount"))
	assert.Equal(t, "usd", req.Form.Get("currency"))
	assert.Equal(t, "reg-1", req.Form.Get("metadata[registration_id]"))
	assert.Equal(t, "buyer-1", req.Form.Get("metadata[buyer_id]"))
}

func TestStripeGateway_CreateIntentProviderError(t *testing.T) {
	g, _ := newStripeTestGateway(t, func(w http.ResponseWriter, _ *recordedRequest) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	_, err := g.CreateIntent(context.Background(), &IntentRequest{
		RegistrationID: "reg-1",
		Amount:         decimal.NewFromInt(10),
		Currency:       "usd",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "card_declined")
}

func TestStripeGateway_Refund(t *testing.T) {
	g, requests := newStripeTestGateway(t, func(w http.ResponseWriter, _ *recordedRequest) {
		fmt.Fprint(w, `{"id":"re_1","object":"refund","status":"succeeded"}`)
	})

	require.NoError(t, g.Refund(context.Background(), "pi_123", "reg-1"))
	require.Len(t, *requests, 1)
	assert.Equal(t, "/v1/refunds", (*requests)[0].Path)
	assert.Equal(t, "pi_123", (*requests)[0].Form.Get("payment_intent"))
	assert.Equal(t, "refund-reg-1", (*requests)[0].IdempotencyKey)
}

func signedWebhook(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
	return signed.Payload, signed.Header
}

func TestStripeGateway_ParseWebhook(t *testing.T) {
	g, _ := newStripeTestGateway(t, func(http.ResponseWriter, *recordedRequest) {})

	t.Run("succeeded", func(t *testing.T) {
		payload, header := signedWebhook(t, "payment_intent.succeeded", map[string]any{
			"id": "pi_123", "object": "payment_intent",
			"metadata": map[string]string{MetadataRegistrationID: "reg-1"},
		})
		evt, err := g.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, WebhookPaymentSucceeded, evt.Type)
		assert.Equal(t, "evt_1", evt.ID)
		assert.Equal(t, "pi_123", evt.IntentID)
		assert.Equal(t, "reg-1", evt.RegistrationID)
	})

	t.Run("failed", func(t *testing.T) {
		payload, header := signedWebhook(t, "payment_intent.payment_failed", map[string]any{
			"id": "pi_456", "object": "payment_intent",
			"metadata":           map[string]string{MetadataRegistrationID: "reg-2"},
			"last_payment_error": map[string]any{"message": "Your card was declined."},
		})
		evt, err := g.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, WebhookPaymentFailed, evt.Type)
		assert.Equal(t, "reg-2", evt.RegistrationID)
		assert.Equal(t, "Your card was declined.", evt.FailureMessage)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		payload, header := signedWebhook(t, "charge.refunded", map[string]any{"id": "ch_1", "object": "charge"})
		evt, err := g.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, evt.Type)
		assert.Equal(t, "charge.refunded", evt.ProviderType)
	})

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedWebhook(t, "payment_intent.succeeded", map[string]any{"id": "pi_1"})
		_, err := g.ParseWebhook(payload, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		payload, header := signedWebhook(t, "payment_intent.succeeded", map[string]any{"id": "pi_1"})
		payload = append(payload, ' ')
		_, err := g.ParseWebhook(payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
