package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const secret = "whsec_test"

func signed(t *testing.T, body map[string]any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: raw, Secret: secret})
	return sp.Payload, sp.Header
}

func intentEvent(kind string, intent map[string]any) map[string]any {
	return map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        kind,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": intent},
	}
}

func TestParseEventSucceeded(t *testing.T) {
	payload, header := signed(t, intentEvent("payment_intent.succeeded", map[string]any{
		"id":              "pi_1",
		"object":          "payment_intent",
		"amount":          2000,
		"amount_received": 2000,
		"currency":        "usd",
		"status":          "succeeded",
		"metadata":        map[string]string{"order_id": "o1", "user_id": "u1"},
	}))

	evt, err := ParseEvent(payload, header, secret, 0)
	require.NoError(t, err)
	assert.Equal(t, payment.EventSucceeded, evt.Kind)
	assert.Equal(t, "pi_1", evt.TransactionID)
	assert.Equal(t, int64(2000), evt.Amount)
	assert.Equal(t, "usd", evt.Currency)
	assert.Equal(t, "o1", evt.Metadata[payment.MetadataOrderID])
}

func TestParseEventFailedCarriesReason(t *testing.T) {
	payload, header := signed(t, intentEvent("payment_intent.payment_failed", map[string]any{
		"id":                 "pi_1",
		"object":             "payment_intent",
		"amount":             2000,
		"currency":           "usd",
		"status":             "requires_payment_method",
		"last_payment_error": map[string]any{"message": "card declined"},
	}))

	evt, err := ParseEvent(payload, header, secret, 0)
	require.NoError(t, err)
	assert.Equal(t, payment.EventFailed, evt.Kind)
	assert.Equal(t, "card declined", evt.FailureReason)
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	payload, _ := signed(t, intentEvent("payment_intent.succeeded", map[string]any{"id": "pi_1"}))

	_, err := ParseEvent(payload, "t=1,v1=deadbeef", secret, 0)
	require.ErrorIs(t, err, payment.ErrInvalidSignature)

	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)-2] = ' '
	_, header := signed(t, intentEvent("payment_intent.succeeded", map[string]any{"id": "pi_1"}))
	_, err = ParseEvent(tampered, header, secret, 0)
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestParseEventUnknownKindPassesThrough(t *testing.T) {
	payload, header := signed(t, map[string]any{
		"id":     "evt_2",
		"object": "event",
		"type":   "customer.created",
		"data":   map[string]any{"object": map[string]any{"id": "cus_1"}},
	})

	evt, err := ParseEvent(payload, header, secret, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, payment.EventKind("customer.created"), evt.Kind)
	assert.Empty(t, evt.TransactionID)
}

func TestParseEventUnusableIntentIsMarkedInvalid(t *testing.T) {
	cases := map[string]map[string]any{
		"no id":       {"object": "payment_intent", "amount_received": 2000},
		"wrong types": {"id": "pi_1", "object": "payment_intent", "amount_received": "lots"},
	}
	for name, intent := range cases {
		t.Run(name, func(t *testing.T) {
			payload, header := signed(t, intentEvent("payment_intent.succeeded", intent))

			evt, err := ParseEvent(payload, header, secret, 0)
			require.NoError(t, err)
			assert.Equal(t, payment.EventSucceeded, evt.Kind)
			assert.NotEmpty(t, evt.Invalid)
			assert.Empty(t, evt.TransactionID)
		})
	}
}

func TestCreateIntentSendsMetadataAndIdempotencyKey(t *testing.T) {
	var gotForm map[string][]string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":2000,"currency":"usd","status":"requires_payment_method","client_secret":"pi_123_secret_abc","metadata":{"order_id":"o1"}}`))
	}))
	defer srv.Close()

	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, &stripeapi.BackendConfig{
		URL:               stripeapi.String(srv.URL),
		MaxNetworkRetries: stripeapi.Int64(0),
	})
	p, err := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: secret,
		Backends:      &stripeapi.Backends{API: backend, Connect: backend, Uploads: backend},
	})
	require.NoError(t, err)

	intent, err := p.CreateIntent(context.Background(), payment.IntentRequest{
		Amount:         2000,
		Currency:       "usd",
		Metadata:       map[string]string{payment.MetadataOrderID: "o1", payment.MetadataUserID: "u1"},
		IdempotencyKey: "checkout-o1",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, payment.IntentRequiresPaymentMethod, intent.Status)
	assert.Equal(t, []string{"2000"}, gotForm["amount"])
	assert.Equal(t, []string{"o1"}, gotForm["metadata[order_id]"])
	assert.Equal(t, []string{"u1"}, gotForm["metadata[user_id]"])
	assert.Equal(t, "checkout-o1", gotKey)
}

func TestNewRequiresSecrets(t *testing.T) {
	_, err := New(Config{WebhookSecret: secret})
	assert.Error(t, err)
	_, err = New(Config{SecretKey: "sk"})
	assert.Error(t, err)
}
