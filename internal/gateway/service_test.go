package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/credit"
)

type creditFake struct {
	payments []credit.PaymentInput
	err      error
}

func (f *creditFake) RecordPayment(_ context.Context, input credit.PaymentInput) (credit.PaymentResult, error) {
	if f.err != nil {
		return credit.PaymentResult{}, f.err
	}
	f.payments = append(f.payments, input)
	return credit.PaymentResult{}, nil
}

type clientFake struct {
	last InitializeInput
}

func (f *clientFake) Initialize(_ context.Context, input InitializeInput) (Authorization, error) {
	f.last = input
	return Authorization{AuthorizationURL: "https://pay.example/abc", AccessCode: "abc", Reference: input.Reference}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const secret = "sk_test_0123456789"

func callbackBody(t *testing.T, eventType string, customerID int64, amount, reference string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": eventType,
		"data": map[string]any{
			"reference": reference,
			"amount":    amount,
			"currency":  "USD",
			"metadata":  map[string]any{"customer_id": customerID},
		},
	})
	require.NoError(t, err)
	return body
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	sig := Sign(secret, payload)
	require.True(t, VerifySignature(secret, payload, sig))
	require.False(t, VerifySignature(secret, append(payload, ' '), sig))
	require.False(t, VerifySignature("other-secret", payload, sig))
}

func TestHandleCallbackAppliesPayment(t *testing.T) {
	fake := &creditFake{}
	svc := NewService(testLogger(), &clientFake{}, fake, secret)
	body := callbackBody(t, "charge.success", 7, "150.00", "CUST-7-ref")

	err := svc.HandleCallback(context.Background(), body, Sign(secret, body))
	require.NoError(t, err)
	require.Len(t, fake.payments, 1)
	require.Equal(t, int64(7), fake.payments[0].CustomerID)
	require.Equal(t, "GATEWAY", fake.payments[0].Method)
	require.Equal(t, "CUST-7-ref", fake.payments[0].Reference)
	require.True(t, fake.payments[0].Amount.Equal(decimal.RequireFromString("150.00")))
}

func TestHandleCallbackRejectsBadSignature(t *testing.T) {
	fake := &creditFake{}
	svc := NewService(testLogger(), &clientFake{}, fake, secret)
	body := callbackBody(t, "charge.success", 7, "150.00", "ref")

	err := svc.HandleCallback(context.Background(), body, Sign("wrong", body))
	require.ErrorIs(t, err, ErrBadSignature)
	require.Empty(t, fake.payments)
}

func TestHandleCallbackIgnoresOtherEvents(t *testing.T) {
	fake := &creditFake{}
	svc := NewService(testLogger(), &clientFake{}, fake, secret)
	body := callbackBody(t, "charge.failed", 7, "150.00", "ref")

	err := svc.HandleCallback(context.Background(), body, Sign(secret, body))
	require.NoError(t, err)
	require.Empty(t, fake.payments)
}

func TestInitializePaymentBuildsReference(t *testing.T) {
	client := &clientFake{}
	svc := NewService(testLogger(), client, &creditFake{}, secret)

	auth, err := svc.InitializePayment(context.Background(), 7, decimal.RequireFromString("99.50"), "USD", "buyer@example.com")
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/abc", auth.AuthorizationURL)
	require.Contains(t, client.last.Reference, "CUST-7-")
	require.Equal(t, "USD", client.last.Currency)
}

func TestClientInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer "+secret, r.Header.Get("Authorization"))
		var input InitializeInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": Authorization{
				AuthorizationURL: "https://pay.example/xyz",
				AccessCode:       "xyz",
				Reference:        input.Reference,
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, secret)
	auth, err := client.Initialize(context.Background(), InitializeInput{
		Amount: decimal.RequireFromString("10.00"), Currency: "USD", Reference: "ref-1", Email: "a@b.c",
	})
	require.NoError(t, err)
	require.Equal(t, "ref-1", auth.Reference)
	require.Equal(t, "https://pay.example/xyz", auth.AuthorizationURL)
}
