package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
)

func sendRequest(key string) port.SendPaymentRequest {
	return port.SendPaymentRequest{
		PaymentIntentID:     "intent-1",
		AmountCents:         40_000,
		Currency:            "USD",
		RecipientPracticeID: 5,
		IdempotencyKey:      key,
	}
}

func TestSendPaymentDeterministicSuccess(t *testing.T) {
	p := NewSimulatedProvider(SimulatedConfig{Deterministic: true}, zap.NewNop())

	result, err := p.SendPayment(context.Background(), sendRequest("key-1"))
	require.NoError(t, err)
	assert.Equal(t, port.PaymentResultSuccess, result.Status)
	assert.True(t, strings.HasPrefix(result.ProviderReference, "SIM-"))
	assert.Len(t, result.ProviderReference, 16)
}

func TestSendPaymentForceFail(t *testing.T) {
	p := NewSimulatedProvider(SimulatedConfig{Deterministic: true, ForceFail: true}, zap.NewNop())

	result, err := p.SendPayment(context.Background(), sendRequest("key-1"))
	require.NoError(t, err)
	assert.Equal(t, port.PaymentResultFailed, result.Status)
	assert.NotEmpty(t, result.FailureCode)
	assert.NotEmpty(t, result.FailureMessage)

	known := false
	for _, f := range failureCatalogue {
		if f.code == result.FailureCode {
			known = true
		}
	}
	assert.True(t, known, "failure code %s not in catalogue", result.FailureCode)
}

func TestSendPaymentIdempotencyCache(t *testing.T) {
	p := NewSimulatedProvider(SimulatedConfig{Deterministic: true}, zap.NewNop())
	ctx := context.Background()

	first, err := p.SendPayment(ctx, sendRequest("key-1"))
	require.NoError(t, err)
	second, err := p.SendPayment(ctx, sendRequest("key-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ProviderReference, second.ProviderReference)

	other, err := p.SendPayment(ctx, sendRequest("key-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ProviderReference, other.ProviderReference)
}

func TestCacheIsInstanceScoped(t *testing.T) {
	ctx := context.Background()

	a := NewSimulatedProvider(SimulatedConfig{Deterministic: true}, zap.NewNop())
	b := NewSimulatedProvider(SimulatedConfig{Deterministic: true, ForceFail: true}, zap.NewNop())

	ra, err := a.SendPayment(ctx, sendRequest("shared-key"))
	require.NoError(t, err)
	rb, err := b.SendPayment(ctx, sendRequest("shared-key"))
	require.NoError(t, err)

	// Two instances must not observe each other's results.
	assert.Equal(t, port.PaymentResultSuccess, ra.Status)
	assert.Equal(t, port.PaymentResultFailed, rb.Status)
}

func TestCheckPaymentStatus(t *testing.T) {
	p := NewSimulatedProvider(SimulatedConfig{Deterministic: true}, zap.NewNop())
	ctx := context.Background()

	sent, err := p.SendPayment(ctx, sendRequest("key-1"))
	require.NoError(t, err)

	checked, err := p.CheckPaymentStatus(ctx, sent.ProviderReference)
	require.NoError(t, err)
	assert.Equal(t, sent.Status, checked.Status)

	unknown, err := p.CheckPaymentStatus(ctx, "SIM-UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, port.PaymentResultSuccess, unknown.Status)
}

func TestReset(t *testing.T) {
	p := NewSimulatedProvider(SimulatedConfig{Deterministic: true, ForceFail: true}, zap.NewNop())
	ctx := context.Background()

	failed, err := p.SendPayment(ctx, sendRequest("key-1"))
	require.NoError(t, err)
	require.Equal(t, port.PaymentResultFailed, failed.Status)

	p.Reset()
	p.cfg.ForceFail = false

	retried, err := p.SendPayment(ctx, sendRequest("key-1"))
	require.NoError(t, err)
	assert.Equal(t, port.PaymentResultSuccess, retried.Status)
}

func TestSendPaymentHonorsContext(t *testing.T) {
	p := NewSimulatedProvider(SimulatedConfig{Deterministic: true}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.SendPayment(ctx, sendRequest("key-1"))
	assert.ErrorIs(t, err, context.Canceled)
}
