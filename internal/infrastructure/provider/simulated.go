// Package provider holds payment network implementations of the
// port.PaymentProvider boundary.
package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
)

// failureCatalogue is the fixed set of outcomes a simulated failure can
// report.
var failureCatalogue = []struct {
	code    string
	message string
}{
	{"INSUFFICIENT_FUNDS", "Recipient account has insufficient funds"},
	{"ACCOUNT_CLOSED", "Recipient account is closed"},
	{"INVALID_ACCOUNT", "Invalid recipient account number"},
	{"NETWORK_ERROR", "Network timeout during payment processing"},
	{"COMPLIANCE_HOLD", "Payment held for compliance review"},
}

// SimulatedConfig controls the simulated provider's behavior.
type SimulatedConfig struct {
	// FailureRate is the probability a send fails, ignored when
	// Deterministic is set.
	FailureRate float64

	// Deterministic disables the random failure roll so tests and demos
	// get repeatable outcomes.
	Deterministic bool

	// ForceFail makes every new send fail regardless of the other
	// settings.
	ForceFail bool
}

// SimulatedProvider is an in-process stand-in for a payment network.
// Results are cached per instance keyed by idempotency key, so a
// retried send returns the original outcome instead of moving money
// twice.
type SimulatedProvider struct {
	cfg    SimulatedConfig
	logger *zap.Logger

	mu       sync.Mutex
	payments map[string]port.PaymentResult
}

// NewSimulatedProvider creates a new SimulatedProvider.
func NewSimulatedProvider(cfg SimulatedConfig, logger *zap.Logger) *SimulatedProvider {
	return &SimulatedProvider{
		cfg:      cfg,
		logger:   logger,
		payments: make(map[string]port.PaymentResult),
	}
}

// SendPayment simulates moving money. The first call for an idempotency
// key decides the outcome; every repeat returns the cached result.
func (p *SimulatedProvider) SendPayment(ctx context.Context, req port.SendPaymentRequest) (port.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return port.PaymentResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cached, ok := p.payments[req.IdempotencyKey]; ok {
		p.logger.Info("Returning cached payment result",
			zap.String("idempotency_key", req.IdempotencyKey))
		return cached, nil
	}

	reference := "SIM-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])

	shouldFail := p.cfg.ForceFail
	if !shouldFail && !p.cfg.Deterministic {
		shouldFail = rand.Float64() < p.cfg.FailureRate
	}

	var result port.PaymentResult
	if shouldFail {
		failure := failureCatalogue[rand.Intn(len(failureCatalogue))]
		result = port.PaymentResult{
			Status:            port.PaymentResultFailed,
			ProviderReference: reference,
			FailureCode:       failure.code,
			FailureMessage:    failure.message,
		}
		p.logger.Warn("Simulated payment failed",
			zap.String("payment_intent_id", req.PaymentIntentID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.String("failure_code", failure.code))
	} else {
		result = port.PaymentResult{
			Status:            port.PaymentResultSuccess,
			ProviderReference: reference,
		}
		p.logger.Info("Simulated payment succeeded",
			zap.String("payment_intent_id", req.PaymentIntentID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.String("provider_reference", reference))
	}

	p.payments[req.IdempotencyKey] = result
	return result, nil
}

// CheckPaymentStatus looks up a previously issued reference. An unknown
// reference reports SUCCESS, mirroring a network that only retains
// recent history.
func (p *SimulatedProvider) CheckPaymentStatus(ctx context.Context, providerReference string) (port.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return port.PaymentResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, result := range p.payments {
		if result.ProviderReference == providerReference {
			return result, nil
		}
	}
	return port.PaymentResult{
		Status:            port.PaymentResultSuccess,
		ProviderReference: providerReference,
	}, nil
}

// Reset clears the cached results.
func (p *SimulatedProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = make(map[string]port.PaymentResult)
	p.logger.Info("Simulated provider state reset")
}

var _ port.PaymentProvider = (*SimulatedProvider)(nil)

// String names the provider for logs.
func (p *SimulatedProvider) String() string {
	return fmt.Sprintf("SimulatedProvider(failure_rate=%.2f, deterministic=%t, force_fail=%t)",
		p.cfg.FailureRate, p.cfg.Deterministic, p.cfg.ForceFail)
}
