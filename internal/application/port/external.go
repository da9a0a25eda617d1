package port

import "context"

// PaymentResultStatus is the provider-reported outcome of a payment.
type PaymentResultStatus string

const (
	PaymentResultSuccess PaymentResultStatus = "SUCCESS"
	PaymentResultFailed  PaymentResultStatus = "FAILED"
	PaymentResultPending PaymentResultStatus = "PENDING"
)

// PaymentResult is what a provider reports back for a send or status
// check.
type PaymentResult struct {
	Status            PaymentResultStatus
	ProviderReference string
	FailureCode       string
	FailureMessage    string
}

// SendPaymentRequest carries everything a provider needs to move money.
// The idempotency key guarantees a retried send cannot double-pay.
type SendPaymentRequest struct {
	PaymentIntentID     string
	AmountCents         int64
	Currency            string
	RecipientPracticeID int64
	IdempotencyKey      string
}

// PaymentProvider is the external payment network boundary.
type PaymentProvider interface {
	SendPayment(ctx context.Context, req SendPaymentRequest) (PaymentResult, error)
	CheckPaymentStatus(ctx context.Context, providerReference string) (PaymentResult, error)
}

// AuditEvent is a business event recorded for the audit trail.
type AuditEvent struct {
	ClaimID    int64             `json:"claim_id,omitempty"`
	Action     string            `json:"action"`
	FromStatus string            `json:"from_status,omitempty"`
	ToStatus   string            `json:"to_status,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditLogger records business events. It is fire-and-forget: failures
// are logged, never propagated, and it takes no part in transactional
// invariants.
type AuditLogger interface {
	LogEvent(ctx context.Context, event AuditEvent)
}
