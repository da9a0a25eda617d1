package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// PaymentProviderName identifies which provider carries an intent.
type PaymentProviderName string

const (
	ProviderSimulated PaymentProviderName = "SIMULATED"
	ProviderBankStub  PaymentProviderName = "BANK_STUB"
)

// PaymentIntent is one attempt to pay out a specific claim. At most one
// intent exists per claim (unique claim_id plus an idempotency key
// derived from it); retries delete the failed intent and create a fresh
// one rather than resurrecting it.
type PaymentIntent struct {
	ID         uuid.UUID `json:"id"`
	ClaimID    int64     `json:"claim_id"`
	PracticeID int64     `json:"practice_id"`

	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`

	Status         lifecycle.PaymentStatus `json:"status"`
	IdempotencyKey string                  `json:"idempotency_key"`

	Provider          PaymentProviderName `json:"provider"`
	ProviderReference string              `json:"provider_reference,omitempty"`

	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentIdempotencyKey derives the one-intent-per-claim key. The v1
// suffix versions the key scheme, not the intent.
func PaymentIdempotencyKey(claimID int64) string {
	return fmt.Sprintf("claim:%d:payment:v1", claimID)
}
