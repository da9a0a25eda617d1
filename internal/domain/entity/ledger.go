package entity

import (
	"time"

	"github.com/google/uuid"
)

// LedgerAccountType names the bookkeeping buckets of the double-entry
// ledger.
type LedgerAccountType string

const (
	AccountCapitalCash     LedgerAccountType = "CAPITAL_CASH"
	AccountPaymentClearing LedgerAccountType = "PAYMENT_CLEARING"
	AccountPracticePayable LedgerAccountType = "PRACTICE_PAYABLE"
)

// EntryDirection is one side of a double-entry posting.
type EntryDirection string

const (
	DirectionDebit  EntryDirection = "DEBIT"
	DirectionCredit EntryDirection = "CREDIT"
)

// EntryStatus is the posting state of a ledger entry. Entries never
// mutate except for this status flip; reversal is a status change, not a
// delete.
type EntryStatus string

const (
	EntryPending  EntryStatus = "PENDING"
	EntryPosted   EntryStatus = "POSTED"
	EntryReversed EntryStatus = "REVERSED"
)

// EntryRelatedType points a ledger entry at the business event it
// implements.
type EntryRelatedType string

const (
	RelatedPaymentIntent       EntryRelatedType = "PAYMENT_INTENT"
	RelatedCapitalContribution EntryRelatedType = "CAPITAL_CONTRIBUTION"
	RelatedAdjustment          EntryRelatedType = "ADJUSTMENT"
)

// LedgerAccount is a named bucket of money, unique per
// (type, practice, currency). Balances are derived by summing signed
// entries, never stored.
type LedgerAccount struct {
	ID          uuid.UUID         `json:"id"`
	AccountType LedgerAccountType `json:"account_type"`
	Currency    string            `json:"currency"`

	// Nil for pool-level accounts (CAPITAL_CASH, PAYMENT_CLEARING); set
	// for PRACTICE_PAYABLE.
	PracticeID *int64 `json:"practice_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one half of a double-entry posting. Entries are created
// in matched debit+credit pairs and are never physically deleted. The
// idempotency key is globally unique and is the sole retry/concurrency
// safety mechanism.
type LedgerEntry struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	RelatedType EntryRelatedType `json:"related_type"`
	RelatedID   uuid.UUID        `json:"related_id"`
	ClaimID     *int64           `json:"claim_id,omitempty"`

	Direction   EntryDirection `json:"direction"`
	AmountCents int64          `json:"amount_cents"`
	Status      EntryStatus    `json:"status"`

	IdempotencyKey string `json:"idempotency_key"`

	CreatedAt time.Time `json:"created_at"`
}

// LedgerSummary is a point-in-time view of the pool-level books.
type LedgerSummary struct {
	Currency                  string `json:"currency"`
	CapitalCashCents          int64  `json:"capital_cash_cents"`
	PaymentClearingCents      int64  `json:"payment_clearing_cents"`
	TotalPracticePayableCents int64  `json:"total_practice_payable_cents"`
}
