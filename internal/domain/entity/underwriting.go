package entity

import "time"

// DecisionType is the three-way outcome of an underwriting run.
type DecisionType string

const (
	DecisionApprove     DecisionType = "APPROVE"
	DecisionDecline     DecisionType = "DECLINE"
	DecisionNeedsReview DecisionType = "NEEDS_REVIEW"
)

// UnderwritingRecord is the stored outcome of one underwriting run
// against a claim. Records accumulate; they are never updated.
type UnderwritingRecord struct {
	ID      int64 `json:"id"`
	ClaimID int64 `json:"claim_id"`

	Decision          DecisionType `json:"decision"`
	FundedAmountCents int64        `json:"funded_amount_cents"`
	ReasonCode        string       `json:"reason_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
