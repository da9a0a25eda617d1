package entity

import "time"

// CapitalPool is the shared funding source for claim advances. All
// counters are cents. The pool is mutated only inside the fund/settle
// atomic operations, which hold these invariants:
//
//	available + allocated <= total
//	pending_settlement <= allocated
//	every counter >= 0
type CapitalPool struct {
	ID string `json:"id"`

	TotalCapitalCents     int64 `json:"total_capital_cents"`
	AvailableCapitalCents int64 `json:"available_capital_cents"`

	CapitalAllocatedCents         int64 `json:"capital_allocated_cents"`
	CapitalPendingSettlementCents int64 `json:"capital_pending_settlement_cents"`
	CapitalReturnedCents          int64 `json:"capital_returned_cents"`

	// Rolling duration aggregates across settled claims.
	TotalDaysOutstanding int64 `json:"total_days_outstanding"`
	NumSettledClaims     int64 `json:"num_settled_claims"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
