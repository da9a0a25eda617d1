package entity

import "time"

// PracticeStatus marks whether a practice can submit claims.
type PracticeStatus string

const (
	PracticeActive   PracticeStatus = "ACTIVE"
	PracticeInactive PracticeStatus = "INACTIVE"
)

// Practice is a tenant: a dental practice whose claims the pool funds.
// CurrentExposureCents is mutated only by the fund/settle operations and
// must stay within [0, MaxExposureLimitCents] outside an in-flight
// transaction.
type Practice struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Status PracticeStatus `json:"status"`

	// Underwriting inputs.
	TenureMonths             int     `json:"tenure_months"`
	HistoricalCleanClaimRate float64 `json:"historical_clean_claim_rate"`

	// Kept as a simple "Payer:share;Payer:share" blob; auditable and
	// cheap to seed. Normalize later if reporting needs it.
	PayerMix string `json:"payer_mix"`

	// Risk controls.
	MaxExposureLimitCents int64 `json:"max_exposure_limit_cents"`
	CurrentExposureCents  int64 `json:"current_exposure_cents"`

	CreatedAt time.Time `json:"created_at"`
}

// RemainingExposureLimitCents is the headroom left before the practice
// hits its exposure cap, floored at zero.
func (p *Practice) RemainingExposureLimitCents() int64 {
	remaining := p.MaxExposureLimitCents - p.CurrentExposureCents
	if remaining < 0 {
		return 0
	}
	return remaining
}
