// Package underwriting holds the deterministic, rules-only claim
// evaluation. It has no side effects and no persistence; callers load
// the inputs and act on the decision.
package underwriting

// Decline reason codes, machine-readable and stable. The evaluator
// always reports the first violated rule, never an aggregate.
const (
	ReasonPayerNotApproved             = "PAYER_NOT_APPROVED"
	ReasonPayerPlanNotSupported        = "PAYER_PLAN_NOT_SUPPORTED"
	ReasonProcedureNotAllowed          = "PROCEDURE_NOT_ALLOWED"
	ReasonProcedurePayRateBelowMin     = "PROCEDURE_PAY_RATE_BELOW_THRESHOLD"
	ReasonPracticeTenureTooLow         = "PRACTICE_TENURE_TOO_LOW"
	ReasonPracticeCleanClaimRateTooLow = "PRACTICE_CLEAN_CLAIM_HISTORY_TOO_LOW"
	ReasonExceedsExposureLimit         = "EXCEEDS_PRACTICE_EXPOSURE_LIMIT"
	ReasonInsufficientPoolLiquidity    = "INSUFFICIENT_POOL_LIQUIDITY"
)

// Policy is the immutable rule configuration for an underwriting run.
// Rule content is business configuration; the evaluation order is not.
type Policy struct {
	ApprovedPayers       map[string]bool
	ExcludedPlanKeywords []string
	AllowedProcedures    map[string]bool

	ProcedurePayRateThreshold float64

	MinPracticeTenureMonths    int
	MinPracticeCleanClaimRate  float64
	ProcedureHistoricalPayRate map[string]float64
}

// Decision is the outcome of evaluating one claim against a policy.
type Decision struct {
	Approved         bool   `json:"approved"`
	FundedAmountCents int64 `json:"funded_amount_cents"`
	ReasonCode       string `json:"reason_code,omitempty"`
}

func declined(reason string) Decision {
	return Decision{Approved: false, ReasonCode: reason}
}
