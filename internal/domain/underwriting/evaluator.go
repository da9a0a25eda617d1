package underwriting

import (
	"strings"

	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// Evaluate runs the fixed-priority rule chain and returns on the first
// failure, so the reported reason code is always the first violated
// rule. Passing every check approves the claim for its expected allowed
// amount.
func Evaluate(
	claim *entity.Claim,
	practice *entity.Practice,
	policy Policy,
	remainingExposureLimitCents int64,
	poolAvailableCapitalCents int64,
) Decision {
	payer := strings.TrimSpace(claim.Payer)

	if !policy.ApprovedPayers[payer] {
		return declined(ReasonPayerNotApproved)
	}

	payerLower := strings.ToLower(payer)
	for _, kw := range policy.ExcludedPlanKeywords {
		if strings.Contains(payerLower, strings.ToLower(kw)) {
			return declined(ReasonPayerPlanNotSupported)
		}
	}

	for _, code := range claim.ProcedureCodeList() {
		if !policy.AllowedProcedures[code] {
			return declined(ReasonProcedureNotAllowed)
		}

		// Unknown history is treated the same as a weak one.
		payRate, ok := policy.ProcedureHistoricalPayRate[code]
		if !ok || payRate < policy.ProcedurePayRateThreshold {
			return declined(ReasonProcedurePayRateBelowMin)
		}
	}

	if practice.TenureMonths < policy.MinPracticeTenureMonths {
		return declined(ReasonPracticeTenureTooLow)
	}

	if practice.HistoricalCleanClaimRate < policy.MinPracticeCleanClaimRate {
		return declined(ReasonPracticeCleanClaimRateTooLow)
	}

	if claim.ExpectedAllowedAmountCents > remainingExposureLimitCents {
		return declined(ReasonExceedsExposureLimit)
	}

	fundedAmount := claim.ExpectedAllowedAmountCents

	if fundedAmount > poolAvailableCapitalCents {
		return declined(ReasonInsufficientPoolLiquidity)
	}

	return Decision{Approved: true, FundedAmountCents: fundedAmount}
}
