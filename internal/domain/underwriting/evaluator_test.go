package underwriting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

func testPolicy() Policy {
	return Policy{
		ApprovedPayers: map[string]bool{
			"Aetna":            true,
			"UnitedHealthcare": true,
			"BCBS":             true,
			"Cigna":            true,
		},
		ExcludedPlanKeywords:      []string{"medicaid", "capitation", "carve-out"},
		AllowedProcedures:         map[string]bool{"D0120": true, "D1110": true, "D2740": true},
		ProcedurePayRateThreshold: 0.90,
		MinPracticeTenureMonths:   12,
		MinPracticeCleanClaimRate: 0.90,
		ProcedureHistoricalPayRate: map[string]float64{
			"D0120": 0.95,
			"D1110": 0.93,
			"D2740": 0.85,
		},
	}
}

func testPractice() *entity.Practice {
	return &entity.Practice{
		ID:                       1,
		Name:                     "Sunrise Family Dental",
		TenureMonths:             24,
		HistoricalCleanClaimRate: 0.96,
		MaxExposureLimitCents:    100_000,
		CurrentExposureCents:     0,
	}
}

func testClaim() *entity.Claim {
	return &entity.Claim{
		ID:                         1,
		PracticeID:                 1,
		Payer:                      "Aetna",
		ProcedureCodes:             "D0120",
		BilledAmountCents:          25_000,
		ExpectedAllowedAmountCents: 18_000,
	}
}

func TestEvaluate_Approves(t *testing.T) {
	decision := Evaluate(testClaim(), testPractice(), testPolicy(), 100_000, 1_000_000)

	assert.True(t, decision.Approved)
	assert.Equal(t, int64(18_000), decision.FundedAmountCents)
	assert.Empty(t, decision.ReasonCode)
}

func TestEvaluate_RuleOrder(t *testing.T) {
	tests := []struct {
		name              string
		mutate            func(c *entity.Claim, p *entity.Practice)
		remainingExposure int64
		poolAvailable     int64
		wantReason        string
	}{
		{
			name:              "payer not approved",
			mutate:            func(c *entity.Claim, p *entity.Practice) { c.Payer = "Humana" },
			remainingExposure: 100_000,
			poolAvailable:     1_000_000,
			wantReason:        ReasonPayerNotApproved,
		},
		{
			name: "excluded plan keyword, case-insensitive",
			mutate: func(c *entity.Claim, p *entity.Practice) {
				c.Payer = "Aetna Medicaid HMO"
			},
			remainingExposure: 100_000,
			poolAvailable:     1_000_000,
			// Not in the approved set either; approval check fires first.
			wantReason: ReasonPayerNotApproved,
		},
		{
			name:              "procedure not allowed",
			mutate:            func(c *entity.Claim, p *entity.Practice) { c.ProcedureCodes = "D0120;D9999" },
			remainingExposure: 100_000,
			poolAvailable:     1_000_000,
			wantReason:        ReasonProcedureNotAllowed,
		},
		{
			name:              "procedure pay rate below threshold",
			mutate:            func(c *entity.Claim, p *entity.Practice) { c.ProcedureCodes = "D2740" },
			remainingExposure: 100_000,
			poolAvailable:     1_000_000,
			wantReason:        ReasonProcedurePayRateBelowMin,
		},
		{
			name:              "tenure too low",
			mutate:            func(c *entity.Claim, p *entity.Practice) { p.TenureMonths = 6 },
			remainingExposure: 100_000,
			poolAvailable:     1_000_000,
			wantReason:        ReasonPracticeTenureTooLow,
		},
		{
			name:              "clean claim rate too low",
			mutate:            func(c *entity.Claim, p *entity.Practice) { p.HistoricalCleanClaimRate = 0.80 },
			remainingExposure: 100_000,
			poolAvailable:     1_000_000,
			wantReason:        ReasonPracticeCleanClaimRateTooLow,
		},
		{
			name:              "exceeds practice exposure limit",
			mutate:            func(c *entity.Claim, p *entity.Practice) {},
			remainingExposure: 10_000,
			poolAvailable:     1_000_000,
			wantReason:        ReasonExceedsExposureLimit,
		},
		{
			name:              "insufficient pool liquidity",
			mutate:            func(c *entity.Claim, p *entity.Practice) {},
			remainingExposure: 100_000,
			poolAvailable:     5_000,
			wantReason:        ReasonInsufficientPoolLiquidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := testClaim()
			practice := testPractice()
			tt.mutate(claim, practice)

			decision := Evaluate(claim, practice, testPolicy(), tt.remainingExposure, tt.poolAvailable)

			assert.False(t, decision.Approved)
			assert.Equal(t, tt.wantReason, decision.ReasonCode)
			assert.Zero(t, decision.FundedAmountCents)
		})
	}
}

func TestEvaluate_ExcludedKeywordOnApprovedPayer(t *testing.T) {
	policy := testPolicy()
	policy.ApprovedPayers["Cigna Capitation Plan"] = true

	claim := testClaim()
	claim.Payer = "Cigna Capitation Plan"

	decision := Evaluate(claim, testPractice(), policy, 100_000, 1_000_000)

	assert.False(t, decision.Approved)
	assert.Equal(t, ReasonPayerPlanNotSupported, decision.ReasonCode)
}

func TestEvaluate_UnknownPayRateDeclines(t *testing.T) {
	policy := testPolicy()
	policy.AllowedProcedures["D4910"] = true // allowed but no pay-rate history

	claim := testClaim()
	claim.ProcedureCodes = "D4910"

	decision := Evaluate(claim, testPractice(), policy, 100_000, 1_000_000)

	assert.False(t, decision.Approved)
	assert.Equal(t, ReasonProcedurePayRateBelowMin, decision.ReasonCode)
}

func TestEvaluate_MultipleProcedures(t *testing.T) {
	claim := testClaim()
	claim.ProcedureCodes = "D0120; D1110"

	decision := Evaluate(claim, testPractice(), testPolicy(), 100_000, 1_000_000)

	assert.True(t, decision.Approved)
}

func TestEvaluate_ExactBoundaries(t *testing.T) {
	claim := testClaim()
	claim.ExpectedAllowedAmountCents = 100_000

	// Funding the full remaining exposure and the full pool is allowed.
	decision := Evaluate(claim, testPractice(), testPolicy(), 100_000, 100_000)

	assert.True(t, decision.Approved)
	assert.Equal(t, int64(100_000), decision.FundedAmountCents)
}
