package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

func newPoolFixture() (*capitalPoolService, *mockPoolRepo, *mockClaimRepo, *mockPracticeRepo, *mockAuditLogger) {
	pool := &entity.CapitalPool{
		ID:                    "pool-1",
		TotalCapitalCents:     1_000_000,
		AvailableCapitalCents: 1_000_000,
	}
	practice := &entity.Practice{
		ID:                    1,
		Name:                  "Sunrise Dental",
		MaxExposureLimitCents: 100_000,
	}
	poolRepo := newMockPoolRepo(pool)
	claimRepo := newMockClaimRepo()
	practiceRepo := newMockPracticeRepo(practice)
	audit := &mockAuditLogger{}

	svc := NewCapitalPoolService(poolRepo, claimRepo, practiceRepo, &mockTxManager{}, audit, zap.NewNop()).(*capitalPoolService)
	return svc, poolRepo, claimRepo, practiceRepo, audit
}

func underwritingClaim(t *testing.T, claimRepo *mockClaimRepo, amountCents int64) *entity.Claim {
	t.Helper()
	claim := &entity.Claim{
		PracticeID:                 1,
		PatientName:                "Jane Roe",
		Payer:                      "Delta Dental PPO",
		ExpectedAllowedAmountCents: amountCents,
		Status:                     lifecycle.ClaimApproved,
		FundingStatus:              lifecycle.FundingUnderwriting,
		SubmissionDate:             time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	if err := claimRepo.Create(context.Background(), claim); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	return claim
}

func TestFundClaim(t *testing.T) {
	svc, poolRepo, claimRepo, practiceRepo, audit := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)

	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 80_000); err != nil {
		t.Fatalf("FundClaim failed: %v", err)
	}

	pool := poolRepo.pools["pool-1"]
	if pool.AvailableCapitalCents != 920_000 {
		t.Errorf("available capital = %d, want 920000", pool.AvailableCapitalCents)
	}
	if pool.CapitalAllocatedCents != 80_000 {
		t.Errorf("capital allocated = %d, want 80000", pool.CapitalAllocatedCents)
	}
	if pool.CapitalPendingSettlementCents != 80_000 {
		t.Errorf("capital pending settlement = %d, want 80000", pool.CapitalPendingSettlementCents)
	}
	practice, _ := practiceRepo.GetByID(context.Background(), 1)
	if practice.CurrentExposureCents != 80_000 {
		t.Errorf("practice exposure = %d, want 80000", practice.CurrentExposureCents)
	}
	if claim.FundingStatus != lifecycle.FundingFunded {
		t.Errorf("funding status = %s, want funded", claim.FundingStatus)
	}
	if claim.FundedAmountCents != 80_000 {
		t.Errorf("funded amount = %d, want 80000", claim.FundedAmountCents)
	}
	if len(audit.events) != 1 || audit.events[0].Action != "CLAIM_FUNDED" {
		t.Errorf("expected one CLAIM_FUNDED audit event, got %v", audit.events)
	}
}

func TestFundClaimExceedsExposureLimit(t *testing.T) {
	svc, poolRepo, claimRepo, practiceRepo, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 150_000)

	err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 150_000)
	if !errors.Is(err, ErrInsufficientExposure) {
		t.Fatalf("expected ErrInsufficientExposure, got %v", err)
	}
	if !errors.Is(err, ErrLedger) {
		t.Errorf("exposure error should be in the ErrLedger class")
	}

	// Nothing moved.
	pool := poolRepo.pools["pool-1"]
	if pool.AvailableCapitalCents != 1_000_000 || pool.CapitalAllocatedCents != 0 {
		t.Errorf("pool mutated on rejected funding: %+v", pool)
	}
	practice, _ := practiceRepo.GetByID(context.Background(), 1)
	if practice.CurrentExposureCents != 0 {
		t.Errorf("practice exposure mutated on rejected funding: %d", practice.CurrentExposureCents)
	}
	if claim.FundingStatus != lifecycle.FundingUnderwriting {
		t.Errorf("claim status mutated on rejected funding: %s", claim.FundingStatus)
	}
}

func TestFundClaimExceedsPoolCapital(t *testing.T) {
	svc, poolRepo, claimRepo, practiceRepo, _ := newPoolFixture()
	poolRepo.pools["pool-1"].TotalCapitalCents = 50_000
	poolRepo.pools["pool-1"].AvailableCapitalCents = 50_000
	practiceRepo.practices[1].MaxExposureLimitCents = 500_000
	claim := underwritingClaim(t, claimRepo, 80_000)

	err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 80_000)
	if !errors.Is(err, ErrInsufficientCapital) {
		t.Fatalf("expected ErrInsufficientCapital, got %v", err)
	}
}

func TestFundClaimRejectsDoubleFunding(t *testing.T) {
	svc, _, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 30_000)

	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 30_000); err != nil {
		t.Fatalf("first funding failed: %v", err)
	}

	err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 30_000)
	if !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger on double funding, got %v", err)
	}
	var transErr *lifecycle.InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Errorf("double funding should wrap the transition error, got %v", err)
	}
}

func TestFundClaimRequiresPositiveAmount(t *testing.T) {
	svc, _, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 10_000)

	for _, amount := range []int64{0, -5_000} {
		if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, amount); !errors.Is(err, ErrLedger) {
			t.Errorf("amount %d: expected ErrLedger, got %v", amount, err)
		}
	}
}

func TestSettleClaimFullReimbursement(t *testing.T) {
	svc, poolRepo, claimRepo, practiceRepo, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)
	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 80_000); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	settleDate := claim.SubmissionDate.AddDate(0, 0, 45)
	if err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, settleDate, 80_000); err != nil {
		t.Fatalf("SettleClaim failed: %v", err)
	}

	if claim.FundingStatus != lifecycle.FundingReimbursed {
		t.Errorf("funding status = %s, want reimbursed", claim.FundingStatus)
	}
	pool := poolRepo.pools["pool-1"]
	if pool.CapitalPendingSettlementCents != 0 {
		t.Errorf("pending settlement = %d, want 0", pool.CapitalPendingSettlementCents)
	}
	if pool.CapitalAllocatedCents != 0 {
		t.Errorf("allocated = %d, want 0", pool.CapitalAllocatedCents)
	}
	if pool.AvailableCapitalCents != 1_000_000 {
		t.Errorf("available = %d, want 1000000", pool.AvailableCapitalCents)
	}
	if pool.CapitalReturnedCents != 80_000 {
		t.Errorf("returned = %d, want 80000", pool.CapitalReturnedCents)
	}
	if pool.NumSettledClaims != 1 || pool.TotalDaysOutstanding != 45 {
		t.Errorf("duration aggregates = (%d claims, %d days), want (1, 45)",
			pool.NumSettledClaims, pool.TotalDaysOutstanding)
	}
	practice, _ := practiceRepo.GetByID(context.Background(), 1)
	if practice.CurrentExposureCents != 0 {
		t.Errorf("practice exposure = %d, want 0", practice.CurrentExposureCents)
	}
}

func TestSettleClaimShortPaymentIsException(t *testing.T) {
	svc, poolRepo, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)
	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 80_000); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	settleDate := claim.SubmissionDate.AddDate(0, 0, 30)
	if err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, settleDate, 60_000); err != nil {
		t.Fatalf("SettleClaim failed: %v", err)
	}

	if claim.FundingStatus != lifecycle.FundingException {
		t.Errorf("funding status = %s, want exception", claim.FundingStatus)
	}
	pool := poolRepo.pools["pool-1"]
	// Only what the payer actually paid comes back; the 20_000 shortfall
	// is permanently lost to the pool.
	if pool.AvailableCapitalCents != 980_000 {
		t.Errorf("available = %d, want 980000", pool.AvailableCapitalCents)
	}
	if pool.CapitalReturnedCents != 60_000 {
		t.Errorf("returned = %d, want 60000", pool.CapitalReturnedCents)
	}
	if pool.CapitalPendingSettlementCents != 0 || pool.CapitalAllocatedCents != 0 {
		t.Errorf("in-flight counters not cleared: %+v", pool)
	}
}

func TestSettleClaimCapsReturnAtPrincipal(t *testing.T) {
	svc, poolRepo, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)
	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 80_000); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	// Payer overpays; the excess is dropped, not booked.
	settleDate := claim.SubmissionDate.AddDate(0, 0, 10)
	if err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, settleDate, 95_000); err != nil {
		t.Fatalf("SettleClaim failed: %v", err)
	}

	pool := poolRepo.pools["pool-1"]
	if pool.AvailableCapitalCents != 1_000_000 {
		t.Errorf("available = %d, want 1000000", pool.AvailableCapitalCents)
	}
	if pool.CapitalReturnedCents != 80_000 {
		t.Errorf("returned = %d, want 80000 (capped at principal)", pool.CapitalReturnedCents)
	}
	if claim.FundingStatus != lifecycle.FundingReimbursed {
		t.Errorf("funding status = %s, want reimbursed", claim.FundingStatus)
	}
}

func TestSettleClaimNotFunded(t *testing.T) {
	svc, _, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)

	err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, time.Now(), 80_000)
	if !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger settling an unfunded claim, got %v", err)
	}
}

func TestSettleClaimZeroPrincipalIsInvariantViolation(t *testing.T) {
	svc, _, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)
	// Corrupt state: funded status without a recorded principal.
	claim.FundingStatus = lifecycle.FundingFunded
	claim.FundedAmountCents = 0

	err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, time.Now(), 0)
	if !IsInvariantViolation(err) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
	if errors.Is(err, ErrLedger) {
		t.Errorf("invariant violations must not be in the recoverable ErrLedger class")
	}
}

func TestSettleClaimPrincipalExceedsPendingIsInvariantViolation(t *testing.T) {
	svc, poolRepo, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 80_000)
	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 80_000); err != nil {
		t.Fatalf("funding failed: %v", err)
	}
	// Corrupt the pool behind the service's back.
	poolRepo.pools["pool-1"].CapitalPendingSettlementCents = 10_000

	err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, time.Now(), 80_000)
	if !IsInvariantViolation(err) {
		t.Fatalf("expected InvariantViolationError, got %v", err)
	}
}

func TestSettleClaimSameDaySettlement(t *testing.T) {
	svc, poolRepo, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 20_000)
	if err := svc.FundClaim(context.Background(), "pool-1", claim.ID, 20_000); err != nil {
		t.Fatalf("funding failed: %v", err)
	}

	if err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, claim.SubmissionDate, 20_000); err != nil {
		t.Fatalf("SettleClaim failed: %v", err)
	}
	if got := poolRepo.pools["pool-1"].TotalDaysOutstanding; got != 0 {
		t.Errorf("days outstanding = %d, want 0", got)
	}
}

func TestSettleClaimRejectsNegativeAmount(t *testing.T) {
	svc, _, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 20_000)

	if err := svc.SettleClaim(context.Background(), "pool-1", claim.ID, time.Now(), -1); !errors.Is(err, ErrLedger) {
		t.Fatalf("expected ErrLedger for negative settlement, got %v", err)
	}
}

func TestInitPoolIsIdempotent(t *testing.T) {
	svc, poolRepo, _, _, _ := newPoolFixture()

	first, err := svc.InitPool(context.Background(), "pool-2", 500_000)
	if err != nil {
		t.Fatalf("InitPool failed: %v", err)
	}
	if first.AvailableCapitalCents != 500_000 {
		t.Errorf("available = %d, want 500000", first.AvailableCapitalCents)
	}

	poolRepo.pools["pool-2"].AvailableCapitalCents = 400_000

	second, err := svc.InitPool(context.Background(), "pool-2", 999_999)
	if err != nil {
		t.Fatalf("second InitPool failed: %v", err)
	}
	if second.AvailableCapitalCents != 400_000 || second.TotalCapitalCents != 500_000 {
		t.Errorf("re-init must return the existing pool untouched, got %+v", second)
	}
}

func TestFundClaimUnknownPool(t *testing.T) {
	svc, _, claimRepo, _, _ := newPoolFixture()
	claim := underwritingClaim(t, claimRepo, 10_000)

	if err := svc.FundClaim(context.Background(), "nope", claim.ID, 10_000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
