package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// CapitalPoolService moves money between the shared capital pool and a
// practice's exposure counter in lock-step with the claim funding
// lifecycle. Fund and settle are single atomic units: all reads happen
// at the start, all writes before commit, and nothing partial is ever
// visible outside the transaction.
type CapitalPoolService interface {
	InitPool(ctx context.Context, poolID string, totalCapitalCents int64) (*entity.CapitalPool, error)
	GetPool(ctx context.Context, poolID string) (*entity.CapitalPool, error)
	FundClaim(ctx context.Context, poolID string, claimID int64, fundedAmountCents int64) error
	SettleClaim(ctx context.Context, poolID string, claimID int64, settlementDate time.Time, settlementAmountCents int64) error
}

type capitalPoolService struct {
	poolRepo     port.CapitalPoolRepository
	claimRepo    port.ClaimRepository
	practiceRepo port.PracticeRepository
	txManager    port.TransactionManager
	audit        port.AuditLogger
	logger       *zap.Logger
}

// NewCapitalPoolService creates a new CapitalPoolService.
func NewCapitalPoolService(
	poolRepo port.CapitalPoolRepository,
	claimRepo port.ClaimRepository,
	practiceRepo port.PracticeRepository,
	txManager port.TransactionManager,
	audit port.AuditLogger,
	logger *zap.Logger,
) CapitalPoolService {
	return &capitalPoolService{
		poolRepo:     poolRepo,
		claimRepo:    claimRepo,
		practiceRepo: practiceRepo,
		txManager:    txManager,
		audit:        audit,
		logger:       logger,
	}
}

// InitPool creates the pool if it does not exist yet. Calling it again
// returns the existing pool untouched.
func (s *capitalPoolService) InitPool(ctx context.Context, poolID string, totalCapitalCents int64) (*entity.CapitalPool, error) {
	existing, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	pool := &entity.CapitalPool{
		ID:                    poolID,
		TotalCapitalCents:     totalCapitalCents,
		AvailableCapitalCents: totalCapitalCents,
	}
	if err := s.poolRepo.Create(ctx, pool); err != nil {
		return nil, err
	}

	s.logger.Info("Capital pool initialized",
		zap.String("pool_id", poolID),
		zap.Int64("total_capital_cents", totalCapitalCents))
	return pool, nil
}

func (s *capitalPoolService) GetPool(ctx context.Context, poolID string) (*entity.CapitalPool, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, fmt.Errorf("capital pool %s: %w", poolID, ErrNotFound)
	}
	return pool, nil
}

// FundClaim advances funds against a claim: the pool's available capital
// drops, allocated and pending-settlement rise, and the practice's
// exposure absorbs the principal. Business-rule failures come back as
// ErrLedger-class errors; broken accounting state comes back as a fatal
// *InvariantViolationError.
func (s *capitalPoolService) FundClaim(ctx context.Context, poolID string, claimID int64, fundedAmountCents int64) error {
	if fundedAmountCents <= 0 {
		return fmt.Errorf("%w: funded amount must be positive, got %d", ErrLedger, fundedAmountCents)
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		pool, claim, practice, err := s.loadFundingParties(txCtx, poolID, claimID)
		if err != nil {
			return err
		}

		if err := checkPoolInvariants(pool); err != nil {
			s.logger.Error("Pool invariants broken before funding", zap.String("pool_id", poolID), zap.Error(err))
			return err
		}
		if err := checkPracticeInvariants(practice); err != nil {
			s.logger.Error("Practice invariants broken before funding", zap.Int64("practice_id", practice.ID), zap.Error(err))
			return err
		}

		if terr := lifecycle.ValidateFundingTransition(claim.FundingStatus, lifecycle.FundingFunded); terr != nil {
			return fmt.Errorf("%w: claim %d: %w", ErrLedger, claimID, terr)
		}

		if fundedAmountCents > practice.RemainingExposureLimitCents() {
			return ErrInsufficientExposure
		}
		if fundedAmountCents > pool.AvailableCapitalCents {
			return ErrInsufficientCapital
		}

		// Available capital decreases the moment funds are advanced;
		// allocated and pending track the principal until settlement.
		pool.AvailableCapitalCents -= fundedAmountCents
		pool.CapitalAllocatedCents += fundedAmountCents
		pool.CapitalPendingSettlementCents += fundedAmountCents

		practice.CurrentExposureCents += fundedAmountCents

		claim.FundedAmountCents = fundedAmountCents
		claim.FundingStatus = lifecycle.FundingFunded
		claim.DeclineReasonCode = ""

		if err := checkPoolInvariants(pool); err != nil {
			s.logger.Error("Pool invariants broken after funding", zap.String("pool_id", poolID), zap.Error(err))
			return err
		}
		if err := checkPracticeInvariants(practice); err != nil {
			s.logger.Error("Practice invariants broken after funding", zap.Int64("practice_id", practice.ID), zap.Error(err))
			return err
		}

		if err := s.saveFundingParties(txCtx, pool, claim, practice); err != nil {
			return err
		}

		s.audit.LogEvent(txCtx, port.AuditEvent{
			ClaimID:  claim.ID,
			Action:   "CLAIM_FUNDED",
			ToStatus: claim.FundingStatus.String(),
			Metadata: map[string]string{
				"pool_id":            poolID,
				"funded_amount_cents": fmt.Sprintf("%d", fundedAmountCents),
			},
		})

		s.logger.Info("Claim funded",
			zap.Int64("claim_id", claimID),
			zap.String("pool_id", poolID),
			zap.Int64("funded_amount_cents", fundedAmountCents))
		return nil
	})
}

// SettleClaim reconciles the payer's actual reimbursement against a
// funded claim. A settlement below principal flags the claim as an
// exception; capital return is capped at principal, so any excess such
// as fees or interest is dropped, not tracked.
func (s *capitalPoolService) SettleClaim(ctx context.Context, poolID string, claimID int64, settlementDate time.Time, settlementAmountCents int64) error {
	if settlementAmountCents < 0 {
		return fmt.Errorf("%w: settlement amount must not be negative, got %d", ErrLedger, settlementAmountCents)
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		pool, claim, practice, err := s.loadFundingParties(txCtx, poolID, claimID)
		if err != nil {
			return err
		}

		if err := checkPoolInvariants(pool); err != nil {
			s.logger.Error("Pool invariants broken before settlement", zap.String("pool_id", poolID), zap.Error(err))
			return err
		}
		if err := checkPracticeInvariants(practice); err != nil {
			s.logger.Error("Practice invariants broken before settlement", zap.Int64("practice_id", practice.ID), zap.Error(err))
			return err
		}

		target := lifecycle.FundingReimbursed
		if settlementAmountCents < claim.FundedAmountCents {
			target = lifecycle.FundingException
		}
		if terr := lifecycle.ValidateFundingTransition(claim.FundingStatus, target); terr != nil {
			return fmt.Errorf("%w: claim %d: %w", ErrLedger, claimID, terr)
		}

		principal := claim.FundedAmountCents
		if principal <= 0 {
			return &InvariantViolationError{
				Subject: fmt.Sprintf("claim %d", claimID),
				Detail:  fmt.Sprintf("settling a claim with non-positive principal %d", principal),
			}
		}
		if principal > pool.CapitalPendingSettlementCents {
			err := &InvariantViolationError{
				Subject: "pool " + poolID,
				Detail: fmt.Sprintf("principal %d exceeds capital pending settlement %d",
					principal, pool.CapitalPendingSettlementCents),
			}
			s.logger.Error("Pool pending settlement invariant violated", zap.String("pool_id", poolID), zap.Error(err))
			return err
		}

		daysOutstanding := int64(settlementDate.Sub(claim.SubmissionDate).Hours() / 24)
		if daysOutstanding < 0 {
			daysOutstanding = 0
		}
		pool.TotalDaysOutstanding += daysOutstanding
		pool.NumSettledClaims++

		pool.CapitalPendingSettlementCents -= principal
		pool.CapitalAllocatedCents -= principal

		// Capital return is capped at principal for V1 accounting.
		returnedPrincipal := min(principal, settlementAmountCents)
		pool.AvailableCapitalCents += returnedPrincipal
		pool.CapitalReturnedCents += returnedPrincipal

		practice.CurrentExposureCents -= principal
		if practice.CurrentExposureCents < 0 {
			err := &InvariantViolationError{
				Subject: fmt.Sprintf("practice %d", practice.ID),
				Detail:  fmt.Sprintf("current exposure went negative: %d", practice.CurrentExposureCents),
			}
			s.logger.Error("Practice exposure invariant violated", zap.Int64("practice_id", practice.ID), zap.Error(err))
			return err
		}

		claim.FundingStatus = target

		if err := checkPoolInvariants(pool); err != nil {
			s.logger.Error("Pool invariants broken after settlement", zap.String("pool_id", poolID), zap.Error(err))
			return err
		}
		if err := checkPracticeInvariants(practice); err != nil {
			s.logger.Error("Practice invariants broken after settlement", zap.Int64("practice_id", practice.ID), zap.Error(err))
			return err
		}

		if err := s.saveFundingParties(txCtx, pool, claim, practice); err != nil {
			return err
		}

		s.audit.LogEvent(txCtx, port.AuditEvent{
			ClaimID:  claim.ID,
			Action:   "CLAIM_SETTLED",
			ToStatus: claim.FundingStatus.String(),
			Metadata: map[string]string{
				"pool_id":                 poolID,
				"settlement_amount_cents": fmt.Sprintf("%d", settlementAmountCents),
				"returned_principal_cents": fmt.Sprintf("%d", returnedPrincipal),
				"days_outstanding":        fmt.Sprintf("%d", daysOutstanding),
			},
		})

		s.logger.Info("Claim settled",
			zap.Int64("claim_id", claimID),
			zap.String("pool_id", poolID),
			zap.String("funding_status", claim.FundingStatus.String()),
			zap.Int64("settlement_amount_cents", settlementAmountCents),
			zap.Int64("returned_principal_cents", returnedPrincipal))
		return nil
	})
}

func (s *capitalPoolService) loadFundingParties(ctx context.Context, poolID string, claimID int64) (*entity.CapitalPool, *entity.Claim, *entity.Practice, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, nil, nil, err
	}
	if pool == nil {
		return nil, nil, nil, fmt.Errorf("capital pool %s: %w", poolID, ErrNotFound)
	}

	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, nil, nil, err
	}
	if claim == nil {
		return nil, nil, nil, fmt.Errorf("claim %d: %w", claimID, ErrNotFound)
	}

	practice, err := s.practiceRepo.GetByID(ctx, claim.PracticeID)
	if err != nil {
		return nil, nil, nil, err
	}
	if practice == nil {
		return nil, nil, nil, fmt.Errorf("practice %d: %w", claim.PracticeID, ErrNotFound)
	}

	return pool, claim, practice, nil
}

func (s *capitalPoolService) saveFundingParties(ctx context.Context, pool *entity.CapitalPool, claim *entity.Claim, practice *entity.Practice) error {
	if err := s.poolRepo.Update(ctx, pool); err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if err := s.practiceRepo.Update(ctx, practice); err != nil {
		return fmt.Errorf("update practice: %w", err)
	}
	if err := s.claimRepo.Update(ctx, claim); err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	return nil
}

func checkPoolInvariants(pool *entity.CapitalPool) error {
	// Advances are the only outflow and returns are capped at principal,
	// so in-flight plus idle capital can never exceed the pool's total.
	if pool.AvailableCapitalCents+pool.CapitalAllocatedCents > pool.TotalCapitalCents {
		return &InvariantViolationError{
			Subject: "pool " + pool.ID,
			Detail: fmt.Sprintf("available %d + allocated %d exceeds total capital %d",
				pool.AvailableCapitalCents, pool.CapitalAllocatedCents, pool.TotalCapitalCents),
		}
	}
	if pool.CapitalPendingSettlementCents > pool.CapitalAllocatedCents {
		return &InvariantViolationError{
			Subject: "pool " + pool.ID,
			Detail: fmt.Sprintf("pending settlement %d exceeds allocated %d",
				pool.CapitalPendingSettlementCents, pool.CapitalAllocatedCents),
		}
	}
	for name, v := range map[string]int64{
		"total_capital":              pool.TotalCapitalCents,
		"available_capital":          pool.AvailableCapitalCents,
		"capital_allocated":          pool.CapitalAllocatedCents,
		"capital_pending_settlement": pool.CapitalPendingSettlementCents,
		"capital_returned":           pool.CapitalReturnedCents,
	} {
		if v < 0 {
			return &InvariantViolationError{
				Subject: "pool " + pool.ID,
				Detail:  fmt.Sprintf("%s is negative: %d", name, v),
			}
		}
	}
	return nil
}

func checkPracticeInvariants(practice *entity.Practice) error {
	if practice.CurrentExposureCents < 0 {
		return &InvariantViolationError{
			Subject: fmt.Sprintf("practice %d", practice.ID),
			Detail:  fmt.Sprintf("current exposure is negative: %d", practice.CurrentExposureCents),
		}
	}
	if practice.CurrentExposureCents > practice.MaxExposureLimitCents {
		return &InvariantViolationError{
			Subject: fmt.Sprintf("practice %d", practice.ID),
			Detail: fmt.Sprintf("current exposure %d exceeds limit %d",
				practice.CurrentExposureCents, practice.MaxExposureLimitCents),
		}
	}
	return nil
}
