package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
	"github.com/spoonbill/claims-factoring/internal/domain/underwriting"
)

// ClaimService handles claim intake and underwriting runs. Underwriting
// policy evaluation itself is the pure function in
// internal/domain/underwriting; this service loads the inputs, persists
// the decision, and moves the claim's statuses under the state machines.
type ClaimService interface {
	SubmitClaim(ctx context.Context, req SubmitClaimRequest) (*entity.Claim, error)
	GetClaim(ctx context.Context, id int64) (*entity.Claim, error)
	ListClaims(ctx context.Context, practiceID int64, limit, offset int) ([]*entity.Claim, error)
	UnderwriteClaim(ctx context.Context, claimID int64, poolID string) (*entity.UnderwritingRecord, error)
}

// Screening reason codes. These flag claims for a human before the
// policy evaluator ever runs; they are review flags, not declines.
const (
	ReasonMissingPayer           = "MISSING_PAYER"
	ReasonInvalidAmount          = "INVALID_AMOUNT"
	ReasonAmountExceedsThreshold = "AMOUNT_EXCEEDS_THRESHOLD"
)

// SubmitClaimRequest carries a new claim submission.
type SubmitClaimRequest struct {
	PracticeID                 int64
	PatientName                string
	Payer                      string
	ProcedureCodes             string
	BilledAmountCents          int64
	ExpectedAllowedAmountCents int64
	ProcedureDate              *time.Time
	SubmissionDate             time.Time
}

type claimService struct {
	claimRepo    port.ClaimRepository
	practiceRepo port.PracticeRepository
	poolRepo     port.CapitalPoolRepository
	decisionRepo port.UnderwritingDecisionRepository
	txManager    port.TransactionManager
	policy       underwriting.Policy

	// Claims above this amount always go to review. Zero disables the
	// check.
	reviewAmountThresholdCents int64

	audit  port.AuditLogger
	logger *zap.Logger
}

// NewClaimService creates a new ClaimService.
func NewClaimService(
	claimRepo port.ClaimRepository,
	practiceRepo port.PracticeRepository,
	poolRepo port.CapitalPoolRepository,
	decisionRepo port.UnderwritingDecisionRepository,
	txManager port.TransactionManager,
	policy underwriting.Policy,
	reviewAmountThresholdCents int64,
	audit port.AuditLogger,
	logger *zap.Logger,
) ClaimService {
	return &claimService{
		claimRepo:                  claimRepo,
		practiceRepo:               practiceRepo,
		poolRepo:                   poolRepo,
		decisionRepo:               decisionRepo,
		txManager:                  txManager,
		policy:                     policy,
		reviewAmountThresholdCents: reviewAmountThresholdCents,
		audit:                      audit,
		logger:                     logger,
	}
}

// SubmitClaim creates a claim in NEW/submitted status. A submission
// whose fingerprint matches an existing claim is rejected as a
// duplicate rather than silently creating a second row.
func (s *claimService) SubmitClaim(ctx context.Context, req SubmitClaimRequest) (*entity.Claim, error) {
	practice, err := s.practiceRepo.GetByID(ctx, req.PracticeID)
	if err != nil {
		return nil, err
	}
	if practice == nil {
		return nil, fmt.Errorf("practice %d: %w", req.PracticeID, ErrNotFound)
	}

	fingerprint := entity.ComputeClaimFingerprint(
		req.PracticeID, req.PatientName, req.ProcedureDate, req.BilledAmountCents, req.Payer)

	existing, err := s.claimRepo.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: matches claim %d", ErrDuplicateClaim, existing.ID)
	}

	claim := &entity.Claim{
		PracticeID:                 req.PracticeID,
		PatientName:                req.PatientName,
		Payer:                      req.Payer,
		ProcedureCodes:             req.ProcedureCodes,
		BilledAmountCents:          req.BilledAmountCents,
		ExpectedAllowedAmountCents: req.ExpectedAllowedAmountCents,
		Status:                     lifecycle.ClaimNew,
		FundingStatus:              lifecycle.FundingSubmitted,
		ProcedureDate:              req.ProcedureDate,
		SubmissionDate:             req.SubmissionDate,
		Fingerprint:                fingerprint,
	}
	if err := s.claimRepo.Create(ctx, claim); err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: fingerprint %s", ErrDuplicateClaim, fingerprint)
		}
		return nil, err
	}

	s.audit.LogEvent(ctx, port.AuditEvent{
		ClaimID:  claim.ID,
		Action:   "CLAIM_SUBMITTED",
		ToStatus: claim.Status.String(),
		Metadata: map[string]string{
			"practice_id":  fmt.Sprintf("%d", req.PracticeID),
			"payer":        req.Payer,
			"amount_cents": fmt.Sprintf("%d", req.BilledAmountCents),
		},
	})

	s.logger.Info("Claim submitted",
		zap.Int64("claim_id", claim.ID),
		zap.Int64("practice_id", req.PracticeID),
		zap.Int64("billed_amount_cents", req.BilledAmountCents))
	return claim, nil
}

func (s *claimService) GetClaim(ctx context.Context, id int64) (*entity.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
	}
	return claim, nil
}

func (s *claimService) ListClaims(ctx context.Context, practiceID int64, limit, offset int) ([]*entity.Claim, error) {
	return s.claimRepo.List(ctx, practiceID, limit, offset)
}

// UnderwriteClaim runs screening and the deterministic policy
// evaluation against the claim, records the decision, and moves the
// claim. Screening failures park the claim in NEEDS_REVIEW for a human;
// the policy evaluator then either approves (advancing the funding
// lifecycle to underwriting) or declines with the first violated rule
// as the terminal reason code.
func (s *claimService) UnderwriteClaim(ctx context.Context, claimID int64, poolID string) (*entity.UnderwritingRecord, error) {
	var record *entity.UnderwritingRecord

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claim, err := s.claimRepo.GetByID(txCtx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return fmt.Errorf("claim %d: %w", claimID, ErrNotFound)
		}

		practice, err := s.practiceRepo.GetByID(txCtx, claim.PracticeID)
		if err != nil {
			return err
		}
		if practice == nil {
			return fmt.Errorf("practice %d: %w", claim.PracticeID, ErrNotFound)
		}

		pool, err := s.poolRepo.GetByID(txCtx, poolID)
		if err != nil {
			return err
		}
		if pool == nil {
			return fmt.Errorf("capital pool %s: %w", poolID, ErrNotFound)
		}

		if claim.Status != lifecycle.ClaimNew && claim.Status != lifecycle.ClaimNeedsReview {
			return fmt.Errorf("%w: claim %d in status %s is not underwritable", ErrLedger, claimID, claim.Status)
		}

		decision, target := s.decide(claim, practice, pool)

		fromStatus := claim.Status
		if target != claim.Status {
			if terr := lifecycle.ValidateClaimTransition(claim.Status, target); terr != nil {
				return fmt.Errorf("%w: claim %d: %w", ErrLedger, claimID, terr)
			}
		}

		record = &entity.UnderwritingRecord{
			ClaimID:           claimID,
			Decision:          decision.Decision,
			FundedAmountCents: decision.FundedAmountCents,
			ReasonCode:        decision.ReasonCode,
		}
		if err := s.decisionRepo.Create(txCtx, record); err != nil {
			return err
		}

		claim.Status = target
		switch decision.Decision {
		case entity.DecisionApprove:
			claim.DeclineReasonCode = ""
			// Advance the funding lifecycle in step so the capital-pool
			// path can fund the claim next.
			if claim.FundingStatus == lifecycle.FundingSubmitted {
				claim.FundingStatus = lifecycle.FundingUnderwriting
			}
		case entity.DecisionDecline:
			claim.DeclineReasonCode = decision.ReasonCode
		}

		if err := s.claimRepo.Update(txCtx, claim); err != nil {
			return err
		}

		s.audit.LogEvent(txCtx, port.AuditEvent{
			ClaimID:    claimID,
			Action:     "CLAIM_UNDERWRITTEN",
			FromStatus: fromStatus.String(),
			ToStatus:   claim.Status.String(),
			Metadata: map[string]string{
				"decision":    string(decision.Decision),
				"reason_code": decision.ReasonCode,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Claim underwritten",
		zap.Int64("claim_id", claimID),
		zap.String("decision", string(record.Decision)),
		zap.String("reason_code", record.ReasonCode))
	return record, nil
}

type underwritingOutcome struct {
	Decision          entity.DecisionType
	FundedAmountCents int64
	ReasonCode        string
}

// decide runs the cheap screening checks first, then the policy
// evaluator. Screening produces review flags, never declines; the
// evaluator produces approve or decline, never review.
func (s *claimService) decide(claim *entity.Claim, practice *entity.Practice, pool *entity.CapitalPool) (underwritingOutcome, lifecycle.ClaimStatus) {
	if strings.TrimSpace(claim.Payer) == "" {
		return underwritingOutcome{Decision: entity.DecisionNeedsReview, ReasonCode: ReasonMissingPayer},
			lifecycle.ClaimNeedsReview
	}
	if claim.ExpectedAllowedAmountCents <= 0 {
		return underwritingOutcome{Decision: entity.DecisionNeedsReview, ReasonCode: ReasonInvalidAmount},
			lifecycle.ClaimNeedsReview
	}
	if s.reviewAmountThresholdCents > 0 && claim.ExpectedAllowedAmountCents > s.reviewAmountThresholdCents &&
		claim.Status != lifecycle.ClaimNeedsReview {
		return underwritingOutcome{Decision: entity.DecisionNeedsReview, ReasonCode: ReasonAmountExceedsThreshold},
			lifecycle.ClaimNeedsReview
	}

	evaluated := underwriting.Evaluate(
		claim, practice, s.policy,
		practice.RemainingExposureLimitCents(),
		pool.AvailableCapitalCents,
	)
	if evaluated.Approved {
		return underwritingOutcome{
			Decision:          entity.DecisionApprove,
			FundedAmountCents: evaluated.FundedAmountCents,
		}, lifecycle.ClaimApproved
	}
	return underwritingOutcome{
		Decision:   entity.DecisionDecline,
		ReasonCode: evaluated.ReasonCode,
	}, lifecycle.ClaimDeclined
}
