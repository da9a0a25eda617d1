package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// PaymentOrchestrationService drives a claim's payment intent through
// its lifecycle, posting the ledger reservation protocol along the way.
// Every operation is idempotent under retry: the intent key derives from
// the claim id and the ledger keys derive from the intent id, so
// re-running any step is a safe no-op.
type PaymentOrchestrationService interface {
	CreatePaymentIntent(ctx context.Context, claimID int64) (*entity.PaymentIntent, error)
	SendPayment(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error)
	FailPayment(ctx context.Context, intentID uuid.UUID, failureCode, failureMessage string) (*entity.PaymentIntent, error)
	RetryFailedPayment(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error)
	ProcessApprovedClaim(ctx context.Context, claimID int64) (*entity.PaymentIntent, bool, error)
	GetPaymentForClaim(ctx context.Context, claimID int64) (*entity.PaymentIntent, error)
}

type paymentService struct {
	paymentRepo port.PaymentIntentRepository
	claimRepo   port.ClaimRepository
	ledger      LedgerService
	provider    port.PaymentProvider
	txManager   port.TransactionManager
	audit       port.AuditLogger
	logger      *zap.Logger
}

// NewPaymentOrchestrationService creates a new PaymentOrchestrationService.
func NewPaymentOrchestrationService(
	paymentRepo port.PaymentIntentRepository,
	claimRepo port.ClaimRepository,
	ledger LedgerService,
	provider port.PaymentProvider,
	txManager port.TransactionManager,
	audit port.AuditLogger,
	logger *zap.Logger,
) PaymentOrchestrationService {
	return &paymentService{
		paymentRepo: paymentRepo,
		claimRepo:   claimRepo,
		ledger:      ledger,
		provider:    provider,
		txManager:   txManager,
		audit:       audit,
		logger:      logger,
	}
}

// CreatePaymentIntent creates the one intent a claim may carry and
// reserves its funds. Calling it again for the same claim returns the
// existing intent. A claim that already carries an intent under a
// mismatched key is a data inconsistency and fails loudly. If the
// reservation fails the whole creation rolls back.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, claimID int64) (*entity.PaymentIntent, error) {
	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("claim %d: %w", claimID, ErrNotFound)
	}
	if claim.Status != lifecycle.ClaimApproved {
		return nil, fmt.Errorf("%w: claim %d is %s, must be %s",
			ErrInvalidClaimState, claimID, claim.Status, lifecycle.ClaimApproved)
	}

	key := entity.PaymentIdempotencyKey(claimID)

	existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Payment intent already exists",
			zap.Int64("claim_id", claimID),
			zap.String("payment_intent_id", existing.ID.String()))
		return existing, nil
	}

	byClaim, err := s.paymentRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if byClaim != nil {
		s.logger.Warn("Payment intent exists with mismatched key", zap.Int64("claim_id", claimID))
		return nil, fmt.Errorf("%w %d", ErrPaymentAlreadyExists, claimID)
	}

	intent := &entity.PaymentIntent{
		ID:             uuid.New(),
		ClaimID:        claimID,
		PracticeID:     claim.PracticeID,
		AmountCents:    claim.ExpectedAllowedAmountCents,
		Currency:       DefaultCurrency,
		Status:         lifecycle.PaymentQueued,
		IdempotencyKey: key,
		Provider:       entity.ProviderSimulated,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.Create(txCtx, intent); err != nil {
			return fmt.Errorf("create payment intent: %w", err)
		}

		if err := s.ledger.ReserveFunds(txCtx, intent, intent.AmountCents); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				s.logger.Info("Reservation entries already exist",
					zap.String("payment_intent_id", intent.ID.String()))
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, port.AuditEvent{
		ClaimID: claimID,
		Action:  "PAYMENT_INTENT_CREATED",
		Metadata: map[string]string{
			"payment_intent_id": intent.ID.String(),
			"amount_cents":      fmt.Sprintf("%d", intent.AmountCents),
			"idempotency_key":   key,
		},
	})

	s.logger.Info("Created payment intent",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("claim_id", claimID))
	return intent, nil
}

// SendPayment hands the intent to the provider. Already-sent and
// already-confirmed intents come back unchanged; anything not QUEUED
// beyond those is a payment error. The provider call is keyed by the
// intent's idempotency key so a retried send cannot double-pay.
func (s *paymentService) SendPayment(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error) {
	intent, err := s.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case lifecycle.PaymentSent, lifecycle.PaymentConfirmed:
		s.logger.Info("Payment already sent or confirmed", zap.String("payment_intent_id", intentID.String()))
		return intent, nil
	case lifecycle.PaymentQueued:
		// proceed
	default:
		return nil, fmt.Errorf("%w: cannot send payment %s in status %s", ErrPayment, intentID, intent.Status)
	}

	result, err := s.provider.SendPayment(ctx, port.SendPaymentRequest{
		PaymentIntentID:     intent.ID.String(),
		AmountCents:         intent.AmountCents,
		Currency:            intent.Currency,
		RecipientPracticeID: intent.PracticeID,
		IdempotencyKey:      intent.IdempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("provider send: %w", err)
	}

	intent.ProviderReference = result.ProviderReference
	now := time.Now().UTC()
	intent.SentAt = &now

	switch result.Status {
	case port.PaymentResultSuccess:
		intent.Status = lifecycle.PaymentSent
		if err := s.paymentRepo.Update(ctx, intent); err != nil {
			return nil, err
		}
		s.audit.LogEvent(ctx, port.AuditEvent{
			ClaimID: intent.ClaimID,
			Action:  "PAYMENT_SENT",
			Metadata: map[string]string{
				"payment_intent_id":  intent.ID.String(),
				"provider_reference": result.ProviderReference,
			},
		})
		s.logger.Info("Payment sent", zap.String("payment_intent_id", intentID.String()))

	case port.PaymentResultFailed:
		if err := s.handlePaymentFailure(ctx, intent, result.FailureCode, result.FailureMessage); err != nil {
			return nil, err
		}

	case port.PaymentResultPending:
		// Stays QUEUED; a later status check resolves it.
		if err := s.paymentRepo.Update(ctx, intent); err != nil {
			return nil, err
		}
	}

	return intent, nil
}

// ConfirmPayment settles the reservation onto the practice payable
// account, marks the intent CONFIRMED, and advances an APPROVED claim
// to PAID. Confirming twice is a no-op.
func (s *paymentService) ConfirmPayment(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error) {
	intent, err := s.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if intent.Status == lifecycle.PaymentConfirmed {
		s.logger.Info("Payment already confirmed", zap.String("payment_intent_id", intentID.String()))
		return intent, nil
	}
	if terr := lifecycle.ValidatePaymentTransition(intent.Status, lifecycle.PaymentConfirmed); terr != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayment, terr)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.ledger.ConfirmPayment(txCtx, intent); err != nil {
			if !errors.Is(err, ErrDuplicateEntry) {
				return err
			}
			s.logger.Info("Settlement entries already exist",
				zap.String("payment_intent_id", intent.ID.String()))
		}

		intent.Status = lifecycle.PaymentConfirmed
		now := time.Now().UTC()
		intent.ConfirmedAt = &now
		if err := s.paymentRepo.Update(txCtx, intent); err != nil {
			return err
		}

		claim, err := s.claimRepo.GetByID(txCtx, intent.ClaimID)
		if err != nil {
			return err
		}
		if claim != nil && claim.Status == lifecycle.ClaimApproved {
			claim.Status = lifecycle.ClaimPaid
			if err := s.claimRepo.Update(txCtx, claim); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, port.AuditEvent{
		ClaimID:    intent.ClaimID,
		Action:     "PAYMENT_CONFIRMED",
		FromStatus: lifecycle.ClaimApproved.String(),
		ToStatus:   lifecycle.ClaimPaid.String(),
		Metadata: map[string]string{
			"payment_intent_id":  intent.ID.String(),
			"amount_cents":       fmt.Sprintf("%d", intent.AmountCents),
			"provider_reference": intent.ProviderReference,
		},
	})

	s.logger.Info("Payment confirmed",
		zap.String("payment_intent_id", intentID.String()),
		zap.Int64("claim_id", intent.ClaimID))
	return intent, nil
}

// FailPayment marks an intent FAILED and releases its reservation.
// Failing twice is a no-op; failing a confirmed payment is an error.
func (s *paymentService) FailPayment(ctx context.Context, intentID uuid.UUID, failureCode, failureMessage string) (*entity.PaymentIntent, error) {
	intent, err := s.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if intent.Status == lifecycle.PaymentFailed {
		s.logger.Info("Payment already failed", zap.String("payment_intent_id", intentID.String()))
		return intent, nil
	}
	if intent.Status == lifecycle.PaymentConfirmed {
		return nil, fmt.Errorf("%w: cannot fail payment %s that is already confirmed", ErrPayment, intentID)
	}

	if err := s.handlePaymentFailure(ctx, intent, failureCode, failureMessage); err != nil {
		return nil, err
	}
	return intent, nil
}

func (s *paymentService) handlePaymentFailure(ctx context.Context, intent *entity.PaymentIntent, failureCode, failureMessage string) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.ledger.ReleaseReservation(txCtx, intent); err != nil {
			switch {
			case errors.Is(err, ErrDuplicateEntry):
				s.logger.Info("Release entries already exist",
					zap.String("payment_intent_id", intent.ID.String()))
			case errors.Is(err, ErrLedger):
				// The failure still has to be recorded; the release gap
				// shows up on the clearing balance for operators.
				s.logger.Error("Failed to release reservation",
					zap.String("payment_intent_id", intent.ID.String()),
					zap.Error(err))
			default:
				return err
			}
		}

		intent.Status = lifecycle.PaymentFailed
		intent.FailureCode = failureCode
		intent.FailureMessage = failureMessage
		if err := s.paymentRepo.Update(txCtx, intent); err != nil {
			return err
		}

		claim, err := s.claimRepo.GetByID(txCtx, intent.ClaimID)
		if err != nil {
			return err
		}
		if claim != nil {
			claim.PaymentException = true
			claim.ExceptionCode = failureCode
			if claim.Status == lifecycle.ClaimApproved {
				claim.Status = lifecycle.ClaimPaymentException
			}
			if err := s.claimRepo.Update(txCtx, claim); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.LogEvent(ctx, port.AuditEvent{
		ClaimID: intent.ClaimID,
		Action:  "PAYMENT_FAILED",
		Metadata: map[string]string{
			"payment_intent_id": intent.ID.String(),
			"failure_code":      failureCode,
			"failure_message":   failureMessage,
		},
	})

	s.logger.Warn("Payment failed",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.String("failure_code", failureCode),
		zap.String("failure_message", failureMessage))
	return nil
}

// RetryFailedPayment models a retry as a brand-new attempt: the failed
// intent row is deleted, the claim's exception flags are cleared, and
// the approved-claim pipeline runs fresh with independent idempotency
// keys and ledger entries.
func (s *paymentService) RetryFailedPayment(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error) {
	intent, err := s.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != lifecycle.PaymentFailed {
		return nil, fmt.Errorf("%w: cannot retry payment %s in status %s", ErrPayment, intentID, intent.Status)
	}

	claim, err := s.claimRepo.GetByID(ctx, intent.ClaimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, fmt.Errorf("claim %d: %w", intent.ClaimID, ErrNotFound)
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claim.PaymentException = false
		claim.ExceptionCode = ""
		if claim.Status == lifecycle.ClaimPaymentException {
			claim.Status = lifecycle.ClaimApproved
		}
		if err := s.claimRepo.Update(txCtx, claim); err != nil {
			return err
		}
		return s.paymentRepo.Delete(txCtx, intent.ID)
	})
	if err != nil {
		return nil, err
	}

	newIntent, success, err := s.ProcessApprovedClaim(ctx, claim.ID)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, port.AuditEvent{
		ClaimID: claim.ID,
		Action:  "PAYMENT_RETRIED",
		Metadata: map[string]string{
			"old_payment_intent_id": intent.ID.String(),
			"new_payment_intent_id": newIntent.ID.String(),
			"success":               fmt.Sprintf("%t", success),
		},
	})

	return newIntent, nil
}

// ProcessApprovedClaim runs create, send and confirm as one pipeline.
// Success means the intent reached terminal CONFIRMED.
func (s *paymentService) ProcessApprovedClaim(ctx context.Context, claimID int64) (*entity.PaymentIntent, bool, error) {
	intent, err := s.CreatePaymentIntent(ctx, claimID)
	if err != nil {
		return nil, false, err
	}

	if intent.Status != lifecycle.PaymentQueued {
		return intent, intent.Status == lifecycle.PaymentConfirmed, nil
	}

	intent, err = s.SendPayment(ctx, intent.ID)
	if err != nil {
		return nil, false, err
	}

	if intent.Status == lifecycle.PaymentSent {
		intent, err = s.ConfirmPayment(ctx, intent.ID)
		if err != nil {
			return nil, false, err
		}
	}

	return intent, intent.Status == lifecycle.PaymentConfirmed, nil
}

// GetPaymentForClaim returns the claim's intent, nil when none exists.
func (s *paymentService) GetPaymentForClaim(ctx context.Context, claimID int64) (*entity.PaymentIntent, error) {
	return s.paymentRepo.GetByClaimID(ctx, claimID)
}

func (s *paymentService) getIntent(ctx context.Context, intentID uuid.UUID) (*entity.PaymentIntent, error) {
	intent, err := s.paymentRepo.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, fmt.Errorf("payment intent %s: %w", intentID, ErrNotFound)
	}
	return intent, nil
}
