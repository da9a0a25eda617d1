package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// PaymentIntentRepository implements port.PaymentIntentRepository
type PaymentIntentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentIntentRepository creates a new payment intent repository
func NewPaymentIntentRepository(db *sql.DB, logger *zap.Logger) port.PaymentIntentRepository {
	return &PaymentIntentRepository{
		db:     db,
		logger: logger,
	}
}

const intentColumns = `
	id, claim_id, practice_id, amount_cents, currency, status,
	idempotency_key, provider, provider_reference,
	failure_code, failure_message, sent_at, confirmed_at,
	created_at, updated_at
`

// Create inserts a new payment intent. The claim_id and idempotency_key
// unique constraints enforce one intent per claim.
func (r *PaymentIntentRepository) Create(ctx context.Context, intent *entity.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			id, claim_id, practice_id, amount_cents, currency, status,
			idempotency_key, provider, provider_reference,
			failure_code, failure_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		intent.ID.String(),
		intent.ClaimID,
		intent.PracticeID,
		intent.AmountCents,
		intent.Currency,
		string(intent.Status),
		intent.IdempotencyKey,
		string(intent.Provider),
		intent.ProviderReference,
		intent.FailureCode,
		intent.FailureMessage,
	)
	if err != nil {
		r.logger.Error("Failed to create payment intent",
			zap.Int64("claim_id", intent.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create payment intent: %w", mapUniqueViolation(err))
	}
	return nil
}

// GetByID retrieves a payment intent by ID, nil when absent
func (r *PaymentIntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = ?`
	return r.getOne(ctx, query, id.String())
}

// GetByClaimID retrieves the claim's intent, nil when absent
func (r *PaymentIntentRepository) GetByClaimID(ctx context.Context, claimID int64) (*entity.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE claim_id = ?`
	return r.getOne(ctx, query, claimID)
}

// GetByIdempotencyKey retrieves an intent by its key, nil when absent
func (r *PaymentIntentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE idempotency_key = ?`
	return r.getOne(ctx, query, key)
}

// Update persists an intent's mutable fields
func (r *PaymentIntentRepository) Update(ctx context.Context, intent *entity.PaymentIntent) error {
	query := `
		UPDATE payment_intents SET
			status = ?, provider_reference = ?,
			failure_code = ?, failure_message = ?,
			sent_at = ?, confirmed_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var sentAt, confirmedAt interface{}
	if intent.SentAt != nil {
		sentAt = *intent.SentAt
	}
	if intent.ConfirmedAt != nil {
		confirmedAt = *intent.ConfirmedAt
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		string(intent.Status),
		intent.ProviderReference,
		intent.FailureCode,
		intent.FailureMessage,
		sentAt,
		confirmedAt,
		intent.ID.String(),
	)
	if err != nil {
		r.logger.Error("Failed to update payment intent",
			zap.String("payment_intent_id", intent.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update payment intent: %w", err)
	}
	return nil
}

// Delete removes an intent. Exists only for the retry-by-recreate path;
// the ledger entries referencing the deleted intent stay on the books.
func (r *PaymentIntentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM payment_intents WHERE id = ?`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, id.String())
	if err != nil {
		r.logger.Error("Failed to delete payment intent",
			zap.String("payment_intent_id", id.String()), zap.Error(err))
		return fmt.Errorf("failed to delete payment intent: %w", err)
	}
	return nil
}

func (r *PaymentIntentRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.PaymentIntent, error) {
	intent, err := r.scanIntent(getExecutor(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return intent, nil
}

func (r *PaymentIntentRepository) scanIntent(row rowScanner) (*entity.PaymentIntent, error) {
	var intent entity.PaymentIntent
	var id, status, provider string
	var providerRef, failureCode, failureMessage sql.NullString
	var sentAt, confirmedAt sql.NullTime

	err := row.Scan(
		&id,
		&intent.ClaimID,
		&intent.PracticeID,
		&intent.AmountCents,
		&intent.Currency,
		&status,
		&intent.IdempotencyKey,
		&provider,
		&providerRef,
		&failureCode,
		&failureMessage,
		&sentAt,
		&confirmedAt,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if intent.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid payment intent id %q: %w", id, err)
	}
	intent.Status = lifecycle.PaymentStatus(status)
	intent.Provider = entity.PaymentProviderName(provider)
	intent.ProviderReference = providerRef.String
	intent.FailureCode = failureCode.String
	intent.FailureMessage = failureMessage.String
	if sentAt.Valid {
		t := sentAt.Time
		intent.SentAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		intent.ConfirmedAt = &t
	}
	return &intent, nil
}

// Verify interface compliance
var _ port.PaymentIntentRepository = (*PaymentIntentRepository)(nil)
