package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

const claimColumns = `
	id, practice_id, patient_name, payer, procedure_codes,
	billed_amount_cents, expected_allowed_amount_cents,
	status, funding_status, funded_amount_cents, decline_reason_code,
	payment_exception, exception_code,
	submission_date, procedure_date, fingerprint,
	created_at, updated_at
`

// Create inserts a new claim and assigns its ID
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	query := `
		INSERT INTO claims (
			practice_id, patient_name, payer, procedure_codes,
			billed_amount_cents, expected_allowed_amount_cents,
			status, funding_status, funded_amount_cents, decline_reason_code,
			payment_exception, exception_code,
			submission_date, procedure_date, fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var procedureDate interface{}
	if claim.ProcedureDate != nil {
		procedureDate = *claim.ProcedureDate
	}
	var fingerprint interface{}
	if claim.Fingerprint != "" {
		fingerprint = claim.Fingerprint
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		claim.PracticeID,
		claim.PatientName,
		claim.Payer,
		claim.ProcedureCodes,
		claim.BilledAmountCents,
		claim.ExpectedAllowedAmountCents,
		string(claim.Status),
		string(claim.FundingStatus),
		claim.FundedAmountCents,
		claim.DeclineReasonCode,
		claim.PaymentException,
		claim.ExceptionCode,
		claim.SubmissionDate,
		procedureDate,
		fingerprint,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", mapUniqueViolation(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	claim.ID = id
	return nil
}

// GetByID retrieves a claim by ID, nil when absent
func (r *ClaimRepository) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := r.scanClaim(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get claim", zap.Int64("claim_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// GetByFingerprint retrieves a claim by its duplicate-detection key
func (r *ClaimRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE fingerprint = ?`

	claim, err := r.scanClaim(getExecutor(ctx, r.db).QueryRowContext(ctx, query, fingerprint))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get claim by fingerprint: %w", err)
	}
	return claim, nil
}

// Update persists a claim's mutable fields
func (r *ClaimRepository) Update(ctx context.Context, claim *entity.Claim) error {
	query := `
		UPDATE claims SET
			status = ?, funding_status = ?, funded_amount_cents = ?,
			decline_reason_code = ?, payment_exception = ?, exception_code = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		string(claim.Status),
		string(claim.FundingStatus),
		claim.FundedAmountCents,
		claim.DeclineReasonCode,
		claim.PaymentException,
		claim.ExceptionCode,
		claim.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.Int64("claim_id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}
	return nil
}

// List retrieves claims, optionally filtered by practice
func (r *ClaimRepository) List(ctx context.Context, practiceID int64, limit, offset int) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims`
	args := []interface{}{}
	if practiceID > 0 {
		query += ` WHERE practice_id = ?`
		args = append(args, practiceID)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.Claim
	for rows.Next() {
		claim, err := r.scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ClaimRepository) scanClaim(row rowScanner) (*entity.Claim, error) {
	var claim entity.Claim
	var status, fundingStatus string
	var declineReason, exceptionCode, fingerprint sql.NullString
	var procedureDate sql.NullTime

	err := row.Scan(
		&claim.ID,
		&claim.PracticeID,
		&claim.PatientName,
		&claim.Payer,
		&claim.ProcedureCodes,
		&claim.BilledAmountCents,
		&claim.ExpectedAllowedAmountCents,
		&status,
		&fundingStatus,
		&claim.FundedAmountCents,
		&declineReason,
		&claim.PaymentException,
		&exceptionCode,
		&claim.SubmissionDate,
		&procedureDate,
		&fingerprint,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.Status = lifecycle.ClaimStatus(status)
	claim.FundingStatus = lifecycle.FundingStatus(fundingStatus)
	claim.DeclineReasonCode = declineReason.String
	claim.ExceptionCode = exceptionCode.String
	claim.Fingerprint = fingerprint.String
	if procedureDate.Valid {
		t := procedureDate.Time
		claim.ProcedureDate = &t
	}
	return &claim, nil
}

// Verify interface compliance
var _ port.ClaimRepository = (*ClaimRepository)(nil)
