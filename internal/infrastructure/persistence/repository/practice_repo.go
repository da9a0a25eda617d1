package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// PracticeRepository implements port.PracticeRepository
type PracticeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPracticeRepository creates a new practice repository
func NewPracticeRepository(db *sql.DB, logger *zap.Logger) port.PracticeRepository {
	return &PracticeRepository{
		db:     db,
		logger: logger,
	}
}

const practiceColumns = `
	id, name, status, tenure_months, historical_clean_claim_rate,
	payer_mix, max_exposure_limit_cents, current_exposure_cents, created_at
`

// Create inserts a new practice
func (r *PracticeRepository) Create(ctx context.Context, practice *entity.Practice) error {
	query := `
		INSERT INTO practices (
			name, status, tenure_months, historical_clean_claim_rate,
			payer_mix, max_exposure_limit_cents, current_exposure_cents
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		practice.Name,
		string(practice.Status),
		practice.TenureMonths,
		practice.HistoricalCleanClaimRate,
		practice.PayerMix,
		practice.MaxExposureLimitCents,
		practice.CurrentExposureCents,
	)
	if err != nil {
		r.logger.Error("Failed to create practice", zap.Error(err))
		return fmt.Errorf("failed to create practice: %w", mapUniqueViolation(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	practice.ID = id
	return nil
}

// GetByID retrieves a practice by ID, nil when absent
func (r *PracticeRepository) GetByID(ctx context.Context, id int64) (*entity.Practice, error) {
	query := `SELECT ` + practiceColumns + ` FROM practices WHERE id = ?`

	practice, err := r.scanPractice(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get practice", zap.Int64("practice_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get practice: %w", err)
	}
	return practice, nil
}

// Update persists a practice's mutable fields. The exposure counter is
// only ever written inside the fund/settle transactions.
func (r *PracticeRepository) Update(ctx context.Context, practice *entity.Practice) error {
	query := `
		UPDATE practices SET
			name = ?, status = ?, tenure_months = ?,
			historical_clean_claim_rate = ?, payer_mix = ?,
			max_exposure_limit_cents = ?, current_exposure_cents = ?
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		practice.Name,
		string(practice.Status),
		practice.TenureMonths,
		practice.HistoricalCleanClaimRate,
		practice.PayerMix,
		practice.MaxExposureLimitCents,
		practice.CurrentExposureCents,
		practice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update practice", zap.Int64("practice_id", practice.ID), zap.Error(err))
		return fmt.Errorf("failed to update practice: %w", err)
	}
	return nil
}

// List retrieves all practices
func (r *PracticeRepository) List(ctx context.Context) ([]*entity.Practice, error) {
	query := `SELECT ` + practiceColumns + ` FROM practices ORDER BY id`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list practices", zap.Error(err))
		return nil, fmt.Errorf("failed to list practices: %w", err)
	}
	defer rows.Close()

	var practices []*entity.Practice
	for rows.Next() {
		practice, err := r.scanPractice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice: %w", err)
		}
		practices = append(practices, practice)
	}
	return practices, rows.Err()
}

func (r *PracticeRepository) scanPractice(row rowScanner) (*entity.Practice, error) {
	var practice entity.Practice
	var status string

	err := row.Scan(
		&practice.ID,
		&practice.Name,
		&status,
		&practice.TenureMonths,
		&practice.HistoricalCleanClaimRate,
		&practice.PayerMix,
		&practice.MaxExposureLimitCents,
		&practice.CurrentExposureCents,
		&practice.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	practice.Status = entity.PracticeStatus(status)
	return &practice, nil
}

// Verify interface compliance
var _ port.PracticeRepository = (*PracticeRepository)(nil)
