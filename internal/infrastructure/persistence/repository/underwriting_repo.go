package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// UnderwritingDecisionRepository implements port.UnderwritingDecisionRepository
type UnderwritingDecisionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUnderwritingDecisionRepository creates a new underwriting decision repository
func NewUnderwritingDecisionRepository(db *sql.DB, logger *zap.Logger) port.UnderwritingDecisionRepository {
	return &UnderwritingDecisionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new underwriting record
func (r *UnderwritingDecisionRepository) Create(ctx context.Context, record *entity.UnderwritingRecord) error {
	query := `
		INSERT INTO underwriting_decisions (claim_id, decision, funded_amount_cents, reason_code)
		VALUES (?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		record.ClaimID,
		string(record.Decision),
		record.FundedAmountCents,
		record.ReasonCode,
	)
	if err != nil {
		r.logger.Error("Failed to create underwriting decision",
			zap.Int64("claim_id", record.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create underwriting decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// ListByClaimID retrieves all underwriting runs for a claim, oldest
// first
func (r *UnderwritingDecisionRepository) ListByClaimID(ctx context.Context, claimID int64) ([]*entity.UnderwritingRecord, error) {
	query := `
		SELECT id, claim_id, decision, funded_amount_cents, reason_code, created_at
		FROM underwriting_decisions
		WHERE claim_id = ?
		ORDER BY id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to list underwriting decisions",
			zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to list underwriting decisions: %w", err)
	}
	defer rows.Close()

	var records []*entity.UnderwritingRecord
	for rows.Next() {
		var record entity.UnderwritingRecord
		var decision string
		var reason sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.ClaimID,
			&decision,
			&record.FundedAmountCents,
			&reason,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan underwriting decision: %w", err)
		}
		record.Decision = entity.DecisionType(decision)
		record.ReasonCode = reason.String
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.UnderwritingDecisionRepository = (*UnderwritingDecisionRepository)(nil)
