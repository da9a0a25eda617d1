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

// CapitalPoolRepository implements port.CapitalPoolRepository
type CapitalPoolRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCapitalPoolRepository creates a new capital pool repository
func NewCapitalPoolRepository(db *sql.DB, logger *zap.Logger) port.CapitalPoolRepository {
	return &CapitalPoolRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new capital pool
func (r *CapitalPoolRepository) Create(ctx context.Context, pool *entity.CapitalPool) error {
	query := `
		INSERT INTO capital_pools (
			id, total_capital_cents, available_capital_cents,
			capital_allocated_cents, capital_pending_settlement_cents,
			capital_returned_cents, total_days_outstanding, num_settled_claims
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		pool.ID,
		pool.TotalCapitalCents,
		pool.AvailableCapitalCents,
		pool.CapitalAllocatedCents,
		pool.CapitalPendingSettlementCents,
		pool.CapitalReturnedCents,
		pool.TotalDaysOutstanding,
		pool.NumSettledClaims,
	)
	if err != nil {
		r.logger.Error("Failed to create capital pool", zap.String("pool_id", pool.ID), zap.Error(err))
		return fmt.Errorf("failed to create capital pool: %w", mapUniqueViolation(err))
	}
	return nil
}

// GetByID retrieves a capital pool by ID, nil when absent
func (r *CapitalPoolRepository) GetByID(ctx context.Context, id string) (*entity.CapitalPool, error) {
	query := `
		SELECT id, total_capital_cents, available_capital_cents,
			capital_allocated_cents, capital_pending_settlement_cents,
			capital_returned_cents, total_days_outstanding, num_settled_claims,
			created_at, updated_at
		FROM capital_pools
		WHERE id = ?
	`

	var pool entity.CapitalPool
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&pool.ID,
		&pool.TotalCapitalCents,
		&pool.AvailableCapitalCents,
		&pool.CapitalAllocatedCents,
		&pool.CapitalPendingSettlementCents,
		&pool.CapitalReturnedCents,
		&pool.TotalDaysOutstanding,
		&pool.NumSettledClaims,
		&pool.CreatedAt,
		&pool.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get capital pool", zap.String("pool_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get capital pool: %w", err)
	}
	return &pool, nil
}

// Update persists all pool counters
func (r *CapitalPoolRepository) Update(ctx context.Context, pool *entity.CapitalPool) error {
	query := `
		UPDATE capital_pools SET
			total_capital_cents = ?, available_capital_cents = ?,
			capital_allocated_cents = ?, capital_pending_settlement_cents = ?,
			capital_returned_cents = ?, total_days_outstanding = ?,
			num_settled_claims = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		pool.TotalCapitalCents,
		pool.AvailableCapitalCents,
		pool.CapitalAllocatedCents,
		pool.CapitalPendingSettlementCents,
		pool.CapitalReturnedCents,
		pool.TotalDaysOutstanding,
		pool.NumSettledClaims,
		pool.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update capital pool", zap.String("pool_id", pool.ID), zap.Error(err))
		return fmt.Errorf("failed to update capital pool: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.CapitalPoolRepository = (*CapitalPoolRepository)(nil)
