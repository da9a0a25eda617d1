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
)

// LedgerEntryRepository implements port.LedgerEntryRepository
type LedgerEntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerEntryRepository creates a new ledger entry repository
func NewLedgerEntryRepository(db *sql.DB, logger *zap.Logger) port.LedgerEntryRepository {
	return &LedgerEntryRepository{
		db:     db,
		logger: logger,
	}
}

const entryColumns = `
	id, account_id, related_type, related_id, claim_id,
	direction, amount_cents, status, idempotency_key, created_at
`

// Create inserts a new ledger entry. The idempotency_key unique
// constraint is the concurrency backstop; a violation surfaces as
// port.ErrDuplicateKey.
func (r *LedgerEntryRepository) Create(ctx context.Context, entry *entity.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (
			id, account_id, related_type, related_id, claim_id,
			direction, amount_cents, status, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var claimID interface{}
	if entry.ClaimID != nil {
		claimID = *entry.ClaimID
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ID.String(),
		entry.AccountID.String(),
		string(entry.RelatedType),
		entry.RelatedID.String(),
		claimID,
		string(entry.Direction),
		entry.AmountCents,
		string(entry.Status),
		entry.IdempotencyKey,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger entry",
			zap.String("idempotency_key", entry.IdempotencyKey), zap.Error(err))
		return fmt.Errorf("failed to create ledger entry: %w", mapUniqueViolation(err))
	}
	return nil
}

// GetByIdempotencyKey retrieves an entry by its key, nil when absent
func (r *LedgerEntryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE idempotency_key = ?`

	entry, err := r.scanEntry(getExecutor(ctx, r.db).QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

// ListByRelated retrieves entries pointing at one business event in one
// status
func (r *LedgerEntryRepository) ListByRelated(ctx context.Context, relatedType entity.EntryRelatedType, relatedID uuid.UUID, status entity.EntryStatus) ([]*entity.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE related_type = ? AND related_id = ? AND status = ?
		ORDER BY created_at
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		string(relatedType), relatedID.String(), string(status))
	if err != nil {
		r.logger.Error("Failed to list ledger entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.LedgerEntry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateStatus flips one entry's posting status, the only mutation
// entries ever receive
func (r *LedgerEntryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.EntryStatus) error {
	query := `UPDATE ledger_entries SET status = ? WHERE id = ?`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, string(status), id.String())
	if err != nil {
		r.logger.Error("Failed to update ledger entry status",
			zap.String("entry_id", id.String()), zap.Error(err))
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}
	return nil
}

// SumBalance computes credits minus debits for one account. A nil
// statusFilter sums all non-REVERSED entries.
func (r *LedgerEntryRepository) SumBalance(ctx context.Context, accountID uuid.UUID, statusFilter *entity.EntryStatus) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount_cents ELSE -amount_cents END), 0)
		FROM ledger_entries
		WHERE account_id = ?
	`
	args := []interface{}{accountID.String()}
	if statusFilter != nil {
		query += ` AND status = ?`
		args = append(args, string(*statusFilter))
	} else {
		query += ` AND status != 'REVERSED'`
	}

	var balance int64
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&balance); err != nil {
		r.logger.Error("Failed to sum balance",
			zap.String("account_id", accountID.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to sum balance: %w", err)
	}
	return balance, nil
}

// SumBalanceByAccountType computes credits minus debits across every
// account of a type, restricted to non-REVERSED entries
func (r *LedgerEntryRepository) SumBalanceByAccountType(ctx context.Context, accountType entity.LedgerAccountType, currency string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN e.direction = 'CREDIT' THEN e.amount_cents ELSE -e.amount_cents END), 0)
		FROM ledger_entries e
		JOIN ledger_accounts a ON a.id = e.account_id
		WHERE a.account_type = ? AND a.currency = ? AND e.status != 'REVERSED'
	`

	var balance int64
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query,
		string(accountType), currency).Scan(&balance); err != nil {
		r.logger.Error("Failed to sum balance by account type",
			zap.String("account_type", string(accountType)), zap.Error(err))
		return 0, fmt.Errorf("failed to sum balance by account type: %w", err)
	}
	return balance, nil
}

// ListRecent returns the newest entries first, for reporting
func (r *LedgerEntryRepository) ListRecent(ctx context.Context, limit int) ([]*entity.LedgerEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list recent ledger entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list recent ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.LedgerEntry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *LedgerEntryRepository) scanEntry(row rowScanner) (*entity.LedgerEntry, error) {
	var entry entity.LedgerEntry
	var id, accountID, relatedType, relatedID, direction, status string
	var claimID sql.NullInt64

	err := row.Scan(
		&id,
		&accountID,
		&relatedType,
		&relatedID,
		&claimID,
		&direction,
		&entry.AmountCents,
		&status,
		&entry.IdempotencyKey,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid ledger entry id %q: %w", id, err)
	}
	if entry.AccountID, err = uuid.Parse(accountID); err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}
	if entry.RelatedID, err = uuid.Parse(relatedID); err != nil {
		return nil, fmt.Errorf("invalid related id %q: %w", relatedID, err)
	}
	entry.RelatedType = entity.EntryRelatedType(relatedType)
	entry.Direction = entity.EntryDirection(direction)
	entry.Status = entity.EntryStatus(status)
	if claimID.Valid {
		v := claimID.Int64
		entry.ClaimID = &v
	}
	return &entry, nil
}

// Verify interface compliance
var _ port.LedgerEntryRepository = (*LedgerEntryRepository)(nil)
