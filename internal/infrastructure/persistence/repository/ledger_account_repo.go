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

// LedgerAccountRepository implements port.LedgerAccountRepository
type LedgerAccountRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerAccountRepository creates a new ledger account repository
func NewLedgerAccountRepository(db *sql.DB, logger *zap.Logger) port.LedgerAccountRepository {
	return &LedgerAccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new ledger account. The (account_type, practice_id,
// currency) unique constraint backs the get-or-create race.
func (r *LedgerAccountRepository) Create(ctx context.Context, account *entity.LedgerAccount) error {
	query := `
		INSERT INTO ledger_accounts (id, account_type, practice_id, currency)
		VALUES (?, ?, ?, ?)
	`

	var practiceID interface{}
	if account.PracticeID != nil {
		practiceID = *account.PracticeID
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		account.ID.String(),
		string(account.AccountType),
		practiceID,
		account.Currency,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger account",
			zap.String("account_type", string(account.AccountType)), zap.Error(err))
		return fmt.Errorf("failed to create ledger account: %w", mapUniqueViolation(err))
	}
	return nil
}

// Find retrieves the account matching the unique triple, nil when
// absent
func (r *LedgerAccountRepository) Find(ctx context.Context, accountType entity.LedgerAccountType, practiceID *int64, currency string) (*entity.LedgerAccount, error) {
	query := `
		SELECT id, account_type, practice_id, currency, created_at
		FROM ledger_accounts
		WHERE account_type = ? AND currency = ?
	`
	args := []interface{}{string(accountType), currency}
	if practiceID != nil {
		query += ` AND practice_id = ?`
		args = append(args, *practiceID)
	} else {
		query += ` AND practice_id IS NULL`
	}

	var account entity.LedgerAccount
	var id string
	var storedType string
	var storedPracticeID sql.NullInt64

	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(
		&id,
		&storedType,
		&storedPracticeID,
		&account.Currency,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find ledger account",
			zap.String("account_type", string(accountType)), zap.Error(err))
		return nil, fmt.Errorf("failed to find ledger account: %w", err)
	}

	account.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger account id %q: %w", id, err)
	}
	account.AccountType = entity.LedgerAccountType(storedType)
	if storedPracticeID.Valid {
		v := storedPracticeID.Int64
		account.PracticeID = &v
	}
	return &account, nil
}

// Verify interface compliance
var _ port.LedgerAccountRepository = (*LedgerAccountRepository)(nil)
