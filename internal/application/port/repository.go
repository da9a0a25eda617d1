package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// ClaimRepository defines persistence operations for Claim
type ClaimRepository interface {
	Create(ctx context.Context, claim *entity.Claim) error
	GetByID(ctx context.Context, id int64) (*entity.Claim, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*entity.Claim, error)
	Update(ctx context.Context, claim *entity.Claim) error
	List(ctx context.Context, practiceID int64, limit, offset int) ([]*entity.Claim, error)
}

// PracticeRepository defines persistence operations for Practice
type PracticeRepository interface {
	Create(ctx context.Context, practice *entity.Practice) error
	GetByID(ctx context.Context, id int64) (*entity.Practice, error)
	Update(ctx context.Context, practice *entity.Practice) error
	List(ctx context.Context) ([]*entity.Practice, error)
}

// CapitalPoolRepository defines persistence operations for CapitalPool
type CapitalPoolRepository interface {
	Create(ctx context.Context, pool *entity.CapitalPool) error
	GetByID(ctx context.Context, id string) (*entity.CapitalPool, error)
	Update(ctx context.Context, pool *entity.CapitalPool) error
}

// LedgerAccountRepository defines persistence operations for LedgerAccount.
// Accounts are unique per (account_type, practice_id, currency).
type LedgerAccountRepository interface {
	Create(ctx context.Context, account *entity.LedgerAccount) error

	// Find returns nil, nil when no account matches.
	Find(ctx context.Context, accountType entity.LedgerAccountType, practiceID *int64, currency string) (*entity.LedgerAccount, error)
}

// LedgerEntryRepository defines persistence operations for LedgerEntry.
// Create must surface a unique-constraint violation on the idempotency
// key so the service can map it to service.ErrDuplicateEntry.
type LedgerEntryRepository interface {
	Create(ctx context.Context, entry *entity.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.LedgerEntry, error)
	ListByRelated(ctx context.Context, relatedType entity.EntryRelatedType, relatedID uuid.UUID, status entity.EntryStatus) ([]*entity.LedgerEntry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.EntryStatus) error

	// SumBalance computes credits minus debits for one account. A nil
	// statusFilter sums all non-REVERSED entries.
	SumBalance(ctx context.Context, accountID uuid.UUID, statusFilter *entity.EntryStatus) (int64, error)

	// SumBalanceByAccountType computes credits minus debits across every
	// account of a type, restricted to non-REVERSED entries.
	SumBalanceByAccountType(ctx context.Context, accountType entity.LedgerAccountType, currency string) (int64, error)

	// ListRecent returns the newest entries first, for reporting.
	ListRecent(ctx context.Context, limit int) ([]*entity.LedgerEntry, error)
}

// PaymentIntentRepository defines persistence operations for
// PaymentIntent. Delete exists only for the retry-by-recreate path.
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *entity.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentIntent, error)
	GetByClaimID(ctx context.Context, claimID int64) (*entity.PaymentIntent, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.PaymentIntent, error)
	Update(ctx context.Context, intent *entity.PaymentIntent) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UnderwritingDecisionRepository records each underwriting run for later
// analysis.
type UnderwritingDecisionRepository interface {
	Create(ctx context.Context, record *entity.UnderwritingRecord) error
	ListByClaimID(ctx context.Context, claimID int64) ([]*entity.UnderwritingRecord, error)
}

// TransactionManager handles database transactions. The transaction
// handle travels in the context; nested calls reuse it, so the
// orchestration method owns the commit/rollback boundary.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
