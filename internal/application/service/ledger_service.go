package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// DefaultCurrency tags all V1 money movement. Multi-currency settlement
// is out of scope beyond this tag.
const DefaultCurrency = "USD"

// LedgerService is the double-entry bookkeeping layer the payment path
// posts against. Entries are append-only; the idempotency key on every
// entry is the sole retry and concurrency safety mechanism.
type LedgerService interface {
	GetOrCreateAccount(ctx context.Context, accountType entity.LedgerAccountType, practiceID *int64, currency string) (*entity.LedgerAccount, error)
	ComputeBalance(ctx context.Context, account *entity.LedgerAccount, statusFilter *entity.EntryStatus) (int64, error)
	GetAvailableCapital(ctx context.Context, currency string) (int64, error)
	CreateEntry(ctx context.Context, p CreateEntryParams) (*entity.LedgerEntry, error)
	ReserveFunds(ctx context.Context, intent *entity.PaymentIntent, amountCents int64) error
	ConfirmPayment(ctx context.Context, intent *entity.PaymentIntent) error
	ReleaseReservation(ctx context.Context, intent *entity.PaymentIntent) error
	GetLedgerSummary(ctx context.Context, currency string) (*entity.LedgerSummary, error)
}

// CreateEntryParams carries one half of a double-entry posting.
type CreateEntryParams struct {
	Account        *entity.LedgerAccount
	Direction      entity.EntryDirection
	AmountCents    int64
	RelatedType    entity.EntryRelatedType
	RelatedID      uuid.UUID
	ClaimID        *int64
	IdempotencyKey string
	Status         entity.EntryStatus
}

type ledgerService struct {
	accountRepo port.LedgerAccountRepository
	entryRepo   port.LedgerEntryRepository
	logger      *zap.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	accountRepo port.LedgerAccountRepository,
	entryRepo port.LedgerEntryRepository,
	logger *zap.Logger,
) LedgerService {
	return &ledgerService{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		logger:      logger,
	}
}

// GetOrCreateAccount is an idempotent lookup-or-insert keyed by the
// unique (type, practice, currency) triple.
func (s *ledgerService) GetOrCreateAccount(ctx context.Context, accountType entity.LedgerAccountType, practiceID *int64, currency string) (*entity.LedgerAccount, error) {
	account, err := s.accountRepo.Find(ctx, accountType, practiceID, currency)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	account = &entity.LedgerAccount{
		ID:          uuid.New(),
		AccountType: accountType,
		Currency:    currency,
		PracticeID:  practiceID,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Created ledger account",
		zap.String("account_type", string(accountType)),
		zap.Any("practice_id", practiceID),
		zap.String("currency", currency))
	return account, nil
}

// ComputeBalance derives the balance as credits minus debits. With a
// nil filter, REVERSED entries are excluded so reversals never count.
func (s *ledgerService) ComputeBalance(ctx context.Context, account *entity.LedgerAccount, statusFilter *entity.EntryStatus) (int64, error) {
	return s.entryRepo.SumBalance(ctx, account.ID, statusFilter)
}

// GetAvailableCapital returns the CAPITAL_CASH balance, zero when the
// account has not been bootstrapped.
func (s *ledgerService) GetAvailableCapital(ctx context.Context, currency string) (int64, error) {
	account, err := s.accountRepo.Find(ctx, entity.AccountCapitalCash, nil, currency)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return s.entryRepo.SumBalance(ctx, account.ID, nil)
}

// CreateEntry appends one posting. A reused idempotency key fails with
// ErrDuplicateEntry and leaves the books unchanged; callers derive keys
// deterministically from the business event so a retried operation is a
// safe no-op rather than a double-post.
func (s *ledgerService) CreateEntry(ctx context.Context, p CreateEntryParams) (*entity.LedgerEntry, error) {
	if p.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: entry amount must be positive, got %d", ErrLedger, p.AmountCents)
	}

	existing, err := s.entryRepo.GetByIdempotencyKey(ctx, p.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Warn("Duplicate ledger entry attempted", zap.String("idempotency_key", p.IdempotencyKey))
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, p.IdempotencyKey)
	}

	entry := &entity.LedgerEntry{
		ID:             uuid.New(),
		AccountID:      p.Account.ID,
		RelatedType:    p.RelatedType,
		RelatedID:      p.RelatedID,
		ClaimID:        p.ClaimID,
		Direction:      p.Direction,
		AmountCents:    p.AmountCents,
		Status:         p.Status,
		IdempotencyKey: p.IdempotencyKey,
	}
	if err := s.entryRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			// Lost a race with a concurrent post of the same key.
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, p.IdempotencyKey)
		}
		return nil, err
	}

	s.logger.Info("Created ledger entry",
		zap.String("account_type", string(p.Account.AccountType)),
		zap.String("direction", string(p.Direction)),
		zap.Int64("amount_cents", p.AmountCents),
		zap.String("idempotency_key", p.IdempotencyKey))
	return entry, nil
}

// ReserveFunds earmarks the payment amount before a send attempt: a
// PENDING debit against CAPITAL_CASH matched by a PENDING credit against
// PAYMENT_CLEARING, both tagged to the intent.
func (s *ledgerService) ReserveFunds(ctx context.Context, intent *entity.PaymentIntent, amountCents int64) error {
	cash, err := s.requireAccount(ctx, entity.AccountCapitalCash)
	if err != nil {
		return err
	}
	clearing, err := s.requireAccount(ctx, entity.AccountPaymentClearing)
	if err != nil {
		return err
	}

	available, err := s.entryRepo.SumBalance(ctx, cash.ID, nil)
	if err != nil {
		return err
	}
	if available < amountCents {
		return fmt.Errorf("%w: available=%d, required=%d", ErrInsufficientFunds, available, amountCents)
	}

	claimID := intent.ClaimID
	if _, err := s.CreateEntry(ctx, CreateEntryParams{
		Account:        cash,
		Direction:      entity.DirectionDebit,
		AmountCents:    amountCents,
		RelatedType:    entity.RelatedPaymentIntent,
		RelatedID:      intent.ID,
		ClaimID:        &claimID,
		IdempotencyKey: fmt.Sprintf("payment:%s:reserve:debit", intent.ID),
		Status:         entity.EntryPending,
	}); err != nil {
		return err
	}
	if _, err := s.CreateEntry(ctx, CreateEntryParams{
		Account:        clearing,
		Direction:      entity.DirectionCredit,
		AmountCents:    amountCents,
		RelatedType:    entity.RelatedPaymentIntent,
		RelatedID:      intent.ID,
		ClaimID:        &claimID,
		IdempotencyKey: fmt.Sprintf("payment:%s:reserve:credit", intent.ID),
		Status:         entity.EntryPending,
	}); err != nil {
		return err
	}

	s.logger.Info("Reserved funds",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("amount_cents", amountCents))
	return nil
}

// ConfirmPayment posts the reservation and settles the clearing float
// into what is now owed to the practice: PENDING reservation entries
// flip to POSTED, then a POSTED debit on PAYMENT_CLEARING is matched by
// a POSTED credit on the practice's PRACTICE_PAYABLE account.
func (s *ledgerService) ConfirmPayment(ctx context.Context, intent *entity.PaymentIntent) error {
	if err := s.flipPendingEntries(ctx, intent, entity.EntryPosted); err != nil {
		return err
	}

	clearing, err := s.requireAccount(ctx, entity.AccountPaymentClearing)
	if err != nil {
		return err
	}
	payable, err := s.GetOrCreateAccount(ctx, entity.AccountPracticePayable, &intent.PracticeID, intent.Currency)
	if err != nil {
		return err
	}

	claimID := intent.ClaimID
	if _, err := s.CreateEntry(ctx, CreateEntryParams{
		Account:        clearing,
		Direction:      entity.DirectionDebit,
		AmountCents:    intent.AmountCents,
		RelatedType:    entity.RelatedPaymentIntent,
		RelatedID:      intent.ID,
		ClaimID:        &claimID,
		IdempotencyKey: fmt.Sprintf("payment:%s:settle:debit", intent.ID),
		Status:         entity.EntryPosted,
	}); err != nil {
		return err
	}
	if _, err := s.CreateEntry(ctx, CreateEntryParams{
		Account:        payable,
		Direction:      entity.DirectionCredit,
		AmountCents:    intent.AmountCents,
		RelatedType:    entity.RelatedPaymentIntent,
		RelatedID:      intent.ID,
		ClaimID:        &claimID,
		IdempotencyKey: fmt.Sprintf("payment:%s:settle:credit", intent.ID),
		Status:         entity.EntryPosted,
	}); err != nil {
		return err
	}

	s.logger.Info("Confirmed payment on ledger",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("amount_cents", intent.AmountCents),
		zap.Int64("practice_id", intent.PracticeID))
	return nil
}

// ReleaseReservation undoes a failed attempt: PENDING reservation
// entries flip to REVERSED, then a POSTED pair returns the amount from
// PAYMENT_CLEARING to CAPITAL_CASH.
func (s *ledgerService) ReleaseReservation(ctx context.Context, intent *entity.PaymentIntent) error {
	if err := s.flipPendingEntries(ctx, intent, entity.EntryReversed); err != nil {
		return err
	}

	cash, err := s.requireAccount(ctx, entity.AccountCapitalCash)
	if err != nil {
		return err
	}
	clearing, err := s.requireAccount(ctx, entity.AccountPaymentClearing)
	if err != nil {
		return err
	}

	claimID := intent.ClaimID
	if _, err := s.CreateEntry(ctx, CreateEntryParams{
		Account:        clearing,
		Direction:      entity.DirectionDebit,
		AmountCents:    intent.AmountCents,
		RelatedType:    entity.RelatedPaymentIntent,
		RelatedID:      intent.ID,
		ClaimID:        &claimID,
		IdempotencyKey: fmt.Sprintf("payment:%s:release:debit", intent.ID),
		Status:         entity.EntryPosted,
	}); err != nil {
		return err
	}
	if _, err := s.CreateEntry(ctx, CreateEntryParams{
		Account:        cash,
		Direction:      entity.DirectionCredit,
		AmountCents:    intent.AmountCents,
		RelatedType:    entity.RelatedPaymentIntent,
		RelatedID:      intent.ID,
		ClaimID:        &claimID,
		IdempotencyKey: fmt.Sprintf("payment:%s:release:credit", intent.ID),
		Status:         entity.EntryPosted,
	}); err != nil {
		return err
	}

	s.logger.Info("Released reservation",
		zap.String("payment_intent_id", intent.ID.String()),
		zap.Int64("amount_cents", intent.AmountCents))
	return nil
}

// GetLedgerSummary is a point-in-time view of the pool-level books for
// one currency.
func (s *ledgerService) GetLedgerSummary(ctx context.Context, currency string) (*entity.LedgerSummary, error) {
	summary := &entity.LedgerSummary{Currency: currency}

	cash, err := s.accountRepo.Find(ctx, entity.AccountCapitalCash, nil, currency)
	if err != nil {
		return nil, err
	}
	if cash != nil {
		if summary.CapitalCashCents, err = s.entryRepo.SumBalance(ctx, cash.ID, nil); err != nil {
			return nil, err
		}
	}

	clearing, err := s.accountRepo.Find(ctx, entity.AccountPaymentClearing, nil, currency)
	if err != nil {
		return nil, err
	}
	if clearing != nil {
		if summary.PaymentClearingCents, err = s.entryRepo.SumBalance(ctx, clearing.ID, nil); err != nil {
			return nil, err
		}
	}

	totalPayable, err := s.entryRepo.SumBalanceByAccountType(ctx, entity.AccountPracticePayable, currency)
	if err != nil {
		return nil, err
	}
	summary.TotalPracticePayableCents = totalPayable

	return summary, nil
}

func (s *ledgerService) requireAccount(ctx context.Context, accountType entity.LedgerAccountType) (*entity.LedgerAccount, error) {
	account, err := s.accountRepo.Find(ctx, accountType, nil, DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountType)
	}
	return account, nil
}

func (s *ledgerService) flipPendingEntries(ctx context.Context, intent *entity.PaymentIntent, to entity.EntryStatus) error {
	pending, err := s.entryRepo.ListByRelated(ctx, entity.RelatedPaymentIntent, intent.ID, entity.EntryPending)
	if err != nil {
		return err
	}
	for _, e := range pending {
		if err := s.entryRepo.UpdateStatus(ctx, e.ID, to); err != nil {
			return err
		}
	}
	return nil
}
