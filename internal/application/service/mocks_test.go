package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

// In-memory repositories backing the service tests. State lives in maps
// so the accounting assertions can observe exactly what the services
// wrote; func fields override individual calls for error injection.

type mockClaimRepo struct {
	mu     sync.Mutex
	claims map[int64]*entity.Claim
	nextID int64

	updateFunc func(ctx context.Context, claim *entity.Claim) error
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{claims: make(map[int64]*entity.Claim), nextID: 1}
}

func (m *mockClaimRepo) Create(ctx context.Context, claim *entity.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	claim.ID = m.nextID
	m.nextID++
	m.claims[claim.ID] = claim
	return nil
}

func (m *mockClaimRepo) GetByID(ctx context.Context, id int64) (*entity.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims[id], nil
}

func (m *mockClaimRepo) GetByFingerprint(ctx context.Context, fingerprint string) (*entity.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.Fingerprint == fingerprint {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockClaimRepo) Update(ctx context.Context, claim *entity.Claim) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, claim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[claim.ID] = claim
	return nil
}

func (m *mockClaimRepo) List(ctx context.Context, practiceID int64, limit, offset int) ([]*entity.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Claim
	for _, c := range m.claims {
		if practiceID == 0 || c.PracticeID == practiceID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockPracticeRepo struct {
	practices map[int64]*entity.Practice
}

func newMockPracticeRepo(practices ...*entity.Practice) *mockPracticeRepo {
	m := &mockPracticeRepo{practices: make(map[int64]*entity.Practice)}
	for _, p := range practices {
		m.practices[p.ID] = p
	}
	return m
}

func (m *mockPracticeRepo) Create(ctx context.Context, practice *entity.Practice) error {
	if practice.ID == 0 {
		practice.ID = int64(len(m.practices) + 1)
	}
	m.practices[practice.ID] = practice
	return nil
}

func (m *mockPracticeRepo) GetByID(ctx context.Context, id int64) (*entity.Practice, error) {
	return m.practices[id], nil
}

func (m *mockPracticeRepo) Update(ctx context.Context, practice *entity.Practice) error {
	m.practices[practice.ID] = practice
	return nil
}

func (m *mockPracticeRepo) List(ctx context.Context) ([]*entity.Practice, error) {
	var out []*entity.Practice
	for _, p := range m.practices {
		out = append(out, p)
	}
	return out, nil
}

type mockPoolRepo struct {
	pools map[string]*entity.CapitalPool
}

func newMockPoolRepo(pools ...*entity.CapitalPool) *mockPoolRepo {
	m := &mockPoolRepo{pools: make(map[string]*entity.CapitalPool)}
	for _, p := range pools {
		m.pools[p.ID] = p
	}
	return m
}

func (m *mockPoolRepo) Create(ctx context.Context, pool *entity.CapitalPool) error {
	m.pools[pool.ID] = pool
	return nil
}

func (m *mockPoolRepo) GetByID(ctx context.Context, id string) (*entity.CapitalPool, error) {
	return m.pools[id], nil
}

func (m *mockPoolRepo) Update(ctx context.Context, pool *entity.CapitalPool) error {
	m.pools[pool.ID] = pool
	return nil
}

type mockAccountRepo struct {
	accounts map[uuid.UUID]*entity.LedgerAccount
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[uuid.UUID]*entity.LedgerAccount)}
}

func (m *mockAccountRepo) Create(ctx context.Context, account *entity.LedgerAccount) error {
	m.accounts[account.ID] = account
	return nil
}

func (m *mockAccountRepo) Find(ctx context.Context, accountType entity.LedgerAccountType, practiceID *int64, currency string) (*entity.LedgerAccount, error) {
	for _, a := range m.accounts {
		if a.AccountType != accountType || a.Currency != currency {
			continue
		}
		if (a.PracticeID == nil) != (practiceID == nil) {
			continue
		}
		if practiceID != nil && *a.PracticeID != *practiceID {
			continue
		}
		return a, nil
	}
	return nil, nil
}

type mockEntryRepo struct {
	accounts *mockAccountRepo
	entries  []*entity.LedgerEntry

	createFunc func(ctx context.Context, entry *entity.LedgerEntry) error
}

func newMockEntryRepo(accounts *mockAccountRepo) *mockEntryRepo {
	return &mockEntryRepo{accounts: accounts}
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *entity.LedgerEntry) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockEntryRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.LedgerEntry, error) {
	for _, e := range m.entries {
		if e.IdempotencyKey == key {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockEntryRepo) ListByRelated(ctx context.Context, relatedType entity.EntryRelatedType, relatedID uuid.UUID, status entity.EntryStatus) ([]*entity.LedgerEntry, error) {
	var out []*entity.LedgerEntry
	for _, e := range m.entries {
		if e.RelatedType == relatedType && e.RelatedID == relatedID && e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEntryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.EntryStatus) error {
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = status
		}
	}
	return nil
}

func (m *mockEntryRepo) SumBalance(ctx context.Context, accountID uuid.UUID, statusFilter *entity.EntryStatus) (int64, error) {
	var balance int64
	for _, e := range m.entries {
		if e.AccountID != accountID {
			continue
		}
		if statusFilter != nil {
			if e.Status != *statusFilter {
				continue
			}
		} else if e.Status == entity.EntryReversed {
			continue
		}
		if e.Direction == entity.DirectionCredit {
			balance += e.AmountCents
		} else {
			balance -= e.AmountCents
		}
	}
	return balance, nil
}

func (m *mockEntryRepo) SumBalanceByAccountType(ctx context.Context, accountType entity.LedgerAccountType, currency string) (int64, error) {
	var balance int64
	for _, e := range m.entries {
		account := m.accounts.accounts[e.AccountID]
		if account == nil || account.AccountType != accountType || account.Currency != currency {
			continue
		}
		if e.Status == entity.EntryReversed {
			continue
		}
		if e.Direction == entity.DirectionCredit {
			balance += e.AmountCents
		} else {
			balance -= e.AmountCents
		}
	}
	return balance, nil
}

func (m *mockEntryRepo) ListRecent(ctx context.Context, limit int) ([]*entity.LedgerEntry, error) {
	out := make([]*entity.LedgerEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// countEntries counts entries whose idempotency key contains needle.
func (m *mockEntryRepo) countEntries(needle string) int {
	n := 0
	for _, e := range m.entries {
		if strings.Contains(e.IdempotencyKey, needle) {
			n++
		}
	}
	return n
}

type mockPaymentRepo struct {
	intents map[uuid.UUID]*entity.PaymentIntent
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{intents: make(map[uuid.UUID]*entity.PaymentIntent)}
}

func (m *mockPaymentRepo) Create(ctx context.Context, intent *entity.PaymentIntent) error {
	m.intents[intent.ID] = intent
	return nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentIntent, error) {
	return m.intents[id], nil
}

func (m *mockPaymentRepo) GetByClaimID(ctx context.Context, claimID int64) (*entity.PaymentIntent, error) {
	for _, i := range m.intents {
		if i.ClaimID == claimID {
			return i, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.PaymentIntent, error) {
	for _, i := range m.intents {
		if i.IdempotencyKey == key {
			return i, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) Update(ctx context.Context, intent *entity.PaymentIntent) error {
	m.intents[intent.ID] = intent
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.intents, id)
	return nil
}

type mockDecisionRepo struct {
	records []*entity.UnderwritingRecord
}

func (m *mockDecisionRepo) Create(ctx context.Context, record *entity.UnderwritingRecord) error {
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

func (m *mockDecisionRepo) ListByClaimID(ctx context.Context, claimID int64) ([]*entity.UnderwritingRecord, error) {
	var out []*entity.UnderwritingRecord
	for _, r := range m.records {
		if r.ClaimID == claimID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockTxManager runs the callback outside any real transaction. The
// services only care that nested calls share the same context.
type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockAuditLogger struct {
	events []port.AuditEvent
}

func (m *mockAuditLogger) LogEvent(ctx context.Context, event port.AuditEvent) {
	m.events = append(m.events, event)
}

type mockPaymentProvider struct {
	sendFunc  func(ctx context.Context, req port.SendPaymentRequest) (port.PaymentResult, error)
	checkFunc func(ctx context.Context, providerReference string) (port.PaymentResult, error)
	sendCalls int
}

func (m *mockPaymentProvider) SendPayment(ctx context.Context, req port.SendPaymentRequest) (port.PaymentResult, error) {
	m.sendCalls++
	if m.sendFunc != nil {
		return m.sendFunc(ctx, req)
	}
	return port.PaymentResult{Status: port.PaymentResultSuccess, ProviderReference: "SIM-TEST"}, nil
}

func (m *mockPaymentProvider) CheckPaymentStatus(ctx context.Context, providerReference string) (port.PaymentResult, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, providerReference)
	}
	return port.PaymentResult{Status: port.PaymentResultSuccess, ProviderReference: providerReference}, nil
}
