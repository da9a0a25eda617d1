package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/application/service"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
)

type stubLedger struct {
	service.LedgerService
	summary *entity.LedgerSummary
}

func (s stubLedger) GetLedgerSummary(ctx context.Context, currency string) (*entity.LedgerSummary, error) {
	return s.summary, nil
}

type stubEntries struct {
	port.LedgerEntryRepository
	entries []*entity.LedgerEntry
}

func (s stubEntries) ListRecent(ctx context.Context, limit int) ([]*entity.LedgerEntry, error) {
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func TestExportWritesSummaryAndJournal(t *testing.T) {
	claimID := int64(42)
	entries := []*entity.LedgerEntry{
		{
			ID:             uuid.New(),
			AccountID:      uuid.New(),
			RelatedType:    entity.RelatedPaymentIntent,
			RelatedID:      uuid.New(),
			ClaimID:        &claimID,
			Direction:      entity.DirectionDebit,
			AmountCents:    30_000,
			Status:         entity.EntryPosted,
			IdempotencyKey: "payment:x:reserve:debit",
			CreatedAt:      time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	exporter := NewLedgerExporter(
		stubLedger{summary: &entity.LedgerSummary{
			Currency:                  "USD",
			CapitalCashCents:          970_000,
			PaymentClearingCents:      30_000,
			TotalPracticePayableCents: 0,
		}},
		stubEntries{entries: entries},
		zap.NewNop(),
	)

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), "USD", 100, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	currency, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)

	cash, err := f.GetCellValue(summarySheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "970000", cash)

	key, err := f.GetCellValue(journalSheet, "I2")
	require.NoError(t, err)
	assert.Equal(t, "payment:x:reserve:debit", key)

	claim, err := f.GetCellValue(journalSheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, "42", claim)
}

func TestExportHonorsJournalLimit(t *testing.T) {
	var entries []*entity.LedgerEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, &entity.LedgerEntry{
			ID:             uuid.New(),
			AccountID:      uuid.New(),
			RelatedType:    entity.RelatedCapitalContribution,
			RelatedID:      uuid.New(),
			Direction:      entity.DirectionCredit,
			AmountCents:    100,
			Status:         entity.EntryPosted,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      time.Now().UTC(),
		})
	}
	exporter := NewLedgerExporter(
		stubLedger{summary: &entity.LedgerSummary{Currency: "USD"}},
		stubEntries{entries: entries},
		zap.NewNop(),
	)

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(context.Background(), "USD", 2, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(journalSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3) // header plus two entries
}
