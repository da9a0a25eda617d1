// Package report produces operational reconciliation workbooks from the
// ledger journal.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/spoonbill/claims-factoring/internal/application/port"
	"github.com/spoonbill/claims-factoring/internal/application/service"
)

const (
	summarySheet = "Summary"
	journalSheet = "Journal"

	// DefaultJournalLimit caps how many entries one export carries.
	DefaultJournalLimit = 5000
)

// LedgerExporter writes the ledger summary and entry journal to an xlsx
// workbook for ops reconciliation.
type LedgerExporter struct {
	ledger    service.LedgerService
	entryRepo port.LedgerEntryRepository
	logger    *zap.Logger
}

// NewLedgerExporter creates a new ledger exporter
func NewLedgerExporter(ledger service.LedgerService, entryRepo port.LedgerEntryRepository, logger *zap.Logger) *LedgerExporter {
	return &LedgerExporter{
		ledger:    ledger,
		entryRepo: entryRepo,
		logger:    logger,
	}
}

// Export writes the workbook for one currency to w. limit caps the
// journal sheet; values outside (0, DefaultJournalLimit] fall back to
// the default.
func (e *LedgerExporter) Export(ctx context.Context, currency string, limit int, w io.Writer) error {
	if limit <= 0 || limit > DefaultJournalLimit {
		limit = DefaultJournalLimit
	}

	summary, err := e.ledger.GetLedgerSummary(ctx, currency)
	if err != nil {
		return fmt.Errorf("failed to build ledger summary: %w", err)
	}
	entries, err := e.entryRepo.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list journal entries: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	e.setCell(f, summarySheet, "A1", "Generated")
	e.setCell(f, summarySheet, "B1", time.Now().UTC().Format(time.RFC3339))
	e.setCell(f, summarySheet, "A2", "Currency")
	e.setCell(f, summarySheet, "B2", summary.Currency)
	e.setCell(f, summarySheet, "A4", "Account")
	e.setCell(f, summarySheet, "B4", "Balance (cents)")
	e.setCell(f, summarySheet, "A5", "Capital cash")
	e.setCell(f, summarySheet, "B5", summary.CapitalCashCents)
	e.setCell(f, summarySheet, "A6", "Payment clearing")
	e.setCell(f, summarySheet, "B6", summary.PaymentClearingCents)
	e.setCell(f, summarySheet, "A7", "Practice payable")
	e.setCell(f, summarySheet, "B7", summary.TotalPracticePayableCents)

	if _, err := f.NewSheet(journalSheet); err != nil {
		return fmt.Errorf("failed to create journal sheet: %w", err)
	}

	headers := []string{
		"Entry ID", "Account ID", "Related Type", "Related ID",
		"Claim ID", "Direction", "Amount (cents)", "Status",
		"Idempotency Key", "Created At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		e.setCell(f, journalSheet, cell, h)
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.ID.String(),
			entry.AccountID.String(),
			string(entry.RelatedType),
			entry.RelatedID.String(),
			nil,
			string(entry.Direction),
			entry.AmountCents,
			string(entry.Status),
			entry.IdempotencyKey,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if entry.ClaimID != nil {
			values[4] = *entry.ClaimID
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			e.setCell(f, journalSheet, cell, v)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Ledger export written",
		zap.String("currency", currency),
		zap.Int("journal_entries", len(entries)))
	return nil
}

func (e *LedgerExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
