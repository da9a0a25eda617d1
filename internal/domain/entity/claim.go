package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

// Claim is a request to fund a dental procedure. Claims are never
// deleted; the audit event log provides the append-only trail.
type Claim struct {
	ID         int64  `json:"id"`
	PracticeID int64  `json:"practice_id"`
	PatientName string `json:"patient_name"`
	Payer      string `json:"payer"`

	// Semicolon-separated CDT procedure codes, e.g. "D0120;D1110".
	ProcedureCodes string `json:"procedure_codes"`

	BilledAmountCents          int64 `json:"billed_amount_cents"`
	ExpectedAllowedAmountCents int64 `json:"expected_allowed_amount_cents"`

	// Status drives the underwriting/payment lifecycle; FundingStatus
	// drives the capital-pool lifecycle. The two machines never share a
	// money supply.
	Status        lifecycle.ClaimStatus   `json:"status"`
	FundingStatus lifecycle.FundingStatus `json:"funding_status"`

	FundedAmountCents int64  `json:"funded_amount_cents"`
	DeclineReasonCode string `json:"decline_reason_code,omitempty"`

	PaymentException bool   `json:"payment_exception"`
	ExceptionCode    string `json:"exception_code,omitempty"`

	SubmissionDate time.Time  `json:"submission_date"`
	ProcedureDate  *time.Time `json:"procedure_date,omitempty"`

	// Fingerprint deduplicates resubmissions; unique when set.
	Fingerprint string `json:"fingerprint,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProcedureCodeList splits the stored procedure codes, dropping blanks.
func (c *Claim) ProcedureCodeList() []string {
	parts := strings.Split(c.ProcedureCodes, ";")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// ComputeClaimFingerprint builds the duplicate-detection key for a
// submission. Identical resubmissions collide on purpose.
func ComputeClaimFingerprint(practiceID int64, patientName string, procedureDate *time.Time, amountCents int64, payer string) string {
	var sb strings.Builder
	if practiceID > 0 {
		sb.WriteString(strconv.FormatInt(practiceID, 10))
	}
	sb.WriteByte('|')
	sb.WriteString(patientName)
	sb.WriteByte('|')
	if procedureDate != nil {
		sb.WriteString(procedureDate.Format("2006-01-02"))
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(amountCents, 10))
	sb.WriteByte('|')
	sb.WriteString(payer)
	return sb.String()
}
