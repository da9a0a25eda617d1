package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spoonbill/claims-factoring/internal/application/service"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func pathUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid payment intent id"})
		return uuid.Nil, false
	}
	return id, true
}

// RegisterPracticeRequest is the POST /api/practices body.
type RegisterPracticeRequest struct {
	Name                     string  `json:"name" binding:"required"`
	TenureMonths             int     `json:"tenure_months"`
	HistoricalCleanClaimRate float64 `json:"historical_clean_claim_rate"`
	PayerMix                 string  `json:"payer_mix"`
	MaxExposureLimitCents    int64   `json:"max_exposure_limit_cents"`
}

// RegisterPractice handles POST /api/practices
func (h *Handlers) RegisterPractice(c *gin.Context) {
	var req RegisterPracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	practice, err := h.services.Practices.RegisterPractice(c.Request.Context(), service.RegisterPracticeRequest{
		Name:                     req.Name,
		TenureMonths:             req.TenureMonths,
		HistoricalCleanClaimRate: req.HistoricalCleanClaimRate,
		PayerMix:                 req.PayerMix,
		MaxExposureLimitCents:    req.MaxExposureLimitCents,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: practice})
}

// ListPractices handles GET /api/practices
func (h *Handlers) ListPractices(c *gin.Context) {
	practices, err := h.services.Practices.ListPractices(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: practices})
}

// GetPractice handles GET /api/practices/:id
func (h *Handlers) GetPractice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	practice, err := h.services.Practices.GetPractice(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: practice})
}

// SubmitClaimRequest is the POST /api/claims body.
type SubmitClaimRequest struct {
	PracticeID                 int64  `json:"practice_id" binding:"required"`
	PatientName                string `json:"patient_name" binding:"required"`
	Payer                      string `json:"payer"`
	ProcedureCodes             string `json:"procedure_codes"`
	BilledAmountCents          int64  `json:"billed_amount_cents"`
	ExpectedAllowedAmountCents int64  `json:"expected_allowed_amount_cents"`
	ProcedureDate              string `json:"procedure_date"`
	SubmissionDate             string `json:"submission_date"`
}

// SubmitClaim handles POST /api/claims
func (h *Handlers) SubmitClaim(c *gin.Context) {
	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	submission := service.SubmitClaimRequest{
		PracticeID:                 req.PracticeID,
		PatientName:                req.PatientName,
		Payer:                      req.Payer,
		ProcedureCodes:             req.ProcedureCodes,
		BilledAmountCents:          req.BilledAmountCents,
		ExpectedAllowedAmountCents: req.ExpectedAllowedAmountCents,
		SubmissionDate:             time.Now().UTC(),
	}
	if req.SubmissionDate != "" {
		d, err := time.Parse("2006-01-02", req.SubmissionDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid submission_date, want YYYY-MM-DD"})
			return
		}
		submission.SubmissionDate = d
	}
	if req.ProcedureDate != "" {
		d, err := time.Parse("2006-01-02", req.ProcedureDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid procedure_date, want YYYY-MM-DD"})
			return
		}
		submission.ProcedureDate = &d
	}

	claim, err := h.services.Claims.SubmitClaim(c.Request.Context(), submission)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// ListClaimsRequest represents query parameters for listing claims
type ListClaimsRequest struct {
	PracticeID int64 `form:"practice_id"`
	Limit      int   `form:"limit"`
	Offset     int   `form:"offset"`
}

// ListClaims handles GET /api/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	var req ListClaimsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	claims, err := h.services.Claims.ListClaims(c.Request.Context(), req.PracticeID, req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	claim, err := h.services.Claims.GetClaim(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// UnderwriteClaimRequest is the POST /api/claims/:id/underwrite body.
type UnderwriteClaimRequest struct {
	PoolID string `json:"pool_id" binding:"required"`
}

// UnderwriteClaim handles POST /api/claims/:id/underwrite
func (h *Handlers) UnderwriteClaim(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UnderwriteClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	record, err := h.services.Claims.UnderwriteClaim(c.Request.Context(), id, req.PoolID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// ProcessApprovedClaim handles POST /api/claims/:id/payment. It drives
// an approved claim through create, send, and confirm/fail in one call.
func (h *Handlers) ProcessApprovedClaim(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	intent, delivered, err := h.services.Payments.ProcessApprovedClaim(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{
		"payment":   intent,
		"delivered": delivered,
	}})
}

// GetPaymentForClaim handles GET /api/claims/:id/payment
func (h *Handlers) GetPaymentForClaim(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	intent, err := h.services.Payments.GetPaymentForClaim(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: intent})
}

// InitPoolRequest is the POST /api/pools body.
type InitPoolRequest struct {
	PoolID            string `json:"pool_id" binding:"required"`
	TotalCapitalCents int64  `json:"total_capital_cents" binding:"required"`
}

// InitPool handles POST /api/pools
func (h *Handlers) InitPool(c *gin.Context) {
	var req InitPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	pool, err := h.services.Pool.InitPool(c.Request.Context(), req.PoolID, req.TotalCapitalCents)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: pool})
}

// GetPool handles GET /api/pools/:id
func (h *Handlers) GetPool(c *gin.Context) {
	pool, err := h.services.Pool.GetPool(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pool})
}

// FundClaimRequest is the POST /api/pools/:id/fund body.
type FundClaimRequest struct {
	ClaimID           int64 `json:"claim_id" binding:"required"`
	FundedAmountCents int64 `json:"funded_amount_cents" binding:"required"`
}

// FundClaim handles POST /api/pools/:id/fund
func (h *Handlers) FundClaim(c *gin.Context) {
	var req FundClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	poolID := c.Param("id")
	if err := h.services.Pool.FundClaim(c.Request.Context(), poolID, req.ClaimID, req.FundedAmountCents); err != nil {
		h.respondError(c, err)
		return
	}

	pool, err := h.services.Pool.GetPool(c.Request.Context(), poolID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pool})
}

// SettleClaimRequest is the POST /api/pools/:id/settle body.
type SettleClaimRequest struct {
	ClaimID               int64  `json:"claim_id" binding:"required"`
	SettlementDate        string `json:"settlement_date" binding:"required"`
	SettlementAmountCents int64  `json:"settlement_amount_cents" binding:"required"`
}

// SettleClaim handles POST /api/pools/:id/settle
func (h *Handlers) SettleClaim(c *gin.Context) {
	var req SettleClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	settlementDate, err := time.Parse("2006-01-02", req.SettlementDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid settlement_date, want YYYY-MM-DD"})
		return
	}

	poolID := c.Param("id")
	if err := h.services.Pool.SettleClaim(c.Request.Context(), poolID, req.ClaimID, settlementDate, req.SettlementAmountCents); err != nil {
		h.respondError(c, err)
		return
	}

	pool, err := h.services.Pool.GetPool(c.Request.Context(), poolID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pool})
}

// SendPayment handles POST /api/payments/:id/send
func (h *Handlers) SendPayment(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	intent, err := h.services.Payments.SendPayment(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: intent})
}

// ConfirmPayment handles POST /api/payments/:id/confirm
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	intent, err := h.services.Payments.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: intent})
}

// FailPaymentRequest is the POST /api/payments/:id/fail body.
type FailPaymentRequest struct {
	FailureCode    string `json:"failure_code" binding:"required"`
	FailureMessage string `json:"failure_message"`
}

// FailPayment handles POST /api/payments/:id/fail
func (h *Handlers) FailPayment(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	var req FailPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	intent, err := h.services.Payments.FailPayment(c.Request.Context(), id, req.FailureCode, req.FailureMessage)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: intent})
}

// RetryPayment handles POST /api/payments/:id/retry
func (h *Handlers) RetryPayment(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	intent, err := h.services.Payments.RetryFailedPayment(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: intent})
}

// GetLedgerSummary handles GET /api/ledger/summary
func (h *Handlers) GetLedgerSummary(c *gin.Context) {
	currency := c.DefaultQuery("currency", "USD")

	summary, err := h.services.Ledger.GetLedgerSummary(c.Request.Context(), currency)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// ExportLedger handles GET /api/ledger/export. It streams an xlsx
// workbook with the summary and entry journal.
func (h *Handlers) ExportLedger(c *gin.Context) {
	currency := c.DefaultQuery("currency", "USD")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	var buf bytes.Buffer
	if err := h.services.Exporter.Export(c.Request.Context(), currency, limit, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("ledger-%s-%s.xlsx", currency, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
