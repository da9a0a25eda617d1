package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoonbill/claims-factoring/internal/application/service"
	"github.com/spoonbill/claims-factoring/internal/domain/entity"
	"github.com/spoonbill/claims-factoring/internal/domain/lifecycle"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type stubClaims struct {
	service.ClaimService
	submitErr error
	claim     *entity.Claim
	getErr    error
}

func (s stubClaims) SubmitClaim(ctx context.Context, req service.SubmitClaimRequest) (*entity.Claim, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.claim, nil
}

func (s stubClaims) GetClaim(ctx context.Context, id int64) (*entity.Claim, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.claim, nil
}

type stubPool struct {
	service.CapitalPoolService
	fundErr error
	pool    *entity.CapitalPool
}

func (s stubPool) FundClaim(ctx context.Context, poolID string, claimID, fundedAmountCents int64) error {
	return s.fundErr
}

func (s stubPool) GetPool(ctx context.Context, poolID string) (*entity.CapitalPool, error) {
	return s.pool, nil
}

func newTestServer(services Services) *Server {
	return NewServer(DefaultServerConfig(), services, nopLogger{})
}

func doJSON(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer(Services{})

	w := doJSON(t, server, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestSubmitClaim(t *testing.T) {
	server := newTestServer(Services{
		Claims: stubClaims{claim: &entity.Claim{ID: 7, PracticeID: 1, PatientName: "Pat Doe"}},
	})

	w := doJSON(t, server, http.MethodPost, "/api/claims",
		`{"practice_id": 1, "patient_name": "Pat Doe", "payer": "Cigna", "billed_amount_cents": 45000}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Success bool         `json:"success"`
		Data    entity.Claim `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Data.ID)
}

func TestSubmitClaimRejectsBadBody(t *testing.T) {
	server := newTestServer(Services{Claims: stubClaims{}})

	w := doJSON(t, server, http.MethodPost, "/api/claims", `{"patient_name": "Pat Doe"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitClaimRejectsBadDate(t *testing.T) {
	server := newTestServer(Services{Claims: stubClaims{}})

	w := doJSON(t, server, http.MethodPost, "/api/claims",
		`{"practice_id": 1, "patient_name": "Pat Doe", "procedure_date": "01/02/2026"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", fmt.Errorf("%w: claim 9", service.ErrNotFound), http.StatusNotFound},
		{"duplicate claim", service.ErrDuplicateClaim, http.StatusConflict},
		{"business rule", service.ErrInsufficientCapital, http.StatusUnprocessableEntity},
		{
			"invalid transition",
			&lifecycle.InvalidTransitionError{Entity: "claim", Current: "PAID", Target: "APPROVED", Reason: "terminal"},
			http.StatusUnprocessableEntity,
		},
		{
			"invariant violation",
			&service.InvariantViolationError{Subject: "pool pool-1", Detail: "negative counter"},
			http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(Services{
				Pool: stubPool{fundErr: tc.err},
			})

			w := doJSON(t, server, http.MethodPost, "/api/pools/pool-1/fund",
				`{"claim_id": 1, "funded_amount_cents": 80000}`)

			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestInvariantViolationStaysOpaque(t *testing.T) {
	server := newTestServer(Services{
		Pool: stubPool{fundErr: &service.InvariantViolationError{Subject: "pool pool-1", Detail: "available exceeds total"}},
	})

	w := doJSON(t, server, http.MethodPost, "/api/pools/pool-1/fund",
		`{"claim_id": 1, "funded_amount_cents": 80000}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "available exceeds total")
}

func TestGetClaimNotFound(t *testing.T) {
	server := newTestServer(Services{
		Claims: stubClaims{getErr: fmt.Errorf("%w: claim 404", service.ErrNotFound)},
	})

	w := doJSON(t, server, http.MethodGet, "/api/claims/404", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetClaimRejectsNonNumericID(t *testing.T) {
	server := newTestServer(Services{Claims: stubClaims{}})

	w := doJSON(t, server, http.MethodGet, "/api/claims/abc", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
