package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpayroll/internal/domain/payroll"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestFailErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{payroll.ErrRunNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("load: %w", payroll.ErrPayslipNotFound), http.StatusNotFound, "not_found"},
		{&payroll.Error{Kind: payroll.ErrInvalidState, Reason: "cannot lock payroll run in status DRAFT"}, http.StatusConflict, "invalid_state"},
		{payroll.ErrNotRunSpecialist, http.StatusForbidden, "unauthorized"},
		{payroll.ErrMissingReason, http.StatusBadRequest, "validation_error"},
		{payroll.ErrRunConflict, http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		FailError(rec, tc.err, "req-1")
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		env := decode(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, tc.code, env.Error.Code)
		assert.Equal(t, tc.err.Error(), env.Error.Message)
		assert.Equal(t, "req-1", env.RequestID)
	}
}

func TestFailErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	FailError(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"), "req-2")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.Equal(t, "internal error", env.Error.Message)
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"runId": "PR-2025-0001"}, "req-3")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"runId":"PR-2025-0001"},"requestId":"req-3"}`, rec.Body.String())
}
