package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type samplePayload struct {
	Entity string `json:"entity" validate:"required,max=8"`
	Status string `json:"status" validate:"omitempty,oneof=VALID MISSING"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	issues := Validate(&samplePayload{Status: "BROKEN"})
	assert.Equal(t, []ValidationIssue{
		{Field: "entity", Reason: "is required"},
		{Field: "status", Reason: "must be one of VALID MISSING"},
	}, issues)

	assert.Empty(t, Validate(&samplePayload{Entity: "ACME", Status: "VALID"}))
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		optional bool
		ok       bool
		status   int
	}{
		{"valid", `{"entity":"ACME"}`, false, true, 0},
		{"unknown field", `{"entity":"ACME","tenant":"x"}`, false, false, http.StatusBadRequest},
		{"malformed", `{"entity":`, false, false, http.StatusBadRequest},
		{"fails validation", `{"entity":"ACME-GLOBAL-HOLDINGS"}`, false, false, http.StatusBadRequest},
		{"empty required body", ``, false, false, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var payload samplePayload
			ok := DecodeJSON(rec, req, "req", &payload, tc.optional)
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				assert.Equal(t, tc.status, rec.Code)
			}
		})
	}
}

type optionalPayload struct {
	Reason string `json:"reason"`
}

func TestDecodeJSONOptionalEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var payload optionalPayload
	assert.True(t, DecodeJSON(rec, req, "req", &payload, true))
}
