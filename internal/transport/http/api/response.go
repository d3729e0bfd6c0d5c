package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hrpayroll/internal/domain/payroll"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// FailError maps a payroll error kind to its HTTP status. Unclassified errors
// are logged and reported without their text.
func FailError(w http.ResponseWriter, err error, requestID string) {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "requestId", requestID, "err", err)
		Fail(w, status, code, "internal error", requestID)
		return
	}
	Fail(w, status, code, err.Error(), requestID)
}

func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, payroll.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, payroll.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, payroll.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, payroll.ErrInvalidInput):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, payroll.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
