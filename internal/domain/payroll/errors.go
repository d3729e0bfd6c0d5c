package payroll

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service unwraps to one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Error carries a specific reason for a rejected operation.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

var (
	ErrRunNotFound      = &Error{Kind: ErrNotFound, Reason: "payroll run not found"}
	ErrDetailNotFound   = &Error{Kind: ErrNotFound, Reason: "payroll detail not found"}
	ErrEmployeeNotFound = &Error{Kind: ErrNotFound, Reason: "employee not found"}
	ErrPayGradeNotFound = &Error{Kind: ErrNotFound, Reason: "pay grade not found"}
	ErrPayslipNotFound  = &Error{Kind: ErrNotFound, Reason: "payslip not found"}

	ErrRunExists   = &Error{Kind: ErrConflict, Reason: "payroll run already exists for entity and period"}
	ErrRunConflict = &Error{Kind: ErrConflict, Reason: "payroll run was modified concurrently"}
	ErrRunBusy     = &Error{Kind: ErrConflict, Reason: "payroll run is busy, retry later"}

	ErrNotRunSpecialist = &Error{Kind: ErrUnauthorized, Reason: "caller is not the payroll specialist who created this run"}

	ErrMissingEntity     = &Error{Kind: ErrInvalidInput, Reason: "entity is required"}
	ErrMissingPeriod     = &Error{Kind: ErrInvalidInput, Reason: "payroll period is required"}
	ErrMissingSpecialist = &Error{Kind: ErrInvalidInput, Reason: "payroll specialist id is required"}
	ErrMissingManager    = &Error{Kind: ErrInvalidInput, Reason: "payroll manager id is required"}
	ErrMissingFinance    = &Error{Kind: ErrInvalidInput, Reason: "finance staff id is required"}
	ErrMissingReason     = &Error{Kind: ErrInvalidInput, Reason: "unlock reason is required"}
	ErrMissingRunID      = &Error{Kind: ErrInvalidInput, Reason: "payroll run id is required"}
	ErrEmptyPatch        = &Error{Kind: ErrInvalidInput, Reason: "no editable fields supplied"}
	ErrNoNotes           = &Error{Kind: ErrInvalidInput, Reason: "at least one employee note is required"}
	ErrBadBankStatus     = &Error{Kind: ErrInvalidInput, Reason: "bank status must be VALID or MISSING"}
)

func invalidTransition(op string, status RunStatus) *Error {
	return newError(ErrInvalidState, "cannot %s payroll run in status %s", op, status)
}
