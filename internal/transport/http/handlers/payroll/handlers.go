package payrollhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrpayroll/internal/domain/auth"
	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/jobs"
	"hrpayroll/internal/requestctx"
	"hrpayroll/internal/transport/http/api"
	"hrpayroll/internal/transport/http/middleware"
	"hrpayroll/internal/transport/http/shared"
)

const financeApprovalEndpoint = "payroll.finance_approval"

type RunService interface {
	Recalculate(ctx context.Context, runID string) (payroll.RecalculateResult, error)
	Preview(ctx context.Context, runID string) (payroll.Preview, error)
	GetRun(ctx context.Context, runID string) (payroll.Run, error)
	ListRuns(ctx context.Context, filter payroll.RunFilter) ([]payroll.Run, error)
	ListDetails(ctx context.Context, runID string) ([]payroll.Detail, error)
	SendForApproval(ctx context.Context, runID, managerID, financeID string) (payroll.Run, error)
	ApprovePayrollInitiation(ctx context.Context, runID, specialistID string) (payroll.Run, error)
	ApproveByManager(ctx context.Context, runID, managerID string) (payroll.Run, error)
	ApproveByFinance(ctx context.Context, runID, financeID string) (payroll.Run, []payroll.Payslip, error)
	LockRun(ctx context.Context, runID, managerID string) (payroll.Run, error)
	UnlockRun(ctx context.Context, runID, managerID, reason string) (payroll.Run, error)
	EditInitiation(ctx context.Context, runID, specialistID string, patch payroll.RunPatch) (payroll.Run, error)
	ResolveIrregularity(ctx context.Context, runID, managerID string, notes map[string]string) (payroll.Run, error)
	UpdateBankStatus(ctx context.Context, runID, employeeID string, status payroll.BankStatus) (payroll.Detail, error)
	ListPayslips(ctx context.Context, runID string) ([]payroll.Payslip, error)
	PayslipDocument(ctx context.Context, payslipID string) ([]byte, error)
}

// JobRunner records manual run generation and recalculation in the job log.
type JobRunner interface {
	RunNow(ctx context.Context, jobType, subject string, run func(context.Context) (any, error)) (any, error)
	DraftRunJob(entity string, at time.Time, specialistID string) func(context.Context) (any, error)
}

type IdempotencyStore interface {
	Check(ctx context.Context, actorID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, actorID, endpoint, key, requestHash string, response json.RawMessage) error
}

type Handler struct {
	Service     RunService
	Jobs        JobRunner
	Perms       middleware.PermissionChecker
	Idempotency IdempotencyStore
}

func NewHandler(service RunService, jobRunner JobRunner, perms middleware.PermissionChecker, idempotency IdempotencyStore) *Handler {
	return &Handler{Service: service, Jobs: jobRunner, Perms: perms, Idempotency: idempotency}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPayrollRead, h.Perms)
	run := middleware.RequirePermission(auth.PermPayrollRun, h.Perms)
	approve := middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)
	finance := middleware.RequirePermission(auth.PermPayrollFinance, h.Perms)

	r.Route("/payroll", func(r chi.Router) {
		r.With(read).Get("/runs", h.handleListRuns)
		r.With(run).Post("/runs", h.handleCreateRun)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGetRun)
			r.With(run).Patch("/", h.handleEditInitiation)
			r.With(run).Post("/recalculate", h.handleRecalculate)
			r.With(read).Get("/preview", h.handlePreview)
			r.With(read).Get("/details", h.handleListDetails)
			r.With(run).Put("/details/{employeeID}/bank-status", h.handleUpdateBankStatus)
			r.With(run).Post("/send-for-approval", h.handleSendForApproval)
			r.With(run).Post("/approve-initiation", h.handleApproveInitiation)
			r.With(approve).Post("/manager-approval", h.handleManagerApproval)
			r.With(finance).Post("/finance-approval", h.handleFinanceApproval)
			r.With(approve).Post("/lock", h.handleLock)
			r.With(approve).Post("/unlock", h.handleUnlock)
			r.With(approve).Post("/irregularities/resolve", h.handleResolveIrregularities)
			r.With(read).Get("/payslips", h.handleListPayslips)
		})
		r.With(read).Get("/payslips/{payslipID}/download", h.handleDownloadPayslip)
	})
}

type createRunPayload struct {
	Entity string `json:"entity" validate:"required,max=64"`
	Period string `json:"period" validate:"required"`
}

type editRunPayload struct {
	Entity        *string `json:"entity" validate:"omitempty,min=1,max=64"`
	PayrollPeriod *string `json:"payrollPeriod"`
}

type sendForApprovalPayload struct {
	ManagerID string `json:"managerId" validate:"required"`
	FinanceID string `json:"financeId" validate:"required"`
}

type unlockPayload struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type resolvePayload struct {
	Notes map[string]string `json:"notes" validate:"required,min=1"`
}

type bankStatusPayload struct {
	BankStatus string `json:"bankStatus" validate:"required,oneof=VALID MISSING"`
}

type financeApprovalResponse struct {
	Run      payroll.Run       `json:"run"`
	Payslips []payroll.Payslip `json:"payslips"`
}

func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user.UserID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return user.UserID, true
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	filter := payroll.RunFilter{
		Entity: strings.TrimSpace(r.URL.Query().Get("entity")),
		Status: payroll.RunStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	runs, err := h.Service.ListRuns(r.Context(), filter)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	specialistID, ok := actorID(w, r)
	if !ok {
		return
	}
	var payload createRunPayload
	if !shared.DecodeJSON(w, r, requestID, &payload, false) {
		return
	}
	period, err := payroll.ParsePeriod(strings.TrimSpace(payload.Period))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}

	entity := strings.TrimSpace(payload.Entity)
	result, err := h.Jobs.RunNow(r.Context(), jobs.JobPayrollDraftRun, entity, h.Jobs.DraftRunJob(entity, period, specialistID))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	run, ok := result.(payroll.Run)
	if !ok {
		api.FailError(w, fmt.Errorf("draft run job returned %T", result), requestID)
		return
	}
	api.Created(w, run, requestID)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEditInitiation(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	specialistID, ok := actorID(w, r)
	if !ok {
		return
	}
	var payload editRunPayload
	if !shared.DecodeJSON(w, r, requestID, &payload, false) {
		return
	}

	var patch payroll.RunPatch
	if payload.Entity != nil {
		entity := strings.TrimSpace(*payload.Entity)
		patch.Entity = &entity
	}
	if payload.PayrollPeriod != nil {
		period, err := payroll.ParsePeriod(strings.TrimSpace(*payload.PayrollPeriod))
		if err != nil {
			api.FailError(w, err, requestID)
			return
		}
		patch.PayrollPeriod = &period
	}

	run, err := h.Service.EditInitiation(r.Context(), chi.URLParam(r, "runID"), specialistID, patch)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	runID := chi.URLParam(r, "runID")
	result, err := h.Jobs.RunNow(r.Context(), jobs.JobPayrollRecompute, runID, func(ctx context.Context) (any, error) {
		return h.Service.Recalculate(ctx, runID)
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.Service.Preview(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, preview, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.Service.ListDetails(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateBankStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload bankStatusPayload
	if !shared.DecodeJSON(w, r, requestID, &payload, false) {
		return
	}
	detail, err := h.Service.UpdateBankStatus(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "employeeID"), payroll.BankStatus(payload.BankStatus))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, detail, requestID)
}

func (h *Handler) handleSendForApproval(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload sendForApprovalPayload
	if !shared.DecodeJSON(w, r, requestID, &payload, false) {
		return
	}
	run, err := h.Service.SendForApproval(r.Context(), chi.URLParam(r, "runID"), strings.TrimSpace(payload.ManagerID), strings.TrimSpace(payload.FinanceID))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleApproveInitiation(w http.ResponseWriter, r *http.Request) {
	specialistID, ok := actorID(w, r)
	if !ok {
		return
	}
	run, err := h.Service.ApprovePayrollInitiation(r.Context(), chi.URLParam(r, "runID"), specialistID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleManagerApproval(w http.ResponseWriter, r *http.Request) {
	managerID, ok := actorID(w, r)
	if !ok {
		return
	}
	run, err := h.Service.ApproveByManager(r.Context(), chi.URLParam(r, "runID"), managerID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

// handleFinanceApproval issues payslips, so a retried request carrying the same
// Idempotency-Key replays the first response instead of failing on status.
func (h *Handler) handleFinanceApproval(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	financeID, ok := actorID(w, r)
	if !ok {
		return
	}
	runID := chi.URLParam(r, "runID")

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash([]byte(runID))
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), financeID, financeApprovalEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), requestID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", append(requestctx.LogAttrs(r.Context()), "err", err)...)
		}
		if found {
			api.Success(w, stored, requestID)
			return
		}
	}

	run, payslips, err := h.Service.ApproveByFinance(r.Context(), runID, financeID)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	response := financeApprovalResponse{Run: run, Payslips: payslips}

	if idempotencyKey != "" && h.Idempotency != nil {
		encoded, err := json.Marshal(response)
		if err != nil {
			slog.Warn("idempotency response marshal failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), financeID, financeApprovalEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", append(requestctx.LogAttrs(r.Context()), "err", err)...)
		}
	}
	api.Success(w, response, requestID)
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	managerID, ok := actorID(w, r)
	if !ok {
		return
	}
	run, err := h.Service.LockRun(r.Context(), chi.URLParam(r, "runID"), managerID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	managerID, ok := actorID(w, r)
	if !ok {
		return
	}
	var payload unlockPayload
	if !shared.DecodeJSON(w, r, requestID, &payload, false) {
		return
	}
	run, err := h.Service.UnlockRun(r.Context(), chi.URLParam(r, "runID"), managerID, strings.TrimSpace(payload.Reason))
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleResolveIrregularities(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	managerID, ok := actorID(w, r)
	if !ok {
		return
	}
	var payload resolvePayload
	if !shared.DecodeJSON(w, r, requestID, &payload, false) {
		return
	}
	run, err := h.Service.ResolveIrregularity(r.Context(), chi.URLParam(r, "runID"), managerID, payload.Notes)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleListPayslips(w http.ResponseWriter, r *http.Request) {
	payslips, err := h.Service.ListPayslips(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, payslips, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	payslipID := chi.URLParam(r, "payslipID")
	document, err := h.Service.PayslipDocument(r.Context(), payslipID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payslip-%s.pdf", payslipID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(document); err != nil {
		slog.Warn("payslip download write failed", "payslipId", payslipID, "err", err)
	}
}
