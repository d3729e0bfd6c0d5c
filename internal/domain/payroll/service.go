package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hrpayroll/internal/platform/metrics"
	"hrpayroll/internal/platform/runlock"
	"hrpayroll/internal/requestctx"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID string, before, after any) error
}

type Counter interface {
	Add(name string, delta uint64)
}

type DocumentSealer interface {
	Configured() bool
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type Option func(*Service)

func WithLocker(locker runlock.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithEvents(publisher EventPublisher, topic string) Option {
	return func(s *Service) {
		s.events = publisher
		s.eventTopic = topic
	}
}

func WithAudit(recorder AuditRecorder) Option {
	return func(s *Service) { s.audit = recorder }
}

func WithCounter(counter Counter) Option {
	return func(s *Service) { s.counter = counter }
}

func WithDocuments(sealer DocumentSealer, storageDir string) Option {
	return func(s *Service) {
		s.sealer = sealer
		s.storageDir = storageDir
	}
}

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	store      StoreAPI
	locker     runlock.Locker
	events     EventPublisher
	eventTopic string
	audit      AuditRecorder
	counter    Counter
	sealer     DocumentSealer
	storageDir string
	workers    int
	now        func() time.Time
	previews   singleflight.Group
}

func NewService(store StoreAPI, opts ...Option) *Service {
	s := &Service{
		store:      store,
		locker:     runlock.NewLocal(),
		storageDir: "storage/payslips",
		workers:    defaultRecalcLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func runLockKey(runID string) string {
	return "payroll:run:" + runID
}

func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, runlock.ErrLockTimeout) {
			return ErrRunBusy
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	defer unlock()
	return fn()
}

func (s *Service) count(name string, delta int) {
	if s.counter != nil && delta > 0 {
		s.counter.Add(name, uint64(delta))
	}
}

// CreateDraftRun returns the run for (entity, period), creating and calculating it
// when none exists yet. A stored draft that was never calculated is calculated again.
func (s *Service) CreateDraftRun(ctx context.Context, entity string, period time.Time, specialistID string) (Run, error) {
	entity = strings.TrimSpace(entity)
	specialistID = strings.TrimSpace(specialistID)
	switch {
	case entity == "":
		return Run{}, ErrMissingEntity
	case period.IsZero():
		return Run{}, ErrMissingPeriod
	case specialistID == "":
		return Run{}, ErrMissingSpecialist
	}
	period = NormalizePeriod(period)

	var run Run
	created := false
	err := s.withLock(ctx, "payroll:period:"+entity+":"+FormatPeriod(period), func() error {
		existing, err := s.store.FindRunByPeriod(ctx, entity, period)
		if err == nil {
			run = existing
			return nil
		}
		if !errors.Is(err, ErrRunNotFound) {
			return err
		}

		seq, err := s.store.NextRunSequence(ctx, period.Year())
		if err != nil {
			return fmt.Errorf("allocate run sequence: %w", err)
		}
		now := s.now()
		run, err = s.store.CreateRun(ctx, Run{
			ID:                  uuid.NewString(),
			RunID:               formatRunCode(period.Year(), seq),
			PayrollPeriod:       period,
			Entity:              entity,
			Status:              RunStatusDraft,
			PaymentStatus:       PaymentStatusPending,
			TotalNetPay:         decimal.Zero,
			PayrollSpecialistID: specialistID,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
		if errors.Is(err, ErrRunExists) {
			run, err = s.store.FindRunByPeriod(ctx, entity, period)
			return err
		}
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return Run{}, err
	}
	if !created && !run.awaitingFirstCalculation() {
		return run, nil
	}

	if created {
		s.recordTransition(ctx, EventRunCreated, specialistID, nil, run, nil)
	}
	result, err := s.Recalculate(ctx, run.ID)
	if err != nil {
		return run, fmt.Errorf("initial calculation for %s: %w", run.RunID, err)
	}
	return result.Run, nil
}

// Recalculate recomputes every eligible employee's detail, then flags irregularities
// and refreshes the run aggregates. Repeating it with unchanged inputs changes nothing.
func (s *Service) Recalculate(ctx context.Context, runID string) (RecalculateResult, error) {
	if strings.TrimSpace(runID) == "" {
		return RecalculateResult{}, ErrMissingRunID
	}
	var result RecalculateResult
	err := s.withLock(ctx, runLockKey(runID), func() error {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if err := checkTransition(OpRecalculate, run); err != nil {
			return err
		}
		result, err = s.recalculateLocked(ctx, run)
		return err
	})
	if err != nil {
		return RecalculateResult{}, err
	}
	s.count(metrics.PayrollRecalculations, 1)
	s.publish(ctx, EventRunRecalculated, requestctx.GetActorID(ctx), result.Run)
	return result, nil
}

func (s *Service) recalculateLocked(ctx context.Context, run Run) (RecalculateResult, error) {
	policies, err := LoadApprovedPolicies(ctx, s.store)
	if err != nil {
		return RecalculateResult{}, err
	}
	employees, err := s.store.ListEmployeesByStatus(ctx, EligibleStatuses)
	if err != nil {
		return RecalculateResult{}, fmt.Errorf("list employees: %w", err)
	}
	window := WindowFor(run.PayrollPeriod)

	var mu sync.Mutex
	var skipped []SkippedEmployee
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for _, employee := range employees {
		group.Go(func() error {
			err := s.upsertEmployeeDetail(groupCtx, run, employee, window, policies)
			if err == nil {
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("employee %s: %w", employee.ID, err)
			}
			slog.Warn("payroll detail skipped", append(requestctx.LogAttrs(ctx), "runId", run.RunID, "employeeId", employee.ID, "err", err)...)
			mu.Lock()
			skipped = append(skipped, SkippedEmployee{EmployeeID: employee.ID, Reason: err.Error()})
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return RecalculateResult{}, err
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].EmployeeID < skipped[j].EmployeeID })
	s.count(metrics.PayrollDetailsWritten, len(employees)-len(skipped))
	s.count(metrics.PayrollEmployeesSkipped, len(skipped))

	details, err := s.detectIrregularities(ctx, s.store, run.ID)
	if err != nil {
		return RecalculateResult{}, err
	}
	run, err = s.aggregate(ctx, s.store, run, details)
	if err != nil {
		return RecalculateResult{}, err
	}
	return RecalculateResult{Run: run, Details: details, Skipped: skipped}, nil
}

func (s *Service) upsertEmployeeDetail(ctx context.Context, run Run, employee Employee, window PeriodWindow, policies PolicySet) error {
	if !isEligible(employee.Status) {
		return nil
	}
	if strings.TrimSpace(employee.PayGradeID) == "" {
		return ErrPayGradeNotFound
	}
	grade, err := s.store.GetPayGrade(ctx, employee.PayGradeID)
	if err != nil {
		return err
	}

	detail := ComputeDetail(DetailInput{
		RunID:    run.ID,
		Employee: employee,
		PayGrade: grade,
		Window:   window,
		Policies: policies,
	})

	existing, err := s.store.GetDetail(ctx, run.ID, employee.ID)
	switch {
	case err == nil:
		detail.ID = existing.ID
		detail.BankStatus = existing.BankStatus
	case errors.Is(err, ErrDetailNotFound):
		detail.ID = uuid.NewString()
		detail.BankStatus, err = s.carriedBankStatus(ctx, employee.ID, run.ID)
		if err != nil {
			return err
		}
	default:
		return err
	}

	now := s.now()
	detail.CreatedAt = now
	detail.UpdatedAt = now
	if _, err := s.store.UpsertDetail(ctx, detail); err != nil {
		return fmt.Errorf("upsert detail: %w", err)
	}
	return nil
}

func (s *Service) carriedBankStatus(ctx context.Context, employeeID, runID string) (BankStatus, error) {
	prior, err := s.store.LatestOtherDetail(ctx, employeeID, runID)
	if errors.Is(err, ErrDetailNotFound) {
		return BankStatusValid, nil
	}
	if err != nil {
		return "", err
	}
	if prior.BankStatus == "" {
		return BankStatusValid, nil
	}
	return prior.BankStatus, nil
}

// detectIrregularities rewrites the exceptions field of every detail in the run.
func (s *Service) detectIrregularities(ctx context.Context, store StoreAPI, runID string) ([]Detail, error) {
	details, err := store.ListDetails(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list details: %w", err)
	}
	flagged := 0
	for i := range details {
		var prior *Detail
		previous, err := store.LatestOtherDetail(ctx, details[i].EmployeeID, runID)
		switch {
		case err == nil:
			prior = &previous
		case !errors.Is(err, ErrDetailNotFound):
			return nil, fmt.Errorf("prior detail for %s: %w", details[i].EmployeeID, err)
		}

		exceptions := JoinIssues(DetectIssues(details[i], prior))
		if err := store.SetDetailExceptions(ctx, details[i].ID, exceptions); err != nil {
			return nil, fmt.Errorf("set exceptions for %s: %w", details[i].EmployeeID, err)
		}
		details[i].Exceptions = exceptions
		if exceptions != "" {
			flagged++
		}
	}
	s.count(metrics.PayrollIrregularities, flagged)
	return details, nil
}

// aggregate writes the run totals derived from details. The run row is left
// untouched when the totals already match.
func (s *Service) aggregate(ctx context.Context, store StoreAPI, run Run, details []Detail) (Run, error) {
	totals := Aggregate(details)
	current := run.Totals()
	if current.Employees == totals.Employees &&
		current.Exceptions == totals.Exceptions &&
		current.TotalNetPay.Equal(totals.TotalNetPay) {
		return run, nil
	}
	run.applyTotals(totals)
	run.UpdatedAt = s.now()
	updated, err := store.UpdateRun(ctx, run)
	if err != nil {
		return Run{}, fmt.Errorf("update run totals: %w", err)
	}
	return updated, nil
}

func (s *Service) reaggregate(ctx context.Context, store StoreAPI, run Run) (Run, error) {
	details, err := store.ListDetails(ctx, run.ID)
	if err != nil {
		return Run{}, fmt.Errorf("list details: %w", err)
	}
	return s.aggregate(ctx, store, run, details)
}

// Preview reports the run with its details, current irregularities and whether
// finance approval would be accepted. Concurrent previews of one run share a read.
func (s *Service) Preview(ctx context.Context, runID string) (Preview, error) {
	if strings.TrimSpace(runID) == "" {
		return Preview{}, ErrMissingRunID
	}
	// The shared read outlives any single caller; each caller still stops waiting on its own ctx.
	flightCtx := context.WithoutCancel(ctx)
	flight := s.previews.DoChan(runID, func() (any, error) {
		run, err := s.store.GetRun(flightCtx, runID)
		if err != nil {
			return Preview{}, err
		}
		details, err := s.store.ListDetails(flightCtx, runID)
		if err != nil {
			return Preview{}, fmt.Errorf("list details: %w", err)
		}
		totals := Aggregate(details)
		irregularities := make([]Irregularity, 0)
		for _, detail := range details {
			if issues := SplitIssues(detail.Exceptions); len(issues) > 0 {
				irregularities = append(irregularities, Irregularity{
					EmployeeID: detail.EmployeeID,
					DetailID:   detail.ID,
					Issues:     issues,
				})
			}
		}
		check := run
		check.applyTotals(totals)
		return Preview{
			Run:            run,
			Totals:         totals,
			Details:        details,
			Irregularities: irregularities,
			CanFinalize:    check.CanFinalize(),
		}, nil
	})
	select {
	case <-ctx.Done():
		return Preview{}, ctx.Err()
	case result := <-flight:
		if result.Err != nil {
			return Preview{}, result.Err
		}
		return result.Val.(Preview), nil
	}
}

func (s *Service) GetRun(ctx context.Context, runID string) (Run, error) {
	return s.store.GetRun(ctx, runID)
}

func (s *Service) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.store.ListRuns(ctx, filter)
}

func (s *Service) ListDetails(ctx context.Context, runID string) ([]Detail, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListDetails(ctx, runID)
}

func (s *Service) recordTransition(ctx context.Context, event, actorID string, before any, after Run, notes any) {
	s.count(metrics.PayrollTransitions, 1)
	if s.audit != nil {
		var afterPayload any = after
		if notes != nil {
			afterPayload = map[string]any{"run": after, "notes": notes}
		}
		if err := s.audit.Record(ctx, actorID, event, "payroll_run", after.ID, requestctx.GetRequestID(ctx), before, afterPayload); err != nil {
			slog.Warn("audit record failed", append(requestctx.LogAttrs(ctx), "action", event, "runId", after.RunID, "err", err)...)
		}
	}
	s.publish(ctx, event, actorID, after)
}

func (s *Service) publish(ctx context.Context, event, actorID string, run Run) {
	if s.events == nil {
		return
	}
	payload := RunEvent{
		Type:          event,
		RunID:         run.ID,
		RunCode:       run.RunID,
		Entity:        run.Entity,
		Period:        FormatPeriod(run.PayrollPeriod),
		Status:        run.Status,
		PaymentStatus: run.PaymentStatus,
		ActorID:       actorID,
		OccurredAt:    s.now(),
	}
	if err := s.events.Publish(ctx, s.eventTopic, run.ID, payload); err != nil {
		slog.Warn("run event publish failed", append(requestctx.LogAttrs(ctx), "event", event, "runId", run.RunID, "err", err)...)
	}
}

func (e RunEvent) EventType() string {
	return e.Type
}
