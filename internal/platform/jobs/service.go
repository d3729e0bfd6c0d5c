package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"hrpayroll/internal/domain/payroll"
	"hrpayroll/internal/platform/querier"
)

const (
	JobPayrollDraftRun  = "payroll_draft_run"
	JobPayrollRecompute = "payroll_recalculate"
)

// RunCreator is the part of the payroll service the scheduler drives.
type RunCreator interface {
	CreateDraftRun(ctx context.Context, entity string, period time.Time, specialistID string) (payroll.Run, error)
}

type Schedule struct {
	Interval     time.Duration
	Entities     []string
	SpecialistID string
}

type Service struct {
	DB       querier.Querier
	runs     RunCreator
	schedule Schedule
	now      func() time.Time
	queue    chan job
}

// job is one unit of work; Subject names what it acts on (an entity or a run id).
type job struct {
	Type    string
	Subject string
	Run     func(context.Context) (any, error)
}

// New builds the job runner. A nil db skips job_runs bookkeeping.
func New(db querier.Querier, runs RunCreator, schedule Schedule) *Service {
	return &Service{
		DB:       db,
		runs:     runs,
		schedule: schedule,
		now:      func() time.Time { return time.Now().UTC() },
		queue:    make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.schedule.Interval > 0 && len(s.schedule.Entities) > 0 {
		go s.scheduleDraftRuns(ctx, s.schedule.Interval)
	}
}

func (s *Service) Enqueue(jobType, subject string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Subject: subject, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "subject", subject)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, subject string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Subject: subject, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "subject", j.Subject, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	var runID int64
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status, details_json)
    VALUES ($1,$2,$3)
    RETURNING id
  `, j.Type, "running", map[string]string{"subject": j.Subject}).Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		details = map[string]any{"subject": j.Subject, "error": err.Error()}
	}
	if runID == 0 {
		return details, err
	}

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
		slog.Warn("job run update failed", "err", updErr)
	}
	return details, err
}

// DraftRunJob creates (or finds) the run of entity for the month containing at.
func (s *Service) DraftRunJob(entity string, at time.Time, specialistID string) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		run, err := s.runs.CreateDraftRun(ctx, entity, at, specialistID)
		if err != nil {
			return nil, err
		}
		return run, nil
	}
}

func (s *Service) scheduleDraftRuns(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			at := s.now()
			for _, entity := range s.schedule.Entities {
				s.Enqueue(JobPayrollDraftRun, entity, s.DraftRunJob(entity, at, s.schedule.SpecialistID))
			}
		}
	}
}
