package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hrpayroll/internal/platform/metrics"
	"hrpayroll/internal/requestctx"
)

type transition struct {
	op      Operation
	event   string
	actorID string
	// guard runs after the status check, before anything is written.
	guard func(ctx context.Context, tx StoreAPI, run Run) error
	// apply mutates the run row. A nil apply leaves the row alone.
	apply func(run *Run)
	// follow runs inside the same transaction once the row is written.
	follow func(ctx context.Context, tx StoreAPI, run Run) (Run, error)
	notes  any
}

// transit serializes on the run, validates and applies t in one transaction, and
// always finishes with the aggregator so run totals match the detail set.
func (s *Service) transit(ctx context.Context, runID string, t transition) (Run, error) {
	if strings.TrimSpace(runID) == "" {
		return Run{}, ErrMissingRunID
	}
	var before, after Run
	err := s.withLock(ctx, runLockKey(runID), func() error {
		return s.store.WithinTx(ctx, func(tx StoreAPI) error {
			run, err := tx.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			before = run
			if err := checkTransition(t.op, run); err != nil {
				return err
			}
			if t.guard != nil {
				if err := t.guard(ctx, tx, run); err != nil {
					return err
				}
			}
			if t.apply != nil {
				t.apply(&run)
				run.UpdatedAt = s.now()
				if run, err = tx.UpdateRun(ctx, run); err != nil {
					return err
				}
			}
			if t.follow != nil {
				if run, err = t.follow(ctx, tx, run); err != nil {
					return err
				}
			}
			after, err = s.reaggregate(ctx, tx, run)
			return err
		})
	})
	if err != nil {
		return Run{}, err
	}
	s.recordTransition(ctx, t.event, t.actorID, before, after, t.notes)
	return after, nil
}

func (s *Service) SendForApproval(ctx context.Context, runID, managerID, financeID string) (Run, error) {
	managerID = strings.TrimSpace(managerID)
	financeID = strings.TrimSpace(financeID)
	if managerID == "" {
		return Run{}, ErrMissingManager
	}
	if financeID == "" {
		return Run{}, ErrMissingFinance
	}
	return s.transit(ctx, runID, transition{
		op:      OpSendForApproval,
		event:   EventSentForApproval,
		actorID: requestctx.GetActorID(ctx),
		apply: func(run *Run) {
			run.PayrollManagerID = managerID
			run.FinanceStaffID = financeID
			run.Status = RunStatusUnderReview
		},
	})
}

func (s *Service) ApprovePayrollInitiation(ctx context.Context, runID, specialistID string) (Run, error) {
	specialistID = strings.TrimSpace(specialistID)
	if specialistID == "" {
		return Run{}, ErrMissingSpecialist
	}
	return s.transit(ctx, runID, transition{
		op:      OpApproveInitiation,
		event:   EventInitiationApproved,
		actorID: specialistID,
		guard:   requireSpecialist(specialistID),
		apply: func(run *Run) {
			run.Status = RunStatusUnderReview
		},
	})
}

func (s *Service) ApproveByManager(ctx context.Context, runID, managerID string) (Run, error) {
	managerID = strings.TrimSpace(managerID)
	if managerID == "" {
		return Run{}, ErrMissingManager
	}
	return s.transit(ctx, runID, transition{
		op:      OpManagerApproval,
		event:   EventManagerApproved,
		actorID: managerID,
		apply: func(run *Run) {
			approvedAt := s.now()
			run.PayrollManagerID = managerID
			run.ManagerApprovalDate = &approvedAt
			run.Status = RunStatusPendingFinanceApproval
		},
	})
}

// ApproveByFinance finalizes the run: it becomes APPROVED and PAID and one payslip
// is issued per detail in the same transaction.
func (s *Service) ApproveByFinance(ctx context.Context, runID, financeID string) (Run, []Payslip, error) {
	financeID = strings.TrimSpace(financeID)
	if financeID == "" {
		return Run{}, nil, ErrMissingFinance
	}
	var payslips []Payslip
	run, err := s.transit(ctx, runID, transition{
		op:      OpFinanceApproval,
		event:   EventFinanceApproved,
		actorID: financeID,
		apply: func(run *Run) {
			approvedAt := s.now()
			run.FinanceStaffID = financeID
			run.FinanceApprovalDate = &approvedAt
			run.Status = RunStatusApproved
			run.PaymentStatus = PaymentStatusPaid
		},
		follow: func(ctx context.Context, tx StoreAPI, run Run) (Run, error) {
			var err error
			payslips, err = s.issuePayslips(ctx, tx, run)
			return run, err
		},
	})
	if err != nil {
		return Run{}, nil, err
	}
	s.count(metrics.PayrollPayslipsIssued, len(payslips))
	return run, payslips, nil
}

func (s *Service) LockRun(ctx context.Context, runID, managerID string) (Run, error) {
	managerID = strings.TrimSpace(managerID)
	if managerID == "" {
		return Run{}, ErrMissingManager
	}
	return s.transit(ctx, runID, transition{
		op:      OpLock,
		event:   EventRunLocked,
		actorID: managerID,
		apply: func(run *Run) {
			run.Status = RunStatusLocked
		},
	})
}

func (s *Service) UnlockRun(ctx context.Context, runID, managerID, reason string) (Run, error) {
	managerID = strings.TrimSpace(managerID)
	reason = strings.TrimSpace(reason)
	if managerID == "" {
		return Run{}, ErrMissingManager
	}
	if reason == "" {
		return Run{}, ErrMissingReason
	}
	return s.transit(ctx, runID, transition{
		op:      OpUnlock,
		event:   EventRunUnlocked,
		actorID: managerID,
		apply: func(run *Run) {
			run.Status = RunStatusUnlocked
			run.UnlockReason = reason
		},
	})
}

// EditInitiation patches entity and/or period of a run. Details are not recomputed
// here; callers follow up with Recalculate.
func (s *Service) EditInitiation(ctx context.Context, runID, specialistID string, patch RunPatch) (Run, error) {
	specialistID = strings.TrimSpace(specialistID)
	if specialistID == "" {
		return Run{}, ErrMissingSpecialist
	}
	if patch.Entity == nil && patch.PayrollPeriod == nil {
		return Run{}, ErrEmptyPatch
	}
	var entity string
	if patch.Entity != nil {
		entity = strings.TrimSpace(*patch.Entity)
		if entity == "" {
			return Run{}, ErrMissingEntity
		}
	}
	period := NormalizePeriod(derefTime(patch.PayrollPeriod))
	if patch.PayrollPeriod != nil && period.IsZero() {
		return Run{}, ErrMissingPeriod
	}

	patched := func(run Run) Run {
		if patch.Entity != nil {
			run.Entity = entity
		}
		if patch.PayrollPeriod != nil {
			run.PayrollPeriod = period
		}
		return run
	}
	specialistGuard := requireSpecialist(specialistID)

	return s.transit(ctx, runID, transition{
		op:      OpEditInitiation,
		event:   EventRunEdited,
		actorID: specialistID,
		guard: func(ctx context.Context, tx StoreAPI, run Run) error {
			if err := specialistGuard(ctx, tx, run); err != nil {
				return err
			}
			target := patched(run)
			other, err := tx.FindRunByPeriod(ctx, target.Entity, target.PayrollPeriod)
			switch {
			case err == nil && other.ID != run.ID:
				return newError(ErrInvalidInput, "payroll run %s already covers %s %s", other.RunID, target.Entity, FormatPeriod(target.PayrollPeriod))
			case err != nil && !errors.Is(err, ErrRunNotFound):
				return err
			}
			return nil
		},
		apply: func(run *Run) {
			*run = patched(*run)
		},
	})
}

// ResolveIrregularity clears the exceptions of every named employee's detail.
// notes maps employee id to the manager's resolution note.
func (s *Service) ResolveIrregularity(ctx context.Context, runID, managerID string, notes map[string]string) (Run, error) {
	managerID = strings.TrimSpace(managerID)
	if managerID == "" {
		return Run{}, ErrMissingManager
	}
	if len(notes) == 0 {
		return Run{}, ErrNoNotes
	}
	employeeIDs := make([]string, 0, len(notes))
	for employeeID := range notes {
		if strings.TrimSpace(employeeID) == "" {
			return Run{}, newError(ErrInvalidInput, "employee id in notes must not be empty")
		}
		employeeIDs = append(employeeIDs, employeeID)
	}
	sort.Strings(employeeIDs)

	return s.transit(ctx, runID, transition{
		op:      OpResolveIssues,
		event:   EventIrregularitiesResolved,
		actorID: managerID,
		notes:   notes,
		follow: func(ctx context.Context, tx StoreAPI, run Run) (Run, error) {
			for _, employeeID := range employeeIDs {
				detail, err := tx.GetDetail(ctx, run.ID, employeeID)
				if err != nil {
					return Run{}, fmt.Errorf("resolve %s: %w", employeeID, err)
				}
				if err := tx.SetDetailExceptions(ctx, detail.ID, ""); err != nil {
					return Run{}, err
				}
			}
			return run, nil
		},
	})
}

// UpdateBankStatus is the only writer of a detail's bank status. The run's
// irregularities and totals are refreshed afterwards.
func (s *Service) UpdateBankStatus(ctx context.Context, runID, employeeID string, status BankStatus) (Detail, error) {
	if status != BankStatusValid && status != BankStatusMissing {
		return Detail{}, ErrBadBankStatus
	}
	if strings.TrimSpace(employeeID) == "" {
		return Detail{}, newError(ErrInvalidInput, "employee id is required")
	}
	var updated Detail
	_, err := s.transit(ctx, runID, transition{
		op:      OpUpdateBankStatus,
		event:   EventBankStatusUpdated,
		actorID: requestctx.GetActorID(ctx),
		follow: func(ctx context.Context, tx StoreAPI, run Run) (Run, error) {
			detail, err := tx.GetDetail(ctx, run.ID, employeeID)
			if err != nil {
				return Run{}, err
			}
			if detail.BankStatus != status {
				if err := tx.SetDetailBankStatus(ctx, detail.ID, status); err != nil {
					return Run{}, err
				}
			}
			details, err := s.detectIrregularities(ctx, tx, run.ID)
			if err != nil {
				return Run{}, err
			}
			for _, d := range details {
				if d.ID == detail.ID {
					updated = d
				}
			}
			return run, nil
		},
	})
	if err != nil {
		return Detail{}, err
	}
	return updated, nil
}

func requireSpecialist(specialistID string) func(context.Context, StoreAPI, Run) error {
	return func(_ context.Context, _ StoreAPI, run Run) error {
		if run.PayrollSpecialistID != specialistID {
			return ErrNotRunSpecialist
		}
		return nil
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
