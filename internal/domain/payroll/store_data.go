package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const runColumns = `id, run_id, payroll_period, entity, status, payment_status,
           employees, exceptions, total_net_pay,
           payroll_specialist_id, COALESCE(payroll_manager_id, ''), COALESCE(finance_staff_id, ''),
           manager_approval_date, finance_approval_date, COALESCE(unlock_reason, ''),
           version, created_at, updated_at`

func scanRun(row rowScanner) (Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.RunID,
		&run.PayrollPeriod,
		&run.Entity,
		&run.Status,
		&run.PaymentStatus,
		&run.Employees,
		&run.Exceptions,
		&run.TotalNetPay,
		&run.PayrollSpecialistID,
		&run.PayrollManagerID,
		&run.FinanceStaffID,
		&run.ManagerApprovalDate,
		&run.FinanceApprovalDate,
		&run.UnlockReason,
		&run.Version,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	return run, err
}

// NextRunSequence allocates the next run number for a year atomically.
func (s *Store) NextRunSequence(ctx context.Context, year int) (int, error) {
	var next int
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_run_sequences (year, last_value)
    VALUES ($1, 1)
    ON CONFLICT (year) DO UPDATE SET last_value = payroll_run_sequences.last_value + 1
    RETURNING last_value
  `, year).Scan(&next)
	return next, err
}

func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	created, err := scanRun(s.DB.QueryRow(ctx, `
    INSERT INTO payroll_runs
      (id, run_id, payroll_period, entity, status, payment_status, employees, exceptions, total_net_pay,
       payroll_specialist_id, version, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1,$11,$11)
    RETURNING `+runColumns,
		run.ID, run.RunID, run.PayrollPeriod, run.Entity, run.Status, run.PaymentStatus,
		run.Employees, run.Exceptions, run.TotalNetPay, run.PayrollSpecialistID, run.CreatedAt,
	))
	if isUniqueViolation(err) {
		return Run{}, ErrRunExists
	}
	return created, err
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	run, err := scanRun(s.DB.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id = $1`, id))
	return run, notFound(err, ErrRunNotFound)
}

func (s *Store) FindRunByPeriod(ctx context.Context, entity string, period time.Time) (Run, error) {
	run, err := scanRun(s.DB.QueryRow(ctx, `
    SELECT `+runColumns+`
    FROM payroll_runs
    WHERE entity = $1 AND payroll_period = $2
  `, entity, period))
	return run, notFound(err, ErrRunNotFound)
}

func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE 1=1`
	var args []any
	if filter.Entity != "" {
		query += fmt.Sprintf(" AND entity = $%d", len(args)+1)
		args = append(args, filter.Entity)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += fmt.Sprintf(" ORDER BY payroll_period DESC, entity LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// UpdateRun writes every mutable run field if the stored version still matches.
func (s *Store) UpdateRun(ctx context.Context, run Run) (Run, error) {
	updated, err := scanRun(s.DB.QueryRow(ctx, `
    UPDATE payroll_runs
    SET payroll_period = $3,
        entity = $4,
        status = $5,
        payment_status = $6,
        employees = $7,
        exceptions = $8,
        total_net_pay = $9,
        payroll_manager_id = NULLIF($10, ''),
        finance_staff_id = NULLIF($11, ''),
        manager_approval_date = $12,
        finance_approval_date = $13,
        unlock_reason = NULLIF($14, ''),
        updated_at = $15,
        version = version + 1
    WHERE id = $1 AND version = $2
    RETURNING `+runColumns,
		run.ID, run.Version, run.PayrollPeriod, run.Entity, run.Status, run.PaymentStatus,
		run.Employees, run.Exceptions, run.TotalNetPay, run.PayrollManagerID, run.FinanceStaffID,
		run.ManagerApprovalDate, run.FinanceApprovalDate, run.UnlockReason, run.UpdatedAt,
	))
	switch {
	case err == nil:
		return updated, nil
	case isUniqueViolation(err):
		return Run{}, ErrRunExists
	case errors.Is(err, pgx.ErrNoRows):
		if _, getErr := s.GetRun(ctx, run.ID); getErr != nil {
			return Run{}, getErr
		}
		return Run{}, ErrRunConflict
	default:
		return Run{}, err
	}
}

const detailColumns = `id, employee_id, payroll_run_id, base_salary, allowances, deductions, bonus, benefit,
           net_salary, net_pay, bank_status, exceptions, seq, created_at, updated_at`

func scanDetail(row rowScanner) (Detail, error) {
	var detail Detail
	var bonus, benefit decimal.NullDecimal
	err := row.Scan(
		&detail.ID,
		&detail.EmployeeID,
		&detail.PayrollRunID,
		&detail.BaseSalary,
		&detail.Allowances,
		&detail.Deductions,
		&bonus,
		&benefit,
		&detail.NetSalary,
		&detail.NetPay,
		&detail.BankStatus,
		&detail.Exceptions,
		&detail.Seq,
		&detail.CreatedAt,
		&detail.UpdatedAt,
	)
	detail.Bonus = nullableDecimal(bonus)
	detail.Benefit = nullableDecimal(benefit)
	return detail, err
}

// UpsertDetail inserts or refreshes the numeric fields of (employee, run). Bank status
// and exceptions are only set on insert, and an unchanged row is not rewritten.
func (s *Store) UpsertDetail(ctx context.Context, detail Detail) (Detail, error) {
	saved, err := scanDetail(s.DB.QueryRow(ctx, `
    INSERT INTO payroll_details
      (id, employee_id, payroll_run_id, base_salary, allowances, deductions, bonus, benefit,
       net_salary, net_pay, bank_status, exceptions, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'',$12,$12)
    ON CONFLICT (employee_id, payroll_run_id) DO UPDATE
    SET base_salary = EXCLUDED.base_salary,
        allowances = EXCLUDED.allowances,
        deductions = EXCLUDED.deductions,
        bonus = EXCLUDED.bonus,
        benefit = EXCLUDED.benefit,
        net_salary = EXCLUDED.net_salary,
        net_pay = EXCLUDED.net_pay,
        updated_at = EXCLUDED.updated_at
    WHERE (payroll_details.base_salary, payroll_details.allowances, payroll_details.deductions,
           payroll_details.bonus, payroll_details.benefit, payroll_details.net_salary, payroll_details.net_pay)
      IS DISTINCT FROM
          (EXCLUDED.base_salary, EXCLUDED.allowances, EXCLUDED.deductions,
           EXCLUDED.bonus, EXCLUDED.benefit, EXCLUDED.net_salary, EXCLUDED.net_pay)
    RETURNING `+detailColumns,
		detail.ID, detail.EmployeeID, detail.PayrollRunID, detail.BaseSalary, detail.Allowances, detail.Deductions,
		decimalParam(detail.Bonus), decimalParam(detail.Benefit), detail.NetSalary, detail.NetPay,
		detail.BankStatus, detail.UpdatedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return s.GetDetail(ctx, detail.PayrollRunID, detail.EmployeeID)
	}
	return saved, err
}

func (s *Store) GetDetail(ctx context.Context, runID, employeeID string) (Detail, error) {
	detail, err := scanDetail(s.DB.QueryRow(ctx, `
    SELECT `+detailColumns+`
    FROM payroll_details
    WHERE payroll_run_id = $1 AND employee_id = $2
  `, runID, employeeID))
	return detail, notFound(err, ErrDetailNotFound)
}

func (s *Store) ListDetails(ctx context.Context, runID string) ([]Detail, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+detailColumns+`
    FROM payroll_details
    WHERE payroll_run_id = $1
    ORDER BY employee_id
  `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		detail, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, detail)
	}
	return out, rows.Err()
}

// LatestOtherDetail returns the employee's most recently created detail outside excludeRunID.
func (s *Store) LatestOtherDetail(ctx context.Context, employeeID, excludeRunID string) (Detail, error) {
	detail, err := scanDetail(s.DB.QueryRow(ctx, `
    SELECT `+detailColumns+`
    FROM payroll_details
    WHERE employee_id = $1 AND payroll_run_id <> $2
    ORDER BY seq DESC
    LIMIT 1
  `, employeeID, excludeRunID))
	return detail, notFound(err, ErrDetailNotFound)
}

func (s *Store) SetDetailExceptions(ctx context.Context, detailID, exceptions string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_details
    SET exceptions = $2
    WHERE id = $1
  `, detailID, exceptions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}

func (s *Store) SetDetailBankStatus(ctx context.Context, detailID string, status BankStatus) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_details
    SET bank_status = $2, updated_at = now()
    WHERE id = $1
  `, detailID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDetailNotFound
	}
	return nil
}
