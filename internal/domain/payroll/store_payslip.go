package payroll

import (
	"context"
	"encoding/json"
)

const payslipColumns = `id, employee_id, payroll_run_id, earnings, deductions,
           total_gross_salary, total_deductions, net_pay, payment_status, COALESCE(file_path, ''), created_at`

func scanPayslip(row rowScanner) (Payslip, error) {
	var payslip Payslip
	var earnings, deductions []byte
	if err := row.Scan(
		&payslip.ID,
		&payslip.EmployeeID,
		&payslip.PayrollRunID,
		&earnings,
		&deductions,
		&payslip.TotalGrossSalary,
		&payslip.TotalDeductions,
		&payslip.NetPay,
		&payslip.PaymentStatus,
		&payslip.FilePath,
		&payslip.CreatedAt,
	); err != nil {
		return Payslip{}, err
	}
	if err := json.Unmarshal(earnings, &payslip.Earnings); err != nil {
		return Payslip{}, err
	}
	if err := json.Unmarshal(deductions, &payslip.Deductions); err != nil {
		return Payslip{}, err
	}
	return payslip, nil
}

func (s *Store) CreatePayslip(ctx context.Context, payslip Payslip) (Payslip, error) {
	earnings, err := json.Marshal(payslip.Earnings)
	if err != nil {
		return Payslip{}, err
	}
	deductions, err := json.Marshal(payslip.Deductions)
	if err != nil {
		return Payslip{}, err
	}
	return scanPayslip(s.DB.QueryRow(ctx, `
    INSERT INTO payslips
      (id, employee_id, payroll_run_id, earnings, deductions, total_gross_salary, total_deductions,
       net_pay, payment_status, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING `+payslipColumns,
		payslip.ID, payslip.EmployeeID, payslip.PayrollRunID, earnings, deductions,
		payslip.TotalGrossSalary, payslip.TotalDeductions, payslip.NetPay, payslip.PaymentStatus, payslip.CreatedAt,
	))
}

func (s *Store) GetPayslip(ctx context.Context, id string) (Payslip, error) {
	payslip, err := scanPayslip(s.DB.QueryRow(ctx, `SELECT `+payslipColumns+` FROM payslips WHERE id = $1`, id))
	return payslip, notFound(err, ErrPayslipNotFound)
}

func (s *Store) ListPayslips(ctx context.Context, runID string) ([]Payslip, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+payslipColumns+`
    FROM payslips
    WHERE payroll_run_id = $1
    ORDER BY employee_id, created_at
  `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payslip
	for rows.Next() {
		payslip, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, payslip)
	}
	return out, rows.Err()
}

func (s *Store) SetPayslipFile(ctx context.Context, id, filePath string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE payslips SET file_path = $1 WHERE id = $2", filePath, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayslipNotFound
	}
	return nil
}
