package payroll

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const employeeColumns = `id, first_name, last_name, COALESCE(email, ''), status, hire_date, contract_end_date,
           COALESCE(pay_grade_id, '')`

func scanEmployee(row rowScanner) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Status, &e.HireDate, &e.ContractEndDate, &e.PayGradeID)
	return e, err
}

func (s *Store) ListEmployeesByStatus(ctx context.Context, statuses []EmployeeStatus) ([]Employee, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	rows, err := s.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE status = ANY($1)
    ORDER BY id
  `, values)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Employee, error) {
		return scanEmployee(row)
	})
}

func (s *Store) GetEmployee(ctx context.Context, id string) (Employee, error) {
	employee, err := scanEmployee(s.DB.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	return employee, notFound(err, ErrEmployeeNotFound)
}

func (s *Store) GetPayGrade(ctx context.Context, id string) (PayGrade, error) {
	var grade PayGrade
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, base_salary, COALESCE(gross_salary, base_salary)
    FROM pay_grades
    WHERE id = $1
  `, id).Scan(&grade.ID, &grade.Name, &grade.BaseSalary, &grade.GrossSalary)
	return grade, notFound(err, ErrPayGradeNotFound)
}
