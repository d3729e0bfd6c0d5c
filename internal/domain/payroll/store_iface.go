package payroll

import (
	"context"
	"time"
)

type StoreAPI interface {
	PolicyReader

	NextRunSequence(ctx context.Context, year int) (int, error)
	CreateRun(ctx context.Context, run Run) (Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	FindRunByPeriod(ctx context.Context, entity string, period time.Time) (Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	UpdateRun(ctx context.Context, run Run) (Run, error)

	ListEmployeesByStatus(ctx context.Context, statuses []EmployeeStatus) ([]Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	GetPayGrade(ctx context.Context, id string) (PayGrade, error)

	UpsertDetail(ctx context.Context, detail Detail) (Detail, error)
	GetDetail(ctx context.Context, runID, employeeID string) (Detail, error)
	ListDetails(ctx context.Context, runID string) ([]Detail, error)
	LatestOtherDetail(ctx context.Context, employeeID, excludeRunID string) (Detail, error)
	SetDetailExceptions(ctx context.Context, detailID, exceptions string) error
	SetDetailBankStatus(ctx context.Context, detailID string, status BankStatus) error

	CreatePayslip(ctx context.Context, payslip Payslip) (Payslip, error)
	GetPayslip(ctx context.Context, id string) (Payslip, error)
	ListPayslips(ctx context.Context, runID string) ([]Payslip, error)
	SetPayslipFile(ctx context.Context, id, filePath string) error

	WithinTx(ctx context.Context, fn func(StoreAPI) error) error
}
