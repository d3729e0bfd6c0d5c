package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type Run struct {
	ID                  string          `json:"id"`
	RunID               string          `json:"runId"`
	PayrollPeriod       time.Time       `json:"payrollPeriod"`
	Entity              string          `json:"entity"`
	Status              RunStatus       `json:"status"`
	PaymentStatus       PaymentStatus   `json:"paymentStatus"`
	Employees           int             `json:"employees"`
	Exceptions          int             `json:"exceptions"`
	TotalNetPay         decimal.Decimal `json:"totalNetPay"`
	PayrollSpecialistID string          `json:"payrollSpecialistId"`
	PayrollManagerID    string          `json:"payrollManagerId,omitempty"`
	FinanceStaffID      string          `json:"financeStaffId,omitempty"`
	ManagerApprovalDate *time.Time      `json:"managerApprovalDate,omitempty"`
	FinanceApprovalDate *time.Time      `json:"financeApprovalDate,omitempty"`
	UnlockReason        string          `json:"unlockReason,omitempty"`
	Version             int64           `json:"version"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

type Detail struct {
	ID           string           `json:"id"`
	EmployeeID   string           `json:"employeeId"`
	PayrollRunID string           `json:"payrollRunId"`
	BaseSalary   decimal.Decimal  `json:"baseSalary"`
	Allowances   decimal.Decimal  `json:"allowances"`
	Deductions   decimal.Decimal  `json:"deductions"`
	Bonus        *decimal.Decimal `json:"bonus,omitempty"`
	Benefit      *decimal.Decimal `json:"benefit,omitempty"`
	NetSalary    decimal.Decimal  `json:"netSalary"`
	NetPay       decimal.Decimal  `json:"netPay"`
	BankStatus   BankStatus       `json:"bankStatus"`
	Exceptions   string           `json:"exceptions"`
	Seq          int64            `json:"-"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type PayslipLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type Earnings struct {
	BaseSalary decimal.Decimal `json:"baseSalary"`
	Allowances []PayslipLine   `json:"allowances"`
	Bonuses    []PayslipLine   `json:"bonuses"`
	Benefits   []PayslipLine   `json:"benefits"`
	Refunds    []PayslipLine   `json:"refunds"`
}

type DeductionBreakdown struct {
	Taxes      []PayslipLine `json:"taxes"`
	Insurances []PayslipLine `json:"insurances"`
	Penalties  []PayslipLine `json:"penalties"`
}

type Payslip struct {
	ID               string             `json:"id"`
	EmployeeID       string             `json:"employeeId"`
	PayrollRunID     string             `json:"payrollRunId"`
	Earnings         Earnings           `json:"earnings"`
	Deductions       DeductionBreakdown `json:"deductions"`
	TotalGrossSalary decimal.Decimal    `json:"totalGrossSalary"`
	TotalDeductions  decimal.Decimal    `json:"totalDeductions"`
	NetPay           decimal.Decimal    `json:"netPay"`
	PaymentStatus    PaymentStatus      `json:"paymentStatus"`
	FilePath         string             `json:"-"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// Employee is the subset of the externally owned profile the engine reads.
type Employee struct {
	ID              string         `json:"id"`
	FirstName       string         `json:"firstName"`
	LastName        string         `json:"lastName"`
	Email           string         `json:"email"`
	Status          EmployeeStatus `json:"status"`
	HireDate        time.Time      `json:"hireDate"`
	ContractEndDate *time.Time     `json:"contractEndDate,omitempty"`
	PayGradeID      string         `json:"payGradeId"`
}

type PayGrade struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	BaseSalary  decimal.Decimal `json:"baseSalary"`
	GrossSalary decimal.Decimal `json:"grossSalary"`
}

type RunTotals struct {
	Employees   int             `json:"employees"`
	Exceptions  int             `json:"exceptions"`
	TotalNetPay decimal.Decimal `json:"totalNetPay"`
}

type RunFilter struct {
	Entity string
	Status RunStatus
	Limit  int
	Offset int
}

type SkippedEmployee struct {
	EmployeeID string `json:"employeeId"`
	Reason     string `json:"reason"`
}

type RecalculateResult struct {
	Run     Run               `json:"run"`
	Details []Detail          `json:"details"`
	Skipped []SkippedEmployee `json:"skipped,omitempty"`
}

type Irregularity struct {
	EmployeeID string   `json:"employeeId"`
	DetailID   string   `json:"detailId"`
	Issues     []string `json:"issues"`
}

type Preview struct {
	Run            Run            `json:"run"`
	Totals         RunTotals      `json:"totals"`
	Details        []Detail       `json:"details"`
	Irregularities []Irregularity `json:"irregularities"`
	CanFinalize    bool           `json:"canFinalize"`
}

// RunPatch holds the fields editPayrollInitiation may change. Nil means unchanged.
type RunPatch struct {
	Entity        *string
	PayrollPeriod *time.Time
}

// RunEvent is published after each successful lifecycle operation.
type RunEvent struct {
	Type          string        `json:"type"`
	RunID         string        `json:"runId"`
	RunCode       string        `json:"runCode"`
	Entity        string        `json:"entity"`
	Period        string        `json:"period"`
	Status        RunStatus     `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	ActorID       string        `json:"actorId"`
	OccurredAt    time.Time     `json:"occurredAt"`
}
