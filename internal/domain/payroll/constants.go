package payroll

type RunStatus string

const (
	RunStatusDraft                  RunStatus = "DRAFT"
	RunStatusUnderReview            RunStatus = "UNDER_REVIEW"
	RunStatusPendingFinanceApproval RunStatus = "PENDING_FINANCE_APPROVAL"
	RunStatusApproved               RunStatus = "APPROVED"
	RunStatusLocked                 RunStatus = "LOCKED"
	RunStatusUnlocked               RunStatus = "UNLOCKED"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

type BankStatus string

const (
	BankStatusValid   BankStatus = "VALID"
	BankStatusMissing BankStatus = "MISSING"
)

type EmployeeStatus string

const (
	EmployeeStatusActive     EmployeeStatus = "ACTIVE"
	EmployeeStatusProbation  EmployeeStatus = "PROBATION"
	EmployeeStatusRetired    EmployeeStatus = "RETIRED"
	EmployeeStatusTerminated EmployeeStatus = "TERMINATED"
	EmployeeStatusInactive   EmployeeStatus = "INACTIVE"
	EmployeeStatusSuspended  EmployeeStatus = "SUSPENDED"
)

// EligibleStatuses are the employee statuses included in a run.
var EligibleStatuses = []EmployeeStatus{
	EmployeeStatusActive,
	EmployeeStatusProbation,
	EmployeeStatusRetired,
	EmployeeStatusTerminated,
}

type PolicyStatus string

const (
	PolicyStatusDraft    PolicyStatus = "DRAFT"
	PolicyStatusApproved PolicyStatus = "APPROVED"
	PolicyStatusRejected PolicyStatus = "REJECTED"
)

const (
	IssueMissingBank   = "Missing bank account"
	IssueNegativeNet   = "Negative net pay"
	IssueSalarySpike   = "Sudden salary spike"
	issueSeparator     = "; "
	runCodePrefix      = "PR"
	defaultRecalcLimit = 4
)

const (
	EventRunCreated             = "payroll.run.created"
	EventRunRecalculated        = "payroll.run.recalculated"
	EventSentForApproval        = "payroll.run.sent_for_approval"
	EventInitiationApproved     = "payroll.run.initiation_approved"
	EventManagerApproved        = "payroll.run.manager_approved"
	EventFinanceApproved        = "payroll.run.finance_approved"
	EventRunLocked              = "payroll.run.locked"
	EventRunUnlocked            = "payroll.run.unlocked"
	EventRunEdited              = "payroll.run.edited"
	EventIrregularitiesResolved = "payroll.run.irregularities_resolved"
	EventBankStatusUpdated      = "payroll.detail.bank_status_updated"
)

const (
	EarningBaseSalary         = "Base Salary"
	EarningAllowances         = "Allowances"
	EarningSigningBonus       = "Signing Bonus"
	EarningTerminationBenefit = "Termination Benefit"
	DeductionStatutory        = "Taxes & Insurance"
)
