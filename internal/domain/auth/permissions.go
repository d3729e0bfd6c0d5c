package auth

const (
	RolePayrollSpecialist = "payroll_specialist"
	RolePayrollManager    = "payroll_manager"
	RoleFinanceStaff      = "finance_staff"
	RoleHRAdmin           = "hr_admin"
)

const (
	PermPayrollRead    = "payroll.read"
	PermPayrollRun     = "payroll.run"
	PermPayrollApprove = "payroll.approve"
	PermPayrollFinance = "payroll.finance"
	PermAuditRead      = "audit.read"
)

var RolePermissions = map[string][]string{
	RolePayrollSpecialist: {
		PermPayrollRead,
		PermPayrollRun,
	},
	RolePayrollManager: {
		PermPayrollRead,
		PermPayrollApprove,
	},
	RoleFinanceStaff: {
		PermPayrollRead,
		PermPayrollFinance,
	},
	RoleHRAdmin: {
		PermPayrollRead,
		PermPayrollRun,
		PermPayrollApprove,
		PermPayrollFinance,
		PermAuditRead,
	},
}
