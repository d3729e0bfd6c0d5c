package payroll

import "slices"

type DetailInput struct {
	RunID    string
	Employee Employee
	PayGrade PayGrade
	Window   PeriodWindow
	Policies PolicySet
}

// ComputeDetail produces the numeric part of an employee's detail for a run.
// Bank status and exceptions are owned elsewhere and left unset.
func ComputeDetail(in DetailInput) Detail {
	base := ProrateBaseSalary(in.PayGrade.BaseSalary, in.Employee.HireDate, in.Employee.ContractEndDate, in.Window)
	allowances := in.Policies.TotalAllowances()
	deductions := StatutoryDeductions(base, in.Policies.TaxRules, in.Policies.InsuranceBrackets)

	detail := Detail{
		EmployeeID:   in.Employee.ID,
		PayrollRunID: in.RunID,
		BaseSalary:   base,
		Allowances:   allowances,
		Deductions:   deductions,
	}

	net := base.Add(allowances).Sub(deductions)
	if bonus, ok := in.Policies.SigningBonusFor(in.Employee.ID); ok {
		detail.Bonus = &bonus
		net = net.Add(bonus)
	}
	if receivesTerminationBenefit(in.Employee.Status) && len(in.Policies.TerminationBenefits) > 0 {
		benefit := in.Policies.TotalTerminationBenefits()
		detail.Benefit = &benefit
		net = net.Add(benefit)
	}

	detail.NetSalary = net
	detail.NetPay = net
	return detail
}

func receivesTerminationBenefit(status EmployeeStatus) bool {
	return status == EmployeeStatusRetired || status == EmployeeStatusTerminated
}

func isEligible(status EmployeeStatus) bool {
	return slices.Contains(EligibleStatuses, status)
}
