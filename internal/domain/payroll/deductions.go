package payroll

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Contains reports whether salary falls inside the bracket, both bounds inclusive.
func (b InsuranceBracket) Contains(salary decimal.Decimal) bool {
	if salary.LessThan(b.MinSalary) {
		return false
	}
	return b.MaxSalary == nil || salary.LessThanOrEqual(*b.MaxSalary)
}

// StatutoryDeductions sums every tax rule plus every bracket that contains the salary.
// Brackets may overlap; all matches apply.
func StatutoryDeductions(baseSalary decimal.Decimal, taxRules []TaxRule, brackets []InsuranceBracket) decimal.Decimal {
	total := decimal.Zero
	for _, rule := range taxRules {
		total = total.Add(baseSalary.Mul(rule.Rate).Div(hundred))
	}
	for _, bracket := range brackets {
		if bracket.Contains(baseSalary) {
			total = total.Add(baseSalary.Mul(bracket.EmployeeRate).Div(hundred))
		}
	}
	return total.Round(2)
}
