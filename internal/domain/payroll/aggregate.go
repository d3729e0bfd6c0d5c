package payroll

import "github.com/shopspring/decimal"

// Aggregate recomputes run totals from the full detail set.
func Aggregate(details []Detail) RunTotals {
	totals := RunTotals{TotalNetPay: decimal.Zero}
	for _, detail := range details {
		totals.Employees++
		if detail.Exceptions != "" {
			totals.Exceptions++
		}
		totals.TotalNetPay = totals.TotalNetPay.Add(detail.NetPay)
	}
	return totals
}

func (r Run) Totals() RunTotals {
	return RunTotals{Employees: r.Employees, Exceptions: r.Exceptions, TotalNetPay: r.TotalNetPay}
}

// awaitingFirstCalculation reports a draft that holds no details yet, as left behind
// when the calculation after creation failed.
func (r Run) awaitingFirstCalculation() bool {
	return r.Status == RunStatusDraft && r.Employees == 0
}

func (r *Run) applyTotals(totals RunTotals) {
	r.Employees = totals.Employees
	r.Exceptions = totals.Exceptions
	r.TotalNetPay = totals.TotalNetPay
}
