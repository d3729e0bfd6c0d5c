package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProrateBaseSalary scales a pay-grade base salary by the inclusive days the employee
// was employed inside the window. A missing termination date means employed through
// the window end. An invalid window returns the base salary unprorated.
func ProrateBaseSalary(base decimal.Decimal, hireDate time.Time, terminationDate *time.Time, window PeriodWindow) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	if !window.valid() {
		return base
	}

	start := window.Start
	if !hireDate.IsZero() && truncateDay(hireDate).After(start) {
		start = truncateDay(hireDate)
	}
	end := window.End
	if terminationDate != nil && !terminationDate.IsZero() && truncateDay(*terminationDate).Before(end) {
		end = truncateDay(*terminationDate)
	}

	worked := max(inclusiveDays(start, end), 0)
	total := max(inclusiveDays(window.Start, window.End), 1)
	if worked == total {
		return base
	}
	return base.Mul(decimal.NewFromInt(worked)).Div(decimal.NewFromInt(total)).Round(2)
}
