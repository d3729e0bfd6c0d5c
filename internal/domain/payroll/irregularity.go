package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

var spikeThreshold = decimal.NewFromFloat(0.20)

// DetectIssues returns the ordered issue labels for a detail. prior is the employee's
// most recent other detail, or nil when there is none.
func DetectIssues(detail Detail, prior *Detail) []string {
	var issues []string
	if detail.BankStatus == BankStatusMissing {
		issues = append(issues, IssueMissingBank)
	}
	if detail.NetPay.IsNegative() {
		issues = append(issues, IssueNegativeNet)
	}
	if prior != nil && isSpike(detail.NetSalary, prior.NetSalary) {
		issues = append(issues, IssueSalarySpike)
	}
	return issues
}

// isSpike is a strict rise of more than 20% over the prior net salary.
func isSpike(current, prior decimal.Decimal) bool {
	return current.Sub(prior).GreaterThan(prior.Mul(spikeThreshold))
}

func JoinIssues(issues []string) string {
	return strings.Join(issues, issueSeparator)
}

func SplitIssues(exceptions string) []string {
	if strings.TrimSpace(exceptions) == "" {
		return nil
	}
	return strings.Split(exceptions, issueSeparator)
}
