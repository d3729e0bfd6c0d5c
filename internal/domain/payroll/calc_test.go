package payroll

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizePeriodUsesLastDayOfMonth(t *testing.T) {
	assert.Equal(t, day(2025, time.March, 31), NormalizePeriod(day(2025, time.March, 3)))
	assert.Equal(t, day(2024, time.February, 29), NormalizePeriod(time.Date(2024, time.February, 10, 15, 4, 0, 0, time.UTC)))
	assert.Equal(t, day(2025, time.December, 31), NormalizePeriod(day(2025, time.December, 31)))
	assert.True(t, NormalizePeriod(time.Time{}).IsZero())
}

func TestParsePeriod(t *testing.T) {
	period, err := ParsePeriod("2025-03")
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.March, 31), period)

	period, err = ParsePeriod("2025-04-15")
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.April, 30), period)

	_, err = ParsePeriod("March 2025")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProrateFullPeriodWhenHiredOnPeriodStart(t *testing.T) {
	window := WindowFor(day(2025, time.March, 31))
	got := ProrateBaseSalary(dec("6000"), day(2025, time.March, 1), nil, window)
	assert.True(t, got.Equal(dec("6000")), got.String())
}

func TestProrateMidMonthHire(t *testing.T) {
	window := WindowFor(day(2025, time.April, 30))
	got := ProrateBaseSalary(dec("6000"), day(2025, time.April, 10), nil, window)
	assert.True(t, got.Equal(dec("4200")), "21/30 of 6000, got %s", got)
}

func TestProrateTerminatedMidMonth(t *testing.T) {
	window := WindowFor(day(2025, time.April, 30))
	end := day(2025, time.April, 15)
	got := ProrateBaseSalary(dec("3000"), day(2020, time.January, 1), &end, window)
	assert.True(t, got.Equal(dec("1500")), got.String())
}

func TestProrateOutsideWindowIsZero(t *testing.T) {
	window := WindowFor(day(2025, time.April, 30))
	got := ProrateBaseSalary(dec("3000"), day(2025, time.May, 2), nil, window)
	assert.True(t, got.IsZero(), got.String())
}

func TestProrateZeroBaseAndInvalidWindow(t *testing.T) {
	assert.True(t, ProrateBaseSalary(decimal.Zero, day(2025, time.April, 10), nil, WindowFor(day(2025, time.April, 30))).IsZero())
	assert.True(t, ProrateBaseSalary(dec("2500"), day(2025, time.April, 10), nil, PeriodWindow{}).Equal(dec("2500")))
}

func TestInsuranceBracketIncludesMaxSalary(t *testing.T) {
	ceiling := dec("5000")
	bracket := InsuranceBracket{MinSalary: dec("1000"), MaxSalary: &ceiling, EmployeeRate: dec("5")}
	assert.True(t, bracket.Contains(dec("5000")))
	assert.True(t, bracket.Contains(dec("1000")))
	assert.False(t, bracket.Contains(dec("5000.01")))
	assert.False(t, bracket.Contains(dec("999.99")))

	got := StatutoryDeductions(dec("5000"), nil, []InsuranceBracket{bracket})
	assert.True(t, got.Equal(dec("250")), got.String())
}

func TestStatutoryDeductionsSumsOverlappingBrackets(t *testing.T) {
	low := dec("4000")
	brackets := []InsuranceBracket{
		{MinSalary: dec("0"), MaxSalary: &low, EmployeeRate: dec("2")},
		{MinSalary: dec("3000"), EmployeeRate: dec("1.5")},
	}
	taxes := []TaxRule{{Rate: dec("10")}, {Rate: dec("2.5")}}

	got := StatutoryDeductions(dec("3500"), taxes, brackets)
	// 350 + 87.5 tax, 70 + 52.5 insurance
	assert.True(t, got.Equal(dec("560")), got.String())
}

func TestComputeDetailAddsBonusAndBenefit(t *testing.T) {
	policies := NewPolicySet(
		[]Allowance{{ID: "a1", Amount: dec("200"), Status: PolicyStatusApproved}, {ID: "a2", Amount: dec("999"), Status: PolicyStatusDraft}},
		[]TaxRule{{ID: "t1", Rate: dec("10"), Status: PolicyStatusApproved}},
		nil,
		[]TerminationBenefit{{ID: "b1", Amount: dec("1000"), Status: PolicyStatusApproved}},
		[]SigningBonus{{ID: "s1", Amount: dec("500")}},
		[]SigningBonusLink{{EmployeeID: "E1", SigningBonusID: "s1", Status: PolicyStatusApproved}},
	)
	detail := ComputeDetail(DetailInput{
		RunID:    "run-1",
		Employee: Employee{ID: "E1", Status: EmployeeStatusRetired, HireDate: day(2020, time.January, 1)},
		PayGrade: PayGrade{BaseSalary: dec("3000")},
		Window:   WindowFor(day(2025, time.March, 31)),
		Policies: policies,
	})

	assert.True(t, detail.BaseSalary.Equal(dec("3000")))
	assert.True(t, detail.Allowances.Equal(dec("200")))
	assert.True(t, detail.Deductions.Equal(dec("300")))
	require.NotNil(t, detail.Bonus)
	assert.True(t, detail.Bonus.Equal(dec("500")))
	require.NotNil(t, detail.Benefit)
	assert.True(t, detail.Benefit.Equal(dec("1000")))
	assert.True(t, detail.NetPay.Equal(dec("4400")), detail.NetPay.String())
	assert.True(t, detail.NetSalary.Equal(detail.NetPay))
}

func TestComputeDetailActiveEmployeeGetsNoBenefit(t *testing.T) {
	policies := NewPolicySet(nil, nil, nil,
		[]TerminationBenefit{{ID: "b1", Amount: dec("1000"), Status: PolicyStatusApproved}},
		nil, nil)
	detail := ComputeDetail(DetailInput{
		Employee: Employee{ID: "E2", Status: EmployeeStatusActive},
		PayGrade: PayGrade{BaseSalary: dec("2000")},
		Window:   WindowFor(day(2025, time.March, 31)),
		Policies: policies,
	})
	assert.Nil(t, detail.Benefit)
	assert.Nil(t, detail.Bonus)
	assert.True(t, detail.NetPay.Equal(dec("2000")))
}

func TestPolicySetKeepsApprovedOnly(t *testing.T) {
	set := NewPolicySet(
		[]Allowance{{ID: "a1", Status: PolicyStatusApproved}, {ID: "a2", Status: PolicyStatusRejected}},
		[]TaxRule{{ID: "t1", Status: PolicyStatusDraft}},
		[]InsuranceBracket{{ID: "i1", Status: PolicyStatusApproved}},
		nil,
		[]SigningBonus{{ID: "s1", Amount: dec("100")}},
		[]SigningBonusLink{
			{EmployeeID: "E1", SigningBonusID: "s1", Status: PolicyStatusDraft},
			{EmployeeID: "E2", SigningBonusID: "missing", Status: PolicyStatusApproved},
		},
	)
	require.Len(t, set.Allowances, 1)
	assert.Equal(t, "a1", set.Allowances[0].ID)
	assert.Empty(t, set.TaxRules)
	assert.Len(t, set.InsuranceBrackets, 1)

	_, ok := set.SigningBonusFor("E1")
	assert.False(t, ok)
	_, ok = set.SigningBonusFor("E2")
	assert.False(t, ok)
}

func TestDetectIssuesSpikeIsStrict(t *testing.T) {
	prior := &Detail{NetSalary: dec("1000")}

	spiked := Detail{NetSalary: dec("1250"), NetPay: dec("1250"), BankStatus: BankStatusValid}
	assert.Equal(t, []string{IssueSalarySpike}, DetectIssues(spiked, prior))

	edge := Detail{NetSalary: dec("1200"), NetPay: dec("1200"), BankStatus: BankStatusValid}
	assert.Empty(t, DetectIssues(edge, prior))

	assert.Empty(t, DetectIssues(spiked, nil))
}

func TestDetectIssuesOrder(t *testing.T) {
	detail := Detail{NetSalary: dec("-10"), NetPay: dec("-10"), BankStatus: BankStatusMissing}
	issues := DetectIssues(detail, &Detail{NetSalary: dec("-100")})
	assert.Equal(t, []string{IssueMissingBank, IssueNegativeNet, IssueSalarySpike}, issues)
	assert.Equal(t, "Missing bank account; Negative net pay; Sudden salary spike", JoinIssues(issues))
	assert.Equal(t, issues, SplitIssues(JoinIssues(issues)))
	assert.Nil(t, SplitIssues(""))
}

func TestAggregateRecomputesFromDetails(t *testing.T) {
	details := []Detail{
		{NetPay: dec("5400")},
		{NetPay: dec("-20"), Exceptions: IssueNegativeNet},
		{NetPay: dec("100.50")},
	}
	totals := Aggregate(details)
	assert.Equal(t, 3, totals.Employees)
	assert.Equal(t, 1, totals.Exceptions)
	assert.True(t, totals.TotalNetPay.Equal(dec("5480.50")))

	again := Aggregate(details)
	assert.True(t, again.TotalNetPay.Equal(totals.TotalNetPay))

	empty := Aggregate(nil)
	assert.Zero(t, empty.Employees)
	assert.True(t, empty.TotalNetPay.IsZero())
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		op     Operation
		status RunStatus
		want   bool
	}{
		{OpLock, RunStatusApproved, true},
		{OpLock, RunStatusDraft, false},
		{OpLock, RunStatusLocked, false},
		{OpUnlock, RunStatusLocked, true},
		{OpUnlock, RunStatusApproved, false},
		{OpFinanceApproval, RunStatusUnderReview, true},
		{OpFinanceApproval, RunStatusDraft, false},
		{OpApproveInitiation, RunStatusUnderReview, false},
		{OpEditInitiation, RunStatusUnlocked, true},
		{OpEditInitiation, RunStatusUnderReview, false},
		{OpResolveIssues, RunStatusApproved, true},
		{OpRecalculate, RunStatusLocked, false},
		{OpRecalculate, RunStatusUnlocked, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.op.Allows(tc.status), "%s from %s", tc.op, tc.status)
	}

	err := checkTransition(OpLock, Run{Status: RunStatusDraft})
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "cannot lock payroll run in status DRAFT", err.Error())
}

func TestCanFinalize(t *testing.T) {
	assert.True(t, Run{Status: RunStatusPendingFinanceApproval, Employees: 2}.CanFinalize())
	assert.False(t, Run{Status: RunStatusPendingFinanceApproval, Employees: 2, Exceptions: 1}.CanFinalize())
	assert.False(t, Run{Status: RunStatusDraft, Employees: 2}.CanFinalize())
	assert.False(t, Run{Status: RunStatusUnderReview}.CanFinalize())
}

func TestBuildPayslip(t *testing.T) {
	bonus := dec("500")
	payslip := BuildPayslip(Detail{
		EmployeeID:   "E1",
		PayrollRunID: "run-1",
		BaseSalary:   dec("3000"),
		Allowances:   dec("200"),
		Deductions:   dec("300"),
		Bonus:        &bonus,
		NetSalary:    dec("3400"),
		NetPay:       dec("3400"),
	})
	assert.True(t, payslip.TotalGrossSalary.Equal(dec("3700")))
	assert.True(t, payslip.TotalDeductions.Equal(dec("300")))
	assert.Equal(t, PaymentStatusPending, payslip.PaymentStatus)
	require.Len(t, payslip.Earnings.Bonuses, 1)
	assert.Equal(t, EarningSigningBonus, payslip.Earnings.Bonuses[0].Label)
	assert.Empty(t, payslip.Earnings.Benefits)
	require.Len(t, payslip.Deductions.Taxes, 1)
}
