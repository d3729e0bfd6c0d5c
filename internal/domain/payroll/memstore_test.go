package payroll

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var _ StoreAPI = (*memStore)(nil)

// memStore is an in-memory StoreAPI for service tests.
type memStore struct {
	mu sync.Mutex

	runs      map[string]Run
	sequences map[int]int
	details   map[string]Detail
	payslips  map[string]Payslip
	employees map[string]Employee
	grades    map[string]PayGrade
	detailSeq int64

	allowances []Allowance
	taxRules   []TaxRule
	brackets   []InsuranceBracket
	benefits   []TerminationBenefit
	bonuses    []SigningBonus
	bonusLinks []SigningBonusLink

	upserts int

	taxRulesErr error
}

func newMemStore() *memStore {
	return &memStore{
		runs:      map[string]Run{},
		sequences: map[int]int{},
		details:   map[string]Detail{},
		payslips:  map[string]Payslip{},
		employees: map[string]Employee{},
		grades:    map[string]PayGrade{},
	}
}

func (m *memStore) addEmployee(e Employee, baseSalary int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.PayGradeID == "" {
		e.PayGradeID = "grade-" + e.ID
	}
	m.employees[e.ID] = e
	m.grades[e.PayGradeID] = PayGrade{ID: e.PayGradeID, Name: e.PayGradeID, BaseSalary: decimal.NewFromInt(baseSalary)}
}

func (m *memStore) ListAllowances(context.Context) ([]Allowance, error) {
	return m.allowances, nil
}

func (m *memStore) ListTaxRules(context.Context) ([]TaxRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taxRulesErr != nil {
		return nil, m.taxRulesErr
	}
	return m.taxRules, nil
}

func (m *memStore) ListInsuranceBrackets(context.Context) ([]InsuranceBracket, error) {
	return m.brackets, nil
}

func (m *memStore) ListTerminationBenefits(context.Context) ([]TerminationBenefit, error) {
	return m.benefits, nil
}

func (m *memStore) ListSigningBonuses(context.Context) ([]SigningBonus, error) {
	return m.bonuses, nil
}

func (m *memStore) ListSigningBonusLinks(context.Context) ([]SigningBonusLink, error) {
	return m.bonusLinks, nil
}

func (m *memStore) NextRunSequence(_ context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[year]++
	return m.sequences[year], nil
}

func (m *memStore) CreateRun(_ context.Context, run Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.runs {
		if existing.Entity == run.Entity && existing.PayrollPeriod.Equal(run.PayrollPeriod) {
			return Run{}, ErrRunExists
		}
	}
	run.Version = 1
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (m *memStore) FindRunByPeriod(_ context.Context, entity string, period time.Time) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.Entity == entity && run.PayrollPeriod.Equal(period) {
			return run, nil
		}
	}
	return Run{}, ErrRunNotFound
}

func (m *memStore) ListRuns(_ context.Context, filter RunFilter) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, run := range m.runs {
		if filter.Entity != "" && run.Entity != filter.Entity {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

func (m *memStore) UpdateRun(_ context.Context, run Run) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.runs[run.ID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	if current.Version != run.Version {
		return Run{}, ErrRunConflict
	}
	run.Version++
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) ListEmployeesByStatus(_ context.Context, statuses []EmployeeStatus) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Employee
	for _, employee := range m.employees {
		for _, status := range statuses {
			if employee.Status == status {
				out = append(out, employee)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetEmployee(_ context.Context, id string) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employee, ok := m.employees[id]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return employee, nil
}

func (m *memStore) GetPayGrade(_ context.Context, id string) (PayGrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grade, ok := m.grades[id]
	if !ok {
		return PayGrade{}, ErrPayGradeNotFound
	}
	return grade, nil
}

func decimalOrZero(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}

func detailKey(runID, employeeID string) string {
	return runID + "/" + employeeID
}

func (m *memStore) UpsertDetail(_ context.Context, detail Detail) (Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	key := detailKey(detail.PayrollRunID, detail.EmployeeID)
	existing, ok := m.details[key]
	if !ok {
		m.detailSeq++
		detail.Seq = m.detailSeq
		m.details[key] = detail
		return detail, nil
	}
	changed := !existing.BaseSalary.Equal(detail.BaseSalary) ||
		!existing.Allowances.Equal(detail.Allowances) ||
		!existing.Deductions.Equal(detail.Deductions) ||
		!decimalOrZero(existing.Bonus).Equal(decimalOrZero(detail.Bonus)) ||
		!decimalOrZero(existing.Benefit).Equal(decimalOrZero(detail.Benefit)) ||
		!existing.NetSalary.Equal(detail.NetSalary) ||
		!existing.NetPay.Equal(detail.NetPay)
	if changed {
		existing.BaseSalary = detail.BaseSalary
		existing.Allowances = detail.Allowances
		existing.Deductions = detail.Deductions
		existing.Bonus = detail.Bonus
		existing.Benefit = detail.Benefit
		existing.NetSalary = detail.NetSalary
		existing.NetPay = detail.NetPay
		existing.UpdatedAt = detail.UpdatedAt
		m.details[key] = existing
	}
	return existing, nil
}

func (m *memStore) GetDetail(_ context.Context, runID, employeeID string) (Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	detail, ok := m.details[detailKey(runID, employeeID)]
	if !ok {
		return Detail{}, ErrDetailNotFound
	}
	return detail, nil
}

func (m *memStore) ListDetails(_ context.Context, runID string) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Detail
	for _, detail := range m.details {
		if detail.PayrollRunID == runID {
			out = append(out, detail)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (m *memStore) LatestOtherDetail(_ context.Context, employeeID, excludeRunID string) (Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest Detail
	found := false
	for _, detail := range m.details {
		if detail.EmployeeID != employeeID || detail.PayrollRunID == excludeRunID {
			continue
		}
		if !found || detail.Seq > latest.Seq {
			latest = detail
			found = true
		}
	}
	if !found {
		return Detail{}, ErrDetailNotFound
	}
	return latest, nil
}

func (m *memStore) findDetail(detailID string) (string, Detail, bool) {
	for key, detail := range m.details {
		if detail.ID == detailID {
			return key, detail, true
		}
	}
	return "", Detail{}, false
}

func (m *memStore) SetDetailExceptions(_ context.Context, detailID, exceptions string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, detail, ok := m.findDetail(detailID)
	if !ok {
		return ErrDetailNotFound
	}
	detail.Exceptions = exceptions
	m.details[key] = detail
	return nil
}

func (m *memStore) SetDetailBankStatus(_ context.Context, detailID string, status BankStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, detail, ok := m.findDetail(detailID)
	if !ok {
		return ErrDetailNotFound
	}
	detail.BankStatus = status
	m.details[key] = detail
	return nil
}

func (m *memStore) CreatePayslip(_ context.Context, payslip Payslip) (Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payslips[payslip.ID] = payslip
	return payslip, nil
}

func (m *memStore) GetPayslip(_ context.Context, id string) (Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payslip, ok := m.payslips[id]
	if !ok {
		return Payslip{}, ErrPayslipNotFound
	}
	return payslip, nil
}

func (m *memStore) ListPayslips(_ context.Context, runID string) ([]Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payslip
	for _, payslip := range m.payslips {
		if payslip.PayrollRunID == runID {
			out = append(out, payslip)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (m *memStore) SetPayslipFile(_ context.Context, id, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payslip, ok := m.payslips[id]
	if !ok {
		return ErrPayslipNotFound
	}
	payslip.FilePath = filePath
	m.payslips[id] = payslip
	return nil
}

// WithinTx restores the run, detail and payslip maps when fn fails.
func (m *memStore) WithinTx(_ context.Context, fn func(StoreAPI) error) error {
	m.mu.Lock()
	runs := maps.Clone(m.runs)
	details := maps.Clone(m.details)
	payslips := maps.Clone(m.payslips)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.runs = runs
		m.details = details
		m.payslips = payslips
		m.mu.Unlock()
		return err
	}
	return nil
}
