package payroll

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// The policy tables are owned by the configuration service and read as-is; the
// approved filter is applied by LoadApprovedPolicies.

func (s *Store) ListAllowances(ctx context.Context) ([]Allowance, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, amount, status FROM allowances ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Allowance, error) {
		var a Allowance
		err := row.Scan(&a.ID, &a.Name, &a.Amount, &a.Status)
		return a, err
	})
}

func (s *Store) ListTaxRules(ctx context.Context) ([]TaxRule, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, rate, status FROM tax_rules ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TaxRule, error) {
		var t TaxRule
		err := row.Scan(&t.ID, &t.Name, &t.Rate, &t.Status)
		return t, err
	})
}

func (s *Store) ListInsuranceBrackets(ctx context.Context) ([]InsuranceBracket, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, min_salary, max_salary, employee_rate, status
    FROM insurance_brackets
    ORDER BY min_salary
  `)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (InsuranceBracket, error) {
		var b InsuranceBracket
		var maxSalary decimal.NullDecimal
		err := row.Scan(&b.ID, &b.Name, &b.MinSalary, &maxSalary, &b.EmployeeRate, &b.Status)
		b.MaxSalary = nullableDecimal(maxSalary)
		return b, err
	})
}

func (s *Store) ListTerminationBenefits(ctx context.Context) ([]TerminationBenefit, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, amount, status FROM termination_benefits ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TerminationBenefit, error) {
		var b TerminationBenefit
		err := row.Scan(&b.ID, &b.Name, &b.Amount, &b.Status)
		return b, err
	})
}

func (s *Store) ListSigningBonuses(ctx context.Context) ([]SigningBonus, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, position, amount FROM signing_bonuses ORDER BY position")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SigningBonus, error) {
		var b SigningBonus
		err := row.Scan(&b.ID, &b.Position, &b.Amount)
		return b, err
	})
}

func (s *Store) ListSigningBonusLinks(ctx context.Context) ([]SigningBonusLink, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, signing_bonus_id, status, payment_date
    FROM employee_signing_bonuses
    ORDER BY employee_id
  `)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SigningBonusLink, error) {
		var l SigningBonusLink
		err := row.Scan(&l.EmployeeID, &l.SigningBonusID, &l.Status, &l.PaymentDate)
		return l, err
	})
}
