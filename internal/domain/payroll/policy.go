package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PolicyKind string

const (
	PolicyAllowance          PolicyKind = "allowance"
	PolicyTaxRule            PolicyKind = "tax_rule"
	PolicyInsuranceBracket   PolicyKind = "insurance_bracket"
	PolicyTerminationBenefit PolicyKind = "termination_benefit"
	PolicySigningBonus       PolicyKind = "signing_bonus"
	PolicySigningBonusLink   PolicyKind = "signing_bonus_link"
)

// Policy is implemented only by the policy types in this file.
type Policy interface {
	Kind() PolicyKind
	approvalStatus() PolicyStatus
}

type Allowance struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Status PolicyStatus    `json:"status"`
}

type TaxRule struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Status PolicyStatus    `json:"status"`
}

// InsuranceBracket applies when minSalary <= salary <= maxSalary. A nil MaxSalary is unbounded.
type InsuranceBracket struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	MinSalary    decimal.Decimal  `json:"minSalary"`
	MaxSalary    *decimal.Decimal `json:"maxSalary,omitempty"`
	EmployeeRate decimal.Decimal  `json:"employeeRate"`
	Status       PolicyStatus     `json:"status"`
}

type TerminationBenefit struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Status PolicyStatus    `json:"status"`
}

// SigningBonus definitions carry no approval status of their own; the link does.
type SigningBonus struct {
	ID       string          `json:"id"`
	Position string          `json:"position"`
	Amount   decimal.Decimal `json:"amount"`
}

type SigningBonusLink struct {
	EmployeeID     string       `json:"employeeId"`
	SigningBonusID string       `json:"signingBonusId"`
	Status         PolicyStatus `json:"status"`
	PaymentDate    *time.Time   `json:"paymentDate,omitempty"`
}

func (Allowance) Kind() PolicyKind          { return PolicyAllowance }
func (TaxRule) Kind() PolicyKind            { return PolicyTaxRule }
func (InsuranceBracket) Kind() PolicyKind   { return PolicyInsuranceBracket }
func (TerminationBenefit) Kind() PolicyKind { return PolicyTerminationBenefit }
func (SigningBonus) Kind() PolicyKind       { return PolicySigningBonus }
func (SigningBonusLink) Kind() PolicyKind   { return PolicySigningBonusLink }

func (a Allowance) approvalStatus() PolicyStatus          { return a.Status }
func (t TaxRule) approvalStatus() PolicyStatus            { return t.Status }
func (b InsuranceBracket) approvalStatus() PolicyStatus   { return b.Status }
func (b TerminationBenefit) approvalStatus() PolicyStatus { return b.Status }
func (SigningBonus) approvalStatus() PolicyStatus         { return PolicyStatusApproved }
func (l SigningBonusLink) approvalStatus() PolicyStatus   { return l.Status }

// PolicyReader reads the externally owned policy collections, unfiltered.
type PolicyReader interface {
	ListAllowances(ctx context.Context) ([]Allowance, error)
	ListTaxRules(ctx context.Context) ([]TaxRule, error)
	ListInsuranceBrackets(ctx context.Context) ([]InsuranceBracket, error)
	ListTerminationBenefits(ctx context.Context) ([]TerminationBenefit, error)
	ListSigningBonuses(ctx context.Context) ([]SigningBonus, error)
	ListSigningBonusLinks(ctx context.Context) ([]SigningBonusLink, error)
}

// PolicySet is the approved-only view handed to the calculators.
type PolicySet struct {
	Allowances          []Allowance
	TaxRules            []TaxRule
	InsuranceBrackets   []InsuranceBracket
	TerminationBenefits []TerminationBenefit
	signingBonuses      map[string]SigningBonus
	bonusLinks          map[string][]SigningBonusLink
}

func approvedOnly[T Policy](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.approvalStatus() == PolicyStatusApproved {
			out = append(out, item)
		}
	}
	return out
}

// LoadApprovedPolicies reads every policy collection once and keeps only approved entries.
func LoadApprovedPolicies(ctx context.Context, reader PolicyReader) (PolicySet, error) {
	allowances, err := listPolicies(ctx, reader.ListAllowances)
	if err != nil {
		return PolicySet{}, err
	}
	taxRules, err := listPolicies(ctx, reader.ListTaxRules)
	if err != nil {
		return PolicySet{}, err
	}
	brackets, err := listPolicies(ctx, reader.ListInsuranceBrackets)
	if err != nil {
		return PolicySet{}, err
	}
	benefits, err := listPolicies(ctx, reader.ListTerminationBenefits)
	if err != nil {
		return PolicySet{}, err
	}
	bonuses, err := listPolicies(ctx, reader.ListSigningBonuses)
	if err != nil {
		return PolicySet{}, err
	}
	links, err := listPolicies(ctx, reader.ListSigningBonusLinks)
	if err != nil {
		return PolicySet{}, err
	}
	return NewPolicySet(allowances, taxRules, brackets, benefits, bonuses, links), nil
}

func listPolicies[T Policy](ctx context.Context, list func(context.Context) ([]T, error)) ([]T, error) {
	items, err := list(ctx)
	if err != nil {
		var zero T
		return nil, fmt.Errorf("list %s policies: %w", zero.Kind(), err)
	}
	return items, nil
}

func NewPolicySet(
	allowances []Allowance,
	taxRules []TaxRule,
	brackets []InsuranceBracket,
	benefits []TerminationBenefit,
	bonuses []SigningBonus,
	links []SigningBonusLink,
) PolicySet {
	set := PolicySet{
		Allowances:          approvedOnly(allowances),
		TaxRules:            approvedOnly(taxRules),
		InsuranceBrackets:   approvedOnly(brackets),
		TerminationBenefits: approvedOnly(benefits),
		signingBonuses:      make(map[string]SigningBonus, len(bonuses)),
		bonusLinks:          make(map[string][]SigningBonusLink),
	}
	for _, bonus := range bonuses {
		set.signingBonuses[bonus.ID] = bonus
	}
	for _, link := range approvedOnly(links) {
		set.bonusLinks[link.EmployeeID] = append(set.bonusLinks[link.EmployeeID], link)
	}
	return set
}

func (p PolicySet) TotalAllowances() decimal.Decimal {
	total := decimal.Zero
	for _, allowance := range p.Allowances {
		total = total.Add(allowance.Amount)
	}
	return total
}

func (p PolicySet) TotalTerminationBenefits() decimal.Decimal {
	total := decimal.Zero
	for _, benefit := range p.TerminationBenefits {
		total = total.Add(benefit.Amount)
	}
	return total
}

// SigningBonusFor sums the definition amounts behind the employee's approved links.
// Links pointing at unknown definitions contribute nothing.
func (p PolicySet) SigningBonusFor(employeeID string) (decimal.Decimal, bool) {
	links := p.bonusLinks[employeeID]
	if len(links) == 0 {
		return decimal.Zero, false
	}
	total := decimal.Zero
	found := false
	for _, link := range links {
		bonus, ok := p.signingBonuses[link.SigningBonusID]
		if !ok {
			continue
		}
		total = total.Add(bonus.Amount)
		found = true
	}
	return total, found
}
