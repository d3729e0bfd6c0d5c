package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"hrpayroll/internal/platform/metrics"
	"hrpayroll/internal/requestctx"
)

const sealedSuffix = ".enc"

// BuildPayslip turns a detail into its payslip. Gross is net salary plus deductions.
func BuildPayslip(detail Detail) Payslip {
	earnings := Earnings{
		BaseSalary: detail.BaseSalary,
		Allowances: []PayslipLine{{Label: EarningAllowances, Amount: detail.Allowances}},
		Bonuses:    []PayslipLine{},
		Benefits:   []PayslipLine{},
		Refunds:    []PayslipLine{},
	}
	if detail.Bonus != nil {
		earnings.Bonuses = append(earnings.Bonuses, PayslipLine{Label: EarningSigningBonus, Amount: *detail.Bonus})
	}
	if detail.Benefit != nil {
		earnings.Benefits = append(earnings.Benefits, PayslipLine{Label: EarningTerminationBenefit, Amount: *detail.Benefit})
	}

	return Payslip{
		EmployeeID:   detail.EmployeeID,
		PayrollRunID: detail.PayrollRunID,
		Earnings:     earnings,
		Deductions: DeductionBreakdown{
			Taxes:      []PayslipLine{{Label: DeductionStatutory, Amount: detail.Deductions}},
			Insurances: []PayslipLine{},
			Penalties:  []PayslipLine{},
		},
		TotalGrossSalary: detail.NetSalary.Add(detail.Deductions),
		TotalDeductions:  detail.Deductions,
		NetPay:           detail.NetPay,
		PaymentStatus:    PaymentStatusPending,
	}
}

// GeneratePayslips issues one payslip per detail of the run. It is not idempotent:
// every call creates a new set. Finance approval calls it exactly once per run.
func (s *Service) GeneratePayslips(ctx context.Context, runID string) ([]Payslip, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, ErrMissingRunID
	}
	var payslips []Payslip
	err := s.withLock(ctx, runLockKey(runID), func() error {
		return s.store.WithinTx(ctx, func(tx StoreAPI) error {
			run, err := tx.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			payslips, err = s.issuePayslips(ctx, tx, run)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.count(metrics.PayrollPayslipsIssued, len(payslips))
	return payslips, nil
}

func (s *Service) issuePayslips(ctx context.Context, tx StoreAPI, run Run) ([]Payslip, error) {
	details, err := tx.ListDetails(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list details: %w", err)
	}
	payslips := make([]Payslip, 0, len(details))
	for _, detail := range details {
		if _, err := tx.GetEmployee(ctx, detail.EmployeeID); err != nil {
			if errors.Is(err, ErrNotFound) {
				slog.Warn("payslip skipped", append(requestctx.LogAttrs(ctx), "runId", run.RunID, "employeeId", detail.EmployeeID, "err", err)...)
				continue
			}
			return nil, err
		}
		payslip := BuildPayslip(detail)
		payslip.ID = uuid.NewString()
		payslip.CreatedAt = s.now()
		created, err := tx.CreatePayslip(ctx, payslip)
		if err != nil {
			return nil, fmt.Errorf("create payslip for %s: %w", detail.EmployeeID, err)
		}
		payslips = append(payslips, created)
	}
	return payslips, nil
}

func (s *Service) ListPayslips(ctx context.Context, runID string) ([]Payslip, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ListPayslips(ctx, runID)
}

func (s *Service) GetPayslip(ctx context.Context, payslipID string) (Payslip, error) {
	return s.store.GetPayslip(ctx, payslipID)
}

// RenderPayslip draws the payslip as an A4 PDF.
func (s *Service) RenderPayslip(ctx context.Context, payslipID string) ([]byte, error) {
	payslip, err := s.store.GetPayslip(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	run, err := s.store.GetRun(ctx, payslip.PayrollRunID)
	if err != nil {
		return nil, err
	}
	employeeName := payslip.EmployeeID
	employee, err := s.store.GetEmployee(ctx, payslip.EmployeeID)
	switch {
	case err == nil:
		employeeName = strings.TrimSpace(employee.FirstName + " " + employee.LastName)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", employeeName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Run: %s (%s)", run.RunID, run.Entity))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", FormatPeriod(run.PayrollPeriod)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Earnings")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	writeLine(pdf, EarningBaseSalary, payslip.Earnings.BaseSalary)
	for _, group := range [][]PayslipLine{payslip.Earnings.Allowances, payslip.Earnings.Bonuses, payslip.Earnings.Benefits, payslip.Earnings.Refunds} {
		for _, line := range group {
			writeLine(pdf, line.Label, line.Amount)
		}
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Deductions")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	for _, group := range [][]PayslipLine{payslip.Deductions.Taxes, payslip.Deductions.Insurances, payslip.Deductions.Penalties} {
		for _, line := range group {
			writeLine(pdf, line.Label, line.Amount)
		}
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	writeLine(pdf, "Gross", payslip.TotalGrossSalary)
	writeLine(pdf, "Deductions", payslip.TotalDeductions)
	writeLine(pdf, "Net", payslip.NetPay)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Payment status: %s", payslip.PaymentStatus))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeLine(pdf *gofpdf.Fpdf, label string, amount decimal.Decimal) {
	pdf.Cell(80, 7, label)
	pdf.CellFormat(40, 7, amount.StringFixed(2), "", 0, "R", false, 0, "")
	pdf.Ln(6)
}

// PayslipDocument returns the payslip PDF, rendering and storing it on first use.
// Stored files are sealed when a document key is configured.
func (s *Service) PayslipDocument(ctx context.Context, payslipID string) ([]byte, error) {
	payslip, err := s.store.GetPayslip(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	if payslip.FilePath != "" {
		doc, err := s.readDocument(payslip.FilePath)
		if err == nil {
			return doc, nil
		}
		slog.Warn("stored payslip unreadable, rendering again", append(requestctx.LogAttrs(ctx), "payslipId", payslipID, "err", err)...)
	}

	doc, err := s.RenderPayslip(ctx, payslipID)
	if err != nil {
		return nil, err
	}
	stored := doc
	filePath := filepath.Join(s.storageDir, payslipID+".pdf")
	if s.sealer != nil && s.sealer.Configured() {
		if stored, err = s.sealer.Encrypt(doc); err != nil {
			return nil, fmt.Errorf("seal payslip: %w", err)
		}
		filePath += sealedSuffix
	}
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filePath, stored, 0o600); err != nil {
		return nil, err
	}
	if err := s.store.SetPayslipFile(ctx, payslipID, filePath); err != nil {
		slog.Warn("payslip file path update failed", append(requestctx.LogAttrs(ctx), "payslipId", payslipID, "err", err)...)
	}
	return doc, nil
}

func (s *Service) readDocument(filePath string) ([]byte, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filePath, sealedSuffix) {
		return raw, nil
	}
	if s.sealer == nil || !s.sealer.Configured() {
		return nil, fmt.Errorf("payslip %s is sealed but no document key is configured", filepath.Base(filePath))
	}
	return s.sealer.Decrypt(raw)
}
