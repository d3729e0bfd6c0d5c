package payroll

import "slices"

type Operation string

const (
	OpSendForApproval   Operation = "send for approval"
	OpApproveInitiation Operation = "approve initiation of"
	OpManagerApproval   Operation = "manager-approve"
	OpFinanceApproval   Operation = "finance-approve"
	OpLock              Operation = "lock"
	OpUnlock            Operation = "unlock"
	OpEditInitiation    Operation = "edit"
	OpResolveIssues     Operation = "resolve irregularities on"
	OpRecalculate       Operation = "recalculate"
	OpUpdateBankStatus  Operation = "update bank status on"
)

var allowedFrom = map[Operation][]RunStatus{
	OpSendForApproval:   {RunStatusDraft, RunStatusUnderReview},
	OpApproveInitiation: {RunStatusDraft},
	OpManagerApproval:   {RunStatusDraft, RunStatusUnderReview},
	OpFinanceApproval:   {RunStatusPendingFinanceApproval, RunStatusUnderReview},
	OpLock:              {RunStatusApproved},
	OpUnlock:            {RunStatusLocked},
	OpEditInitiation:    {RunStatusDraft, RunStatusApproved, RunStatusUnlocked},
	OpResolveIssues:     {RunStatusUnderReview, RunStatusApproved},
	OpRecalculate:       {RunStatusDraft, RunStatusUnderReview, RunStatusPendingFinanceApproval, RunStatusUnlocked},
	OpUpdateBankStatus:  {RunStatusDraft, RunStatusUnderReview, RunStatusPendingFinanceApproval, RunStatusUnlocked},
}

// Allows reports whether op may run while the run is in status.
func (op Operation) Allows(status RunStatus) bool {
	return slices.Contains(allowedFrom[op], status)
}

func checkTransition(op Operation, run Run) error {
	if !op.Allows(run.Status) {
		return invalidTransition(string(op), run.Status)
	}
	return nil
}

// CanFinalize reports whether finance approval would be accepted on a clean run.
func (r Run) CanFinalize() bool {
	return OpFinanceApproval.Allows(r.Status) && r.Employees > 0 && r.Exceptions == 0
}
