package kpi

import (
	"context"
	"time"
)

// TransitionMutation is the single-record write applied atomically with its
// history row and the period-summary recompute.
type TransitionMutation struct {
	KPIID           string
	FromStatus      string
	ToStatus        string
	ExpectedVersion int64
	ActorUserID     string
	Notes           string
	ApprovedBy      string
	ApprovedAt      *time.Time
	ApprovalNotes   string
	RejectedReason  string
	ClearApproval   bool
}

type StoreAPI interface {
	Get(ctx context.Context, id string) (Record, error)
	Insert(ctx context.Context, rec Record) (string, error)
	UpdateValues(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter, limit, offset int) ([]Record, int, error)
	History(ctx context.Context, kpiID string) ([]ApprovalHistory, error)
	ApplyTransition(ctx context.Context, mut TransitionMutation) (Record, error)
}

// DirectoryAPI is the read-only approval-chain lookup the workflow needs to
// authorize review and approval edges.
type DirectoryAPI interface {
	IsApproverFor(ctx context.Context, approverEmployeeID, employeeID string) (bool, error)
}
