package kpi

import (
	"context"
	"strings"
	"time"

	"kpitrack/internal/domain/auth"
)

type Service struct {
	Store  StoreAPI
	Dir    DirectoryAPI
	Calc   CalcParams
	Policy Policy
}

func NewService(store StoreAPI, dir DirectoryAPI, calc CalcParams, policy Policy) *Service {
	return &Service{Store: store, Dir: dir, Calc: calc, Policy: policy}
}

func (s *Service) Create(ctx context.Context, actor auth.UserContext, input RecordInput) (Record, error) {
	if !auth.IsAdminRole(actor.Role) && input.EmployeeID != actor.EmployeeID {
		return Record{}, ErrForbidden
	}

	objectiveWeight, err := NormalizeWeight(input.ObjectiveWeight)
	if err != nil {
		return Record{}, err
	}
	kpiWeight, err := NormalizeWeight(input.KPIWeight)
	if err != nil {
		return Record{}, err
	}

	direction := input.Direction
	if direction == "" {
		direction = DirectionHigherBetter
	}

	rec := Record{
		Company:          input.Company,
		Quarter:          input.Quarter,
		FiscalYear:       input.FiscalYear,
		EmployeeID:       input.EmployeeID,
		ManagerID:        input.ManagerID,
		Department:       input.Department,
		JobTitle:         input.JobTitle,
		Category:         input.Category,
		NameEN:           input.NameEN,
		NameFA:           input.NameFA,
		Description:      input.Description,
		ObjectiveWeight:  objectiveWeight,
		KPIWeight:        kpiWeight,
		TargetValue:      input.TargetValue,
		AchievementValue: input.AchievementValue,
		Direction:        direction,
		Status:           StatusDraft,
		CreatedBy:        actor.UserID,
	}
	s.Calc.Derive(&rec)

	id, err := s.Store.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return s.Store.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, id string) ([]ApprovalHistory, error) {
	if _, err := s.Store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.History(ctx, id)
}

// List scopes results by the actor's role: employees see their own records,
// approvers see records routed to them and may filter by an employee they
// approve for, admins see everything.
func (s *Service) List(ctx context.Context, actor auth.UserContext, f Filter, limit, offset int) ([]Record, int, error) {
	if !auth.IsAdminRole(actor.Role) {
		switch actor.Role {
		case auth.RoleApprover, auth.RoleModerator:
			switch {
			case f.EmployeeID == "":
				f.ManagerID = actor.EmployeeID
			case f.EmployeeID != actor.EmployeeID:
				allowed, err := s.Dir.IsApproverFor(ctx, actor.EmployeeID, f.EmployeeID)
				if err != nil {
					return nil, 0, err
				}
				if !allowed {
					return nil, 0, ErrForbidden
				}
			}
		default:
			f.EmployeeID = actor.EmployeeID
		}
	}
	return s.Store.List(ctx, f, limit, offset)
}

// UpdateValues mutates target/achievement/weights on a DRAFT record and
// rederives the computed fields. Any other status is rejected.
func (s *Service) UpdateValues(ctx context.Context, actor auth.UserContext, id string, update ValueUpdate) (Record, error) {
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusDraft {
		return Record{}, ErrNotEditable
	}
	if rec.EmployeeID != actor.EmployeeID && !auth.IsAdminRole(actor.Role) {
		return Record{}, ErrForbidden
	}

	if update.TargetValue != nil {
		rec.TargetValue = update.TargetValue
	}
	if update.AchievementValue != nil {
		rec.AchievementValue = update.AchievementValue
	}
	if update.KPIWeight != nil {
		weight, err := NormalizeWeight(*update.KPIWeight)
		if err != nil {
			return Record{}, err
		}
		rec.KPIWeight = weight
	}
	if update.ObjectiveWeight != nil {
		weight, err := NormalizeWeight(*update.ObjectiveWeight)
		if err != nil {
			return Record{}, err
		}
		rec.ObjectiveWeight = weight
	}
	if update.Description != nil {
		rec.Description = *update.Description
	}
	s.Calc.Derive(&rec)

	if err := s.Store.UpdateValues(ctx, rec); err != nil {
		return Record{}, err
	}
	return s.Store.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) error {
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status != StatusDraft {
		return ErrNotEditable
	}
	if rec.EmployeeID != actor.EmployeeID && !auth.IsAdminRole(actor.Role) {
		return ErrForbidden
	}
	return s.Store.Delete(ctx, id)
}

// Transition moves a record along one edge of the approval workflow. The
// record update, the history row and the period-summary recompute commit as
// one transaction; a concurrent transition on the same record surfaces as
// ErrConflict.
func (s *Service) Transition(ctx context.Context, actor auth.UserContext, id, toStatus, notes, reason string) (Record, error) {
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	kind, ok := s.Policy.RequiredActor(rec.Status, toStatus)
	if !ok {
		return Record{}, ErrInvalidTransition
	}

	if err := s.authorize(ctx, actor, rec, kind); err != nil {
		return Record{}, err
	}

	if toStatus == StatusRejected && strings.TrimSpace(reason) == "" {
		return Record{}, ErrMissingReason
	}

	mut := TransitionMutation{
		KPIID:           rec.ID,
		FromStatus:      rec.Status,
		ToStatus:        toStatus,
		ExpectedVersion: rec.Version,
		ActorUserID:     actor.UserID,
		Notes:           notes,
	}

	switch toStatus {
	case StatusApproved:
		now := time.Now().UTC()
		mut.ApprovedBy = actor.UserID
		mut.ApprovedAt = &now
		mut.ApprovalNotes = notes
	case StatusRejected:
		mut.RejectedReason = reason
		mut.Notes = reason
	case StatusDraft:
		// Resubmission restart clears the previous verdict.
		mut.ClearApproval = true
	}

	return s.Store.ApplyTransition(ctx, mut)
}

func (s *Service) authorize(ctx context.Context, actor auth.UserContext, rec Record, kind ActorKind) error {
	switch kind {
	case ActorOwner:
		if actor.EmployeeID == "" || actor.EmployeeID != rec.EmployeeID {
			return ErrForbidden
		}
	case ActorApprover:
		if actor.EmployeeID == "" {
			return ErrForbidden
		}
		if rec.ManagerID != "" && rec.ManagerID == actor.EmployeeID {
			return nil
		}
		ok, err := s.Dir.IsApproverFor(ctx, actor.EmployeeID, rec.EmployeeID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
	case ActorAdmin:
		if !auth.IsAdminRole(actor.Role) {
			return ErrForbidden
		}
	}
	return nil
}

// AuditAction maps a workflow edge onto the audit vocabulary.
func AuditAction(from, to string) string {
	switch {
	case to == StatusSubmitted:
		return "SUBMIT_KPI"
	case to == StatusUnderReview:
		return "REVIEW_KPI"
	case to == StatusApproved:
		return "APPROVE_KPI"
	case to == StatusRejected:
		return "REJECT_KPI"
	case to == StatusArchived:
		return "ARCHIVE_KPI"
	case from == StatusRejected && to == StatusDraft:
		return "RESUBMIT_KPI"
	}
	return "TRANSITION_KPI"
}
