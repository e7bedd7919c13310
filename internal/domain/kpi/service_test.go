package kpi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"kpitrack/internal/domain/auth"
)

type fakeStore struct {
	records map[string]Record
	history []ApprovalHistory
	nextID  int

	// tamperBeforeApply simulates a concurrent writer between the service's
	// read and the store's compare-and-set.
	tamperBeforeApply func(*fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]Record{}}
}

func (f *fakeStore) Get(_ context.Context, id string) (Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) Insert(_ context.Context, rec Record) (string, error) {
	f.nextID++
	rec.ID = fmt.Sprintf("kpi-%d", f.nextID)
	rec.Version = 1
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	f.records[rec.ID] = rec
	return rec.ID, nil
}

func (f *fakeStore) UpdateValues(_ context.Context, rec Record) error {
	current, ok := f.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != rec.Version {
		return ErrConflict
	}
	rec.Version++
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.records[id]; !ok {
		return ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, filter Filter, limit, offset int) ([]Record, int, error) {
	var out []Record
	for _, rec := range f.records {
		if filter.EmployeeID != "" && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.ManagerID != "" && rec.ManagerID != filter.ManagerID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeStore) History(_ context.Context, kpiID string) ([]ApprovalHistory, error) {
	var out []ApprovalHistory
	for _, h := range f.history {
		if h.KPIID == kpiID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyTransition(_ context.Context, mut TransitionMutation) (Record, error) {
	if f.tamperBeforeApply != nil {
		tamper := f.tamperBeforeApply
		f.tamperBeforeApply = nil
		tamper(f)
	}

	rec, ok := f.records[mut.KPIID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status != mut.FromStatus || rec.Version != mut.ExpectedVersion {
		return Record{}, ErrConflict
	}

	rec.Status = mut.ToStatus
	rec.Version++
	if mut.ApprovedBy != "" {
		rec.ApprovedBy = mut.ApprovedBy
		rec.ApprovedAt = mut.ApprovedAt
		rec.ApprovalNotes = mut.ApprovalNotes
	}
	if mut.RejectedReason != "" {
		rec.RejectedReason = mut.RejectedReason
	}
	if mut.ClearApproval {
		rec.ApprovedBy = ""
		rec.ApprovedAt = nil
		rec.ApprovalNotes = ""
		rec.RejectedReason = ""
	}
	f.records[mut.KPIID] = rec
	f.history = append(f.history, ApprovalHistory{
		KPIID:      mut.KPIID,
		FromStatus: mut.FromStatus,
		ToStatus:   mut.ToStatus,
		ApproverID: mut.ActorUserID,
		Notes:      mut.Notes,
		CreatedAt:  time.Now(),
	})
	return rec, nil
}

type fakeDir struct {
	pairs map[string]bool
}

func (f *fakeDir) IsApproverFor(_ context.Context, approverEmployeeID, employeeID string) (bool, error) {
	return f.pairs[approverEmployeeID+"/"+employeeID], nil
}

func newTestService(policy Policy) (*Service, *fakeStore) {
	store := newFakeStore()
	dir := &fakeDir{pairs: map[string]bool{}}
	return NewService(store, dir, DefaultCalcParams(), policy), store
}

var (
	owner    = auth.UserContext{UserID: "u-owner", EmployeeID: "e1", Role: auth.RoleEmployee}
	approver = auth.UserContext{UserID: "u-approver", EmployeeID: "m1", Role: auth.RoleApprover}
	admin    = auth.UserContext{UserID: "u-admin", EmployeeID: "", Role: auth.RoleHRAdmin}
)

func seedRecord(t *testing.T, svc *Service, status string) Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), owner, RecordInput{
		Company:          "Acme",
		Quarter:          "Q1",
		FiscalYear:       2026,
		EmployeeID:       "e1",
		ManagerID:        "m1",
		Department:       "Engineering",
		Category:         CategoryBusiness,
		NameEN:           "Uptime",
		ObjectiveWeight:  20,
		KPIWeight:        20,
		TargetValue:      fptr(100),
		AchievementValue: fptr(120),
	})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	for rec.Status != status {
		next := map[string]struct {
			to    string
			actor auth.UserContext
		}{
			StatusDraft:       {StatusSubmitted, owner},
			StatusSubmitted:   {StatusUnderReview, approver},
			StatusUnderReview: {StatusApproved, approver},
			StatusApproved:    {StatusArchived, admin},
		}[rec.Status]
		rec, err = svc.Transition(context.Background(), next.actor, rec.ID, next.to, "", "")
		if err != nil {
			t.Fatalf("seed transition to %s failed: %v", next.to, err)
		}
	}
	return rec
}

func TestCreateDerivesFields(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusDraft)

	if rec.Status != StatusDraft {
		t.Fatalf("new records must start in DRAFT, got %s", rec.Status)
	}
	if rec.KPIWeight != 0.2 {
		t.Fatalf("percent weight should normalize to 0.2, got %v", rec.KPIWeight)
	}
	if rec.PercentageAchievement == nil || *rec.PercentageAchievement != 120 {
		t.Fatalf("expected percentage 120, got %v", rec.PercentageAchievement)
	}
	if rec.ScoreAchievement == nil || *rec.ScoreAchievement != 24 {
		t.Fatalf("expected score 24, got %v", rec.ScoreAchievement)
	}
	if rec.PerformanceRating != RatingGreen {
		t.Fatalf("expected GREEN, got %q", rec.PerformanceRating)
	}
}

func TestCreateForOtherEmployeeForbidden(t *testing.T) {
	svc, _ := newTestService(Policy{})
	_, err := svc.Create(context.Background(), owner, RecordInput{
		Company: "Acme", Quarter: "Q1", FiscalYear: 2026,
		EmployeeID: "e2", Department: "Engineering",
		Category: CategoryBusiness, NameEN: "Other",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSubmitAppendsHistory(t *testing.T) {
	svc, store := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	if rec.Status != StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", rec.Status)
	}
	history, err := svc.History(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].FromStatus != StatusDraft || history[0].ToStatus != StatusSubmitted {
		t.Fatalf("unexpected history: %+v", history)
	}
	if store.records[rec.ID].Version != 2 {
		t.Fatalf("version should bump on transition, got %d", store.records[rec.ID].Version)
	}
}

func TestSubmitByNonOwnerForbidden(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusDraft)

	other := auth.UserContext{UserID: "u2", EmployeeID: "e2", Role: auth.RoleEmployee}
	if _, err := svc.Transition(context.Background(), other, rec.ID, StatusSubmitted, "", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestApproveWithoutReviewInvalid(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	if _, err := svc.Transition(context.Background(), approver, rec.ID, StatusApproved, "", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApproveSetsApprovalFields(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusUnderReview)

	approved, err := svc.Transition(context.Background(), approver, rec.ID, StatusApproved, "well done", "")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", approved.Status)
	}
	if approved.ApprovedBy != approver.UserID || approved.ApprovedAt == nil {
		t.Fatalf("approval fields not set: %+v", approved)
	}
	if approved.ApprovalNotes != "well done" {
		t.Fatalf("approval notes not stored: %q", approved.ApprovalNotes)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, store := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusUnderReview)

	if _, err := svc.Transition(context.Background(), approver, rec.ID, StatusRejected, "", "  "); !errors.Is(err, ErrMissingReason) {
		t.Fatalf("expected ErrMissingReason, got %v", err)
	}
	if store.records[rec.ID].Status != StatusUnderReview {
		t.Fatalf("status must not change on a rejected request, got %s", store.records[rec.ID].Status)
	}
}

func TestRejectStoresReason(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusUnderReview)

	rejected, err := svc.Transition(context.Background(), approver, rec.ID, StatusRejected, "", "targets not evidenced")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.RejectedReason != "targets not evidenced" {
		t.Fatalf("unexpected rejection state: %+v", rejected)
	}
}

func TestReviewByChainApprover(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	// Not the direct manager, but present in the approval chain.
	chainApprover := auth.UserContext{UserID: "u-chain", EmployeeID: "m2", Role: auth.RoleApprover}
	svc.Dir.(*fakeDir).pairs["m2/e1"] = true

	reviewed, err := svc.Transition(context.Background(), chainApprover, rec.ID, StatusUnderReview, "", "")
	if err != nil {
		t.Fatalf("chain approver review failed: %v", err)
	}
	if reviewed.Status != StatusUnderReview {
		t.Fatalf("expected UNDER_REVIEW, got %s", reviewed.Status)
	}
}

func TestArchiveRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusApproved)

	if _, err := svc.Transition(context.Background(), approver, rec.ID, StatusArchived, "", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin archive, got %v", err)
	}

	archived, err := svc.Transition(context.Background(), admin, rec.ID, StatusArchived, "", "")
	if err != nil {
		t.Fatalf("admin archive failed: %v", err)
	}
	if archived.Status != StatusArchived {
		t.Fatalf("expected ARCHIVED, got %s", archived.Status)
	}
}

func TestResubmissionDisabledByDefault(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusUnderReview)
	rec, err := svc.Transition(context.Background(), approver, rec.ID, StatusRejected, "", "redo")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if _, err := svc.Transition(context.Background(), owner, rec.ID, StatusDraft, "", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestResubmissionClearsVerdict(t *testing.T) {
	svc, _ := newTestService(Policy{AllowResubmission: true})
	rec := seedRecord(t, svc, StatusUnderReview)
	rec, err := svc.Transition(context.Background(), approver, rec.ID, StatusRejected, "", "redo")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	restarted, err := svc.Transition(context.Background(), owner, rec.ID, StatusDraft, "", "")
	if err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}
	if restarted.Status != StatusDraft {
		t.Fatalf("expected DRAFT, got %s", restarted.Status)
	}
	if restarted.RejectedReason != "" || restarted.ApprovedBy != "" || restarted.ApprovedAt != nil {
		t.Fatalf("previous verdict should be cleared: %+v", restarted)
	}
}

func TestConcurrentTransitionConflict(t *testing.T) {
	svc, store := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	store.tamperBeforeApply = func(f *fakeStore) {
		r := f.records[rec.ID]
		r.Version++
		f.records[rec.ID] = r
	}

	if _, err := svc.Transition(context.Background(), approver, rec.ID, StatusUnderReview, "", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateValuesDraftOnly(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	if _, err := svc.UpdateValues(context.Background(), owner, rec.ID, ValueUpdate{AchievementValue: fptr(90)}); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
}

func TestUpdateValuesRederives(t *testing.T) {
	svc, _ := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusDraft)

	updated, err := svc.UpdateValues(context.Background(), owner, rec.ID, ValueUpdate{AchievementValue: fptr(60)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.PercentageAchievement == nil || *updated.PercentageAchievement != 60 {
		t.Fatalf("expected percentage 60, got %v", updated.PercentageAchievement)
	}
	if updated.PerformanceRating != RatingRed {
		t.Fatalf("expected RED, got %q", updated.PerformanceRating)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	svc, store := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	if err := svc.Delete(context.Background(), owner, rec.ID); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}

	draft := seedRecord(t, svc, StatusDraft)
	if err := svc.Delete(context.Background(), owner, draft.ID); err != nil {
		t.Fatalf("draft delete failed: %v", err)
	}
	if _, ok := store.records[draft.ID]; ok {
		t.Fatal("record should be removed")
	}
}

func TestListScopesByRole(t *testing.T) {
	svc, _ := newTestService(Policy{})
	seedRecord(t, svc, StatusDraft)

	// Another employee's record routed to a different manager.
	adminActor := admin
	if _, err := svc.Create(context.Background(), adminActor, RecordInput{
		Company: "Acme", Quarter: "Q1", FiscalYear: 2026,
		EmployeeID: "e2", ManagerID: "m9", Department: "Sales",
		Category: CategoryProjects, NameEN: "Pipeline",
	}); err != nil {
		t.Fatalf("admin create failed: %v", err)
	}

	own, _, err := svc.List(context.Background(), owner, Filter{}, 50, 0)
	if err != nil {
		t.Fatalf("owner list failed: %v", err)
	}
	if len(own) != 1 || own[0].EmployeeID != "e1" {
		t.Fatalf("owner should only see own records: %+v", own)
	}

	routed, _, err := svc.List(context.Background(), approver, Filter{}, 50, 0)
	if err != nil {
		t.Fatalf("approver list failed: %v", err)
	}
	if len(routed) != 1 || routed[0].ManagerID != "m1" {
		t.Fatalf("approver should only see routed records: %+v", routed)
	}

	all, _, err := svc.List(context.Background(), adminActor, Filter{}, 50, 0)
	if err != nil {
		t.Fatalf("admin list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin should see all records, got %d", len(all))
	}
}

func TestListEmployeeFilterRequiresApproverLink(t *testing.T) {
	svc, _ := newTestService(Policy{})

	// Another employee's record routed to a different manager.
	if _, err := svc.Create(context.Background(), admin, RecordInput{
		Company: "Acme", Quarter: "Q1", FiscalYear: 2026,
		EmployeeID: "e2", ManagerID: "m9", Department: "Sales",
		Category: CategoryProjects, NameEN: "Pipeline",
	}); err != nil {
		t.Fatalf("admin create failed: %v", err)
	}

	if _, _, err := svc.List(context.Background(), approver, Filter{EmployeeID: "e2"}, 50, 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unlinked approver filtering by e2 should be forbidden, got %v", err)
	}

	svc.Dir.(*fakeDir).pairs["m1/e2"] = true
	records, _, err := svc.List(context.Background(), approver, Filter{EmployeeID: "e2"}, 50, 0)
	if err != nil {
		t.Fatalf("linked approver list failed: %v", err)
	}
	if len(records) != 1 || records[0].EmployeeID != "e2" {
		t.Fatalf("linked approver should see e2's records: %+v", records)
	}
}

func TestListApproverSelfFilter(t *testing.T) {
	svc, _ := newTestService(Policy{})
	seedRecord(t, svc, StatusDraft)

	selfApprover := auth.UserContext{UserID: "u-self", EmployeeID: "e1", Role: auth.RoleApprover}
	records, _, err := svc.List(context.Background(), selfApprover, Filter{EmployeeID: "e1"}, 50, 0)
	if err != nil {
		t.Fatalf("self filter failed: %v", err)
	}
	if len(records) != 1 || records[0].EmployeeID != "e1" {
		t.Fatalf("approver should see own records without a chain link: %+v", records)
	}
}

func TestAuditActionMapping(t *testing.T) {
	cases := []struct {
		from, to string
		want     string
	}{
		{StatusDraft, StatusSubmitted, "SUBMIT_KPI"},
		{StatusSubmitted, StatusUnderReview, "REVIEW_KPI"},
		{StatusUnderReview, StatusApproved, "APPROVE_KPI"},
		{StatusUnderReview, StatusRejected, "REJECT_KPI"},
		{StatusApproved, StatusArchived, "ARCHIVE_KPI"},
		{StatusRejected, StatusDraft, "RESUBMIT_KPI"},
	}
	for _, tc := range cases {
		if got := AuditAction(tc.from, tc.to); got != tc.want {
			t.Fatalf("AuditAction(%s, %s) = %q, want %q", tc.from, tc.to, got, tc.want)
		}
	}
}
