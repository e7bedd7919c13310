package kpi

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCurrentPeriod(t *testing.T) {
	cases := []struct {
		month       time.Month
		wantQuarter string
	}{
		{time.January, "Q1"},
		{time.March, "Q1"},
		{time.April, "Q2"},
		{time.September, "Q3"},
		{time.December, "Q4"},
	}
	for _, tc := range cases {
		quarter, year := CurrentPeriod(time.Date(2026, tc.month, 15, 0, 0, 0, 0, time.UTC))
		if quarter != tc.wantQuarter || year != 2026 {
			t.Fatalf("CurrentPeriod(%v) = %s %d, want %s 2026", tc.month, quarter, year, tc.wantQuarter)
		}
	}
}

func TestArchivePastPeriodsClosedOnly(t *testing.T) {
	svc, store := newTestService(Policy{})
	past := seedRecord(t, svc, StatusApproved)

	// An approved record in the current quarter must stay put.
	current, err := svc.Create(context.Background(), admin, RecordInput{
		Company: "Acme", Quarter: "Q3", FiscalYear: 2026,
		EmployeeID: "e2", ManagerID: "m1", Department: "Sales",
		Category: CategoryProjects, NameEN: "Pipeline",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rec := store.records[current.ID]
	rec.Status = StatusApproved
	store.records[current.ID] = rec

	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	archived, err := svc.ArchivePastPeriods(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if archived != 1 {
		t.Fatalf("expected 1 archived, got %d", archived)
	}
	if store.records[past.ID].Status != StatusArchived {
		t.Fatalf("closed-period record should be archived, got %s", store.records[past.ID].Status)
	}
	if store.records[current.ID].Status != StatusApproved {
		t.Fatalf("current-period record should stay APPROVED, got %s", store.records[current.ID].Status)
	}
}

func TestArchivePastPeriodsBeyondFirstPage(t *testing.T) {
	svc, store := newTestService(Policy{})

	// A full first page of current-quarter records, with the only closed-period
	// record sorting after all of them.
	for i := 0; i < archiveBatchSize; i++ {
		id := fmt.Sprintf("cur-%04d", i)
		store.records[id] = Record{
			ID: id, Status: StatusApproved, Quarter: "Q3", FiscalYear: 2026,
			EmployeeID: "e1", Version: 1,
		}
	}
	store.records["old-1"] = Record{
		ID: "old-1", Status: StatusApproved, Quarter: "Q1", FiscalYear: 2026,
		EmployeeID: "e1", Version: 1,
	}

	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	archived, err := svc.ArchivePastPeriods(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if archived != 1 {
		t.Fatalf("expected 1 archived, got %d", archived)
	}
	if store.records["old-1"].Status != StatusArchived {
		t.Fatalf("closed-period record behind a full page should be archived, got %s", store.records["old-1"].Status)
	}
}

func TestArchivePastPeriodsIgnoresOtherStatuses(t *testing.T) {
	svc, store := newTestService(Policy{})
	rec := seedRecord(t, svc, StatusSubmitted)

	now := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	archived, err := svc.ArchivePastPeriods(context.Background(), now)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if archived != 0 {
		t.Fatalf("expected no archival, got %d", archived)
	}
	if store.records[rec.ID].Status != StatusSubmitted {
		t.Fatalf("submitted record should be untouched, got %s", store.records[rec.ID].Status)
	}
}
