package kpi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const archiveBatchSize = 500

// CurrentPeriod returns the calendar-aligned quarter and fiscal year for a
// point in time.
func CurrentPeriod(now time.Time) (string, int) {
	quarter := (int(now.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d", quarter), now.Year()
}

func quarterIndex(quarter string) int {
	for i, candidate := range Quarters {
		if quarter == candidate {
			return i + 1
		}
	}
	return 0
}

func periodClosed(quarter string, fiscalYear int, nowQuarter string, nowYear int) bool {
	if fiscalYear != nowYear {
		return fiscalYear < nowYear
	}
	return quarterIndex(quarter) < quarterIndex(nowQuarter)
}

// ArchivePastPeriods moves APPROVED records whose period has closed to
// ARCHIVED. Records that lose a concurrent race or disappear mid-sweep are
// skipped; the sweep is rerun on the next tick anyway.
func (s *Service) ArchivePastPeriods(ctx context.Context, now time.Time) (int, error) {
	nowQuarter, nowYear := CurrentPeriod(now)

	archived := 0
	offset := 0
	for {
		records, _, err := s.Store.List(ctx, Filter{Status: StatusApproved}, archiveBatchSize, offset)
		if err != nil {
			return archived, err
		}

		kept := 0
		for _, rec := range records {
			if !periodClosed(rec.Quarter, rec.FiscalYear, nowQuarter, nowYear) {
				kept++
				continue
			}
			_, err := s.Store.ApplyTransition(ctx, TransitionMutation{
				KPIID:           rec.ID,
				FromStatus:      StatusApproved,
				ToStatus:        StatusArchived,
				ExpectedVersion: rec.Version,
				Notes:           "quarter close",
			})
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				kept++
				continue
			}
			if err != nil {
				return archived, err
			}
			archived++
		}

		if len(records) < archiveBatchSize {
			return archived, nil
		}
		// Archived rows drop out of the APPROVED filter and shift later rows
		// forward; only rows still matching it advance the offset.
		offset += kept
	}
}
