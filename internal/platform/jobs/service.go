package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kpitrack/internal/domain/summary"
)

const (
	JobSummaryReconcile = "summary_reconcile"
	JobQuarterClose     = "quarter_close"
)

// ArchiveSweeper moves approved records from closed quarters to ARCHIVED.
type ArchiveSweeper interface {
	ArchivePastPeriods(ctx context.Context, now time.Time) (int, error)
}

type Service struct {
	DB        *pgxpool.Pool
	Summaries *summary.Service
	Archiver  ArchiveSweeper
	queue     chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, summaries *summary.Service, archiver ArchiveSweeper) *Service {
	return &Service{
		DB:        db,
		Summaries: summaries,
		Archiver:  archiver,
		queue:     make(chan job, 128),
	}
}

// Start launches the worker and, when an interval is set, the periodic
// maintenance sweep: summary reconciliation plus quarter-close archival.
func (s *Service) Start(ctx context.Context, maintenanceInterval time.Duration) {
	go s.worker(ctx)
	if maintenanceInterval > 0 {
		go s.scheduleMaintenance(ctx, maintenanceInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobSummaryReconcile, func(ctx context.Context) (any, error) {
				recomputed, err := s.Summaries.ReconcileAll(ctx)
				return map[string]any{"recomputed": recomputed}, err
			})
			if s.Archiver != nil {
				s.Enqueue(JobQuarterClose, func(ctx context.Context) (any, error) {
					archived, err := s.Archiver.ArchivePastPeriods(ctx, time.Now().UTC())
					return map[string]any{"archived": archived}, err
				})
			}
		}
	}
}
