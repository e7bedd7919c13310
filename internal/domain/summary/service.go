package summary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpitrack/internal/domain/kpi"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so a recompute can
// join a workflow transaction or run standalone.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Service struct {
	DB   *pgxpool.Pool
	Calc kpi.CalcParams
}

func NewService(db *pgxpool.Pool, calc kpi.CalcParams) *Service {
	return &Service{DB: db, Calc: calc}
}

func validKey(employeeID, quarter string, fiscalYear int) bool {
	return employeeID != "" && kpi.ValidQuarter(quarter) && fiscalYear > 0
}

// Recompute rebuilds the summary for one key in its own transaction and
// returns the stored row, or nil when the key has no KPI records (the
// summary row is deleted in that case).
func (s *Service) Recompute(ctx context.Context, employeeID, quarter string, fiscalYear int) (*Summary, error) {
	if !validKey(employeeID, quarter, fiscalYear) {
		return nil, ErrInvalidKey
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.RecomputeInTx(ctx, tx, employeeID, quarter, fiscalYear); err != nil {
		return nil, err
	}

	out, err := get(ctx, tx, employeeID, quarter, fiscalYear)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return &out, nil
}

// RecomputeInTx is the transactional variant used by the KPI store so a
// status transition and its rollup commit atomically.
func (s *Service) RecomputeInTx(ctx context.Context, tx pgx.Tx, employeeID, quarter string, fiscalYear int) error {
	if !validKey(employeeID, quarter, fiscalYear) {
		return ErrInvalidKey
	}
	return recompute(ctx, tx, s.Calc, employeeID, quarter, fiscalYear)
}

func recompute(ctx context.Context, q querier, calc kpi.CalcParams, employeeID, quarter string, fiscalYear int) error {
	records, err := loadRecords(ctx, q, employeeID, quarter, fiscalYear)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		// No records means no summary: absence mirrors the record set.
		_, err := q.Exec(ctx, `
      DELETE FROM period_summaries
      WHERE employee_id = $1 AND quarter = $2 AND fiscal_year = $3
    `, employeeID, quarter, fiscalYear)
		return err
	}

	agg := Aggregate(records, calc)
	_, err = q.Exec(ctx, `
    INSERT INTO period_summaries (
      employee_id, quarter, fiscal_year,
      total_kpis, completed_kpis, average_achievement, total_score, overall_rating,
      business_score, main_tasks_score, projects_score, updated_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10,$11,now())
    ON CONFLICT (employee_id, quarter, fiscal_year) DO UPDATE SET
      total_kpis = EXCLUDED.total_kpis,
      completed_kpis = EXCLUDED.completed_kpis,
      average_achievement = EXCLUDED.average_achievement,
      total_score = EXCLUDED.total_score,
      overall_rating = EXCLUDED.overall_rating,
      business_score = EXCLUDED.business_score,
      main_tasks_score = EXCLUDED.main_tasks_score,
      projects_score = EXCLUDED.projects_score,
      updated_at = now()
  `, employeeID, quarter, fiscalYear,
		agg.TotalKPIs, agg.CompletedKPIs, agg.AverageAchievement, agg.TotalScore, agg.OverallRating,
		agg.BusinessScore, agg.MainTasksScore, agg.ProjectsScore)
	return err
}

func loadRecords(ctx context.Context, q querier, employeeID, quarter string, fiscalYear int) ([]kpi.Record, error) {
	rows, err := q.Query(ctx, `
    SELECT status, category, percentage_achievement, score_achievement
    FROM kpi_records
    WHERE employee_id = $1 AND quarter = $2 AND fiscal_year = $3
  `, employeeID, quarter, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kpi.Record
	for rows.Next() {
		var rec kpi.Record
		if err := rows.Scan(&rec.Status, &rec.Category, &rec.PercentageAchievement, &rec.ScoreAchievement); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, employeeID, quarter string, fiscalYear int) (Summary, error) {
	if !validKey(employeeID, quarter, fiscalYear) {
		return Summary{}, ErrInvalidKey
	}
	return get(ctx, s.DB, employeeID, quarter, fiscalYear)
}

func get(ctx context.Context, q querier, employeeID, quarter string, fiscalYear int) (Summary, error) {
	var out Summary
	err := q.QueryRow(ctx, `
    SELECT id, employee_id, quarter, fiscal_year,
           total_kpis, completed_kpis, average_achievement, total_score,
           COALESCE(overall_rating, ''),
           business_score, main_tasks_score, projects_score, updated_at
    FROM period_summaries
    WHERE employee_id = $1 AND quarter = $2 AND fiscal_year = $3
  `, employeeID, quarter, fiscalYear).Scan(
		&out.ID, &out.EmployeeID, &out.Quarter, &out.FiscalYear,
		&out.TotalKPIs, &out.CompletedKPIs, &out.AverageAchievement, &out.TotalScore,
		&out.OverallRating,
		&out.BusinessScore, &out.MainTasksScore, &out.ProjectsScore, &out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	return out, err
}

func (s *Service) List(ctx context.Context, quarter string, fiscalYear, limit, offset int) ([]Summary, error) {
	query := `
    SELECT id, employee_id, quarter, fiscal_year,
           total_kpis, completed_kpis, average_achievement, total_score,
           COALESCE(overall_rating, ''),
           business_score, main_tasks_score, projects_score, updated_at
    FROM period_summaries
    WHERE 1=1
  `
	args := []any{}
	if quarter != "" {
		query += " AND quarter = $1"
		args = append(args, quarter)
	}
	if fiscalYear > 0 {
		query += fmt.Sprintf(" AND fiscal_year = $%d", len(args)+1)
		args = append(args, fiscalYear)
	}
	query += fmt.Sprintf(" ORDER BY fiscal_year DESC, quarter, employee_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var item Summary
		if err := rows.Scan(
			&item.ID, &item.EmployeeID, &item.Quarter, &item.FiscalYear,
			&item.TotalKPIs, &item.CompletedKPIs, &item.AverageAchievement, &item.TotalScore,
			&item.OverallRating,
			&item.BusinessScore, &item.MainTasksScore, &item.ProjectsScore, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ReconcileAll recomputes every key that has KPI records or a lingering
// summary row. Used by the periodic reconciliation job.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id::text, quarter, fiscal_year FROM kpi_records
    UNION
    SELECT employee_id::text, quarter, fiscal_year FROM period_summaries
  `)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct {
		EmployeeID string
		Quarter    string
		FiscalYear int
	}
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.EmployeeID, &k.Quarter, &k.FiscalYear); err != nil {
			return 0, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, k := range keys {
		if _, err := s.Recompute(ctx, k.EmployeeID, k.Quarter, k.FiscalYear); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
