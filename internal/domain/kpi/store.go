package kpi

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SummaryRecomputer refreshes the period summary for a record's key inside
// the caller's transaction, so a transition and its rollup commit together.
type SummaryRecomputer interface {
	RecomputeInTx(ctx context.Context, tx pgx.Tx, employeeID, quarter string, fiscalYear int) error
}

type Store struct {
	DB        *pgxpool.Pool
	Summaries SummaryRecomputer
}

func NewStore(db *pgxpool.Pool, summaries SummaryRecomputer) *Store {
	return &Store{DB: db, Summaries: summaries}
}

const recordColumns = `
  id, company, quarter, fiscal_year, employee_id,
  COALESCE(manager_id::text, ''), department, COALESCE(job_title, ''),
  category, name_en, name_fa, COALESCE(description, ''),
  objective_weight, kpi_weight, target_value, achievement_value, direction,
  percentage_achievement, score_achievement, COALESCE(performance_rating, ''),
  status, COALESCE(approved_by::text, ''), approved_at,
  COALESCE(approval_notes, ''), COALESCE(rejected_reason, ''),
  COALESCE(created_by::text, ''), version, created_at, updated_at
`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.Company, &rec.Quarter, &rec.FiscalYear, &rec.EmployeeID,
		&rec.ManagerID, &rec.Department, &rec.JobTitle,
		&rec.Category, &rec.NameEN, &rec.NameFA, &rec.Description,
		&rec.ObjectiveWeight, &rec.KPIWeight, &rec.TargetValue, &rec.AchievementValue, &rec.Direction,
		&rec.PercentageAchievement, &rec.ScoreAchievement, &rec.PerformanceRating,
		&rec.Status, &rec.ApprovedBy, &rec.ApprovedAt,
		&rec.ApprovalNotes, &rec.RejectedReason,
		&rec.CreatedBy, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, "SELECT "+recordColumns+" FROM kpi_records WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *Store) getInTx(ctx context.Context, tx pgx.Tx, id string) (Record, error) {
	rec, err := scanRecord(tx.QueryRow(ctx, "SELECT "+recordColumns+" FROM kpi_records WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *Store) Insert(ctx context.Context, rec Record) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	if err := tx.QueryRow(ctx, `
    INSERT INTO kpi_records (
      company, quarter, fiscal_year, employee_id, manager_id, department, job_title,
      category, name_en, name_fa, description,
      objective_weight, kpi_weight, target_value, achievement_value, direction,
      percentage_achievement, score_achievement, performance_rating,
      status, created_by
    ) VALUES (
      $1,$2,$3,$4,NULLIF($5,'')::uuid,$6,NULLIF($7,''),
      $8,$9,$10,NULLIF($11,''),
      $12,$13,$14,$15,$16,
      $17,$18,NULLIF($19,''),
      $20,NULLIF($21,'')::uuid
    )
    RETURNING id
  `, rec.Company, rec.Quarter, rec.FiscalYear, rec.EmployeeID, rec.ManagerID, rec.Department, rec.JobTitle,
		rec.Category, rec.NameEN, rec.NameFA, rec.Description,
		rec.ObjectiveWeight, rec.KPIWeight, rec.TargetValue, rec.AchievementValue, rec.Direction,
		rec.PercentageAchievement, rec.ScoreAchievement, rec.PerformanceRating,
		rec.Status, rec.CreatedBy).Scan(&id); err != nil {
		return "", err
	}

	if err := s.Summaries.RecomputeInTx(ctx, tx, rec.EmployeeID, rec.Quarter, rec.FiscalYear); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateValues(ctx context.Context, rec Record) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE kpi_records
    SET objective_weight = $1, kpi_weight = $2,
        target_value = $3, achievement_value = $4,
        percentage_achievement = $5, score_achievement = $6,
        performance_rating = NULLIF($7,''),
        description = NULLIF($8,''),
        version = version + 1, updated_at = now()
    WHERE id = $9 AND version = $10
  `, rec.ObjectiveWeight, rec.KPIWeight,
		rec.TargetValue, rec.AchievementValue,
		rec.PercentageAchievement, rec.ScoreAchievement,
		rec.PerformanceRating, rec.Description,
		rec.ID, rec.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.getInTx(ctx, tx, rec.ID); err != nil {
			return err
		}
		return ErrConflict
	}

	if err := s.Summaries.RecomputeInTx(ctx, tx, rec.EmployeeID, rec.Quarter, rec.FiscalYear); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := s.getInTx(ctx, tx, id)
	if err != nil {
		return err
	}

	// History rows cascade with the record.
	if _, err := tx.Exec(ctx, "DELETE FROM kpi_records WHERE id = $1", id); err != nil {
		return err
	}

	if err := s.Summaries.RecomputeInTx(ctx, tx, rec.EmployeeID, rec.Quarter, rec.FiscalYear); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) List(ctx context.Context, f Filter, limit, offset int) ([]Record, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	add := func(clause string, value any) {
		where += fmt.Sprintf(" AND "+clause, len(args)+1)
		args = append(args, value)
	}
	if f.EmployeeID != "" {
		add("employee_id = $%d", f.EmployeeID)
	}
	if f.ManagerID != "" {
		add("manager_id = $%d", f.ManagerID)
	}
	if f.Department != "" {
		add("department = $%d", f.Department)
	}
	if f.Quarter != "" {
		add("quarter = $%d", f.Quarter)
	}
	if f.FiscalYear != 0 {
		add("fiscal_year = $%d", f.FiscalYear)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM kpi_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + recordColumns + " FROM kpi_records" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (s *Store) History(ctx context.Context, kpiID string) ([]ApprovalHistory, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, kpi_id, from_status, to_status, COALESCE(approver_id::text, ''), COALESCE(notes, ''), created_at
    FROM kpi_approval_history
    WHERE kpi_id = $1
    ORDER BY created_at
  `, kpiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ApprovalHistory
	for rows.Next() {
		var h ApprovalHistory
		if err := rows.Scan(&h.ID, &h.KPIID, &h.FromStatus, &h.ToStatus, &h.ApproverID, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ApplyTransition performs the compare-and-swap status update, appends the
// history row and refreshes the period summary in one transaction. A stale
// version or status loses the race and returns ErrConflict.
func (s *Store) ApplyTransition(ctx context.Context, mut TransitionMutation) (Record, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	set := "status = $1, version = version + 1, updated_at = now()"
	args := []any{mut.ToStatus}
	if mut.ApprovedBy != "" {
		set += fmt.Sprintf(", approved_by = $%d::uuid, approved_at = $%d, approval_notes = NULLIF($%d,'')",
			len(args)+1, len(args)+2, len(args)+3)
		args = append(args, mut.ApprovedBy, mut.ApprovedAt, mut.ApprovalNotes)
	}
	if mut.RejectedReason != "" {
		set += fmt.Sprintf(", rejected_reason = $%d", len(args)+1)
		args = append(args, mut.RejectedReason)
	}
	if mut.ClearApproval {
		set += ", approved_by = NULL, approved_at = NULL, approval_notes = NULL, rejected_reason = NULL"
	}

	query := fmt.Sprintf(
		"UPDATE kpi_records SET %s WHERE id = $%d AND status = $%d AND version = $%d",
		set, len(args)+1, len(args)+2, len(args)+3)
	args = append(args, mut.KPIID, mut.FromStatus, mut.ExpectedVersion)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return Record{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.getInTx(ctx, tx, mut.KPIID); err != nil {
			return Record{}, err
		}
		return Record{}, ErrConflict
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO kpi_approval_history (kpi_id, from_status, to_status, approver_id, notes)
    VALUES ($1, $2, $3, NULLIF($4,'')::uuid, NULLIF($5,''))
  `, mut.KPIID, mut.FromStatus, mut.ToStatus, mut.ActorUserID, mut.Notes); err != nil {
		return Record{}, err
	}

	rec, err := s.getInTx(ctx, tx, mut.KPIID)
	if err != nil {
		return Record{}, err
	}

	if err := s.Summaries.RecomputeInTx(ctx, tx, rec.EmployeeID, rec.Quarter, rec.FiscalYear); err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}
