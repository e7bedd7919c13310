package summary

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

type reportRow struct {
	EmployeeName string
	Summary      Summary
}

// ReportPDF renders the period summaries for one quarter as a PDF table.
func (s *Service) ReportPDF(ctx context.Context, quarter string, fiscalYear int) ([]byte, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT COALESCE(e.first_name || ' ' || e.last_name, ''),
           ps.employee_id, ps.quarter, ps.fiscal_year,
           ps.total_kpis, ps.completed_kpis, ps.average_achievement, ps.total_score,
           COALESCE(ps.overall_rating, ''),
           ps.business_score, ps.main_tasks_score, ps.projects_score, ps.updated_at
    FROM period_summaries ps
    LEFT JOIN employees e ON ps.employee_id = e.id
    WHERE ps.quarter = $1 AND ps.fiscal_year = $2
    ORDER BY ps.total_score DESC
  `, quarter, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var report []reportRow
	for rows.Next() {
		var row reportRow
		if err := rows.Scan(
			&row.EmployeeName,
			&row.Summary.EmployeeID, &row.Summary.Quarter, &row.Summary.FiscalYear,
			&row.Summary.TotalKPIs, &row.Summary.CompletedKPIs, &row.Summary.AverageAchievement, &row.Summary.TotalScore,
			&row.Summary.OverallRating,
			&row.Summary.BusinessScore, &row.Summary.MainTasksScore, &row.Summary.ProjectsScore, &row.Summary.UpdatedAt,
		); err != nil {
			return nil, err
		}
		report = append(report, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("KPI Summary %s FY%d", quarter, fiscalYear))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 10)
	headers := []struct {
		width float64
		label string
	}{
		{60, "Employee"},
		{30, "KPIs"},
		{30, "Approved"},
		{35, "Avg Achievement"},
		{30, "Total Score"},
		{30, "Rating"},
		{50, "Business / Tasks / Projects"},
	}
	for _, col := range headers {
		pdf.CellFormat(col.width, 8, col.label, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range report {
		name := row.EmployeeName
		if name == "" {
			name = row.Summary.EmployeeID
		}
		avg := "-"
		if row.Summary.AverageAchievement != nil {
			avg = fmt.Sprintf("%.2f%%", *row.Summary.AverageAchievement)
		}
		pdf.CellFormat(60, 8, name, "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%d", row.Summary.TotalKPIs), "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%d", row.Summary.CompletedKPIs), "1", 0, "", false, 0, "")
		pdf.CellFormat(35, 8, avg, "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", row.Summary.TotalScore), "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 8, row.Summary.OverallRating, "1", 0, "", false, 0, "")
		pdf.CellFormat(50, 8, fmt.Sprintf("%.1f / %.1f / %.1f", row.Summary.BusinessScore, row.Summary.MainTasksScore, row.Summary.ProjectsScore), "1", 0, "", false, 0, "")
		pdf.Ln(-1)
	}
	if len(report) == 0 {
		pdf.Cell(0, 8, "No summaries for this period.")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
