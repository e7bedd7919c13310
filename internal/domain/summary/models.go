package summary

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("period summary not found")
	ErrInvalidKey = errors.New("employee, quarter and fiscal year are all required")
)

// Summary is a materialized rollup over the KPI records sharing one
// (employee, quarter, fiscal year) key. It holds no independent state and is
// fully recomputable from the record set at any time.
type Summary struct {
	ID                 string    `json:"id,omitempty"`
	EmployeeID         string    `json:"employeeId"`
	Quarter            string    `json:"quarter"`
	FiscalYear         int       `json:"fiscalYear"`
	TotalKPIs          int       `json:"totalKpis"`
	CompletedKPIs      int       `json:"completedKpis"`
	AverageAchievement *float64  `json:"averageAchievement,omitempty"`
	TotalScore         float64   `json:"totalScore"`
	OverallRating      string    `json:"overallRating,omitempty"`
	BusinessScore      float64   `json:"businessScore"`
	MainTasksScore     float64   `json:"mainTasksScore"`
	ProjectsScore      float64   `json:"projectsScore"`
	UpdatedAt          time.Time `json:"updatedAt,omitempty"`
}
