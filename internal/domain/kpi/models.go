package kpi

import "time"

type Record struct {
	ID                    string     `json:"id"`
	Company               string     `json:"company"`
	Quarter               string     `json:"quarter"`
	FiscalYear            int        `json:"fiscalYear"`
	EmployeeID            string     `json:"employeeId"`
	ManagerID             string     `json:"managerId,omitempty"`
	Department            string     `json:"department"`
	JobTitle              string     `json:"jobTitle,omitempty"`
	Category              string     `json:"category"`
	NameEN                string     `json:"nameEn"`
	NameFA                string     `json:"nameFa,omitempty"`
	Description           string     `json:"description,omitempty"`
	ObjectiveWeight       float64    `json:"objectiveWeight"`
	KPIWeight             float64    `json:"kpiWeight"`
	TargetValue           *float64   `json:"targetValue,omitempty"`
	AchievementValue      *float64   `json:"achievementValue,omitempty"`
	Direction             string     `json:"direction"`
	PercentageAchievement *float64   `json:"percentageAchievement,omitempty"`
	ScoreAchievement      *float64   `json:"scoreAchievement,omitempty"`
	PerformanceRating     string     `json:"performanceRating,omitempty"`
	Status                string     `json:"status"`
	ApprovedBy            string     `json:"approvedBy,omitempty"`
	ApprovedAt            *time.Time `json:"approvedAt,omitempty"`
	ApprovalNotes         string     `json:"approvalNotes,omitempty"`
	RejectedReason        string     `json:"rejectedReason,omitempty"`
	CreatedBy             string     `json:"createdBy,omitempty"`
	Version               int64      `json:"version"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// ApprovalHistory rows are append-only; one row per status transition.
type ApprovalHistory struct {
	ID         string    `json:"id"`
	KPIID      string    `json:"kpiId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ApproverID string    `json:"approverId,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type RecordInput struct {
	Company          string   `json:"company"`
	Quarter          string   `json:"quarter"`
	FiscalYear       int      `json:"fiscalYear"`
	EmployeeID       string   `json:"employeeId"`
	ManagerID        string   `json:"managerId"`
	Department       string   `json:"department"`
	JobTitle         string   `json:"jobTitle"`
	Category         string   `json:"category"`
	NameEN           string   `json:"nameEn"`
	NameFA           string   `json:"nameFa"`
	Description      string   `json:"description"`
	ObjectiveWeight  float64  `json:"objectiveWeight"`
	KPIWeight        float64  `json:"kpiWeight"`
	TargetValue      *float64 `json:"targetValue"`
	AchievementValue *float64 `json:"achievementValue"`
	Direction        string   `json:"direction"`
}

type ValueUpdate struct {
	TargetValue      *float64 `json:"targetValue"`
	AchievementValue *float64 `json:"achievementValue"`
	KPIWeight        *float64 `json:"kpiWeight"`
	ObjectiveWeight  *float64 `json:"objectiveWeight"`
	Description      *string  `json:"description"`
}

type Filter struct {
	EmployeeID string
	ManagerID  string
	Department string
	Quarter    string
	FiscalYear int
	Status     string
	Category   string
}
