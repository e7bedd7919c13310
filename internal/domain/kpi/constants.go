package kpi

const (
	StatusDraft       = "DRAFT"
	StatusSubmitted   = "SUBMITTED"
	StatusUnderReview = "UNDER_REVIEW"
	StatusApproved    = "APPROVED"
	StatusRejected    = "REJECTED"
	StatusArchived    = "ARCHIVED"

	CategoryBusiness  = "BUSINESS"
	CategoryMainTasks = "MAIN_TASKS"
	CategoryProjects  = "PROJECTS"

	// DirectionHigherBetter scores achievement/target; DirectionLowerBetter
	// inverts the ratio so a lower actual value scores higher.
	DirectionHigherBetter = "+"
	DirectionLowerBetter  = "-"

	RatingRed    = "RED"
	RatingYellow = "YELLOW"
	RatingGreen  = "GREEN"
)

var Statuses = []string{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusArchived,
}

var Categories = []string{CategoryBusiness, CategoryMainTasks, CategoryProjects}

var Quarters = []string{"Q1", "Q2", "Q3", "Q4"}

func ValidQuarter(q string) bool {
	for _, candidate := range Quarters {
		if q == candidate {
			return true
		}
	}
	return false
}

func ValidCategory(c string) bool {
	for _, candidate := range Categories {
		if c == candidate {
			return true
		}
	}
	return false
}

func ValidDirection(d string) bool {
	return d == DirectionHigherBetter || d == DirectionLowerBetter
}
