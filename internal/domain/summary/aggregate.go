package summary

import (
	"math"

	"kpitrack/internal/domain/kpi"
)

// Aggregate folds a set of KPI records into their period rollup. The fold is
// deterministic and idempotent: the same record set always produces the same
// summary.
func Aggregate(records []kpi.Record, calc kpi.CalcParams) Summary {
	var out Summary
	var pctSum float64
	var pctCount int

	for _, rec := range records {
		out.TotalKPIs++
		if rec.Status == kpi.StatusApproved {
			out.CompletedKPIs++
		}
		if rec.PercentageAchievement != nil {
			pctSum += *rec.PercentageAchievement
			pctCount++
		}
		if rec.ScoreAchievement != nil {
			score := *rec.ScoreAchievement
			out.TotalScore += score
			switch rec.Category {
			case kpi.CategoryBusiness:
				out.BusinessScore += score
			case kpi.CategoryMainTasks:
				out.MainTasksScore += score
			case kpi.CategoryProjects:
				out.ProjectsScore += score
			}
		}
	}

	out.TotalScore = round4(out.TotalScore)
	out.BusinessScore = round4(out.BusinessScore)
	out.MainTasksScore = round4(out.MainTasksScore)
	out.ProjectsScore = round4(out.ProjectsScore)

	if pctCount > 0 {
		avg := round4(pctSum / float64(pctCount))
		out.AverageAchievement = &avg
		out.OverallRating = calc.Rating(&avg)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
