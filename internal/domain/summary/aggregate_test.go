package summary

import (
	"reflect"
	"testing"

	"kpitrack/internal/domain/kpi"
)

func fptr(v float64) *float64 { return &v }

func TestAggregateEmpty(t *testing.T) {
	out := Aggregate(nil, kpi.DefaultCalcParams())
	if out.TotalKPIs != 0 || out.CompletedKPIs != 0 || out.TotalScore != 0 {
		t.Fatalf("empty set should aggregate to zero: %+v", out)
	}
	if out.AverageAchievement != nil || out.OverallRating != "" {
		t.Fatalf("empty set carries no average or rating: %+v", out)
	}
}

func TestAggregateCountsAndScores(t *testing.T) {
	records := []kpi.Record{
		{Status: kpi.StatusApproved, Category: kpi.CategoryBusiness, PercentageAchievement: fptr(120), ScoreAchievement: fptr(24)},
		{Status: kpi.StatusApproved, Category: kpi.CategoryMainTasks, PercentageAchievement: fptr(80), ScoreAchievement: fptr(16)},
		{Status: kpi.StatusSubmitted, Category: kpi.CategoryProjects, PercentageAchievement: fptr(100), ScoreAchievement: fptr(10)},
		{Status: kpi.StatusDraft, Category: kpi.CategoryBusiness},
	}

	out := Aggregate(records, kpi.DefaultCalcParams())
	if out.TotalKPIs != 4 {
		t.Fatalf("expected 4 total, got %d", out.TotalKPIs)
	}
	if out.CompletedKPIs != 2 {
		t.Fatalf("expected 2 approved, got %d", out.CompletedKPIs)
	}
	if out.TotalScore != 50 {
		t.Fatalf("expected total score 50, got %v", out.TotalScore)
	}
	if out.BusinessScore != 24 || out.MainTasksScore != 16 || out.ProjectsScore != 10 {
		t.Fatalf("unexpected category scores: %+v", out)
	}
	// Mean over the three records that carry a percentage.
	if out.AverageAchievement == nil || *out.AverageAchievement != 100 {
		t.Fatalf("expected average 100, got %v", out.AverageAchievement)
	}
	if out.OverallRating != kpi.RatingGreen {
		t.Fatalf("expected GREEN, got %q", out.OverallRating)
	}
}

func TestAggregateSkipsNilPercentages(t *testing.T) {
	records := []kpi.Record{
		{Status: kpi.StatusDraft, Category: kpi.CategoryBusiness},
		{Status: kpi.StatusDraft, Category: kpi.CategoryBusiness, PercentageAchievement: fptr(60), ScoreAchievement: fptr(6)},
	}
	out := Aggregate(records, kpi.DefaultCalcParams())
	if out.AverageAchievement == nil || *out.AverageAchievement != 60 {
		t.Fatalf("nil percentages must not dilute the mean, got %v", out.AverageAchievement)
	}
	if out.OverallRating != kpi.RatingRed {
		t.Fatalf("expected RED, got %q", out.OverallRating)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	records := []kpi.Record{
		{Status: kpi.StatusApproved, Category: kpi.CategoryBusiness, PercentageAchievement: fptr(95.5), ScoreAchievement: fptr(19.1)},
		{Status: kpi.StatusUnderReview, Category: kpi.CategoryProjects, PercentageAchievement: fptr(72.25), ScoreAchievement: fptr(7.225)},
	}
	first := Aggregate(records, kpi.DefaultCalcParams())
	second := Aggregate(records, kpi.DefaultCalcParams())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregate must be deterministic: %+v vs %+v", first, second)
	}
}

func TestAggregateRatingBands(t *testing.T) {
	calc := kpi.DefaultCalcParams()
	cases := []struct {
		pct  float64
		want string
	}{
		{65, kpi.RatingRed},
		{75, kpi.RatingYellow},
		{95, kpi.RatingGreen},
	}
	for _, tc := range cases {
		out := Aggregate([]kpi.Record{{Status: kpi.StatusApproved, PercentageAchievement: fptr(tc.pct)}}, calc)
		if out.OverallRating != tc.want {
			t.Fatalf("rating for %v = %q, want %q", tc.pct, out.OverallRating, tc.want)
		}
	}
}
