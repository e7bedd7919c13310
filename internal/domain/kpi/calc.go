package kpi

import "math"

// CalcParams carries the tunable pieces of achievement derivation. The zero
// value for Cap means percentages are uncapped.
type CalcParams struct {
	Cap       float64
	RedBelow  float64
	GreenFrom float64
}

func DefaultCalcParams() CalcParams {
	return CalcParams{Cap: 0, RedBelow: 70, GreenFrom: 90}
}

// NormalizeWeight accepts a weight either as a fraction of 1 or as a percent
// and returns the fraction form. Values above 1 are treated as percents.
func NormalizeWeight(value float64) (float64, error) {
	if value < 0 || value > 100 {
		return 0, ErrInvalidWeight
	}
	if value > 1 {
		return value / 100, nil
	}
	return value, nil
}

// Percentage derives percentage achievement from target and achievement for
// the given direction. A nil target or achievement, or a zero divisor, yields
// nil rather than an error.
func (p CalcParams) Percentage(direction string, target, achievement *float64) *float64 {
	if target == nil || achievement == nil {
		return nil
	}

	var pct float64
	switch direction {
	case DirectionLowerBetter:
		if *achievement == 0 {
			return nil
		}
		pct = *target / *achievement * 100
	default:
		if *target == 0 {
			return nil
		}
		pct = *achievement / *target * 100
	}

	if p.Cap > 0 && pct > p.Cap {
		pct = p.Cap
	}
	pct = round4(pct)
	return &pct
}

// Score weighs a percentage achievement by the KPI weight (fraction of 1),
// rounded to the schema's 4 decimal places.
func Score(percentage *float64, weight float64) *float64 {
	if percentage == nil {
		return nil
	}
	score := round4(*percentage * weight)
	return &score
}

// Rating bands a percentage into RED/YELLOW/GREEN. Nil percentages carry no
// rating.
func (p CalcParams) Rating(percentage *float64) string {
	if percentage == nil {
		return ""
	}
	switch {
	case *percentage < p.RedBelow:
		return RatingRed
	case *percentage < p.GreenFrom:
		return RatingYellow
	default:
		return RatingGreen
	}
}

// Derive recomputes the three derived fields on a record in place.
func (p CalcParams) Derive(rec *Record) {
	rec.PercentageAchievement = p.Percentage(rec.Direction, rec.TargetValue, rec.AchievementValue)
	rec.ScoreAchievement = Score(rec.PercentageAchievement, rec.KPIWeight)
	rec.PerformanceRating = p.Rating(rec.PercentageAchievement)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
