package kpi

import "testing"

func fptr(v float64) *float64 { return &v }

func TestPercentageHigherBetter(t *testing.T) {
	p := DefaultCalcParams()
	pct := p.Percentage(DirectionHigherBetter, fptr(100), fptr(120))
	if pct == nil || *pct != 120 {
		t.Fatalf("expected 120, got %v", pct)
	}
}

func TestPercentageLowerBetter(t *testing.T) {
	p := DefaultCalcParams()
	pct := p.Percentage(DirectionLowerBetter, fptr(50), fptr(25))
	if pct == nil || *pct != 200 {
		t.Fatalf("expected 200, got %v", pct)
	}
}

func TestPercentageNilInputs(t *testing.T) {
	p := DefaultCalcParams()
	if pct := p.Percentage(DirectionHigherBetter, nil, fptr(10)); pct != nil {
		t.Fatalf("nil target should yield nil, got %v", *pct)
	}
	if pct := p.Percentage(DirectionHigherBetter, fptr(10), nil); pct != nil {
		t.Fatalf("nil achievement should yield nil, got %v", *pct)
	}
}

func TestPercentageZeroDivisor(t *testing.T) {
	p := DefaultCalcParams()
	if pct := p.Percentage(DirectionHigherBetter, fptr(0), fptr(10)); pct != nil {
		t.Fatalf("zero target should yield nil, got %v", *pct)
	}
	if pct := p.Percentage(DirectionLowerBetter, fptr(10), fptr(0)); pct != nil {
		t.Fatalf("zero achievement should yield nil, got %v", *pct)
	}
}

func TestPercentageCap(t *testing.T) {
	p := CalcParams{Cap: 150, RedBelow: 70, GreenFrom: 90}
	pct := p.Percentage(DirectionHigherBetter, fptr(100), fptr(300))
	if pct == nil || *pct != 150 {
		t.Fatalf("expected capped 150, got %v", pct)
	}

	uncapped := DefaultCalcParams()
	pct = uncapped.Percentage(DirectionHigherBetter, fptr(100), fptr(300))
	if pct == nil || *pct != 300 {
		t.Fatalf("expected uncapped 300, got %v", pct)
	}
}

func TestScore(t *testing.T) {
	score := Score(fptr(120), 0.2)
	if score == nil || *score != 24 {
		t.Fatalf("expected 24, got %v", score)
	}
	if score := Score(nil, 0.2); score != nil {
		t.Fatalf("nil percentage should yield nil score, got %v", *score)
	}
}

func TestScoreRounding(t *testing.T) {
	score := Score(fptr(33.3333), 0.3333)
	if score == nil || *score != 11.1100 {
		t.Fatalf("expected 11.11, got %v", score)
	}
}

func TestRatingBands(t *testing.T) {
	p := DefaultCalcParams()
	cases := []struct {
		pct  float64
		want string
	}{
		{0, RatingRed},
		{69.99, RatingRed},
		{70, RatingYellow},
		{89.99, RatingYellow},
		{90, RatingGreen},
		{150, RatingGreen},
	}
	for _, tc := range cases {
		if got := p.Rating(fptr(tc.pct)); got != tc.want {
			t.Fatalf("Rating(%v) = %q, want %q", tc.pct, got, tc.want)
		}
	}
	if got := p.Rating(nil); got != "" {
		t.Fatalf("nil percentage should carry no rating, got %q", got)
	}
}

func TestNormalizeWeight(t *testing.T) {
	if w, err := NormalizeWeight(0.2); err != nil || w != 0.2 {
		t.Fatalf("fraction weight: got %v, %v", w, err)
	}
	if w, err := NormalizeWeight(20); err != nil || w != 0.2 {
		t.Fatalf("percent weight: got %v, %v", w, err)
	}
	if w, err := NormalizeWeight(1); err != nil || w != 1 {
		t.Fatalf("boundary weight 1: got %v, %v", w, err)
	}
	if _, err := NormalizeWeight(150); err == nil {
		t.Fatal("expected error for weight above 100")
	}
	if _, err := NormalizeWeight(-1); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestDeriveDeterministic(t *testing.T) {
	p := DefaultCalcParams()
	rec := Record{
		Direction:        DirectionHigherBetter,
		TargetValue:      fptr(100),
		AchievementValue: fptr(120),
		KPIWeight:        0.2,
	}
	p.Derive(&rec)
	if rec.PercentageAchievement == nil || *rec.PercentageAchievement != 120 {
		t.Fatalf("expected percentage 120, got %v", rec.PercentageAchievement)
	}
	if rec.ScoreAchievement == nil || *rec.ScoreAchievement != 24 {
		t.Fatalf("expected score 24, got %v", rec.ScoreAchievement)
	}
	if rec.PerformanceRating != RatingGreen {
		t.Fatalf("expected GREEN, got %q", rec.PerformanceRating)
	}

	first := *rec.ScoreAchievement
	p.Derive(&rec)
	if *rec.ScoreAchievement != first {
		t.Fatalf("derive is not idempotent: %v then %v", first, *rec.ScoreAchievement)
	}
}

func TestDeriveClearsStaleValues(t *testing.T) {
	p := DefaultCalcParams()
	rec := Record{
		Direction:             DirectionHigherBetter,
		TargetValue:           fptr(100),
		AchievementValue:      fptr(80),
		KPIWeight:             0.5,
		PercentageAchievement: fptr(999),
		PerformanceRating:     RatingGreen,
	}
	rec.AchievementValue = nil
	p.Derive(&rec)
	if rec.PercentageAchievement != nil || rec.ScoreAchievement != nil || rec.PerformanceRating != "" {
		t.Fatalf("derived fields should clear when inputs go nil: %+v", rec)
	}
}
