package interest

import (
	"errors"
	"testing"
)

func TestCalculateInterestRateSamples(t *testing.T) {
	samples := map[int]int{10: 15, 30: 12, 50: 9, 70: 6, 90: 3}
	for score, want := range samples {
		got, err := CalculateInterestRate(score)
		if err != nil {
			t.Fatalf("score %d: %v", score, err)
		}
		if got != want {
			t.Fatalf("score %d: expected rate %d, got %d", score, want, got)
		}
	}
}

func TestCalculateInterestRateBoundariesBelongToBetterTier(t *testing.T) {
	cases := []struct {
		score int
		want  int
	}{
		{0, 15}, {19, 15}, {20, 12}, {39, 12}, {40, 9},
		{59, 9}, {60, 6}, {79, 6}, {80, 3}, {100, 3},
	}
	for _, tc := range cases {
		got, err := CalculateInterestRate(tc.score)
		if err != nil {
			t.Fatalf("score %d: %v", tc.score, err)
		}
		if got != tc.want {
			t.Fatalf("score %d: expected rate %d, got %d", tc.score, tc.want, got)
		}
	}
}

func TestCalculateInterestRateMonotonic(t *testing.T) {
	prev, err := CalculateInterestRate(MinScore)
	if err != nil {
		t.Fatalf("score %d: %v", MinScore, err)
	}
	for score := MinScore + 1; score <= MaxScore; score++ {
		rate, err := CalculateInterestRate(score)
		if err != nil {
			t.Fatalf("score %d: %v", score, err)
		}
		if rate > prev {
			t.Fatalf("rate increased from %d to %d at score %d", prev, rate, score)
		}
		prev = rate
	}
}

func TestCalculateInterestRateRejectsOutOfRange(t *testing.T) {
	for _, score := range []int{-1, 101, 1_000} {
		if _, err := CalculateInterestRate(score); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("score %d: expected ErrInvalidScore, got %v", score, err)
		}
	}
}

func TestNewScheduleValidation(t *testing.T) {
	cases := map[string][]Tier{
		"empty":            nil,
		"gap at zero":      {{MinScore: 5, Rate: 10}},
		"not ascending":    {{MinScore: 0, Rate: 10}, {MinScore: 50, Rate: 8}, {MinScore: 50, Rate: 6}},
		"beyond domain":    {{MinScore: 0, Rate: 10}, {MinScore: 101, Rate: 5}},
		"rate increases":   {{MinScore: 0, Rate: 10}, {MinScore: 50, Rate: 12}},
		"negative rate":    {{MinScore: 0, Rate: -1}},
		"rate above range": {{MinScore: 0, Rate: 101}},
	}
	for name, tiers := range cases {
		if _, err := NewSchedule(tiers); !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("%s: expected ErrInvalidSchedule, got %v", name, err)
		}
	}
}

func TestScheduleSingleTier(t *testing.T) {
	s, err := NewSchedule([]Tier{{MinScore: 0, Rate: 7}})
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	for _, score := range []int{0, 50, 100} {
		rate, err := s.Rate(score)
		if err != nil {
			t.Fatalf("score %d: %v", score, err)
		}
		if rate != 7 {
			t.Fatalf("score %d: expected 7, got %d", score, rate)
		}
	}
}

func TestScheduleTiersIsCopy(t *testing.T) {
	tiers := Default().Tiers()
	tiers[0].Rate = 99
	if rate, _ := CalculateInterestRate(0); rate != 15 {
		t.Fatalf("schedule mutated through Tiers(): rate %d", rate)
	}
}

func TestScheduleMaxRate(t *testing.T) {
	if got := Default().MaxRate(); got != 15 {
		t.Fatalf("expected default max rate 15, got %d", got)
	}
	flat := MustSchedule([]Tier{{MinScore: 0, Rate: 10}})
	if got := flat.MaxRate(); got != 10 {
		t.Fatalf("expected flat max rate 10, got %d", got)
	}
	if got := (Schedule{}).MaxRate(); got != 0 {
		t.Fatalf("expected empty schedule max rate 0, got %d", got)
	}
}
