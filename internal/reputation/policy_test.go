package reputation

import "testing"

func TestSmoothedRatioBaselineWithoutHistory(t *testing.T) {
	if got := DefaultPolicy.Score(0, 0); got != 50 {
		t.Fatalf("expected baseline 50, got %d", got)
	}
}

func TestSmoothedRatioKnownValues(t *testing.T) {
	cases := []struct {
		total, repaid int64
		want          int
	}{
		{1, 0, 40},
		{1, 1, 60},
		{2, 2, 66},
		{5, 3, 55},
		{20, 20, 91},
		{100, 0, 1},
	}
	for _, tc := range cases {
		if got := DefaultPolicy.Score(tc.total, tc.repaid); got != tc.want {
			t.Fatalf("score(%d, %d): expected %d, got %d", tc.total, tc.repaid, tc.want, got)
		}
	}
}

func TestSmoothedRatioMonotonicAndBounded(t *testing.T) {
	for total := int64(0); total <= 40; total++ {
		prev := -1
		for repaid := int64(0); repaid <= total; repaid++ {
			score := DefaultPolicy.Score(total, repaid)
			if score < 0 || score > 100 {
				t.Fatalf("score(%d, %d) = %d out of bounds", total, repaid, score)
			}
			if score < prev {
				t.Fatalf("score decreased at total=%d repaid=%d", total, repaid)
			}
			prev = score
		}
	}
}

func TestSmoothedRatioVolumeRaisesConfidence(t *testing.T) {
	perfectFew := DefaultPolicy.Score(2, 2)
	perfectMany := DefaultPolicy.Score(50, 50)
	if perfectMany <= perfectFew {
		t.Fatalf("expected volume to raise a perfect score: few=%d many=%d", perfectFew, perfectMany)
	}
	poorFew := DefaultPolicy.Score(2, 0)
	poorMany := DefaultPolicy.Score(50, 0)
	if poorMany >= poorFew {
		t.Fatalf("expected volume to lower a poor score: few=%d many=%d", poorFew, poorMany)
	}
}

func TestSmoothedRatioClampsInconsistentInput(t *testing.T) {
	p := SmoothedRatio{Baseline: 150, PriorWeight: -3}
	if got := p.Score(0, 0); got != 100 {
		t.Fatalf("expected clamped baseline 100, got %d", got)
	}
	if got := DefaultPolicy.Score(3, 9); got != DefaultPolicy.Score(3, 3) {
		t.Fatalf("repaid above total should clamp, got %d", got)
	}
}
