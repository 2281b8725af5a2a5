package reputation

// Policy derives a credit score in [0, 100] from a user's counters.
type Policy interface {
	Score(total, repaid int64) int
}

// SmoothedRatio blends the repayment ratio with a neutral prior:
//
//	score = floor((repaid*100 + Baseline*PriorWeight) / (total + PriorWeight))
//
// With no history the score equals Baseline. As total grows the prior fades
// and the score approaches the plain repayment ratio, so a handful of repaid
// loans cannot jump a new borrower to the top tier.
type SmoothedRatio struct {
	Baseline    int
	PriorWeight int64
}

// DefaultPolicy is the scoring policy used unless another one is configured.
var DefaultPolicy = SmoothedRatio{Baseline: 50, PriorWeight: 4}

// Score implements Policy.
func (p SmoothedRatio) Score(total, repaid int64) int {
	baseline := clamp(int64(p.Baseline))
	if total < 0 {
		total = 0
	}
	if repaid < 0 {
		repaid = 0
	}
	if repaid > total {
		repaid = total
	}
	weight := p.PriorWeight
	if weight < 0 {
		weight = 0
	}
	if total+weight == 0 {
		return int(baseline)
	}
	return int(clamp((repaid*100 + baseline*weight) / (total + weight)))
}

func clamp(v int64) int64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
