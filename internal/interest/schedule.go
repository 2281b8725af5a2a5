package interest

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// MinScore and MaxScore bound the credit score domain.
	MinScore = 0
	MaxScore = 100
)

var (
	// ErrInvalidScore is returned for scores outside [MinScore, MaxScore].
	ErrInvalidScore = errors.New("invalid score")
	// ErrInvalidSchedule is returned by NewSchedule for malformed tier tables.
	ErrInvalidSchedule = errors.New("invalid interest schedule")
)

// Tier applies Rate to every score from MinScore (inclusive) up to the next
// tier's MinScore (exclusive). The last tier runs through MaxScore.
type Tier struct {
	MinScore int
	Rate     int
}

// Schedule is an ordered, contiguous tier table over [MinScore, MaxScore].
type Schedule struct {
	tiers []Tier
}

// DefaultTiers is the rate table offered to borrowers. A score sitting exactly
// on a bound (20, 40, 60, 80) belongs to the better tier that starts there.
var DefaultTiers = []Tier{
	{MinScore: 0, Rate: 15},
	{MinScore: 20, Rate: 12},
	{MinScore: 40, Rate: 9},
	{MinScore: 60, Rate: 6},
	{MinScore: 80, Rate: 3},
}

var defaultSchedule = MustSchedule(DefaultTiers)

// NewSchedule validates tiers and returns a Schedule. Tiers must start at
// MinScore, ascend strictly, stay inside the score domain, and never raise the
// rate as the score improves.
func NewSchedule(tiers []Tier) (Schedule, error) {
	if len(tiers) == 0 {
		return Schedule{}, fmt.Errorf("%w: no tiers", ErrInvalidSchedule)
	}
	if tiers[0].MinScore != MinScore {
		return Schedule{}, fmt.Errorf("%w: first tier starts at %d", ErrInvalidSchedule, tiers[0].MinScore)
	}
	for i, t := range tiers {
		if t.MinScore > MaxScore {
			return Schedule{}, fmt.Errorf("%w: tier %d starts above %d", ErrInvalidSchedule, i, MaxScore)
		}
		if t.Rate < 0 || t.Rate > 100 {
			return Schedule{}, fmt.Errorf("%w: tier %d rate %d", ErrInvalidSchedule, i, t.Rate)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.MinScore <= prev.MinScore {
			return Schedule{}, fmt.Errorf("%w: tier %d does not ascend", ErrInvalidSchedule, i)
		}
		if t.Rate > prev.Rate {
			return Schedule{}, fmt.Errorf("%w: tier %d raises the rate", ErrInvalidSchedule, i)
		}
	}

	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return Schedule{tiers: out}, nil
}

// MustSchedule is NewSchedule for package-level tables; it panics on error.
func MustSchedule(tiers []Tier) Schedule {
	s, err := NewSchedule(tiers)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the schedule built from DefaultTiers.
func Default() Schedule {
	return defaultSchedule
}

// Tiers returns a copy of the table.
func (s Schedule) Tiers() []Tier {
	out := make([]Tier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

// MaxRate is the highest rate the schedule can offer. Rates never rise with
// score, so it is the rate of the lowest tier.
func (s Schedule) MaxRate() int {
	if len(s.tiers) == 0 {
		return 0
	}
	return s.tiers[0].Rate
}

// Rate returns the rate of the tier containing score.
func (s Schedule) Rate(score int) (int, error) {
	if score < MinScore || score > MaxScore {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidScore, score, MinScore, MaxScore)
	}
	if len(s.tiers) == 0 {
		return 0, fmt.Errorf("%w: no tiers", ErrInvalidSchedule)
	}
	// first tier starting above score; the one before it owns the score
	i := sort.Search(len(s.tiers), func(i int) bool { return s.tiers[i].MinScore > score })
	return s.tiers[i-1].Rate, nil
}

// CalculateInterestRate maps a credit score to a rate using the default schedule.
func CalculateInterestRate(score int) (int, error) {
	return defaultSchedule.Rate(score)
}
