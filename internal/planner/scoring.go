package planner

import (
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/recipe"
)

// Weights tune the candidate score:
//
//	UnmetMin*unmet_min_bonus + Recency*days_since_last - Warning*warning_count + Rating*(rating or NeutralRating)
type Weights struct {
	UnmetMin       float64
	Recency        float64
	Warning        float64
	Rating         float64
	NeutralRating  float64
	RecencyCapDays int
}

// DefaultWeights mirrors config.DefaultScoring.
func DefaultWeights() Weights {
	return WeightsFromConfig(config.DefaultScoring())
}

// WeightsFromConfig adapts the configured scoring section.
func WeightsFromConfig(c config.ScoringConfig) Weights {
	return Weights{
		UnmetMin:       c.UnmetMinWeight,
		Recency:        c.RecencyWeight,
		Warning:        c.WarningWeight,
		Rating:         c.RatingWeight,
		NeutralRating:  c.NeutralRating,
		RecencyCapDays: c.RecencyCapDays,
	}
}

// score holds the inputs and result of scoring one candidate for one date.
type score struct {
	facet       recipe.Facet
	unmetMin    int
	sinceLast   int
	lastGap     int
	everPlanned bool
	warnings    int
	planCount   int
	total       float64
}

func (w Weights) apply(s *score) {
	rating := w.NeutralRating
	if s.facet.Rating != nil {
		rating = *s.facet.Rating
	}
	s.total = w.UnmetMin*float64(s.unmetMin) +
		w.Recency*float64(s.sinceLast) -
		w.Warning*float64(s.warnings) +
		w.Rating*rating
}

// better orders candidates: higher score, then fewer plan entries, then lower id.
func better(a, b score) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	if a.planCount != b.planCount {
		return a.planCount < b.planCount
	}
	return a.facet.ID < b.facet.ID
}
