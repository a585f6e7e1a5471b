package similarity

import (
	"math"
	"time"

	"alertrank/pkg/models"
)

// Weights are the per-feature weights of the correlation score.
type Weights struct {
	SourceIP      float64
	DestIP        float64
	DestPort      float64
	TimeProximity float64
}

// DefaultWeights weighs every feature equally.
func DefaultWeights() Weights {
	return Weights{SourceIP: 1, DestIP: 1, DestPort: 1, TimeProximity: 1}
}

// Sum returns the normalisation divisor of the combined score.
func (w Weights) Sum() float64 {
	return w.SourceIP + w.DestIP + w.DestPort + w.TimeProximity
}

// Scorer combines feature similarities into one correlation score.
type Scorer struct {
	weights       Weights
	timeThreshold int
}

// NewScorer creates a scorer. timeThreshold is the window length in minutes.
func NewScorer(weights Weights, timeThreshold int) *Scorer {
	return &Scorer{weights: weights, timeThreshold: timeThreshold}
}

// TimeDecay returns 1/e^(|Δstart ms| / threshold). The millisecond delta is
// divided by the threshold as configured, without unit conversion.
func TimeDecay(a, b time.Time, timeThreshold int) float64 {
	if timeThreshold <= 0 {
		return 0
	}
	delta := math.Abs(float64(b.Sub(a).Milliseconds()))
	return 1 / math.Exp(delta/float64(timeThreshold))
}

// Score computes the correlation between an open alert and a newer one.
// The destination-port weight is added as a constant offset, not as a factor.
func (s *Scorer) Score(older, newer *models.Alert) float64 {
	w := s.weights
	if older == nil || newer == nil || w.Sum() <= 0 {
		return 0
	}

	sourceSim := IPSimilarity(older.SourceIP, newer.SourceIP)
	direct := sourceSim*w.SourceIP + sourceSim*w.DestIP
	crossed := IPSimilarity(older.DestIP, newer.SourceIP)*w.DestIP +
		IPSimilarity(older.SourceIP, newer.DestIP)*w.SourceIP

	corr := math.Max(direct, crossed)
	corr += TimeDecay(older.StartTime, newer.StartTime, s.timeThreshold)
	corr += PortSimilarity(older.DestPort, newer.DestPort) + w.DestPort

	return corr / w.Sum()
}
