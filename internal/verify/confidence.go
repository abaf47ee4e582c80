package verify

import (
	"math"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

// ConfidenceScorer rates an accepted claim against the chunk that grounded it.
type ConfidenceScorer interface {
	Score(claim models.ClaimedSignal, chunk models.GroundingChunk) models.SignalConfidence
}

// FixedConfidence assigns constant sub-scores; only urgency varies.
type FixedConfidence struct {
	Freshness        int
	Proximity        int
	IntentStrength   int
	BuyerMatch       int
	EmergencyUrgency int
	DefaultUrgency   int
}

// DefaultConfidence returns the standard constants: 90, 100, 95, 95 and
// urgency 100 for emergencies, 80 otherwise.
func DefaultConfidence() FixedConfidence {
	return FixedConfidence{
		Freshness:        90,
		Proximity:        100,
		IntentStrength:   95,
		BuyerMatch:       95,
		EmergencyUrgency: 100,
		DefaultUrgency:   80,
	}
}

func (f FixedConfidence) Score(claim models.ClaimedSignal, _ models.GroundingChunk) models.SignalConfidence {
	c := models.SignalConfidence{
		Freshness:      f.Freshness,
		Proximity:      f.Proximity,
		IntentStrength: f.IntentStrength,
		BuyerMatch:     f.BuyerMatch,
		Urgency:        f.DefaultUrgency,
	}
	if claim.Urgency == models.UrgencyEmergency {
		c.Urgency = f.EmergencyUrgency
	}
	c.Total = Total(c)
	return c
}

// Total is the rounded mean of the five sub-scores.
func Total(c models.SignalConfidence) int {
	sum := c.Freshness + c.Proximity + c.IntentStrength + c.BuyerMatch + c.Urgency
	return int(math.Round(float64(sum) / 5))
}
