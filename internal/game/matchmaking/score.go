// Package matchmaking pairs waiting duel participants by computed power,
// expires stale waits into bot opponents, and tracks match lifecycle. The
// queue and match table are shared mutable state; every operation takes the
// matchmaker lock so pairing is atomic with removing both entries.
package matchmaking

import "github.com/duskhollow/arena/internal/game/thrall"

// Power-score weights. Fixed by design, not configurable at runtime.
const (
	attackWeight  = 2.0
	defenseWeight = 1.5
)

// rangeTolerance is the fraction of the lower score the higher score may
// exceed it by and still match.
const rangeTolerance = 0.2

// PowerScore collapses a stat block into the single scalar used for pairing:
// maxHealth + attack*2 + defense*1.5.
func PowerScore(s thrall.Stats) float64 {
	return float64(s.MaxHealth) + float64(s.Attack)*attackWeight + float64(s.Defense)*defenseWeight
}

// IsWithinRange reports whether two power scores may be paired. The band is
// asymmetric: it is measured against the lower score only, so the higher
// score may exceed the lower by up to 20% of the lower (300 and 360 match;
// 300 and 361 do not). It is not a ±20% band around either score.
func IsWithinRange(a, b float64) bool {
	lower, higher := a, b
	if higher < lower {
		lower, higher = higher, lower
	}
	return higher <= lower+lower*rangeTolerance
}

// Threat classifies an opponent's relative strength for display purposes.
type Threat string

const (
	ThreatLow      Threat = "LOW"
	ThreatModerate Threat = "MODERATE"
	ThreatHigh     Threat = "HIGH"
)

// ThreatLevel classifies opponentScore relative to ownScore:
// ratio < 0.8 is LOW, ratio <= 1.2 is MODERATE, above that HIGH.
//
// Precondition: ownScore > 0.
func ThreatLevel(ownScore, opponentScore float64) Threat {
	ratio := opponentScore / ownScore
	switch {
	case ratio < 0.8:
		return ThreatLow
	case ratio <= 1.2:
		return ThreatModerate
	default:
		return ThreatHigh
	}
}
