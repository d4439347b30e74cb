// Package thrall defines combatant input data: base combat stats, clan
// bonuses, and the provider contract that supplies a thrall's stats,
// abilities, and clan for a given id. Ownership checks happen in the calling
// layer, never here.
package thrall

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/duskhollow/arena/internal/game/ability"
)

// ErrThrallNotFound is returned by providers when no thrall has the given id.
var ErrThrallNotFound = errors.New("thrall not found")

// Stats is the immutable combat stat block supplied by the caller. Clan
// bonuses produce a derived copy; the source is never mutated.
type Stats struct {
	MaxHealth int
	Attack    int
	Defense   int
	Speed     int
	// CritChance is the probability of a critical hit; 0 means the engine
	// default applies.
	CritChance float64
	// LifestealPercent is healing per point of damage dealt.
	LifestealPercent float64
	// BleedChance is the probability per attack of inflicting a bleed.
	BleedChance float64
}

// Validate checks the stat invariants.
//
// Postcondition: Returns nil iff MaxHealth and Speed are > 0, Attack and
// Defense are >= 0, and all chance/percent fields are in [0, 1].
func (s Stats) Validate() error {
	if s.MaxHealth <= 0 {
		return fmt.Errorf("stats: max_health must be > 0, got %d", s.MaxHealth)
	}
	if s.Speed <= 0 {
		return fmt.Errorf("stats: speed must be > 0, got %d", s.Speed)
	}
	if s.Attack < 0 {
		return fmt.Errorf("stats: attack must be >= 0, got %d", s.Attack)
	}
	if s.Defense < 0 {
		return fmt.Errorf("stats: defense must be >= 0, got %d", s.Defense)
	}
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"crit_chance", s.CritChance},
		{"lifesteal_percent", s.LifestealPercent},
		{"bleed_chance", s.BleedChance},
	} {
		if f.val < 0 || f.val > 1 {
			return fmt.Errorf("stats: %s must be in [0, 1], got %f", f.name, f.val)
		}
	}
	return nil
}

// Clan is a team affiliation granting passive stat bonuses.
type Clan struct {
	ID   string
	Name string
	// AttackSpeedBonus multiplies speed by (1 + bonus).
	AttackSpeedBonus float64
	// LifestealBonus is added to LifestealPercent.
	LifestealBonus float64
	// BleedChanceBonus is added to BleedChance.
	BleedChanceBonus float64
}

// ApplyClanBonuses returns a derived copy of s with c's bonuses applied:
// speed is multiplied by (1 + AttackSpeedBonus) and rounded; lifesteal and
// bleed chance are increased additively, clamped to 1. A nil clan is the
// identity transform.
//
// Postcondition: s is unchanged; ApplyClanBonuses(s, nil) == s.
func ApplyClanBonuses(s Stats, c *Clan) Stats {
	if c == nil {
		return s
	}
	out := s
	out.Speed = int(math.Round(float64(s.Speed) * (1 + c.AttackSpeedBonus)))
	out.LifestealPercent = clampUnit(s.LifestealPercent + c.LifestealBonus)
	out.BleedChance = clampUnit(s.BleedChance + c.BleedChanceBonus)
	return out
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// Thrall is one combat-ready creature: identity, level, stats, granted
// abilities, and optional clan.
type Thrall struct {
	ID        string
	OwnerID   string
	Name      string
	Level     int
	Stats     Stats
	Abilities []ability.Def
	Clan      *Clan
}

// EffectiveStats returns the thrall's stats with clan bonuses applied.
func (t *Thrall) EffectiveStats() Stats {
	return ApplyClanBonuses(t.Stats, t.Clan)
}

// Provider supplies thrall data for a given id. Implementations live outside
// the combat core (persistence, caches); the core only reads.
type Provider interface {
	// Thrall returns the thrall with the given id, or ErrThrallNotFound.
	Thrall(ctx context.Context, id string) (*Thrall, error)
}
