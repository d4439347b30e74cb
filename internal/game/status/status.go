// Package status tracks timed status effects attached to one combatant during
// a battle. Effects are kept in insertion order: the engine iterates them in
// exactly the order they were applied, so the set is slice-backed rather than
// map-backed (map iteration order would break replay determinism).
package status

import "github.com/duskhollow/arena/internal/game/ability"

// Effect is one applied status effect. It is owned exclusively by the entity
// it afflicts; its lifetime is bounded by Remaining.
type Effect struct {
	// ID uniquely identifies this effect instance within the battle.
	ID string
	// Kind is the ability kind that produced the effect (BLEED, STUN, RAGE).
	Kind ability.Kind
	// SourceID is the entity that applied the effect.
	SourceID string
	// TargetID is the afflicted entity.
	TargetID string
	// Magnitude is the per-tick damage (BLEED) or damage bonus fraction (RAGE).
	Magnitude float64
	// Remaining is the number of ticks left; the effect is removed at <= 0.
	Remaining int
	// TicksApplied counts how many ticks the effect has been processed.
	TicksApplied int
}

// Set is the insertion-ordered collection of effects on one combatant.
// It is not safe for concurrent use; a battle is single-threaded.
type Set struct {
	effects []*Effect
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{}
}

// Apply appends e to the set.
//
// Precondition: e must not be nil and e.Remaining must be > 0.
// Postcondition: e is the last element returned by All.
func (s *Set) Apply(e *Effect) {
	s.effects = append(s.effects, e)
}

// All returns the active effects in insertion order. The slice is a snapshot;
// the pointed-to Effects are live.
func (s *Set) All() []*Effect {
	out := make([]*Effect, len(s.effects))
	copy(out, s.effects)
	return out
}

// Remove deletes the effect with the given instance ID, preserving the order
// of the remaining effects. Unknown IDs are a no-op.
func (s *Set) Remove(id string) {
	for i, e := range s.effects {
		if e.ID == id {
			s.effects = append(s.effects[:i], s.effects[i+1:]...)
			return
		}
	}
}

// Has reports whether any active effect has the given kind.
func (s *Set) Has(k ability.Kind) bool {
	for _, e := range s.effects {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Len returns the number of active effects.
func (s *Set) Len() int {
	return len(s.effects)
}
