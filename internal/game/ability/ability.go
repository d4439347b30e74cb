// Package ability defines the static ability catalog: the five ability kinds,
// their activation triggers, and the numeric tuning (chance, magnitude,
// duration, cooldown) the combat engine reads. The catalog is immutable after
// load; per-thrall ability grants are an ownership concern outside this package.
package ability

import "fmt"

// Kind is the closed set of ability kinds.
type Kind int

const (
	KindLifesteal Kind = iota
	KindBleed
	KindStun
	KindRage
	KindHowl
)

// String returns the canonical catalog label for the kind.
func (k Kind) String() string {
	switch k {
	case KindLifesteal:
		return "LIFESTEAL"
	case KindBleed:
		return "BLEED"
	case KindStun:
		return "STUN"
	case KindRage:
		return "RAGE"
	case KindHowl:
		return "HOWL"
	default:
		return "unknown"
	}
}

// ParseKind converts a catalog label into a Kind.
//
// Postcondition: Returns an error for any label outside the closed set.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "LIFESTEAL":
		return KindLifesteal, nil
	case "BLEED":
		return KindBleed, nil
	case "STUN":
		return KindStun, nil
	case "RAGE":
		return KindRage, nil
	case "HOWL":
		return KindHowl, nil
	default:
		return 0, fmt.Errorf("unknown ability kind %q", s)
	}
}

// Trigger is the closed set of activation triggers.
type Trigger int

const (
	TriggerOnAttack Trigger = iota
	TriggerOnHit
	TriggerOnKill
	TriggerOnLowHealth
	TriggerActive
)

// String returns the canonical catalog label for the trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerOnAttack:
		return "ON_ATTACK"
	case TriggerOnHit:
		return "ON_HIT"
	case TriggerOnKill:
		return "ON_KILL"
	case TriggerOnLowHealth:
		return "ON_LOW_HEALTH"
	case TriggerActive:
		return "ACTIVE"
	default:
		return "unknown"
	}
}

// ParseTrigger converts a catalog label into a Trigger.
func ParseTrigger(s string) (Trigger, error) {
	switch s {
	case "ON_ATTACK":
		return TriggerOnAttack, nil
	case "ON_HIT":
		return TriggerOnHit, nil
	case "ON_KILL":
		return TriggerOnKill, nil
	case "ON_LOW_HEALTH":
		return TriggerOnLowHealth, nil
	case "ACTIVE":
		return TriggerActive, nil
	default:
		return 0, fmt.Errorf("unknown ability trigger %q", s)
	}
}

// Def is the static definition of one ability.
//
// Durations and cooldowns are measured in ticks. LIFESTEAL defs are passive:
// the engine never rolls them, it reads Magnitude as a flat lifesteal bonus.
// HOWL defs carry DebuffAmount/Radius as broadcast payload only; no per-entity
// effect is modeled.
type Def struct {
	ID           string
	Name         string
	Kind         Kind
	Trigger      Trigger
	Chance       float64
	Magnitude    float64
	Duration     int
	Cooldown     int
	DebuffAmount float64
	Radius       float64
}

// Validate checks the definition invariants.
//
// Postcondition: Returns nil iff ID is non-empty, Chance is in [0, 1], and
// Magnitude, Duration, and Cooldown are non-negative.
func (d Def) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("ability: id must not be empty")
	}
	if d.Chance < 0 || d.Chance > 1 {
		return fmt.Errorf("ability %q: chance must be in [0, 1], got %f", d.ID, d.Chance)
	}
	if d.Magnitude < 0 {
		return fmt.Errorf("ability %q: magnitude must be >= 0, got %f", d.ID, d.Magnitude)
	}
	if d.Duration < 0 {
		return fmt.Errorf("ability %q: duration must be >= 0, got %d", d.ID, d.Duration)
	}
	if d.Cooldown < 0 {
		return fmt.Errorf("ability %q: cooldown must be >= 0, got %d", d.ID, d.Cooldown)
	}
	return nil
}
