// Package battle implements the deterministic combat resolution engine. One
// Resolve call runs a full encounter synchronously from start to end; the
// outcome is a pure function of the entity configuration and the seed.
package battle

import (
	"errors"
	"fmt"

	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/status"
	"github.com/duskhollow/arena/internal/game/thrall"
)

// ErrInvalidConfig is returned when a battle configuration fails validation.
// Invalid input is rejected before the engine runs; nothing is partially
// simulated.
var ErrInvalidConfig = errors.New("invalid battle config")

// DefaultTickCeiling bounds the tick loop to guarantee termination. Reaching
// the ceiling with both sides alive is a draw.
const DefaultTickCeiling = 1000

// DefaultCritChance applies when an entity's stats leave CritChance at zero.
const DefaultCritChance = 0.05

// Team assigns an entity to one side of the encounter.
type Team int

const (
	TeamPlayer Team = iota
	TeamEnemy
)

// String returns the team label used in events and results.
func (t Team) String() string {
	if t == TeamPlayer {
		return "player"
	}
	return "enemy"
}

// Winner identifies the side that won a resolved battle.
type Winner string

const (
	WinnerPlayer Winner = "player"
	WinnerEnemy  Winner = "enemy"
	WinnerDraw   Winner = "draw"
)

// EntityConfig describes one combatant before the battle starts.
type EntityConfig struct {
	ID        string
	Name      string
	Team      Team
	Stats     thrall.Stats
	Abilities []ability.Def
}

// Config is the complete input to Resolve. The outcome is fully determined by
// this value: no wall clock, no external I/O, no other randomness.
type Config struct {
	// Seed in [0, 2^31-1) seeds the single random stream shared by the whole
	// battle.
	Seed int64
	// Entities in declaration order. Order matters: it is the tie-break order
	// for equal action points and the scan order for target selection.
	Entities []EntityConfig
	// TickCeiling overrides DefaultTickCeiling when > 0.
	TickCeiling int
	// Catalog supplies static ability definitions (synthetic bleed tuning).
	// Nil means the builtin catalog.
	Catalog *ability.Registry
}

// Validate rejects malformed configurations.
//
// Postcondition: Returns nil iff the seed is in range, every entity has a
// unique non-empty ID and valid stats and abilities, and both teams have at
// least one member.
func (c Config) Validate() error {
	if c.Seed < 0 || c.Seed >= 1<<31-1 {
		return fmt.Errorf("%w: seed must be in [0, 2^31-1), got %d", ErrInvalidConfig, c.Seed)
	}
	if c.TickCeiling < 0 {
		return fmt.Errorf("%w: tick ceiling must be >= 0, got %d", ErrInvalidConfig, c.TickCeiling)
	}
	seen := make(map[string]bool, len(c.Entities))
	var players, enemies int
	for i, ec := range c.Entities {
		if ec.ID == "" {
			return fmt.Errorf("%w: entity[%d] must have a non-empty id", ErrInvalidConfig, i)
		}
		if seen[ec.ID] {
			return fmt.Errorf("%w: duplicate entity id %q", ErrInvalidConfig, ec.ID)
		}
		seen[ec.ID] = true
		if err := ec.Stats.Validate(); err != nil {
			return fmt.Errorf("%w: entity %q: %v", ErrInvalidConfig, ec.ID, err)
		}
		for _, def := range ec.Abilities {
			if err := def.Validate(); err != nil {
				return fmt.Errorf("%w: entity %q: %v", ErrInvalidConfig, ec.ID, err)
			}
		}
		switch ec.Team {
		case TeamPlayer:
			players++
		case TeamEnemy:
			enemies++
		default:
			return fmt.Errorf("%w: entity %q has unknown team %d", ErrInvalidConfig, ec.ID, ec.Team)
		}
	}
	if players == 0 || enemies == 0 {
		return fmt.Errorf("%w: both teams need at least one entity (player=%d enemy=%d)",
			ErrInvalidConfig, players, enemies)
	}
	return nil
}

// Entity is the live state of one combatant. Created once per battle from an
// EntityConfig and destroyed with it; never reused across battles.
type Entity struct {
	ID            string
	Name          string
	Team          Team
	Stats         thrall.Stats
	CurrentHealth int
	ActionPoints  int
	Alive         bool
	Abilities     []ability.Def
	Effects       *status.Set

	// lastFired maps ability id to the tick it last fired, for cooldowns.
	lastFired map[string]int
}

func newEntity(ec EntityConfig) *Entity {
	abilities := make([]ability.Def, len(ec.Abilities))
	copy(abilities, ec.Abilities)
	return &Entity{
		ID:            ec.ID,
		Name:          ec.Name,
		Team:          ec.Team,
		Stats:         ec.Stats,
		CurrentHealth: ec.Stats.MaxHealth,
		Alive:         true,
		Abilities:     abilities,
		Effects:       status.NewSet(),
		lastFired:     make(map[string]int),
	}
}

// Stunned reports whether a stun effect is active on the entity.
func (e *Entity) Stunned() bool {
	return e.Effects.Has(ability.KindStun)
}

// HealthRatio returns CurrentHealth / MaxHealth.
func (e *Entity) HealthRatio() float64 {
	return float64(e.CurrentHealth) / float64(e.Stats.MaxHealth)
}

// ApplyDamage reduces CurrentHealth by amount, flooring at zero.
//
// Precondition: amount >= 0.
// Postcondition: CurrentHealth >= 0.
func (e *Entity) ApplyDamage(amount int) {
	e.CurrentHealth -= amount
	if e.CurrentHealth < 0 {
		e.CurrentHealth = 0
	}
}

// Heal raises CurrentHealth by amount, clamped to MaxHealth.
//
// Precondition: amount >= 0.
func (e *Entity) Heal(amount int) {
	e.CurrentHealth += amount
	if e.CurrentHealth > e.Stats.MaxHealth {
		e.CurrentHealth = e.Stats.MaxHealth
	}
}

// Result summarises a finished battle, derived once from terminal entity
// states.
type Result struct {
	Winner         Winner `json:"winner"`
	TotalTicks     int    `json:"totalTicks"`
	ThrallSurvived bool   `json:"thrallSurvived"`
	EnemiesKilled  int    `json:"enemiesKilled"`
	DamageDealt    int    `json:"damageDealt"`
	DamageTaken    int    `json:"damageTaken"`
}

// Outcome is the only externally visible simulation product: the result, the
// full event log, and the seed that reproduces both.
type Outcome struct {
	Result Result  `json:"result"`
	Events []Event `json:"events"`
	Seed   int64   `json:"seed"`
}
