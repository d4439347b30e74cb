package battle

import (
	"math"

	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/rng"
)

// rageBonus is the fixed outgoing-damage fraction a RAGE status adds.
const rageBonus = 0.5

// varianceSpread is the half-width of the multiplicative damage variance.
const varianceSpread = 0.2

// critMultiplier doubles damage on a critical hit.
const critMultiplier = 2.0

// ComputeDamage resolves one attack's damage. It draws exactly two values
// from src, in this order: the variance multiplier, then the critical check.
// That draw order is part of the replay contract.
//
// Base damage is max(1, attack - defense*0.5); variance is ±20%; a critical
// (chance CritChance, default 0.05) doubles it; a RAGE status on the attacker
// adds +50% multiplicatively. The result is rounded and floored at 1.
//
// Precondition: attacker, target, and src must be non-nil.
// Postcondition: damage >= 1.
func ComputeDamage(attacker, target *Entity, src rng.Source) (damage int, crit bool) {
	base := float64(attacker.Stats.Attack) - float64(target.Stats.Defense)*0.5
	if base < 1 {
		base = 1
	}

	variance := 1 + (src.Float64()*2-1)*varianceSpread

	critChance := attacker.Stats.CritChance
	if critChance == 0 {
		critChance = DefaultCritChance
	}
	mult := 1.0
	if src.Float64() < critChance {
		crit = true
		mult = critMultiplier
	}

	rage := 0.0
	if attacker.Effects.Has(ability.KindRage) {
		rage = rageBonus
	}

	damage = int(math.Round(base * variance * mult * (1 + rage)))
	if damage < 1 {
		damage = 1
	}
	return damage, crit
}

// lifestealPercent returns the attacker's total lifesteal fraction: the
// stat-derived percent plus the catalog magnitude of every LIFESTEAL ability
// the attacker owns.
func lifestealPercent(attacker *Entity) float64 {
	total := attacker.Stats.LifestealPercent
	for _, def := range attacker.Abilities {
		if def.Kind == ability.KindLifesteal {
			total += def.Magnitude
		}
	}
	return total
}
