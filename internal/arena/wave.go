package arena

import (
	"fmt"

	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/battle"
	"github.com/duskhollow/arena/internal/game/thrall"
)

const maxWaveEnemies = 5

// GenerateWave builds the enemy side for the given wave number. The output is
// a pure function of the wave and the catalog, so a wave battle is
// reproducible from (thrall, wave, seed) alone: enemy count grows by one
// every three waves up to five, stats scale linearly, and every fifth wave
// leads with a tougher pack leader carrying the catalog's bleed ability.
//
// Precondition: wave >= 1.
func GenerateWave(wave int, catalog *ability.Registry) []battle.EntityConfig {
	if catalog == nil {
		catalog = ability.Builtin()
	}

	count := 1 + (wave-1)/3
	if count > maxWaveEnemies {
		count = maxWaveEnemies
	}

	enemies := make([]battle.EntityConfig, 0, count)
	for i := 0; i < count; i++ {
		stats := thrall.Stats{
			MaxHealth:  70 + wave*10,
			Attack:     10 + wave*2,
			Defense:    4 + wave,
			Speed:      8 + wave/2,
			CritChance: battle.DefaultCritChance,
		}
		ec := battle.EntityConfig{
			ID:    fmt.Sprintf("enemy-%d", i+1),
			Name:  fmt.Sprintf("Hollow Spawn %d", i+1),
			Team:  battle.TeamEnemy,
			Stats: stats,
		}
		if i == 0 && wave%5 == 0 {
			ec.Name = "Hollow Packleader"
			ec.Stats.MaxHealth += ec.Stats.MaxHealth / 2
			if bleed, ok := catalog.FirstOfKind(ability.KindBleed); ok {
				ec.Abilities = []ability.Def{bleed}
			}
		}
		enemies = append(enemies, ec)
	}
	return enemies
}
