package battle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/battle"
	"github.com/duskhollow/arena/internal/game/status"
	"github.com/duskhollow/arena/internal/game/thrall"
	"pgregory.net/rapid"
)

// scriptSource replays a fixed sequence of floats, then repeats the last one.
type scriptSource struct {
	vals []float64
	i    int
}

func (s *scriptSource) Float64() float64 {
	if s.i < len(s.vals)-1 {
		v := s.vals[s.i]
		s.i++
		return v
	}
	return s.vals[len(s.vals)-1]
}

func makeEntity(id string, team battle.Team, stats thrall.Stats) *battle.Entity {
	return &battle.Entity{
		ID:            id,
		Team:          team,
		Stats:         stats,
		CurrentHealth: stats.MaxHealth,
		Alive:         true,
		Effects:       status.NewSet(),
	}
}

func TestComputeDamage_NeutralVarianceNoCrit(t *testing.T) {
	attacker := makeEntity("a", battle.TeamPlayer, thrall.Stats{MaxHealth: 100, Attack: 25, Defense: 0, Speed: 10})
	target := makeEntity("b", battle.TeamEnemy, thrall.Stats{MaxHealth: 100, Attack: 5, Defense: 10, Speed: 10})

	// variance draw 0.5 → multiplier 1.0; crit draw 0.99 → no crit
	src := &scriptSource{vals: []float64{0.5, 0.99}}
	dmg, crit := battle.ComputeDamage(attacker, target, src)
	assert.False(t, crit)
	assert.Equal(t, 20, dmg) // max(1, 25 - 10*0.5) = 20
}

func TestComputeDamage_CriticalDoubles(t *testing.T) {
	attacker := makeEntity("a", battle.TeamPlayer, thrall.Stats{MaxHealth: 100, Attack: 25, Defense: 0, Speed: 10})
	target := makeEntity("b", battle.TeamEnemy, thrall.Stats{MaxHealth: 100, Attack: 5, Defense: 10, Speed: 10})

	src := &scriptSource{vals: []float64{0.5, 0.0}}
	dmg, crit := battle.ComputeDamage(attacker, target, src)
	assert.True(t, crit)
	assert.Equal(t, 40, dmg)
}

func TestComputeDamage_RageAddsHalf(t *testing.T) {
	attacker := makeEntity("a", battle.TeamPlayer, thrall.Stats{MaxHealth: 100, Attack: 25, Defense: 0, Speed: 10})
	attacker.Effects.Apply(&status.Effect{ID: "fx-1", Kind: ability.KindRage, Magnitude: 0.5, Remaining: 3})
	target := makeEntity("b", battle.TeamEnemy, thrall.Stats{MaxHealth: 100, Attack: 5, Defense: 10, Speed: 10})

	src := &scriptSource{vals: []float64{0.5, 0.99}}
	dmg, crit := battle.ComputeDamage(attacker, target, src)
	assert.False(t, crit)
	assert.Equal(t, 30, dmg) // 20 * 1.5
}

func TestComputeDamage_FlooredAtOne(t *testing.T) {
	attacker := makeEntity("a", battle.TeamPlayer, thrall.Stats{MaxHealth: 100, Attack: 0, Defense: 0, Speed: 10})
	target := makeEntity("b", battle.TeamEnemy, thrall.Stats{MaxHealth: 100, Attack: 5, Defense: 200, Speed: 10})

	// minimum variance draw: multiplier 0.8
	src := &scriptSource{vals: []float64{0.0, 0.99}}
	dmg, _ := battle.ComputeDamage(attacker, target, src)
	assert.Equal(t, 1, dmg)
}

func TestComputeDamage_CustomCritChance(t *testing.T) {
	attacker := makeEntity("a", battle.TeamPlayer, thrall.Stats{MaxHealth: 100, Attack: 10, Speed: 10, CritChance: 0.5})
	target := makeEntity("b", battle.TeamEnemy, thrall.Stats{MaxHealth: 100, Attack: 5, Speed: 10})

	src := &scriptSource{vals: []float64{0.5, 0.49}}
	_, crit := battle.ComputeDamage(attacker, target, src)
	assert.True(t, crit)

	src = &scriptSource{vals: []float64{0.5, 0.51}}
	_, crit = battle.ComputeDamage(attacker, target, src)
	assert.False(t, crit)
}

func TestComputeDamage_Property_AlwaysAtLeastOne(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		attacker := makeEntity("a", battle.TeamPlayer, thrall.Stats{
			MaxHealth: 100,
			Attack:    rapid.IntRange(0, 100).Draw(rt, "atk"),
			Speed:     10,
		})
		target := makeEntity("b", battle.TeamEnemy, thrall.Stats{
			MaxHealth: 100,
			Attack:    5,
			Defense:   rapid.IntRange(0, 300).Draw(rt, "def"),
			Speed:     10,
		})
		src := &scriptSource{vals: []float64{
			rapid.Float64Range(0, 0.999).Draw(rt, "variance"),
			rapid.Float64Range(0, 0.999).Draw(rt, "crit"),
		}}
		dmg, _ := battle.ComputeDamage(attacker, target, src)
		assert.GreaterOrEqual(rt, dmg, 1)
	})
}
