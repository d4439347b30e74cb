package battle

import (
	"fmt"
	"math"
	"sort"

	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/rng"
	"github.com/duskhollow/arena/internal/game/status"
)

// apPerTurn is the action-point threshold that grants a turn.
const apPerTurn = 100

// lowHealthRatio is the health fraction at or below which ON_LOW_HEALTH
// abilities are evaluated.
const lowHealthRatio = 0.3

// Resolve runs a battle to completion and returns its Outcome.
//
// The per-tick order is a correctness contract, not an implementation detail:
//  1. status processing (bleed damage, duration decrement, expiry)
//  2. action-point accrual (speed*10; stunned entities accrue nothing)
//  3. ON_LOW_HEALTH ability evaluation (health ratio <= 0.3, self-targeted)
//  4. acting order: alive, AP >= 100, not stunned; stable sort by AP desc
//  5. one attack per actor (see attack below)
//  6. elimination check; ceiling reached with both sides alive is a draw
//
// Every random value is drawn from one mulberry32 stream in the order the
// steps above encounter it; running twice with the same Config yields an
// identical event sequence.
//
// Precondition: cfg must pass Validate.
// Postcondition: Returns a non-nil Outcome or a validation error; never both.
func Resolve(cfg Config) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		src:     rng.NewStream(cfg.Seed),
		catalog: cfg.Catalog,
		ceiling: cfg.TickCeiling,
	}
	if r.catalog == nil {
		r.catalog = ability.Builtin()
	}
	if r.ceiling == 0 {
		r.ceiling = DefaultTickCeiling
	}
	for _, ec := range cfg.Entities {
		r.entities = append(r.entities, newEntity(ec))
	}

	r.emitBattleStart()
	for r.tick = 1; r.tick <= r.ceiling; r.tick++ {
		r.emit(Event{Tick: r.tick, Type: EventTick})
		r.processStatuses()
		r.accrueActionPoints()
		r.evaluateLowHealthTriggers()
		r.actingPass()
		if !r.teamAlive(TeamPlayer) || !r.teamAlive(TeamEnemy) {
			break
		}
	}
	if r.tick > r.ceiling {
		r.tick = r.ceiling
	}

	result := r.deriveResult()
	r.emit(Event{
		Tick: r.tick,
		Type: EventBattleEnd,
		Data: map[string]any{
			"winner":        string(result.Winner),
			"totalTicks":    result.TotalTicks,
			"enemiesKilled": result.EnemiesKilled,
		},
	})

	return &Outcome{Result: result, Events: r.events, Seed: cfg.Seed}, nil
}

// run is the mutable state of one battle resolution. It lives for exactly one
// Resolve call.
type run struct {
	src         rng.Source
	catalog     *ability.Registry
	entities    []*Entity
	events      []Event
	tick        int
	ceiling     int
	kills       int
	damageDealt int
	damageTaken int
	effectSeq   int
}

func (r *run) emit(e Event) {
	r.events = append(r.events, e)
}

func (r *run) emitBattleStart() {
	ids := make([]any, 0, len(r.entities))
	for _, e := range r.entities {
		ids = append(ids, map[string]any{
			"id":   e.ID,
			"name": e.Name,
			"team": e.Team.String(),
			"hp":   e.CurrentHealth,
		})
	}
	r.emit(Event{Tick: 0, Type: EventBattleStart, Data: map[string]any{"participants": ids}})
}

// nextEffectID returns a deterministic effect instance id. Effect ids appear
// in the event log, so they must be reproducible; uuids are not an option
// here.
func (r *run) nextEffectID() string {
	r.effectSeq++
	return fmt.Sprintf("fx-%d", r.effectSeq)
}

// recordDamage attributes damage applied to a target for the result totals.
func (r *run) recordDamage(target *Entity, amount int) {
	if target.Team == TeamEnemy {
		r.damageDealt += amount
	} else {
		r.damageTaken += amount
	}
}

// markDeath flags the entity dead and emits DEATH. Idempotent per entity.
func (r *run) markDeath(e *Entity, cause string) {
	if !e.Alive {
		return
	}
	e.Alive = false
	r.emit(Event{Tick: r.tick, Type: EventDeath, TargetID: e.ID, Data: map[string]any{"cause": cause}})
	if e.Team == TeamEnemy {
		r.kills++
	}
}

// processStatuses applies bleed damage and advances effect durations for
// every entity that was alive at the start of the tick, in entity order and
// effect-insertion order. An entity killed by an early bleed takes no further
// bleed damage this tick, but its remaining effects still decrement and
// expire.
func (r *run) processStatuses() {
	for _, e := range r.entities {
		if !e.Alive {
			continue
		}
		for _, fx := range e.Effects.All() {
			if fx.Kind == ability.KindBleed && fx.Remaining > 0 && e.Alive {
				dmg := int(math.Round(fx.Magnitude))
				e.ApplyDamage(dmg)
				r.recordDamage(e, dmg)
				r.emit(Event{
					Tick:     r.tick,
					Type:     EventStatusTick,
					ActorID:  fx.SourceID,
					TargetID: e.ID,
					Value:    float64(dmg),
					Data:     map[string]any{"effectId": fx.ID, "remainingHp": e.CurrentHealth},
				})
				if e.CurrentHealth <= 0 {
					r.markDeath(e, "BLEED")
				}
			}
			fx.TicksApplied++
			fx.Remaining--
			if fx.Remaining <= 0 {
				e.Effects.Remove(fx.ID)
				r.emit(Event{
					Tick:     r.tick,
					Type:     EventStatusExpired,
					TargetID: e.ID,
					Data:     map[string]any{"effectId": fx.ID, "kind": fx.Kind.String()},
				})
			}
		}
	}
}

// accrueActionPoints grants speed*10 AP to every living, non-stunned entity.
func (r *run) accrueActionPoints() {
	for _, e := range r.entities {
		if e.Alive && !e.Stunned() {
			e.ActionPoints += e.Stats.Speed * 10
		}
	}
}

// evaluateLowHealthTriggers fires ON_LOW_HEALTH abilities, self-targeted, for
// every living entity at or below the low-health ratio.
func (r *run) evaluateLowHealthTriggers() {
	for _, e := range r.entities {
		if e.Alive && e.HealthRatio() <= lowHealthRatio {
			r.fireTriggers(e, ability.TriggerOnLowHealth, e)
		}
	}
}

// actingPass selects this tick's actors and resolves one attack each.
//
// The sort is stable by construction: entities with equal action points keep
// their configuration order. An actor that dies earlier in the same pass
// forfeits its turn.
func (r *run) actingPass() {
	var actors []*Entity
	for _, e := range r.entities {
		if e.Alive && e.ActionPoints >= apPerTurn && !e.Stunned() {
			actors = append(actors, e)
		}
	}
	sort.SliceStable(actors, func(i, j int) bool {
		return actors[i].ActionPoints > actors[j].ActionPoints
	})
	for _, actor := range actors {
		if !actor.Alive {
			continue
		}
		r.resolveAttack(actor)
	}
}

// selectTarget returns the first living opposing entity that is not stunned,
// falling back to the first living opposing entity regardless of stun when
// every candidate is stunned. The fallback is deliberate: an all-stunned
// opposition still gets attacked.
func (r *run) selectTarget(actor *Entity) *Entity {
	var fallback *Entity
	for _, e := range r.entities {
		if e.Team == actor.Team || !e.Alive {
			continue
		}
		if !e.Stunned() {
			return e
		}
		if fallback == nil {
			fallback = e
		}
	}
	return fallback
}

// resolveAttack runs one actor's full attack sequence:
// target selection, AP spend, ON_ATTACK triggers, damage (variance then crit
// draw), ATTACK/CRITICAL/DAMAGE events, player-team lifesteal, the defender's
// ON_HIT triggers, the attacker's passive bleed roll, and death handling with
// ON_KILL triggers.
func (r *run) resolveAttack(actor *Entity) {
	target := r.selectTarget(actor)
	if target == nil {
		return
	}
	actor.ActionPoints -= apPerTurn

	r.fireTriggers(actor, ability.TriggerOnAttack, target)

	dmg, crit := ComputeDamage(actor, target, r.src)
	r.emit(Event{Tick: r.tick, Type: EventAttack, ActorID: actor.ID, TargetID: target.ID})
	if crit {
		r.emit(Event{Tick: r.tick, Type: EventCritical, ActorID: actor.ID, TargetID: target.ID, Value: float64(dmg)})
	}
	target.ApplyDamage(dmg)
	r.recordDamage(target, dmg)
	r.emit(Event{
		Tick:     r.tick,
		Type:     EventDamage,
		ActorID:  actor.ID,
		TargetID: target.ID,
		Value:    float64(dmg),
		Data:     map[string]any{"remainingHp": target.CurrentHealth, "crit": crit},
	})

	if actor.Team == TeamPlayer {
		heal := int(math.Round(float64(dmg) * lifestealPercent(actor)))
		if heal > 0 {
			actor.Heal(heal)
			r.emit(Event{
				Tick:    r.tick,
				Type:    EventHeal,
				ActorID: actor.ID,
				Value:   float64(heal),
				Data:    map[string]any{"remainingHp": actor.CurrentHealth},
			})
		}
	}

	r.fireTriggers(target, ability.TriggerOnHit, actor)

	if actor.Stats.BleedChance > 0 && r.src.Float64() < actor.Stats.BleedChance {
		r.applyBleed(actor, target, r.syntheticBleed())
	}

	if target.CurrentHealth <= 0 {
		r.markDeath(target, "ATTACK")
		r.fireTriggers(actor, ability.TriggerOnKill, target)
	}
}

// syntheticBleed returns the catalog tuning for stat-derived bleeds. When the
// catalog has no BLEED entry a conservative fixed tuning applies.
func (r *run) syntheticBleed() ability.Def {
	if def, ok := r.catalog.FirstOfKind(ability.KindBleed); ok {
		return def
	}
	return ability.Def{ID: "bleed", Kind: ability.KindBleed, Magnitude: 2, Duration: 3}
}

// fireTriggers evaluates the actor's abilities with the given trigger, in
// grant order. An ability fires only if its cooldown has elapsed AND a drawn
// float is below its chance; the cooldown is consumed the moment both checks
// pass, before effect application. LIFESTEAL abilities are passive and never
// roll (no draw is consumed); ACTIVE-trigger abilities have no automatic
// activation path.
func (r *run) fireTriggers(actor *Entity, trigger ability.Trigger, target *Entity) {
	for _, def := range actor.Abilities {
		if def.Trigger != trigger || def.Kind == ability.KindLifesteal {
			continue
		}
		if last, used := actor.lastFired[def.ID]; used && r.tick-last < def.Cooldown {
			continue
		}
		if r.src.Float64() >= def.Chance {
			continue
		}
		actor.lastFired[def.ID] = r.tick

		r.emit(Event{
			Tick:     r.tick,
			Type:     EventAbilityTrigger,
			ActorID:  actor.ID,
			TargetID: target.ID,
			Data:     map[string]any{"abilityId": def.ID, "kind": def.Kind.String()},
		})

		switch def.Kind {
		case ability.KindBleed:
			r.applyBleed(actor, target, def)
		case ability.KindStun:
			r.applyEffect(actor, target, def)
		case ability.KindRage:
			r.applyEffect(actor, actor, def)
		case ability.KindHowl:
			// Broadcast only. No per-entity effect is modeled; downstream
			// systems may interpret the payload.
			r.emit(Event{
				Tick:    r.tick,
				Type:    EventStatusApplied,
				ActorID: actor.ID,
				Data: map[string]any{
					"kind":         def.Kind.String(),
					"debuffAmount": def.DebuffAmount,
					"radius":       def.Radius,
				},
			})
		case ability.KindLifesteal:
			// unreachable; filtered above
		}
	}
}

// applyBleed attaches a bleed effect from def to target.
func (r *run) applyBleed(source, target *Entity, def ability.Def) {
	r.applyEffect(source, target, ability.Def{
		ID:        def.ID,
		Kind:      ability.KindBleed,
		Magnitude: def.Magnitude,
		Duration:  def.Duration,
	})
}

// applyEffect attaches a status effect built from def to target and emits
// STATUS_APPLIED. Dead targets are skipped.
func (r *run) applyEffect(source, target *Entity, def ability.Def) {
	if !target.Alive || def.Duration <= 0 {
		return
	}
	fx := &status.Effect{
		ID:        r.nextEffectID(),
		Kind:      def.Kind,
		SourceID:  source.ID,
		TargetID:  target.ID,
		Magnitude: def.Magnitude,
		Remaining: def.Duration,
	}
	target.Effects.Apply(fx)
	r.emit(Event{
		Tick:     r.tick,
		Type:     EventStatusApplied,
		ActorID:  source.ID,
		TargetID: target.ID,
		Value:    def.Magnitude,
		Data:     map[string]any{"effectId": fx.ID, "kind": def.Kind.String(), "duration": def.Duration},
	})
}

func (r *run) teamAlive(t Team) bool {
	for _, e := range r.entities {
		if e.Team == t && e.Alive {
			return true
		}
	}
	return false
}

func (r *run) deriveResult() Result {
	playerAlive := r.teamAlive(TeamPlayer)
	enemyAlive := r.teamAlive(TeamEnemy)

	winner := WinnerDraw
	switch {
	case playerAlive && !enemyAlive:
		winner = WinnerPlayer
	case enemyAlive && !playerAlive:
		winner = WinnerEnemy
	}

	return Result{
		Winner:         winner,
		TotalTicks:     r.tick,
		ThrallSurvived: playerAlive,
		EnemiesKilled:  r.kills,
		DamageDealt:    r.damageDealt,
		DamageTaken:    r.damageTaken,
	}
}
