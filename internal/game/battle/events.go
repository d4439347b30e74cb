package battle

// EventType labels one entry in a battle's append-only event log.
type EventType string

const (
	EventBattleStart    EventType = "BATTLE_START"
	EventTick           EventType = "TICK"
	EventAttack         EventType = "ATTACK"
	EventDamage         EventType = "DAMAGE"
	EventDeath          EventType = "DEATH"
	EventBattleEnd      EventType = "BATTLE_END"
	EventAbilityTrigger EventType = "ABILITY_TRIGGER"
	EventStatusApplied  EventType = "STATUS_APPLIED"
	EventStatusTick     EventType = "STATUS_TICK"
	EventStatusExpired  EventType = "STATUS_EXPIRED"
	EventHeal           EventType = "HEAL"
	EventCritical       EventType = "CRITICAL"
)

// Event is one entry in the battle log. The total ordering of events is the
// authoritative replay record: re-running with the same seed and entity
// configuration reproduces the identical sequence.
type Event struct {
	Tick     int            `json:"tick"`
	Type     EventType      `json:"type"`
	ActorID  string         `json:"actorId,omitempty"`
	TargetID string         `json:"targetId,omitempty"`
	Value    float64        `json:"value,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
