package matchmaking

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duskhollow/arena/internal/game/rng"
	"github.com/duskhollow/arena/internal/game/thrall"
)

var (
	// ErrAlreadyQueued is returned by Join when the player already has a
	// waiting entry.
	ErrAlreadyQueued = errors.New("player already queued")
	// ErrNotQueued is returned by Leave when the player has no waiting entry.
	ErrNotQueued = errors.New("player not queued")
	// ErrMatchNotFound is returned for unknown match IDs.
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchAlreadyResolved is returned when a completed match is begun or
	// completed a second time. Callers treat it as a no-op signal, not a
	// failure.
	ErrMatchAlreadyResolved = errors.New("match already resolved")
	// ErrMatchNotPending is returned by Begin for a match that is past
	// PENDING but not yet completed.
	ErrMatchNotPending = errors.New("match not pending")
)

// EntryStatus is the lifecycle state of a queue entry.
type EntryStatus string

const (
	StatusWaiting   EntryStatus = "WAITING"
	StatusMatched   EntryStatus = "MATCHED"
	StatusCancelled EntryStatus = "CANCELLED"
	StatusExpired   EntryStatus = "EXPIRED"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "PENDING"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
	MatchCancelled  MatchStatus = "CANCELLED"
)

// Entry is a player waiting in the queue.
type Entry struct {
	PlayerID   string
	ThrallID   string
	Level      int
	Stats      thrall.Stats
	PowerScore float64
	JoinedAt   time.Time
	Status     EntryStatus
}

// Match is a pairing produced by the queue. For bot matches Player2ID is
// empty and BotThrall holds the synthesized opponent.
type Match struct {
	ID             string
	Player1ID      string
	Player1Thrall  string
	Player2ID      string
	Player2Thrall  string
	Bot            bool
	BotThrall      *thrall.Thrall
	Status         MatchStatus
	WinnerID       string
	LoserID        string
	BattleID       string
	CreatedAt      time.Time
	Player1Score   float64
	OpponentScore  float64
	OpponentThreat Threat
}

// Config carries the tunable parts of the matchmaker. Zero values fall back
// to defaults in NewMatchmaker.
type Config struct {
	// QueueTimeout is how long an entry may wait before it is expired into
	// a bot match. An entry expires once its wait is >= the timeout.
	QueueTimeout time.Duration
	// BotVariance is the +/- fraction applied to a player's stats when
	// synthesizing a bot opponent.
	BotVariance float64
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Rand supplies the bot stat variance draws.
	Rand rng.Source
}

const (
	defaultQueueTimeout = 30 * time.Second
	defaultBotVariance  = 0.15
)

// Matchmaker owns the wait queue and match table.
type Matchmaker struct {
	mu      sync.Mutex
	queue   []*Entry
	matches map[string]*Match

	timeout  time.Duration
	variance float64
	now      func() time.Time
	rand     rng.Source
	logger   *zap.Logger
}

// NewMatchmaker builds a matchmaker with the given configuration.
//
// Precondition: logger is not nil.
func NewMatchmaker(cfg Config, logger *zap.Logger) *Matchmaker {
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = defaultQueueTimeout
	}
	if cfg.BotVariance <= 0 {
		cfg.BotVariance = defaultBotVariance
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rng.NewStream(rng.NewSeed())
	}
	return &Matchmaker{
		matches:  make(map[string]*Match),
		timeout:  cfg.QueueTimeout,
		variance: cfg.BotVariance,
		now:      cfg.Now,
		rand:     cfg.Rand,
		logger:   logger,
	}
}

// Join enters a player into the queue. If a compatible opponent is already
// waiting the two are paired immediately and the new PENDING match is
// returned; otherwise the returned match is nil and the entry waits.
// Pairing prefers the waiting entry whose power score is closest to the
// joiner's; ties keep the entry that joined first.
//
// Postcondition: on success the player is either WAITING in the queue or
// MATCHED, never both.
func (m *Matchmaker) Join(playerID, thrallID string, level int, stats thrall.Stats) (Entry, *Match, error) {
	if err := stats.Validate(); err != nil {
		return Entry{}, nil, fmt.Errorf("joining queue: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.queue {
		if e.PlayerID == playerID {
			return Entry{}, nil, ErrAlreadyQueued
		}
	}

	entry := &Entry{
		PlayerID:   playerID,
		ThrallID:   thrallID,
		Level:      level,
		Stats:      stats,
		PowerScore: PowerScore(stats),
		JoinedAt:   m.now(),
		Status:     StatusWaiting,
	}

	opponent := m.closestCandidate(entry)
	if opponent == nil {
		m.queue = append(m.queue, entry)
		m.logger.Debug("player queued",
			zap.String("playerId", playerID),
			zap.Float64("powerScore", entry.PowerScore),
			zap.Int("queueDepth", len(m.queue)))
		return *entry, nil, nil
	}

	entry.Status = StatusMatched
	opponent.Status = StatusMatched
	m.removeLocked(opponent.PlayerID)

	match := &Match{
		ID:             uuid.NewString(),
		Player1ID:      opponent.PlayerID,
		Player1Thrall:  opponent.ThrallID,
		Player2ID:      entry.PlayerID,
		Player2Thrall:  entry.ThrallID,
		Status:         MatchPending,
		CreatedAt:      m.now(),
		Player1Score:   opponent.PowerScore,
		OpponentScore:  entry.PowerScore,
		OpponentThreat: ThreatLevel(opponent.PowerScore, entry.PowerScore),
	}
	m.matches[match.ID] = match
	m.logger.Info("match created",
		zap.String("matchId", match.ID),
		zap.String("player1", match.Player1ID),
		zap.String("player2", match.Player2ID))
	matchCopy := *match
	return *entry, &matchCopy, nil
}

// closestCandidate returns the waiting entry in range with the power score
// nearest to e's, or nil. Iteration follows join order so equal distances
// resolve to the earliest joiner. Caller holds the lock.
func (m *Matchmaker) closestCandidate(e *Entry) *Entry {
	var best *Entry
	var bestDist float64
	for _, cand := range m.queue {
		if cand.Status != StatusWaiting || cand.PlayerID == e.PlayerID {
			continue
		}
		if !IsWithinRange(e.PowerScore, cand.PowerScore) {
			continue
		}
		dist := math.Abs(cand.PowerScore - e.PowerScore)
		if best == nil || dist < bestDist {
			best = cand
			bestDist = dist
		}
	}
	return best
}

// Leave withdraws a waiting player from the queue.
func (m *Matchmaker) Leave(playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.queue {
		if e.PlayerID == playerID {
			e.Status = StatusCancelled
			m.removeLocked(playerID)
			m.logger.Debug("player left queue", zap.String("playerId", playerID))
			return nil
		}
	}
	return ErrNotQueued
}

// removeLocked drops the entry for playerID from the queue slice, preserving
// the order of the rest. Caller holds the lock.
func (m *Matchmaker) removeLocked(playerID string) {
	for i, e := range m.queue {
		if e.PlayerID == playerID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// Waiting returns a snapshot of the current queue in join order.
func (m *Matchmaker) Waiting() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, len(m.queue))
	for i, e := range m.queue {
		out[i] = *e
	}
	return out
}

// ExpireStale converts every entry that has waited at least the queue
// timeout into a PENDING bot match and returns the new matches. An entry at
// exactly the timeout expires; one millisecond short does not.
func (m *Matchmaker) ExpireStale() []Match {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var created []Match
	remaining := m.queue[:0]
	for _, e := range m.queue {
		if now.Sub(e.JoinedAt) < m.timeout {
			remaining = append(remaining, e)
			continue
		}
		e.Status = StatusExpired
		bot := m.synthesizeBot(e)
		match := &Match{
			ID:             uuid.NewString(),
			Player1ID:      e.PlayerID,
			Player1Thrall:  e.ThrallID,
			Bot:            true,
			BotThrall:      bot,
			Status:         MatchPending,
			CreatedAt:      now,
			Player1Score:   e.PowerScore,
			OpponentScore:  PowerScore(bot.Stats),
			OpponentThreat: ThreatLevel(e.PowerScore, PowerScore(bot.Stats)),
		}
		m.matches[match.ID] = match
		created = append(created, *match)
		m.logger.Info("queue entry expired into bot match",
			zap.String("matchId", match.ID),
			zap.String("playerId", e.PlayerID),
			zap.Duration("waited", now.Sub(e.JoinedAt)))
	}
	m.queue = remaining
	return created
}

// synthesizeBot builds a bot opponent from the expired entry's stats, each
// core stat scaled by an independent draw in [1-variance, 1+variance] and
// kept at 1 or above. Caller holds the lock.
func (m *Matchmaker) synthesizeBot(e *Entry) *thrall.Thrall {
	scale := func(v int) int {
		factor := 1 + (m.rand.Float64()*2-1)*m.variance
		scaled := int(math.Round(float64(v) * factor))
		if scaled < 1 {
			scaled = 1
		}
		return scaled
	}
	stats := thrall.Stats{
		MaxHealth:        scale(e.Stats.MaxHealth),
		Attack:           scale(e.Stats.Attack),
		Defense:          scale(e.Stats.Defense),
		Speed:            scale(e.Stats.Speed),
		CritChance:       e.Stats.CritChance,
		LifestealPercent: e.Stats.LifestealPercent,
		BleedChance:      e.Stats.BleedChance,
	}
	return &thrall.Thrall{
		ID:    "bot-" + uuid.NewString(),
		Name:  "Hollow Shade",
		Level: e.Level,
		Stats: stats,
	}
}

// Match returns a copy of the match with the given ID.
func (m *Matchmaker) Match(id string) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	return *match, nil
}

// Begin transitions a PENDING match to IN_PROGRESS and returns it. A match
// that already completed yields ErrMatchAlreadyResolved so a duplicate
// resolution request can be answered without rerunning anything.
func (m *Matchmaker) Begin(id string) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	switch match.Status {
	case MatchPending:
		match.Status = MatchInProgress
		return *match, nil
	case MatchCompleted:
		return *match, ErrMatchAlreadyResolved
	default:
		return *match, fmt.Errorf("%w: status %s", ErrMatchNotPending, match.Status)
	}
}

// Cancel abandons a match that has not completed, transitioning it to
// CANCELLED. Resolution that fails partway through uses this so the match is
// not stranded IN_PROGRESS. Cancelling an already-cancelled match is a no-op;
// a completed match yields ErrMatchAlreadyResolved.
func (m *Matchmaker) Cancel(id string) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	switch match.Status {
	case MatchCompleted:
		return *match, ErrMatchAlreadyResolved
	case MatchCancelled:
		return *match, nil
	}
	match.Status = MatchCancelled
	m.logger.Info("match cancelled", zap.String("matchId", id))
	return *match, nil
}

// Complete records the outcome of an IN_PROGRESS match. Completing an
// already-completed match returns the stored result with
// ErrMatchAlreadyResolved and changes nothing: resolution is idempotent.
// A drawn battle completes with empty winner and loser IDs.
func (m *Matchmaker) Complete(id, winnerID, loserID, battleID string) (Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	if match.Status == MatchCompleted {
		return *match, ErrMatchAlreadyResolved
	}
	match.Status = MatchCompleted
	match.WinnerID = winnerID
	match.LoserID = loserID
	match.BattleID = battleID
	m.logger.Info("match completed",
		zap.String("matchId", id),
		zap.String("winnerId", winnerID),
		zap.String("battleId", battleID))
	return *match, nil
}
