package matchmaking_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/duskhollow/arena/internal/game/matchmaking"
	"github.com/duskhollow/arena/internal/game/rng"
	"github.com/duskhollow/arena/internal/game/thrall"
)

// scriptSource replays a fixed sequence of draws, repeating the final value.
type scriptSource struct {
	values []float64
	next   int
}

func (s *scriptSource) Float64() float64 {
	if s.next >= len(s.values) {
		return s.values[len(s.values)-1]
	}
	v := s.values[s.next]
	s.next++
	return v
}

// fakeClock is a settable clock for driving queue expiry.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

func statsWithScore(score int) thrall.Stats {
	// Attack and defense fixed, health makes up the rest:
	// score = health + 20*2 + 10*1.5 = health + 55.
	return thrall.Stats{
		MaxHealth: score - 55,
		Attack:    20,
		Defense:   10,
		Speed:     10,
	}
}

func newTestMatchmaker(t *testing.T, clock *fakeClock) *matchmaking.Matchmaker {
	t.Helper()
	return matchmaking.NewMatchmaker(matchmaking.Config{
		QueueTimeout: 30 * time.Second,
		BotVariance:  0.15,
		Now:          clock.Now,
		Rand:         rng.NewStream(7),
	}, zap.NewNop())
}

func TestPowerScore(t *testing.T) {
	tests := []struct {
		name  string
		stats thrall.Stats
		want  float64
	}{
		{
			name:  "weighted sum",
			stats: thrall.Stats{MaxHealth: 100, Attack: 50, Defense: 10},
			want:  215,
		},
		{
			name:  "health only",
			stats: thrall.Stats{MaxHealth: 80},
			want:  80,
		},
		{
			name:  "defense carries half again its value",
			stats: thrall.Stats{MaxHealth: 0, Attack: 0, Defense: 10},
			want:  15,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchmaking.PowerScore(tc.stats))
		})
	}
}

func TestIsWithinRange(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want bool
	}{
		{name: "equal scores", a: 200, b: 200, want: true},
		{name: "inside band", a: 200, b: 239, want: true},
		{name: "exactly at band edge", a: 200, b: 240, want: true},
		{name: "just past band edge", a: 200, b: 241, want: false},
		{name: "band measured against lower score", a: 241, b: 200, want: false},
		{name: "small scores", a: 10, b: 12, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchmaking.IsWithinRange(tc.a, tc.b))
		})
	}
}

func TestIsWithinRangeIsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(1, 10000).Draw(t, "a")
		b := rapid.Float64Range(1, 10000).Draw(t, "b")
		assert.Equal(t, matchmaking.IsWithinRange(a, b), matchmaking.IsWithinRange(b, a))
	})
}

func TestThreatLevel(t *testing.T) {
	tests := []struct {
		name     string
		own, opp float64
		want     matchmaking.Threat
	}{
		{name: "much weaker opponent", own: 200, opp: 100, want: matchmaking.ThreatLow},
		{name: "just below moderate band", own: 200, opp: 159, want: matchmaking.ThreatLow},
		{name: "bottom of moderate band", own: 200, opp: 160, want: matchmaking.ThreatModerate},
		{name: "equal strength", own: 200, opp: 200, want: matchmaking.ThreatModerate},
		{name: "top of moderate band", own: 200, opp: 240, want: matchmaking.ThreatModerate},
		{name: "above moderate band", own: 200, opp: 241, want: matchmaking.ThreatHigh},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchmaking.ThreatLevel(tc.own, tc.opp))
		})
	}
}

func TestJoinWaitsWhenNoOpponentInRange(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	entry, match, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, matchmaking.StatusWaiting, entry.Status)
	assert.Equal(t, float64(200), entry.PowerScore)

	// Far out of range: both keep waiting.
	_, match, err = mm.Join("bob", "thrall-b", 5, statsWithScore(500))
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Len(t, mm.Waiting(), 2)
}

func TestJoinPairsCompatibleOpponents(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)

	entry, match, err := mm.Join("bob", "thrall-b", 5, statsWithScore(220))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, matchmaking.StatusMatched, entry.Status)
	assert.Equal(t, matchmaking.MatchPending, match.Status)
	assert.Equal(t, "alice", match.Player1ID)
	assert.Equal(t, "bob", match.Player2ID)
	assert.Equal(t, "thrall-a", match.Player1Thrall)
	assert.False(t, match.Bot)
	assert.Empty(t, mm.Waiting())

	stored, err := mm.Match(match.ID)
	require.NoError(t, err)
	assert.Equal(t, match.ID, stored.ID)
}

func TestJoinPrefersClosestScoreThenEarliestJoiner(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	// 125 and 100 are out of range of each other (125 > 100*1.2), so both
	// wait; a 112 joiner is in range of both and picks the closer 100.
	_, _, err := mm.Join("far", "thrall-f", 5, statsWithScore(125))
	require.NoError(t, err)
	_, _, err = mm.Join("near", "thrall-n", 5, statsWithScore(100))
	require.NoError(t, err)
	require.Len(t, mm.Waiting(), 2)

	_, match, err := mm.Join("joiner", "thrall-j", 5, statsWithScore(112))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "near", match.Player1ID)

	// Equal distance resolves to the earlier entry. 125 and 95 cannot pair
	// with each other but are both 15 away from a 110 joiner.
	mm2 := newTestMatchmaker(t, clock)
	_, _, err = mm2.Join("first", "t1", 5, statsWithScore(125))
	require.NoError(t, err)
	_, _, err = mm2.Join("second", "t2", 5, statsWithScore(95))
	require.NoError(t, err)
	require.Len(t, mm2.Waiting(), 2)
	_, match, err = mm2.Join("joiner", "t3", 5, statsWithScore(110))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.Player1ID)
}

func TestJoinRejectsDuplicateAndInvalid(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)

	_, _, err = mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	assert.ErrorIs(t, err, matchmaking.ErrAlreadyQueued)

	_, _, err = mm.Join("bob", "thrall-b", 5, thrall.Stats{MaxHealth: 0, Attack: 1, Defense: 0, Speed: 1})
	assert.Error(t, err)
}

func TestLeave(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)

	require.NoError(t, mm.Leave("alice"))
	assert.Empty(t, mm.Waiting())
	assert.ErrorIs(t, mm.Leave("alice"), matchmaking.ErrNotQueued)

	// A withdrawn player no longer pairs.
	_, match, err := mm.Join("bob", "thrall-b", 5, statsWithScore(200))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestExpireStaleHonorsTimeoutBoundary(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)

	clock.Advance(29999 * time.Millisecond)
	assert.Empty(t, mm.ExpireStale())
	assert.Len(t, mm.Waiting(), 1)

	clock.Advance(1 * time.Millisecond)
	created := mm.ExpireStale()
	require.Len(t, created, 1)
	assert.Empty(t, mm.Waiting())

	match := created[0]
	assert.True(t, match.Bot)
	assert.Equal(t, "alice", match.Player1ID)
	assert.Empty(t, match.Player2ID)
	assert.Equal(t, matchmaking.MatchPending, match.Status)
	require.NotNil(t, match.BotThrall)
	assert.Equal(t, 5, match.BotThrall.Level)
}

func TestExpireStaleBotStatsWithinVariance(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := matchmaking.NewMatchmaker(matchmaking.Config{
		QueueTimeout: 30 * time.Second,
		BotVariance:  0.15,
		Now:          clock.Now,
		Rand:         &scriptSource{values: []float64{0.0, 1.0, 0.5, 0.5}},
	}, zap.NewNop())

	base := thrall.Stats{MaxHealth: 200, Attack: 40, Defense: 20, Speed: 10}
	_, _, err := mm.Join("alice", "thrall-a", 5, base)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	created := mm.ExpireStale()
	require.Len(t, created, 1)
	bot := created[0].BotThrall
	require.NotNil(t, bot)

	// Draws 0.0, 1.0, 0.5, 0.5 scale by 0.85, 1.15, 1.0, 1.0 in stat order.
	assert.Equal(t, 170, bot.Stats.MaxHealth)
	assert.Equal(t, 46, bot.Stats.Attack)
	assert.Equal(t, 20, bot.Stats.Defense)
	assert.Equal(t, 10, bot.Stats.Speed)
	assert.Equal(t, base.CritChance, bot.Stats.CritChance)
}

func TestExpireStaleBotStatsStayPositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := &fakeClock{current: time.Unix(1000, 0)}
		mm := matchmaking.NewMatchmaker(matchmaking.Config{
			QueueTimeout: 30 * time.Second,
			BotVariance:  0.15,
			Now:          clock.Now,
			Rand:         rng.NewStream(rapid.Int64Range(0, math.MaxInt32-1).Draw(t, "seed")),
		}, zap.NewNop())

		stats := thrall.Stats{
			MaxHealth: rapid.IntRange(1, 500).Draw(t, "health"),
			Attack:    rapid.IntRange(1, 100).Draw(t, "attack"),
			Defense:   rapid.IntRange(0, 100).Draw(t, "defense"),
			Speed:     rapid.IntRange(1, 50).Draw(t, "speed"),
		}
		_, _, err := mm.Join("p", "t", 1, stats)
		require.NoError(t, err)
		clock.Advance(time.Minute)

		created := mm.ExpireStale()
		require.Len(t, created, 1)
		bot := created[0].BotThrall
		assert.GreaterOrEqual(t, bot.Stats.MaxHealth, 1)
		assert.GreaterOrEqual(t, bot.Stats.Attack, 1)
		assert.GreaterOrEqual(t, bot.Stats.Speed, 1)
	})
}

func TestMatchLifecycle(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)
	_, match, err := mm.Join("bob", "thrall-b", 5, statsWithScore(210))
	require.NoError(t, err)
	require.NotNil(t, match)

	started, err := mm.Begin(match.ID)
	require.NoError(t, err)
	assert.Equal(t, matchmaking.MatchInProgress, started.Status)

	// Beginning twice is rejected without being treated as resolved.
	_, err = mm.Begin(match.ID)
	assert.ErrorIs(t, err, matchmaking.ErrMatchNotPending)

	done, err := mm.Complete(match.ID, "alice", "bob", "battle-1")
	require.NoError(t, err)
	assert.Equal(t, matchmaking.MatchCompleted, done.Status)
	assert.Equal(t, "alice", done.WinnerID)
	assert.Equal(t, "battle-1", done.BattleID)
}

func TestCompletedMatchResolutionIsIdempotent(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)
	_, match, err := mm.Join("bob", "thrall-b", 5, statsWithScore(210))
	require.NoError(t, err)
	require.NotNil(t, match)

	_, err = mm.Begin(match.ID)
	require.NoError(t, err)
	_, err = mm.Complete(match.ID, "alice", "bob", "battle-1")
	require.NoError(t, err)

	// Second completion reports already-resolved and preserves the outcome.
	again, err := mm.Complete(match.ID, "bob", "alice", "battle-2")
	assert.ErrorIs(t, err, matchmaking.ErrMatchAlreadyResolved)
	assert.Equal(t, "alice", again.WinnerID)
	assert.Equal(t, "battle-1", again.BattleID)

	_, err = mm.Begin(match.ID)
	assert.ErrorIs(t, err, matchmaking.ErrMatchAlreadyResolved)
}

func TestCancelAbandonsUnresolvedMatch(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)
	_, match, err := mm.Join("bob", "thrall-b", 5, statsWithScore(210))
	require.NoError(t, err)
	require.NotNil(t, match)

	_, err = mm.Begin(match.ID)
	require.NoError(t, err)

	cancelled, err := mm.Cancel(match.ID)
	require.NoError(t, err)
	assert.Equal(t, matchmaking.MatchCancelled, cancelled.Status)

	// Cancelling again is a no-op; a cancelled match never begins.
	again, err := mm.Cancel(match.ID)
	require.NoError(t, err)
	assert.Equal(t, matchmaking.MatchCancelled, again.Status)
	_, err = mm.Begin(match.ID)
	assert.ErrorIs(t, err, matchmaking.ErrMatchNotPending)
}

func TestCancelRejectsCompletedMatch(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, _, err := mm.Join("alice", "thrall-a", 5, statsWithScore(200))
	require.NoError(t, err)
	_, match, err := mm.Join("bob", "thrall-b", 5, statsWithScore(210))
	require.NoError(t, err)
	require.NotNil(t, match)

	_, err = mm.Begin(match.ID)
	require.NoError(t, err)
	_, err = mm.Complete(match.ID, "alice", "bob", "battle-1")
	require.NoError(t, err)

	kept, err := mm.Cancel(match.ID)
	assert.ErrorIs(t, err, matchmaking.ErrMatchAlreadyResolved)
	assert.Equal(t, matchmaking.MatchCompleted, kept.Status)
	assert.Equal(t, "alice", kept.WinnerID)
}

func TestMatchUnknownID(t *testing.T) {
	clock := &fakeClock{current: time.Unix(1000, 0)}
	mm := newTestMatchmaker(t, clock)

	_, err := mm.Match("nope")
	assert.ErrorIs(t, err, matchmaking.ErrMatchNotFound)
	_, err = mm.Begin("nope")
	assert.ErrorIs(t, err, matchmaking.ErrMatchNotFound)
	_, err = mm.Complete("nope", "", "", "")
	assert.ErrorIs(t, err, matchmaking.ErrMatchNotFound)
	_, err = mm.Cancel("nope")
	assert.ErrorIs(t, err, matchmaking.ErrMatchNotFound)
}
