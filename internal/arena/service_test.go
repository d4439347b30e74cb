package arena_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duskhollow/arena/internal/arena"
	"github.com/duskhollow/arena/internal/game/battle"
	"github.com/duskhollow/arena/internal/game/matchmaking"
	"github.com/duskhollow/arena/internal/game/rng"
	"github.com/duskhollow/arena/internal/game/thrall"
	"github.com/duskhollow/arena/internal/storage"
	"github.com/duskhollow/arena/internal/storage/memory"
)

// mapProvider serves thralls from a fixture map.
type mapProvider struct {
	thralls map[string]*thrall.Thrall
}

func (p mapProvider) Thrall(_ context.Context, id string) (*thrall.Thrall, error) {
	th, ok := p.thralls[id]
	if !ok {
		return nil, thrall.ErrThrallNotFound
	}
	return th, nil
}

// noShard never grants the PvP shard.
type noShard struct{}

func (noShard) Float64() float64 { return 0.99 }

type fixture struct {
	svc     *arena.Service
	battles *memory.BattleStore
	wallets *memory.WalletStore
	queue   *matchmaking.Matchmaker
	clock   *time.Time
	thralls map[string]*thrall.Thrall
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Unix(5000, 0)
	clock := &now
	queue := matchmaking.NewMatchmaker(matchmaking.Config{
		QueueTimeout: 30 * time.Second,
		BotVariance:  0.15,
		Now:          func() time.Time { return *clock },
		Rand:         rng.NewStream(11),
	}, zap.NewNop())

	provider := mapProvider{thralls: map[string]*thrall.Thrall{
		"thrall-a": {
			ID:      "thrall-a",
			OwnerID: "alice",
			Name:    "Gravemaw",
			Level:   5,
			Stats:   thrall.Stats{MaxHealth: 200, Attack: 30, Defense: 10, Speed: 12},
		},
		"thrall-b": {
			ID:      "thrall-b",
			OwnerID: "bob",
			Name:    "Ashfang",
			Level:   4,
			Stats:   thrall.Stats{MaxHealth: 190, Attack: 25, Defense: 10, Speed: 10},
		},
	}}

	battles := memory.NewBattleStore()
	wallets := memory.NewWalletStore()

	seed := int64(42)
	svc, err := arena.NewService(arena.Deps{
		Thralls:    provider,
		Battles:    battles,
		Wallets:    wallets,
		Queue:      queue,
		NewSeed:    func() int64 { return seed },
		RewardRand: noShard{},
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)

	return &fixture{svc: svc, battles: battles, wallets: wallets, queue: queue, clock: clock, thralls: provider.thralls}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := arena.NewService(arena.Deps{})
	assert.Error(t, err)
}

func TestResolveWave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.ResolveWave(ctx, "alice", "thrall-a", 1)
	require.NoError(t, err)

	assert.NotEmpty(t, out.BattleID)
	assert.Equal(t, int64(42), out.Outcome.Seed)
	assert.NotEmpty(t, out.Outcome.Events)
	assert.Equal(t, battle.EventBattleStart, out.Outcome.Events[0].Type)

	// Payout matches the result and landed in the wallet.
	assert.Equal(t, out.Reward.DuskenCoin, out.Wallet.Balance.DuskenCoin)
	assert.Equal(t, out.Reward.Experience, out.Wallet.Balance.Experience)

	rec, err := f.battles.Battle(ctx, out.BattleID)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.PlayerID)
	assert.Equal(t, storage.BattleWave, rec.Kind)
	assert.Equal(t, 1, rec.Wave)
	assert.Equal(t, out.Outcome.Result.Winner, rec.Winner)
	assert.Equal(t, out.Reward.DuskenCoin, rec.CoinAwarded)
	assert.Equal(t, out.Outcome.Events, rec.Events)
}

func TestResolveWaveRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResolveWave(ctx, "alice", "thrall-a", 0)
	assert.ErrorIs(t, err, arena.ErrInvalidWave)

	_, err = f.svc.ResolveWave(ctx, "alice", "missing", 1)
	assert.ErrorIs(t, err, thrall.ErrThrallNotFound)

	_, err = f.svc.ResolveWave(ctx, "alice", "thrall-b", 1)
	assert.ErrorIs(t, err, arena.ErrNotOwner)
}

func TestResolveMatchSettlesBothSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, match, err := f.svc.JoinQueue(ctx, "alice", "thrall-a")
	require.NoError(t, err)
	require.Nil(t, match)

	_, match, err = f.svc.JoinQueue(ctx, "bob", "thrall-b")
	require.NoError(t, err)
	require.NotNil(t, match)

	out, err := f.svc.ResolveMatch(ctx, match.ID)
	require.NoError(t, err)

	require.NotEmpty(t, out.WinnerID)
	require.NotEmpty(t, out.LoserID)
	require.NotNil(t, out.WinnerReward)
	assert.Negative(t, out.LoserPenalty)

	winnerWallet, err := f.wallets.Wallet(ctx, out.WinnerID)
	require.NoError(t, err)
	assert.Equal(t, out.WinnerReward.DuskenCoin, winnerWallet.Balance.DuskenCoin)
	assert.Equal(t, out.WinnerReward.RankingPoints, winnerWallet.Balance.RankingPoints)

	// Loser's ranking debit clamps at zero on an empty wallet.
	loserWallet, err := f.wallets.Wallet(ctx, out.LoserID)
	require.NoError(t, err)
	assert.Equal(t, 0, loserWallet.Balance.RankingPoints)

	// Both participants see the duel in their history.
	for _, player := range []string{"alice", "bob"} {
		recs, err := f.svc.History(ctx, player, 10, 0)
		require.NoError(t, err)
		require.Len(t, recs, 1, "history for %s", player)
		assert.Equal(t, storage.BattlePvP, recs[0].Kind)
		assert.Equal(t, match.ID, recs[0].MatchID)
	}

	// Perspectives mirror each other.
	aliceRecs, _ := f.svc.History(ctx, "alice", 1, 0)
	bobRecs, _ := f.svc.History(ctx, "bob", 1, 0)
	assert.Equal(t, aliceRecs[0].DamageDealt, bobRecs[0].DamageTaken)
	assert.NotEqual(t, aliceRecs[0].Winner, bobRecs[0].Winner)

	stored, err := f.queue.Match(match.ID)
	require.NoError(t, err)
	assert.Equal(t, matchmaking.MatchCompleted, stored.Status)
	assert.Equal(t, out.WinnerID, stored.WinnerID)
}

func TestResolveMatchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.JoinQueue(ctx, "alice", "thrall-a")
	require.NoError(t, err)
	_, match, err := f.svc.JoinQueue(ctx, "bob", "thrall-b")
	require.NoError(t, err)
	require.NotNil(t, match)

	first, err := f.svc.ResolveMatch(ctx, match.ID)
	require.NoError(t, err)

	winnerBefore, err := f.wallets.Wallet(ctx, first.WinnerID)
	require.NoError(t, err)

	second, err := f.svc.ResolveMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, first.BattleID, second.BattleID)
	assert.Equal(t, first.WinnerID, second.WinnerID)
	assert.Equal(t, first.Outcome.Result, second.Outcome.Result)

	// No double payout, no extra records.
	winnerAfter, err := f.wallets.Wallet(ctx, first.WinnerID)
	require.NoError(t, err)
	assert.Equal(t, winnerBefore.Balance, winnerAfter.Balance)

	recs, err := f.svc.History(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestResolveMatchFailureCancelsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.JoinQueue(ctx, "alice", "thrall-a")
	require.NoError(t, err)
	_, match, err := f.svc.JoinQueue(ctx, "bob", "thrall-b")
	require.NoError(t, err)
	require.NotNil(t, match)

	// The opponent's thrall vanishes before resolution runs.
	delete(f.thralls, "thrall-b")

	_, err = f.svc.ResolveMatch(ctx, match.ID)
	require.Error(t, err)

	stored, err := f.queue.Match(match.ID)
	require.NoError(t, err)
	assert.Equal(t, matchmaking.MatchCancelled, stored.Status)

	// Nothing was settled or recorded.
	recs, err := f.svc.History(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = f.wallets.Wallet(ctx, "alice")
	assert.ErrorIs(t, err, storage.ErrWalletNotFound)
}

func TestSweepQueueResolvesBotMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, match, err := f.svc.JoinQueue(ctx, "alice", "thrall-a")
	require.NoError(t, err)
	require.Nil(t, match)

	// Nothing stale yet.
	assert.Empty(t, f.svc.SweepQueue(ctx))

	f.advance(30 * time.Second)
	outcomes := f.svc.SweepQueue(ctx)
	require.Len(t, outcomes, 1)
	out := outcomes[0]

	assert.Empty(t, f.queue.Waiting())
	stored, err := f.queue.Match(out.MatchID)
	require.NoError(t, err)
	assert.True(t, stored.Bot)
	assert.Equal(t, matchmaking.MatchCompleted, stored.Status)

	// One record, from the player's perspective, against the bot.
	recs, err := f.svc.History(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, storage.BattlePvP, recs[0].Kind)
	assert.Equal(t, stored.BotThrall.ID, recs[0].OpponentID)

	// A bot victory pays the player half coin and ranking.
	if out.WinnerID == "alice" {
		w, err := f.wallets.Wallet(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, out.WinnerReward.DuskenCoin, w.Balance.DuskenCoin)
	}
}

func TestLeaveQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.JoinQueue(ctx, "alice", "thrall-a")
	require.NoError(t, err)
	require.NoError(t, f.svc.LeaveQueue("alice"))
	assert.ErrorIs(t, f.svc.LeaveQueue("alice"), matchmaking.ErrNotQueued)

	f.advance(time.Minute)
	assert.Empty(t, f.svc.SweepQueue(ctx))
}
