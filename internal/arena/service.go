// Package arena orchestrates battles end to end: it loads thrall data,
// generates opponents, runs the combat engine, computes payouts, applies
// wallet credits, and persists the battle record. It is the only package
// that touches the engine, the matchmaker, the economy, and storage
// together.
package arena

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duskhollow/arena/internal/game/ability"
	"github.com/duskhollow/arena/internal/game/battle"
	"github.com/duskhollow/arena/internal/game/matchmaking"
	"github.com/duskhollow/arena/internal/game/reward"
	"github.com/duskhollow/arena/internal/game/rng"
	"github.com/duskhollow/arena/internal/game/thrall"
	"github.com/duskhollow/arena/internal/storage"
)

// ErrNotOwner is returned when a player references a thrall they do not own.
var ErrNotOwner = errors.New("thrall not owned by player")

// ErrInvalidWave is returned for wave numbers below 1.
var ErrInvalidWave = errors.New("wave must be >= 1")

// Deps carries the service's collaborators. Thralls, Battles, Wallets,
// Queue, and Logger are required; the rest default.
type Deps struct {
	Thralls thrall.Provider
	Catalog *ability.Registry
	Battles storage.BattleStore
	Wallets storage.WalletStore
	Queue   *matchmaking.Matchmaker
	// TickCeiling overrides the engine default when > 0.
	TickCeiling int
	// NewSeed supplies battle seeds. Defaults to the crypto-backed helper.
	NewSeed func() int64
	// RewardRand drives the PvP shard draw. Defaults to a fresh stream.
	RewardRand rng.Source
	Logger     *zap.Logger
}

// Service is the battle orchestration layer.
type Service struct {
	thralls     thrall.Provider
	catalog     *ability.Registry
	battles     storage.BattleStore
	wallets     storage.WalletStore
	queue       *matchmaking.Matchmaker
	tickCeiling int
	newSeed     func() int64
	rewardRand  rng.Source
	logger      *zap.Logger
}

// NewService wires the orchestration layer from its collaborators.
//
// Precondition: the required Deps fields are non-nil.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Thralls == nil:
		return nil, errors.New("arena: thrall provider is required")
	case deps.Battles == nil:
		return nil, errors.New("arena: battle store is required")
	case deps.Wallets == nil:
		return nil, errors.New("arena: wallet store is required")
	case deps.Queue == nil:
		return nil, errors.New("arena: matchmaker is required")
	case deps.Logger == nil:
		return nil, errors.New("arena: logger is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = ability.Builtin()
	}
	if deps.NewSeed == nil {
		deps.NewSeed = rng.NewSeed
	}
	if deps.RewardRand == nil {
		deps.RewardRand = rng.NewStream(rng.NewSeed())
	}
	return &Service{
		thralls:     deps.Thralls,
		catalog:     deps.Catalog,
		battles:     deps.Battles,
		wallets:     deps.Wallets,
		queue:       deps.Queue,
		tickCeiling: deps.TickCeiling,
		newSeed:     deps.NewSeed,
		rewardRand:  deps.RewardRand,
		logger:      deps.Logger,
	}, nil
}

// WaveOutcome is everything a caller learns from one resolved wave battle.
type WaveOutcome struct {
	BattleID string            `json:"battleId"`
	Outcome  battle.Outcome    `json:"outcome"`
	Reward   reward.WaveReward `json:"reward"`
	Wallet   storage.Wallet    `json:"wallet"`
}

// ResolveWave runs one wave battle for the player's thrall: generate the
// wave's enemies, resolve, pay out, persist.
//
// Postcondition: on success the returned record is stored and the player's
// wallet reflects the payout.
func (s *Service) ResolveWave(ctx context.Context, playerID, thrallID string, wave int) (WaveOutcome, error) {
	if wave < 1 {
		return WaveOutcome{}, fmt.Errorf("%w: got %d", ErrInvalidWave, wave)
	}

	th, err := s.ownedThrall(ctx, playerID, thrallID)
	if err != nil {
		return WaveOutcome{}, err
	}

	cfg := battle.Config{
		Seed:        s.newSeed(),
		TickCeiling: s.tickCeiling,
		Catalog:     s.catalog,
		Entities: append([]battle.EntityConfig{{
			ID:        th.ID,
			Name:      th.Name,
			Team:      battle.TeamPlayer,
			Stats:     th.EffectiveStats(),
			Abilities: th.Abilities,
		}}, GenerateWave(wave, s.catalog)...),
	}

	outcome, err := battle.Resolve(cfg)
	if err != nil {
		return WaveOutcome{}, fmt.Errorf("resolving wave %d: %w", wave, err)
	}

	r := reward.ForWave(wave, outcome.Result.Winner, outcome.Result.EnemiesKilled)
	wallet, err := s.wallets.Apply(ctx, playerID, storage.Balance{
		DuskenCoin: r.DuskenCoin,
		Experience: r.Experience,
		Shards:     r.Shards,
	})
	if err != nil {
		return WaveOutcome{}, fmt.Errorf("crediting wave reward: %w", err)
	}

	rec := storage.BattleRecord{
		ID:            uuid.NewString(),
		PlayerID:      playerID,
		Kind:          storage.BattleWave,
		Wave:          wave,
		Seed:          outcome.Seed,
		Winner:        outcome.Result.Winner,
		TotalTicks:    outcome.Result.TotalTicks,
		EnemiesKilled: outcome.Result.EnemiesKilled,
		DamageDealt:   outcome.Result.DamageDealt,
		DamageTaken:   outcome.Result.DamageTaken,
		Events:        outcome.Events,
		CoinAwarded:   r.DuskenCoin,
		XPAwarded:     r.Experience,
		ShardsAwarded: r.Shards,
	}
	if err := s.battles.Save(ctx, rec); err != nil {
		return WaveOutcome{}, fmt.Errorf("persisting wave battle: %w", err)
	}

	s.logger.Info("wave resolved",
		zap.String("playerId", playerID),
		zap.Int("wave", wave),
		zap.String("winner", string(outcome.Result.Winner)),
		zap.Int("ticks", outcome.Result.TotalTicks),
		zap.String("battleId", rec.ID))

	return WaveOutcome{BattleID: rec.ID, Outcome: *outcome, Reward: r, Wallet: wallet}, nil
}

// JoinQueue enters the player's thrall into the duel queue. When a
// compatible opponent is already waiting, the returned match is ready for
// ResolveMatch.
func (s *Service) JoinQueue(ctx context.Context, playerID, thrallID string) (matchmaking.Entry, *matchmaking.Match, error) {
	th, err := s.ownedThrall(ctx, playerID, thrallID)
	if err != nil {
		return matchmaking.Entry{}, nil, err
	}
	return s.queue.Join(playerID, th.ID, th.Level, th.EffectiveStats())
}

// LeaveQueue withdraws the player from the duel queue.
func (s *Service) LeaveQueue(playerID string) error {
	return s.queue.Leave(playerID)
}

// PvPOutcome is everything a caller learns from one resolved duel.
type PvPOutcome struct {
	MatchID      string            `json:"matchId"`
	BattleID     string            `json:"battleId"`
	Outcome      battle.Outcome    `json:"outcome"`
	WinnerID     string            `json:"winnerId,omitempty"`
	LoserID      string            `json:"loserId,omitempty"`
	WinnerReward *reward.PvPReward `json:"winnerReward,omitempty"`
	LoserPenalty int               `json:"loserPenalty,omitempty"`
}

// ResolveMatch runs the battle for a pending match and settles both sides.
// Resolving a match that already completed returns its stored outcome
// instead of running anything again.
//
// Postcondition: the match is COMPLETED and at most one battle has ever run
// for it.
func (s *Service) ResolveMatch(ctx context.Context, matchID string) (PvPOutcome, error) {
	m, err := s.queue.Begin(matchID)
	if errors.Is(err, matchmaking.ErrMatchAlreadyResolved) {
		return s.storedOutcome(ctx, m)
	}
	if err != nil {
		return PvPOutcome{}, err
	}

	p1, err := s.thralls.Thrall(ctx, m.Player1Thrall)
	if err != nil {
		return s.abortMatch(matchID, fmt.Errorf("loading challenger thrall: %w", err))
	}

	var opponent *thrall.Thrall
	if m.Bot {
		opponent = m.BotThrall
	} else {
		opponent, err = s.thralls.Thrall(ctx, m.Player2Thrall)
		if err != nil {
			return s.abortMatch(matchID, fmt.Errorf("loading opponent thrall: %w", err))
		}
	}

	// The duel runs from the challenger's perspective: player 1 holds the
	// player team slot.
	cfg := battle.Config{
		Seed:        s.newSeed(),
		TickCeiling: s.tickCeiling,
		Catalog:     s.catalog,
		Entities: []battle.EntityConfig{
			{
				ID:        p1.ID,
				Name:      p1.Name,
				Team:      battle.TeamPlayer,
				Stats:     p1.EffectiveStats(),
				Abilities: p1.Abilities,
			},
			{
				ID:        opponent.ID,
				Name:      opponent.Name,
				Team:      battle.TeamEnemy,
				Stats:     opponent.EffectiveStats(),
				Abilities: opponent.Abilities,
			},
		},
	}

	outcome, err := battle.Resolve(cfg)
	if err != nil {
		return s.abortMatch(matchID, fmt.Errorf("resolving match %s: %w", matchID, err))
	}

	out := PvPOutcome{MatchID: matchID, Outcome: *outcome}
	switch outcome.Result.Winner {
	case battle.WinnerPlayer:
		out.WinnerID = m.Player1ID
		out.LoserID = m.Player2ID
	case battle.WinnerEnemy:
		out.WinnerID = m.Player2ID
		out.LoserID = m.Player1ID
	}

	winnerLevel, loserLevel := p1.Level, opponent.Level
	if out.WinnerID == m.Player2ID {
		winnerLevel, loserLevel = opponent.Level, p1.Level
	}

	// A bot holds no wallet; only real participants settle.
	if out.WinnerID != "" {
		r := reward.ForPvP(winnerLevel, loserLevel, m.Bot, s.rewardRand)
		out.WinnerReward = &r
		if _, err := s.wallets.Apply(ctx, out.WinnerID, storage.Balance{
			DuskenCoin:    r.DuskenCoin,
			Shards:        r.Shards,
			RankingPoints: r.RankingPoints,
		}); err != nil {
			return s.abortMatch(matchID, fmt.Errorf("crediting duel winner: %w", err))
		}
	}
	if out.LoserID != "" {
		penalty := reward.LoserPenalty(loserLevel)
		out.LoserPenalty = penalty
		if _, err := s.wallets.Apply(ctx, out.LoserID, storage.Balance{
			RankingPoints: penalty,
		}); err != nil {
			return s.abortMatch(matchID, fmt.Errorf("debiting duel loser: %w", err))
		}
	}

	out.BattleID = uuid.NewString()
	rec := storage.BattleRecord{
		ID:            out.BattleID,
		PlayerID:      m.Player1ID,
		Kind:          storage.BattlePvP,
		MatchID:       matchID,
		OpponentID:    opponentIdentity(m),
		Seed:          outcome.Seed,
		Winner:        outcome.Result.Winner,
		TotalTicks:    outcome.Result.TotalTicks,
		EnemiesKilled: outcome.Result.EnemiesKilled,
		DamageDealt:   outcome.Result.DamageDealt,
		DamageTaken:   outcome.Result.DamageTaken,
		Events:        outcome.Events,
	}
	if out.WinnerReward != nil && out.WinnerID == m.Player1ID {
		rec.CoinAwarded = out.WinnerReward.DuskenCoin
		rec.ShardsAwarded = out.WinnerReward.Shards
	}
	if err := s.battles.Save(ctx, rec); err != nil {
		return s.abortMatch(matchID, fmt.Errorf("persisting duel battle: %w", err))
	}
	if !m.Bot {
		mirror := mirrorRecord(rec, m)
		if out.WinnerReward != nil && out.WinnerID == m.Player2ID {
			mirror.CoinAwarded = out.WinnerReward.DuskenCoin
			mirror.ShardsAwarded = out.WinnerReward.Shards
		}
		if err := s.battles.Save(ctx, mirror); err != nil {
			return s.abortMatch(matchID, fmt.Errorf("persisting duel mirror record: %w", err))
		}
	}

	if _, err := s.queue.Complete(matchID, out.WinnerID, out.LoserID, out.BattleID); err != nil {
		return PvPOutcome{}, fmt.Errorf("completing match: %w", err)
	}

	s.logger.Info("match resolved",
		zap.String("matchId", matchID),
		zap.String("winnerId", out.WinnerID),
		zap.Bool("bot", m.Bot),
		zap.Int("ticks", outcome.Result.TotalTicks))

	return out, nil
}

// abortMatch cancels a match whose resolution failed so it does not stay
// IN_PROGRESS forever, then returns the original failure.
func (s *Service) abortMatch(matchID string, cause error) (PvPOutcome, error) {
	if _, err := s.queue.Cancel(matchID); err != nil {
		s.logger.Warn("cancelling failed match",
			zap.String("matchId", matchID),
			zap.Error(err))
	}
	return PvPOutcome{}, cause
}

// storedOutcome rebuilds a PvPOutcome for a match that already completed.
func (s *Service) storedOutcome(ctx context.Context, m matchmaking.Match) (PvPOutcome, error) {
	rec, err := s.battles.Battle(ctx, m.BattleID)
	if err != nil {
		return PvPOutcome{}, fmt.Errorf("loading stored duel: %w", err)
	}
	return PvPOutcome{
		MatchID:  m.ID,
		BattleID: rec.ID,
		Outcome: battle.Outcome{
			Result: battle.Result{
				Winner:         rec.Winner,
				TotalTicks:     rec.TotalTicks,
				ThrallSurvived: rec.Winner == battle.WinnerPlayer,
				EnemiesKilled:  rec.EnemiesKilled,
				DamageDealt:    rec.DamageDealt,
				DamageTaken:    rec.DamageTaken,
			},
			Events: rec.Events,
			Seed:   rec.Seed,
		},
		WinnerID: m.WinnerID,
		LoserID:  m.LoserID,
	}, nil
}

// SweepQueue expires stale queue entries into bot matches and resolves each
// immediately. Failures are logged and do not stop the sweep.
func (s *Service) SweepQueue(ctx context.Context) []PvPOutcome {
	expired := s.queue.ExpireStale()
	outcomes := make([]PvPOutcome, 0, len(expired))
	for _, m := range expired {
		out, err := s.ResolveMatch(ctx, m.ID)
		if err != nil {
			s.logger.Error("resolving bot match",
				zap.String("matchId", m.ID),
				zap.Error(err))
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// History returns the player's battle records newest first.
func (s *Service) History(ctx context.Context, playerID string, limit, offset int) ([]storage.BattleRecord, error) {
	return s.battles.ByPlayer(ctx, playerID, limit, offset)
}

func (s *Service) ownedThrall(ctx context.Context, playerID, thrallID string) (*thrall.Thrall, error) {
	th, err := s.thralls.Thrall(ctx, thrallID)
	if err != nil {
		return nil, fmt.Errorf("loading thrall %s: %w", thrallID, err)
	}
	if th.OwnerID != playerID {
		return nil, fmt.Errorf("thrall %s: %w", thrallID, ErrNotOwner)
	}
	return th, nil
}

func opponentIdentity(m matchmaking.Match) string {
	if m.Bot {
		return m.BotThrall.ID
	}
	return m.Player2ID
}

// mirrorRecord rewrites a duel record from the second player's perspective
// so both participants see the battle in their own history.
func mirrorRecord(rec storage.BattleRecord, m matchmaking.Match) storage.BattleRecord {
	rec.ID = uuid.NewString()
	rec.PlayerID = m.Player2ID
	rec.OpponentID = m.Player1ID
	rec.CoinAwarded = 0
	rec.XPAwarded = 0
	rec.ShardsAwarded = 0
	switch rec.Winner {
	case battle.WinnerPlayer:
		rec.Winner = battle.WinnerEnemy
	case battle.WinnerEnemy:
		rec.Winner = battle.WinnerPlayer
	}
	rec.DamageDealt, rec.DamageTaken = rec.DamageTaken, rec.DamageDealt
	return rec
}
