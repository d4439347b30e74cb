// Package reward computes the currency, experience, and ranking grants paid
// out after a resolved battle. All functions are pure apart from the shard
// draw in ForPvP, which consumes exactly one value from the supplied source.
package reward

import (
	"math"

	"github.com/duskhollow/arena/internal/game/battle"
	"github.com/duskhollow/arena/internal/game/rng"
)

// Wave reward tuning.
const (
	waveCoinBase      = 10
	waveCoinPerWave   = 5
	waveCoinPerKill   = 2
	waveXPPerWave     = 10
	winMultiplier     = 1.5
	lossCoinFraction  = 0.3
	lossXPFraction    = 0.5
	shardWaveInterval = 10
)

// PvP reward tuning.
const (
	pvpCoinBase        = 50
	pvpCoinPerLevel    = 10
	pvpCoinPerUpset    = 5
	pvpRankingBase     = 10
	pvpShardChance     = 0.1
	pvpLoserPenaltyMin = 5
)

// WaveReward is the payout for a resolved wave battle.
type WaveReward struct {
	DuskenCoin int `json:"duskenCoin"`
	Experience int `json:"experience"`
	Shards     int `json:"shards"`
}

// PvPReward is the winner's payout for a resolved duel.
type PvPReward struct {
	DuskenCoin    int `json:"duskenCoin"`
	RankingPoints int `json:"rankingPoints"`
	Shards        int `json:"shards"`
}

// ForWave computes the payout for a wave battle. Base coin is
// 10 + wave*5 + 2 per kill and base experience is wave*10; a win multiplies
// both by 1.5, anything else pays the loss fractions (0.3 coin, 0.5
// experience). A draw at the tick ceiling pays as a loss. Every tenth wave
// grants one shard on a win.
//
// Precondition: wave >= 1, enemiesKilled >= 0.
func ForWave(wave int, winner battle.Winner, enemiesKilled int) WaveReward {
	coinBase := float64(waveCoinBase + wave*waveCoinPerWave + enemiesKilled*waveCoinPerKill)
	xpBase := float64(wave * waveXPPerWave)

	var r WaveReward
	if winner == battle.WinnerPlayer {
		r.DuskenCoin = int(math.Round(coinBase * winMultiplier))
		r.Experience = int(math.Round(xpBase * winMultiplier))
		if wave%shardWaveInterval == 0 {
			r.Shards = wave / shardWaveInterval
		}
	} else {
		r.DuskenCoin = int(math.Round(coinBase * lossCoinFraction))
		r.Experience = int(math.Round(xpBase * lossXPFraction))
	}
	return r
}

// ForPvP computes the winner's payout for a duel. Coin is
// 50 + winnerLevel*10 plus 5 per level the loser held over the winner;
// ranking is 10 plus the same level edge. Beating a bot pays half coin and
// half ranking, rounded down. One draw from src decides the 10% shard grant.
//
// Precondition: src is not nil.
func ForPvP(winnerLevel, loserLevel int, bot bool, src rng.Source) PvPReward {
	edge := loserLevel - winnerLevel
	if edge < 0 {
		edge = 0
	}
	r := PvPReward{
		DuskenCoin:    pvpCoinBase + winnerLevel*pvpCoinPerLevel + edge*pvpCoinPerUpset,
		RankingPoints: pvpRankingBase + edge,
	}
	if bot {
		r.DuskenCoin /= 2
		r.RankingPoints /= 2
	}
	if src.Float64() < pvpShardChance {
		r.Shards = 1
	}
	return r
}

// LoserPenalty is the ranking change applied to a duel's loser: the negative
// of their level, but never milder than -5.
func LoserPenalty(level int) int {
	if level < pvpLoserPenaltyMin {
		level = pvpLoserPenaltyMin
	}
	return -level
}
