// Package storage defines the persistence contracts for resolved battles and
// player wallets. Implementations live in the memory and postgres
// subpackages; callers depend on the interfaces here.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/duskhollow/arena/internal/game/battle"
)

// ErrBattleNotFound is returned when a battle lookup yields no results.
var ErrBattleNotFound = errors.New("battle not found")

// ErrWalletNotFound is returned when a wallet lookup yields no results.
var ErrWalletNotFound = errors.New("wallet not found")

// ErrInsufficientFunds is returned when a debit would take a non-negative
// balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// BattleKind distinguishes wave battles from duels.
type BattleKind string

const (
	BattleWave BattleKind = "WAVE"
	BattlePvP  BattleKind = "PVP"
)

// BattleRecord is the durable account of one resolved battle: enough to
// replay it (seed plus the event log) and to audit its payout.
type BattleRecord struct {
	ID            string         `json:"id"`
	PlayerID      string         `json:"playerId"`
	Kind          BattleKind     `json:"kind"`
	Wave          int            `json:"wave,omitempty"`
	MatchID       string         `json:"matchId,omitempty"`
	OpponentID    string         `json:"opponentId,omitempty"`
	Seed          int64          `json:"seed"`
	Winner        battle.Winner  `json:"winner"`
	TotalTicks    int            `json:"totalTicks"`
	EnemiesKilled int            `json:"enemiesKilled"`
	DamageDealt   int            `json:"damageDealt"`
	DamageTaken   int            `json:"damageTaken"`
	Events        []battle.Event `json:"events"`
	CoinAwarded   int            `json:"coinAwarded"`
	XPAwarded     int            `json:"xpAwarded"`
	ShardsAwarded int            `json:"shardsAwarded"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// BattleStore persists resolved battles.
type BattleStore interface {
	// Save inserts a battle record. Record IDs are unique; saving the same
	// ID twice is an error.
	Save(ctx context.Context, rec BattleRecord) error
	// Battle retrieves one record by ID, or ErrBattleNotFound.
	Battle(ctx context.Context, id string) (BattleRecord, error)
	// ByPlayer returns the player's battles newest first, skipping offset
	// records and returning at most limit. A limit of 0 means no cap.
	ByPlayer(ctx context.Context, playerID string, limit, offset int) ([]BattleRecord, error)
}

// Balance is a set of signed currency deltas, or an absolute snapshot when
// embedded in Wallet.
type Balance struct {
	DuskenCoin    int `json:"duskenCoin"`
	Shards        int `json:"shards"`
	Experience    int `json:"experience"`
	RankingPoints int `json:"rankingPoints"`
}

// Wallet is a player's currency holdings.
type Wallet struct {
	PlayerID  string    `json:"playerId"`
	Balance   Balance   `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WalletStore persists player currency balances.
type WalletStore interface {
	// Wallet retrieves a player's wallet, or ErrWalletNotFound.
	Wallet(ctx context.Context, playerID string) (Wallet, error)
	// Apply adjusts a player's balance by delta, creating the wallet on
	// first touch. DuskenCoin, shard, and experience balances may not go
	// negative; a debit past zero fails with ErrInsufficientFunds and
	// changes nothing. Ranking points clamp at zero instead of failing,
	// since loss penalties may exceed the held total.
	Apply(ctx context.Context, playerID string, delta Balance) (Wallet, error)
}
