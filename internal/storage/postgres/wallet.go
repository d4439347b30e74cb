package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duskhollow/arena/internal/storage"
)

// WalletRepository provides wallet persistence backed by PostgreSQL.
type WalletRepository struct {
	db *pgxpool.Pool
}

// NewWalletRepository creates a WalletRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

var _ storage.WalletStore = (*WalletRepository)(nil)

// Wallet retrieves a player's wallet.
//
// Postcondition: Returns the wallet or storage.ErrWalletNotFound.
func (r *WalletRepository) Wallet(ctx context.Context, playerID string) (storage.Wallet, error) {
	var w storage.Wallet
	err := r.db.QueryRow(ctx, `
		SELECT player_id, dusken_coin, shards, experience, ranking_points, updated_at
		FROM wallets WHERE player_id = $1`,
		playerID,
	).Scan(&w.PlayerID, &w.Balance.DuskenCoin, &w.Balance.Shards,
		&w.Balance.Experience, &w.Balance.RankingPoints, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Wallet{}, storage.ErrWalletNotFound
		}
		return storage.Wallet{}, fmt.Errorf("querying wallet: %w", err)
	}
	return w, nil
}

// Apply adjusts a player's balance by delta inside a transaction, creating
// the wallet row on first touch. The row is locked for the duration so
// concurrent grants serialize.
//
// Postcondition: Returns the updated wallet, or storage.ErrInsufficientFunds
// with nothing written when a coin, shard, or experience debit would cross
// zero. Ranking points clamp at zero instead of failing.
func (r *WalletRepository) Apply(ctx context.Context, playerID string, delta storage.Balance) (storage.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("beginning wallet transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (player_id) VALUES ($1)
		ON CONFLICT (player_id) DO NOTHING`,
		playerID,
	)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("ensuring wallet row: %w", err)
	}

	var current storage.Balance
	err = tx.QueryRow(ctx, `
		SELECT dusken_coin, shards, experience, ranking_points
		FROM wallets WHERE player_id = $1 FOR UPDATE`,
		playerID,
	).Scan(&current.DuskenCoin, &current.Shards, &current.Experience, &current.RankingPoints)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("locking wallet row: %w", err)
	}

	next := storage.Balance{
		DuskenCoin:    current.DuskenCoin + delta.DuskenCoin,
		Shards:        current.Shards + delta.Shards,
		Experience:    current.Experience + delta.Experience,
		RankingPoints: current.RankingPoints + delta.RankingPoints,
	}
	if next.DuskenCoin < 0 || next.Shards < 0 || next.Experience < 0 {
		return storage.Wallet{}, fmt.Errorf("applying delta to %s: %w", playerID, storage.ErrInsufficientFunds)
	}
	if next.RankingPoints < 0 {
		next.RankingPoints = 0
	}

	var w storage.Wallet
	err = tx.QueryRow(ctx, `
		UPDATE wallets
		SET dusken_coin = $2, shards = $3, experience = $4, ranking_points = $5,
		    updated_at = NOW()
		WHERE player_id = $1
		RETURNING player_id, dusken_coin, shards, experience, ranking_points, updated_at`,
		playerID, next.DuskenCoin, next.Shards, next.Experience, next.RankingPoints,
	).Scan(&w.PlayerID, &w.Balance.DuskenCoin, &w.Balance.Shards,
		&w.Balance.Experience, &w.Balance.RankingPoints, &w.UpdatedAt)
	if err != nil {
		return storage.Wallet{}, fmt.Errorf("updating wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.Wallet{}, fmt.Errorf("committing wallet transaction: %w", err)
	}
	return w, nil
}
