// Package memory provides map-backed implementations of the storage
// contracts, used in tests and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/duskhollow/arena/internal/storage"
)

// BattleStore is an in-memory storage.BattleStore. Safe for concurrent use.
type BattleStore struct {
	mu      sync.RWMutex
	records map[string]storage.BattleRecord
	order   []string
	now     func() time.Time
}

// NewBattleStore creates an empty battle store.
func NewBattleStore() *BattleStore {
	return &BattleStore{
		records: make(map[string]storage.BattleRecord),
		now:     time.Now,
	}
}

// Save inserts a battle record.
//
// Postcondition: the record is retrievable by ID, with CreatedAt set if the
// caller left it zero.
func (s *BattleStore) Save(_ context.Context, rec storage.BattleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("saving battle %s: duplicate id", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

// Battle retrieves one record by ID.
func (s *BattleStore) Battle(_ context.Context, id string) (storage.BattleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return storage.BattleRecord{}, storage.ErrBattleNotFound
	}
	return rec, nil
}

// ByPlayer returns the player's battles newest first with limit and offset
// applied after ordering.
func (s *BattleStore) ByPlayer(_ context.Context, playerID string, limit, offset int) ([]storage.BattleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.BattleRecord, 0)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.PlayerID == playerID {
			out = append(out, rec)
		}
	}
	// Insertion order is oldest first; newest first with a stable tiebreak
	// on insertion position.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []storage.BattleRecord{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WalletStore is an in-memory storage.WalletStore. Safe for concurrent use.
type WalletStore struct {
	mu      sync.Mutex
	wallets map[string]storage.Wallet
	now     func() time.Time
}

// NewWalletStore creates an empty wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		wallets: make(map[string]storage.Wallet),
		now:     time.Now,
	}
}

// Wallet retrieves a player's wallet.
func (s *WalletStore) Wallet(_ context.Context, playerID string) (storage.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[playerID]
	if !ok {
		return storage.Wallet{}, storage.ErrWalletNotFound
	}
	return w, nil
}

// Apply adjusts a player's balance by delta, creating the wallet on first
// touch.
//
// Postcondition: on error the stored wallet is unchanged.
func (s *WalletStore) Apply(_ context.Context, playerID string, delta storage.Balance) (storage.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[playerID]
	if !ok {
		w = storage.Wallet{PlayerID: playerID}
	}

	next := w.Balance
	next.DuskenCoin += delta.DuskenCoin
	next.Shards += delta.Shards
	next.Experience += delta.Experience
	next.RankingPoints += delta.RankingPoints
	if next.DuskenCoin < 0 || next.Shards < 0 || next.Experience < 0 {
		return storage.Wallet{}, fmt.Errorf("applying delta to %s: %w", playerID, storage.ErrInsufficientFunds)
	}
	if next.RankingPoints < 0 {
		next.RankingPoints = 0
	}

	w.Balance = next
	w.UpdatedAt = s.now()
	s.wallets[playerID] = w
	return w, nil
}
