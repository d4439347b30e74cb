package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duskhollow/arena/internal/game/battle"
	"github.com/duskhollow/arena/internal/storage"
)

// BattleRepository provides battle record persistence backed by PostgreSQL.
// The event log is stored as JSONB so a record remains replayable.
type BattleRepository struct {
	db *pgxpool.Pool
}

// NewBattleRepository creates a BattleRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBattleRepository(db *pgxpool.Pool) *BattleRepository {
	return &BattleRepository{db: db}
}

var _ storage.BattleStore = (*BattleRepository)(nil)

const battleColumns = `id, player_id, kind, wave, match_id, opponent_id, seed,
	winner, total_ticks, enemies_killed, damage_dealt, damage_taken,
	events, coin_awarded, xp_awarded, shards_awarded, created_at`

// Save inserts a battle record.
//
// Precondition: rec.ID must be unique; rec.Events must be the full log.
// Postcondition: the record is retrievable by ID with created_at set by the
// database when the caller left it zero.
func (r *BattleRepository) Save(ctx context.Context, rec storage.BattleRecord) error {
	events, err := json.Marshal(rec.Events)
	if err != nil {
		return fmt.Errorf("encoding battle events: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO battles
			(id, player_id, kind, wave, match_id, opponent_id, seed,
			 winner, total_ticks, enemies_killed, damage_dealt, damage_taken,
			 events, coin_awarded, xp_awarded, shards_awarded, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		rec.ID, rec.PlayerID, string(rec.Kind), rec.Wave, rec.MatchID, rec.OpponentID,
		rec.Seed, string(rec.Winner), rec.TotalTicks, rec.EnemiesKilled,
		rec.DamageDealt, rec.DamageTaken, events,
		rec.CoinAwarded, rec.XPAwarded, rec.ShardsAwarded, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting battle: %w", err)
	}
	return nil
}

// Battle retrieves one record by ID.
//
// Postcondition: Returns the record or storage.ErrBattleNotFound.
func (r *BattleRepository) Battle(ctx context.Context, id string) (storage.BattleRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+battleColumns+` FROM battles WHERE id = $1`, id)
	rec, err := scanBattle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.BattleRecord{}, storage.ErrBattleNotFound
		}
		return storage.BattleRecord{}, fmt.Errorf("querying battle: %w", err)
	}
	return rec, nil
}

// ByPlayer returns the player's battles newest first with limit and offset
// applied after ordering. A limit of 0 means no cap.
func (r *BattleRepository) ByPlayer(ctx context.Context, playerID string, limit, offset int) ([]storage.BattleRecord, error) {
	query := `SELECT ` + battleColumns + `
		FROM battles WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2`
	args := []any{playerID, offset}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing battles: %w", err)
	}
	defer rows.Close()

	records := make([]storage.BattleRecord, 0)
	for rows.Next() {
		rec, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning battle row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanBattle(row pgx.Row) (storage.BattleRecord, error) {
	var (
		rec    storage.BattleRecord
		kind   string
		winner string
		events []byte
	)
	err := row.Scan(
		&rec.ID, &rec.PlayerID, &kind, &rec.Wave, &rec.MatchID, &rec.OpponentID,
		&rec.Seed, &winner, &rec.TotalTicks, &rec.EnemiesKilled,
		&rec.DamageDealt, &rec.DamageTaken, &events,
		&rec.CoinAwarded, &rec.XPAwarded, &rec.ShardsAwarded, &rec.CreatedAt,
	)
	if err != nil {
		return storage.BattleRecord{}, err
	}
	rec.Kind = storage.BattleKind(kind)
	rec.Winner = battle.Winner(winner)
	if err := json.Unmarshal(events, &rec.Events); err != nil {
		return storage.BattleRecord{}, fmt.Errorf("decoding battle events: %w", err)
	}
	return rec, nil
}
