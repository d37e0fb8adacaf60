package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type DungeonRepo struct {
	db *DB
}

func NewDungeonRepo(db *DB) *DungeonRepo {
	return &DungeonRepo{db: db}
}

// SaveDungeonProgress upserts the single active run per account.
func (r *DungeonRepo) SaveDungeonProgress(ctx context.Context, row *DungeonProgressRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO dungeon_progress (
			account_id, dungeon_id, difficulty, floor, rooms_cleared, boss_defeated, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			dungeon_id = EXCLUDED.dungeon_id,
			difficulty = EXCLUDED.difficulty,
			floor = EXCLUDED.floor,
			rooms_cleared = EXCLUDED.rooms_cleared,
			boss_defeated = EXCLUDED.boss_defeated,
			updated_at = NOW()`,
		row.AccountID, row.DungeonID, row.Difficulty, row.Floor, row.RoomsCleared, row.BossDefeated,
	)
	return err
}

func (r *DungeonRepo) LoadDungeonProgress(ctx context.Context, accountID string) (*DungeonProgressRow, error) {
	row := &DungeonProgressRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT account_id, dungeon_id, difficulty, floor, rooms_cleared, boss_defeated, updated_at
		 FROM dungeon_progress WHERE account_id = $1`, accountID,
	).Scan(
		&row.AccountID, &row.DungeonID, &row.Difficulty, &row.Floor,
		&row.RoomsCleared, &row.BossDefeated, &row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *DungeonRepo) ClearDungeonProgress(ctx context.Context, accountID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM dungeon_progress WHERE account_id = $1`, accountID,
	)
	return err
}

func (r *DungeonRepo) RecordDungeonCompletion(ctx context.Context, row *DungeonCompletionRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO dungeon_completions (
			id, account_id, dungeon_id, difficulty, level,
			xp, credits, crystals, duration_ms, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		row.ID, row.AccountID, row.DungeonID, row.Difficulty, row.Level,
		row.XP, row.Credits, row.Crystals, row.Duration.Milliseconds(), row.CompletedAt,
	)
	return err
}
