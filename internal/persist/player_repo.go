package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) GetPlayer(ctx context.Context, accountID string) (*PlayerRow, error) {
	row := &PlayerRow{}
	var inventory, spells []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT account_id, name, race, x, y, z, rotation,
		        hp, max_hp, mana, max_mana, level, xp, credits,
		        COALESCE(inventory, '{}'::jsonb), COALESCE(spells, '[]'::jsonb),
		        created_at, updated_at
		 FROM players WHERE account_id = $1`, accountID,
	).Scan(
		&row.AccountID, &row.Name, &row.Race, &row.X, &row.Y, &row.Z, &row.Rotation,
		&row.HP, &row.MaxHP, &row.Mana, &row.MaxMana, &row.Level, &row.XP, &row.Credits,
		&inventory, &spells,
		&row.CreatedAt, &row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(inventory, &row.Inventory); err != nil {
		return nil, fmt.Errorf("decode inventory for %s: %w", accountID, err)
	}
	if err := json.Unmarshal(spells, &row.Spells); err != nil {
		return nil, fmt.Errorf("decode spells for %s: %w", accountID, err)
	}
	return row, nil
}

func (r *PlayerRepo) CreatePlayer(ctx context.Context, row *PlayerRow) error {
	row.Clamp()
	inventory, spells, err := encodeBlocks(row)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO players (
			account_id, name, race, x, y, z, rotation,
			hp, max_hp, mana, max_mana, level, xp, credits,
			inventory, spells
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
		)`,
		row.AccountID, row.Name, row.Race, row.X, row.Y, row.Z, row.Rotation,
		row.HP, row.MaxHP, row.Mana, row.MaxMana, row.Level, row.XP, row.Credits,
		inventory, spells,
	)
	return err
}

// SavePlayer updates all mutable fields for one row.
func (r *PlayerRepo) SavePlayer(ctx context.Context, row *PlayerRow) error {
	row.Clamp()
	inventory, spells, err := encodeBlocks(row)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE players SET
			name = $1, race = $2, x = $3, y = $4, z = $5, rotation = $6,
			hp = $7, max_hp = $8, mana = $9, max_mana = $10,
			level = $11, xp = $12, credits = $13,
			inventory = $14, spells = $15, updated_at = NOW()
		WHERE account_id = $16`,
		row.Name, row.Race, row.X, row.Y, row.Z, row.Rotation,
		row.HP, row.MaxHP, row.Mana, row.MaxMana,
		row.Level, row.XP, row.Credits,
		inventory, spells, row.AccountID,
	)
	return err
}

// SavePlayers writes a batch in a single transaction so the flush either
// lands whole or can be re-queued whole.
func (r *PlayerRepo) SavePlayers(ctx context.Context, rows []*PlayerRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save batch begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range rows {
		row.Clamp()
		inventory, spells, err := encodeBlocks(row)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE players SET
				name = $1, race = $2, x = $3, y = $4, z = $5, rotation = $6,
				hp = $7, max_hp = $8, mana = $9, max_mana = $10,
				level = $11, xp = $12, credits = $13,
				inventory = $14, spells = $15, updated_at = NOW()
			WHERE account_id = $16`,
			row.Name, row.Race, row.X, row.Y, row.Z, row.Rotation,
			row.HP, row.MaxHP, row.Mana, row.MaxMana,
			row.Level, row.XP, row.Credits,
			inventory, spells, row.AccountID,
		); err != nil {
			return fmt.Errorf("save batch %s: %w", row.AccountID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PlayerRepo) PlayerNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM players WHERE name = $1)`, name,
	).Scan(&exists)
	return exists, err
}

func (r *PlayerRepo) ListCharacters(ctx context.Context, accountID string) ([]CharacterSummary, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT account_id, name, race, level, updated_at
		 FROM players WHERE account_id = $1
		 ORDER BY updated_at DESC`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CharacterSummary
	for rows.Next() {
		var s CharacterSummary
		if err := rows.Scan(&s.AccountID, &s.Name, &s.Race, &s.Level, &s.LastLogin); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PlayerRepo) CountCharacters(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM players WHERE account_id = $1`, accountID,
	).Scan(&n)
	return n, err
}

func encodeBlocks(row *PlayerRow) (inventory, spells []byte, err error) {
	inv := row.Inventory
	if inv == nil {
		inv = map[string]int{}
	}
	if inventory, err = json.Marshal(inv); err != nil {
		return nil, nil, fmt.Errorf("encode inventory for %s: %w", row.AccountID, err)
	}
	sp := row.Spells
	if sp == nil {
		sp = []string{}
	}
	if spells, err = json.Marshal(sp); err != nil {
		return nil, nil, fmt.Errorf("encode spells for %s: %w", row.AccountID, err)
	}
	return inventory, spells, nil
}
