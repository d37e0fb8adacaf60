package persist

import (
	"context"
	"fmt"
)

type TradeLogRepo struct {
	db *DB
}

func NewTradeLogRepo(db *DB) *TradeLogRepo {
	return &TradeLogRepo{db: db}
}

// AppendTradeLog atomically writes both sides of an executed trade in a
// single transaction. If it fails the trade still stands; the audit ring
// in the room keeps the in-memory record.
func (r *TradeLogRepo) AppendTradeLog(ctx context.Context, entries []TradeLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("trade log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO trade_log (trade_id, from_account, to_account, item, qty, credits)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.TradeID, e.FromAccount, e.ToAccount, e.Item, e.Qty, e.Credits,
		); err != nil {
			return fmt.Errorf("trade log insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
