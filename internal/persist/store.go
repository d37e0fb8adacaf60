package persist

import "context"

// PlayerStore loads and saves player rows. Get returns (nil, nil) when the
// account has no character yet.
type PlayerStore interface {
	GetPlayer(ctx context.Context, accountID string) (*PlayerRow, error)
	CreatePlayer(ctx context.Context, row *PlayerRow) error
	SavePlayer(ctx context.Context, row *PlayerRow) error
	SavePlayers(ctx context.Context, rows []*PlayerRow) error
	PlayerNameExists(ctx context.Context, name string) (bool, error)
	ListCharacters(ctx context.Context, accountID string) ([]CharacterSummary, error)
	CountCharacters(ctx context.Context, accountID string) (int, error)
}

// AccountStore backs the local identity mode. LoadAccount returns
// (nil, nil) when the account does not exist.
type AccountStore interface {
	LoadAccount(ctx context.Context, name string) (*AccountRow, error)
	CreateAccount(ctx context.Context, name, rawPassword string) (*AccountRow, error)
	SetOnline(ctx context.Context, name string, online bool) error
	TouchAccount(ctx context.Context, name string) error
}

// DungeonStore persists active progress and completed runs.
type DungeonStore interface {
	SaveDungeonProgress(ctx context.Context, row *DungeonProgressRow) error
	LoadDungeonProgress(ctx context.Context, accountID string) (*DungeonProgressRow, error)
	ClearDungeonProgress(ctx context.Context, accountID string) error
	RecordDungeonCompletion(ctx context.Context, row *DungeonCompletionRow) error
}

// TradeLogStore appends executed trades to the audit table.
type TradeLogStore interface {
	AppendTradeLog(ctx context.Context, entries []TradeLogEntry) error
}

// Store bundles every repository the server persists through. The memory
// backend serves tests and single-node runs; the sql backend is Postgres.
type Store interface {
	PlayerStore
	AccountStore
	DungeonStore
	TradeLogStore
	Close()
}

// SQLStore is the Postgres-backed Store.
type SQLStore struct {
	*PlayerRepo
	*AccountRepo
	*DungeonRepo
	*TradeLogRepo
	db *DB
}

func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{
		PlayerRepo:   NewPlayerRepo(db),
		AccountRepo:  NewAccountRepo(db),
		DungeonRepo:  NewDungeonRepo(db),
		TradeLogRepo: NewTradeLogRepo(db),
		db:           db,
	}
}

func (s *SQLStore) Close() {
	s.db.Close()
}
