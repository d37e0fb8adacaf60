package persist

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default backend: every repository backed by in-process
// maps. It mirrors the SQL backend's contract exactly, including
// (nil, nil) misses, so the room and tests run against either.
type MemoryStore struct {
	mu          sync.RWMutex
	players     map[string]*PlayerRow
	playerNames map[string]string // name -> account id
	accounts    map[string]*AccountRow
	progress    map[string]*DungeonProgressRow
	completions []*DungeonCompletionRow
	tradeLog    []TradeLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:     make(map[string]*PlayerRow),
		playerNames: make(map[string]string),
		accounts:    make(map[string]*AccountRow),
		progress:    make(map[string]*DungeonProgressRow),
	}
}

func (s *MemoryStore) GetPlayer(_ context.Context, accountID string) (*PlayerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players[accountID].Clone(), nil
}

func (s *MemoryStore) CreatePlayer(_ context.Context, row *PlayerRow) error {
	row.Clamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := row.Clone()
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.players[cp.AccountID] = cp
	s.playerNames[cp.Name] = cp.AccountID
	return nil
}

func (s *MemoryStore) SavePlayer(_ context.Context, row *PlayerRow) error {
	row.Clamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savePlayerLocked(row)
	return nil
}

func (s *MemoryStore) SavePlayers(_ context.Context, rows []*PlayerRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		row.Clamp()
		s.savePlayerLocked(row)
	}
	return nil
}

func (s *MemoryStore) savePlayerLocked(row *PlayerRow) {
	prev, ok := s.players[row.AccountID]
	if !ok {
		return // save of a never-created row is a no-op, like UPDATE
	}
	cp := row.Clone()
	cp.CreatedAt = prev.CreatedAt
	cp.UpdatedAt = time.Now()
	if prev.Name != cp.Name {
		delete(s.playerNames, prev.Name)
		s.playerNames[cp.Name] = cp.AccountID
	}
	s.players[cp.AccountID] = cp
}

func (s *MemoryStore) PlayerNameExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.playerNames[name]
	return ok, nil
}

func (s *MemoryStore) ListCharacters(_ context.Context, accountID string) ([]CharacterSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.players[accountID]
	if !ok {
		return nil, nil
	}
	return []CharacterSummary{{
		AccountID: row.AccountID,
		Name:      row.Name,
		Race:      row.Race,
		Level:     row.Level,
		LastLogin: row.UpdatedAt,
	}}, nil
}

func (s *MemoryStore) CountCharacters(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.players[accountID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *MemoryStore) LoadAccount(_ context.Context, name string) (*AccountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.accounts[name]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, name, rawPassword string) (*AccountRow, error) {
	hash, err := HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	row := &AccountRow{
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		LastActive:   &now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[name] = row
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) SetOnline(_ context.Context, name string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.accounts[name]; ok {
		row.Online = online
	}
	return nil
}

func (s *MemoryStore) TouchAccount(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.accounts[name]; ok {
		now := time.Now()
		row.LastActive = &now
	}
	return nil
}

func (s *MemoryStore) SaveDungeonProgress(_ context.Context, row *DungeonProgressRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	cp.UpdatedAt = time.Now()
	s.progress[cp.AccountID] = &cp
	return nil
}

func (s *MemoryStore) LoadDungeonProgress(_ context.Context, accountID string) (*DungeonProgressRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.progress[accountID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) ClearDungeonProgress(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, accountID)
	return nil
}

func (s *MemoryStore) RecordDungeonCompletion(_ context.Context, row *DungeonCompletionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	s.completions = append(s.completions, &cp)
	return nil
}

// Completions returns a snapshot of recorded runs for tests.
func (s *MemoryStore) Completions() []DungeonCompletionRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DungeonCompletionRow, 0, len(s.completions))
	for _, c := range s.completions {
		out = append(out, *c)
	}
	return out
}

func (s *MemoryStore) AppendTradeLog(_ context.Context, entries []TradeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeLog = append(s.tradeLog, entries...)
	return nil
}

// TradeLog returns a snapshot of appended entries for tests.
func (s *MemoryStore) TradeLog() []TradeLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TradeLogEntry(nil), s.tradeLog...)
}

func (s *MemoryStore) Close() {}
