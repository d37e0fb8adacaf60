package persist

import "time"

const (
	MaxLevel   = 100
	MaxNameLen = 100

	defaultMaxHP = 100
)

// PlayerRow is the persisted shape of a player character, keyed by account.
type PlayerRow struct {
	AccountID string
	Name      string
	Race      string
	X         float64
	Y         float64
	Z         float64
	Rotation  float64
	HP        int
	MaxHP     int
	Mana      int
	MaxMana   int
	Level     int
	XP        int64
	Credits   int64
	Inventory map[string]int
	Spells    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clamp forces the row into persistable bounds before any write: vitals
// within [0,max], level within [1,100], name truncated to 100 runes,
// negative currencies zeroed.
func (r *PlayerRow) Clamp() {
	if r.MaxHP <= 0 {
		r.MaxHP = defaultMaxHP
	}
	if r.HP < 0 {
		r.HP = 0
	}
	if r.HP > r.MaxHP {
		r.HP = r.MaxHP
	}
	if r.MaxMana < 0 {
		r.MaxMana = 0
	}
	if r.Mana < 0 {
		r.Mana = 0
	}
	if r.Mana > r.MaxMana {
		r.Mana = r.MaxMana
	}
	if r.Level < 1 {
		r.Level = 1
	}
	if r.Level > MaxLevel {
		r.Level = MaxLevel
	}
	if runes := []rune(r.Name); len(runes) > MaxNameLen {
		r.Name = string(runes[:MaxNameLen])
	}
	if r.XP < 0 {
		r.XP = 0
	}
	if r.Credits < 0 {
		r.Credits = 0
	}
	for item, qty := range r.Inventory {
		if qty <= 0 {
			delete(r.Inventory, item)
		}
	}
}

// Clone deep-copies the row so cached reads cannot alias live state.
func (r *PlayerRow) Clone() *PlayerRow {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Inventory = make(map[string]int, len(r.Inventory))
	for k, v := range r.Inventory {
		cp.Inventory[k] = v
	}
	cp.Spells = append([]string(nil), r.Spells...)
	return &cp
}

// CharacterSummary is the listing view of a character, served to the
// account's character-select surface.
type CharacterSummary struct {
	AccountID string
	Name      string
	Race      string
	Level     int
	LastLogin time.Time
}

// AccountRow is one login account for the local identity mode.
type AccountRow struct {
	Name         string
	PasswordHash string
	Banned       bool
	Online       bool
	CreatedAt    time.Time
	LastActive   *time.Time
}

// DungeonProgressRow is the per-account active dungeon snapshot.
type DungeonProgressRow struct {
	AccountID    string
	DungeonID    string
	Difficulty   int
	Floor        int
	RoomsCleared int
	BossDefeated bool
	UpdatedAt    time.Time
}

// DungeonCompletionRow is one finished dungeon run.
type DungeonCompletionRow struct {
	ID          string
	AccountID   string
	DungeonID   string
	Difficulty  int
	Level       int
	XP          int
	Credits     int
	Crystals    int
	Duration    time.Duration
	CompletedAt time.Time
}

// TradeLogEntry is one side of an executed trade, written append-only.
type TradeLogEntry struct {
	TradeID     string
	FromAccount string
	ToAccount   string
	Item        string // "" for a pure credit transfer
	Qty         int
	Credits     int64
}
