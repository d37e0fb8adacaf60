package world

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nexusroom/server/internal/net"
)

// Player is the session-scoped view of a connected character. Identity fields
// are immutable for the session's lifetime; position is mutated only by the
// room tick after validation.
type Player struct {
	EntityID    uint64
	CharacterID string
	AccountID   string

	// Sess is the owning transport session; handlers send replies and
	// broadcasts through it. Nil only in tests that exercise pure state.
	Sess *net.Session

	Name string
	Race string

	X, Y, Z  float64
	Rotation float64

	HP, MaxHP     int
	Mana, MaxMana int
	Level         int
	XP            int
	Credits       int

	Inventory map[string]int
	Spells    []string
	GuildID   string

	// Dirty marks unsaved mutations for the auto-save pass.
	Dirty bool
}

// ClampVitals enforces 0 <= hp <= max_hp and 0 <= mana <= max_mana.
func (p *Player) ClampVitals() {
	if p.HP < 0 {
		p.HP = 0
	}
	if p.HP > p.MaxHP {
		p.HP = p.MaxHP
	}
	if p.Mana < 0 {
		p.Mana = 0
	}
	if p.Mana > p.MaxMana {
		p.Mana = p.MaxMana
	}
}

// AddItem adjusts an inventory stack, deleting the key at zero.
func (p *Player) AddItem(item string, qty int) {
	if p.Inventory == nil {
		p.Inventory = make(map[string]int)
	}
	next := p.Inventory[item] + qty
	if next <= 0 {
		delete(p.Inventory, item)
		return
	}
	p.Inventory[item] = next
}

// ItemCount reports the held quantity of an item.
func (p *Player) ItemCount(item string) int {
	return p.Inventory[item]
}

// NormalizeName trims and NFC-normalizes a display name so that lookups and
// uniqueness checks agree with what was persisted.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
