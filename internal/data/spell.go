package data

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// SpellInfo holds a single spell template.
type SpellInfo struct {
	ID              string
	Name            string
	ManaCost        int
	Cooldown        time.Duration
	Damage          int // per-hit base before combo/crit scaling
	Heal            int // self heal on cast (0 = none)
	ProjectileSpeed float64
	ProjectileTTL   time.Duration // 0 = non-projectile spell
}

// Projectile reports whether the spell spawns a travelling projectile.
func (s *SpellInfo) Projectile() bool {
	return s.ProjectileTTL > 0 && s.ProjectileSpeed > 0
}

// SpellTable holds all spells indexed by ID.
type SpellTable struct {
	spells map[string]*SpellInfo
}

// Get returns a spell by ID, or nil if not found.
func (t *SpellTable) Get(id string) *SpellInfo {
	return t.spells[id]
}

// Count returns total loaded spells.
func (t *SpellTable) Count() int {
	return len(t.spells)
}

// All returns all spell infos.
func (t *SpellTable) All() []*SpellInfo {
	result := make([]*SpellInfo, 0, len(t.spells))
	for _, s := range t.spells {
		result = append(result, s)
	}
	return result
}

// --- YAML loading ---

type spellEntry struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	ManaCost        int     `yaml:"mana_cost"`
	CooldownMs      int     `yaml:"cooldown_ms"`
	Damage          int     `yaml:"damage"`
	Heal            int     `yaml:"heal"`
	ProjectileSpeed float64 `yaml:"projectile_speed"`
	ProjectileTTLMs int     `yaml:"projectile_ttl_ms"`
}

type spellListFile struct {
	Spells []spellEntry `yaml:"spells"`
}

// LoadSpellTable loads spell definitions from YAML. An empty path loads the
// embedded defaults.
func LoadSpellTable(path string) (*SpellTable, error) {
	raw, err := readTable(path, "yaml/spells.yaml")
	if err != nil {
		return nil, fmt.Errorf("read spells: %w", err)
	}
	var f spellListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spells: %w", err)
	}
	t := &SpellTable{spells: make(map[string]*SpellInfo, len(f.Spells))}
	for i := range f.Spells {
		e := &f.Spells[i]
		if e.ID == "" {
			return nil, fmt.Errorf("parse spells: entry %d has no id", i)
		}
		t.spells[e.ID] = &SpellInfo{
			ID:              e.ID,
			Name:            e.Name,
			ManaCost:        e.ManaCost,
			Cooldown:        time.Duration(e.CooldownMs) * time.Millisecond,
			Damage:          e.Damage,
			Heal:            e.Heal,
			ProjectileSpeed: e.ProjectileSpeed,
			ProjectileTTL:   time.Duration(e.ProjectileTTLMs) * time.Millisecond,
		}
	}
	return t, nil
}
