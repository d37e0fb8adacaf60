package data

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EnemyInfo holds a single enemy template. Stat formulas scale from Level;
// HPBase overrides the default curve when non-zero.
type EnemyInfo struct {
	Type         string
	Name         string
	Level        int
	HPBase       int     // 0 = 50 + level*25
	MoveStep     float64 // per-tick step override, 0 = global AI defaults
	XPReward     int
	CreditReward int
}

// MaxHP returns the spawn hit points for the template.
func (e *EnemyInfo) MaxHP() int {
	if e.HPBase > 0 {
		return e.HPBase
	}
	return 50 + e.Level*25
}

// EnemyTable holds all enemy templates indexed by type.
type EnemyTable struct {
	enemies map[string]*EnemyInfo
	types   []string // stable spawn rotation order
}

// Get returns a template by type, or nil if not found.
func (t *EnemyTable) Get(typ string) *EnemyInfo {
	return t.enemies[typ]
}

// Types returns the template types in file order.
func (t *EnemyTable) Types() []string {
	return t.types
}

// Count returns total loaded templates.
func (t *EnemyTable) Count() int {
	return len(t.enemies)
}

// --- YAML loading ---

type enemyEntry struct {
	Type         string  `yaml:"type"`
	Name         string  `yaml:"name"`
	Level        int     `yaml:"level"`
	HPBase       int     `yaml:"hp_base"`
	MoveStep     float64 `yaml:"move_step"`
	XPReward     int     `yaml:"xp_reward"`
	CreditReward int     `yaml:"credit_reward"`
}

type enemyListFile struct {
	Enemies []enemyEntry `yaml:"enemies"`
}

// LoadEnemyTable loads enemy templates from YAML. An empty path loads the
// embedded defaults.
func LoadEnemyTable(path string) (*EnemyTable, error) {
	raw, err := readTable(path, "yaml/enemies.yaml")
	if err != nil {
		return nil, fmt.Errorf("read enemies: %w", err)
	}
	var f enemyListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse enemies: %w", err)
	}
	t := &EnemyTable{
		enemies: make(map[string]*EnemyInfo, len(f.Enemies)),
		types:   make([]string, 0, len(f.Enemies)),
	}
	for i := range f.Enemies {
		e := &f.Enemies[i]
		if e.Type == "" {
			return nil, fmt.Errorf("parse enemies: entry %d has no type", i)
		}
		t.enemies[e.Type] = &EnemyInfo{
			Type:         e.Type,
			Name:         e.Name,
			Level:        e.Level,
			HPBase:       e.HPBase,
			MoveStep:     e.MoveStep,
			XPReward:     e.XPReward,
			CreditReward: e.CreditReward,
		}
		t.types = append(t.types, e.Type)
	}
	return t, nil
}
