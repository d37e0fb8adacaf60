package data

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DropInfo is one weighted drop roll for an enemy type.
type DropInfo struct {
	Item   string
	Chance float64 // 0..1
	MinQty int
	MaxQty int
}

// DropTable maps enemy types to their kill drops.
type DropTable struct {
	drops map[string][]DropInfo
}

// Get returns the drop rolls for an enemy type, or nil if none defined.
func (t *DropTable) Get(typ string) []DropInfo {
	return t.drops[typ]
}

// Count returns the number of enemy types with drop entries.
func (t *DropTable) Count() int {
	return len(t.drops)
}

// Roll resolves at most one item drop for a kill. roll selects the entry,
// qtyRoll the quantity; both are fed from the room rng so outcomes stay on
// the room loop. Returns ("", 0) when nothing drops.
func (t *DropTable) Roll(typ string, roll, qtyRoll float64) (string, int) {
	for _, d := range t.drops[typ] {
		if roll >= d.Chance {
			roll -= d.Chance
			continue
		}
		span := d.MaxQty - d.MinQty + 1
		if span < 1 {
			span = 1
		}
		qty := d.MinQty + int(qtyRoll*float64(span))
		if qty < 1 {
			qty = 1
		}
		if d.MaxQty > 0 && qty > d.MaxQty {
			qty = d.MaxQty
		}
		return d.Item, qty
	}
	return "", 0
}

// --- YAML loading ---

type dropEntry struct {
	Item   string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
	MinQty int     `yaml:"min"`
	MaxQty int     `yaml:"max"`
}

type enemyDropEntry struct {
	Type  string      `yaml:"type"`
	Items []dropEntry `yaml:"items"`
}

type dropListFile struct {
	Drops []enemyDropEntry `yaml:"drops"`
}

// LoadDropTable loads kill drops from YAML. An empty path loads the
// embedded defaults.
func LoadDropTable(path string) (*DropTable, error) {
	raw, err := readTable(path, "yaml/drops.yaml")
	if err != nil {
		return nil, fmt.Errorf("read drops: %w", err)
	}
	var f dropListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse drops: %w", err)
	}
	t := &DropTable{drops: make(map[string][]DropInfo, len(f.Drops))}
	for i, e := range f.Drops {
		if e.Type == "" {
			return nil, fmt.Errorf("parse drops: entry %d has no type", i)
		}
		total := 0.0
		infos := make([]DropInfo, 0, len(e.Items))
		for j, it := range e.Items {
			if it.Item == "" {
				return nil, fmt.Errorf("parse drops: %s item %d has no name", e.Type, j)
			}
			if it.Chance <= 0 || it.Chance > 1 {
				return nil, fmt.Errorf("parse drops: %s item %s chance %v out of range", e.Type, it.Item, it.Chance)
			}
			total += it.Chance
			infos = append(infos, DropInfo{
				Item:   it.Item,
				Chance: it.Chance,
				MinQty: it.MinQty,
				MaxQty: it.MaxQty,
			})
		}
		if total > 1 {
			return nil, fmt.Errorf("parse drops: %s chances sum to %v", e.Type, total)
		}
		t.drops[e.Type] = infos
	}
	return t, nil
}
