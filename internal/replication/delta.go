package replication

// EntityCore is the reduced per-entity view the delta compressor works on:
// position plus core stats. Comparable so unchanged entities cost one
// struct compare.
type EntityCore struct {
	Kind     string
	X, Y, Z  float64
	Rotation float64
	HP       int
	MaxHP    int
	Mana     int
	Level    int
}

// Change is one emitted field difference.
type Change struct {
	EntityID uint64 `json:"entityId"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
}

// DeltaCompressor diffs successive reduced snapshots. Entities absent from
// the new snapshot emit nothing; their removal is replicated eagerly by the
// room when it happens.
// Single-goroutine access only (room loop).
type DeltaCompressor struct {
	prev map[uint64]EntityCore
}

func NewDeltaCompressor() *DeltaCompressor {
	return &DeltaCompressor{prev: make(map[uint64]EntityCore)}
}

// Diff emits one Change per changed field against the previous snapshot,
// then adopts current as the new baseline. A first-seen entity emits all of
// its fields. An identical snapshot emits nothing.
func (d *DeltaCompressor) Diff(current map[uint64]EntityCore) []Change {
	var changes []Change
	for id, cur := range current {
		prev, seen := d.prev[id]
		if seen && prev == cur {
			continue
		}
		changes = appendFieldChanges(changes, id, prev, cur, seen)
	}
	d.prev = current
	return changes
}

// Reset drops the baseline so the next diff emits everything.
func (d *DeltaCompressor) Reset() {
	d.prev = make(map[uint64]EntityCore)
}

func appendFieldChanges(out []Change, id uint64, prev, cur EntityCore, seen bool) []Change {
	if !seen || prev.X != cur.X {
		out = append(out, Change{id, "x", cur.X})
	}
	if !seen || prev.Y != cur.Y {
		out = append(out, Change{id, "y", cur.Y})
	}
	if !seen || prev.Z != cur.Z {
		out = append(out, Change{id, "z", cur.Z})
	}
	if !seen || prev.Rotation != cur.Rotation {
		out = append(out, Change{id, "rotation", cur.Rotation})
	}
	if !seen || prev.HP != cur.HP {
		out = append(out, Change{id, "hp", cur.HP})
	}
	if !seen || prev.MaxHP != cur.MaxHP {
		out = append(out, Change{id, "maxHp", cur.MaxHP})
	}
	if !seen || prev.Mana != cur.Mana {
		out = append(out, Change{id, "mana", cur.Mana})
	}
	if !seen || prev.Level != cur.Level {
		out = append(out, Change{id, "level", cur.Level})
	}
	return out
}
