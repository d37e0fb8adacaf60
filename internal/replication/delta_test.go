package replication

import "testing"

func core(x, z float64, hp int) EntityCore {
	return EntityCore{Kind: "enemy", X: x, Y: 0, Z: z, HP: hp, MaxHP: 100, Level: 1}
}

func TestDeltaFirstDiffEmitsAllFields(t *testing.T) {
	d := NewDeltaCompressor()
	changes := d.Diff(map[uint64]EntityCore{1: core(5, 5, 100)})
	if len(changes) != 8 {
		t.Fatalf("expected all 8 fields for a first-seen entity, got %d", len(changes))
	}
	for _, c := range changes {
		if c.EntityID != 1 {
			t.Fatalf("unexpected entity id %d", c.EntityID)
		}
	}
}

func TestDeltaUnchangedEmitsNothing(t *testing.T) {
	d := NewDeltaCompressor()
	snap := map[uint64]EntityCore{1: core(5, 5, 100), 2: core(9, 9, 80)}
	d.Diff(snap)

	same := map[uint64]EntityCore{1: core(5, 5, 100), 2: core(9, 9, 80)}
	if changes := d.Diff(same); len(changes) != 0 {
		t.Fatalf("identical snapshot must emit nothing, got %v", changes)
	}
}

func TestDeltaEmitsOnlyChangedFields(t *testing.T) {
	d := NewDeltaCompressor()
	d.Diff(map[uint64]EntityCore{1: core(5, 5, 100)})

	changes := d.Diff(map[uint64]EntityCore{1: core(6, 5, 50)})
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes (x, hp), got %v", changes)
	}
	fields := map[string]any{}
	for _, c := range changes {
		fields[c.Field] = c.Value
	}
	if fields["x"] != 6.0 {
		t.Fatalf("expected x change to 6, got %v", fields["x"])
	}
	if fields["hp"] != 50 {
		t.Fatalf("expected hp change to 50, got %v", fields["hp"])
	}
}

func TestDeltaRemovedEntityEmitsNothing(t *testing.T) {
	d := NewDeltaCompressor()
	d.Diff(map[uint64]EntityCore{1: core(5, 5, 100), 2: core(1, 1, 10)})

	changes := d.Diff(map[uint64]EntityCore{1: core(5, 5, 100)})
	if len(changes) != 0 {
		t.Fatalf("removal is replicated eagerly; delta must be silent, got %v", changes)
	}
}

func TestDeltaBaselineSwapsAfterEmit(t *testing.T) {
	d := NewDeltaCompressor()
	d.Diff(map[uint64]EntityCore{1: core(5, 5, 100)})
	d.Diff(map[uint64]EntityCore{1: core(6, 5, 100)})

	// Third diff against the swapped baseline: no repeat of the x change.
	if changes := d.Diff(map[uint64]EntityCore{1: core(6, 5, 100)}); len(changes) != 0 {
		t.Fatalf("baseline did not swap, got %v", changes)
	}
}
