package spatial

import (
	"sort"
	"testing"
)

func collect(g *Grid, cx, cy, cz, radius float64) []uint64 {
	var ids []uint64
	for id := range g.Query(cx, cy, cz, radius) {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestInsertAndQuery(t *testing.T) {
	g := NewGrid(10)
	g.Insert(1, 5, 0, 5)
	g.Insert(2, 15, 0, 5)
	g.Insert(3, 95, 0, 95)

	got := collect(g, 5, 0, 5, 2)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only id 1 near (5,0,5), got %v", got)
	}

	// Radius spanning the neighbor cell picks up id 2 as a candidate.
	got = collect(g, 9, 0, 5, 5)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
}

func TestNegativeCoordinates(t *testing.T) {
	g := NewGrid(10)
	g.Insert(1, -5, -5, -5)
	g.Insert(2, -15, 0, 0)

	got := collect(g, -4, -4, -4, 3)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected id 1 near (-4,-4,-4), got %v", got)
	}

	// -5 and -15 must land in different cells (floor division, not truncation).
	got = collect(g, -5, 0, 0, 1)
	for _, id := range got {
		if id == 2 {
			t.Fatal("id 2 at x=-15 must not share the cell of x=-5")
		}
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	g := NewGrid(10)
	g.Remove(42)
	if g.Len() != 0 {
		t.Fatalf("expected empty grid, got %d", g.Len())
	}

	g.Insert(1, 0, 0, 0)
	g.Remove(1)
	g.Remove(1)
	if g.Len() != 0 {
		t.Fatalf("expected empty grid after double remove, got %d", g.Len())
	}
	if got := collect(g, 0, 0, 0, 5); len(got) != 0 {
		t.Fatalf("removed id still queryable: %v", got)
	}
}

func TestDuplicateInsertReplacesBinding(t *testing.T) {
	g := NewGrid(10)
	g.Insert(7, 5, 0, 5)
	g.Insert(7, 95, 0, 95)

	if g.Len() != 1 {
		t.Fatalf("expected a single binding, got %d", g.Len())
	}
	if got := collect(g, 5, 0, 5, 2); len(got) != 0 {
		t.Fatalf("old binding survived re-insert: %v", got)
	}
	if got := collect(g, 95, 0, 95, 2); len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected id 7 at new cell, got %v", got)
	}
}

func TestMoveAcrossCells(t *testing.T) {
	g := NewGrid(10)
	g.Insert(1, 1, 1, 1)
	g.Move(1, 2, 1, 1) // same cell
	g.Move(1, 25, 1, 1)

	if got := collect(g, 1, 1, 1, 3); len(got) != 0 {
		t.Fatalf("id remained in origin cell after move: %v", got)
	}
	if got := collect(g, 25, 1, 1, 3); len(got) != 1 {
		t.Fatalf("expected id in destination cell, got %v", got)
	}
}

func TestQueryEarlyStop(t *testing.T) {
	g := NewGrid(10)
	for i := uint64(1); i <= 20; i++ {
		g.Insert(i, 5, 5, 5)
	}
	seen := 0
	for range g.Query(5, 5, 5, 1) {
		seen++
		if seen == 3 {
			break
		}
	}
	if seen != 3 {
		t.Fatalf("expected early stop after 3, saw %d", seen)
	}
}

func TestQueryAppendReusesBuffer(t *testing.T) {
	g := NewGrid(10)
	g.Insert(1, 0, 0, 0)
	g.Insert(2, 3, 0, 0)

	buf := make([]uint64, 0, 8)
	buf = g.QueryAppend(0, 0, 0, 5, buf)
	if len(buf) != 2 {
		t.Fatalf("expected 2 ids, got %v", buf)
	}
	buf = g.QueryAppend(0, 0, 0, 5, buf[:0])
	if len(buf) != 2 {
		t.Fatalf("expected 2 ids after reuse, got %v", buf)
	}
}

func BenchmarkQueryAppend(b *testing.B) {
	g := NewGrid(10)
	for i := uint64(0); i < 1000; i++ {
		g.Insert(i, float64(i%100), 0, float64(i/10))
	}
	buf := make([]uint64, 0, 64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = g.QueryAppend(50, 0, 50, 2, buf[:0])
	}
}
