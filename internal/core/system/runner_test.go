package system

import (
	"testing"
	"time"
)

func TestTickRunsPhasesInOrder(t *testing.T) {
	r := NewRunner()
	var order []string
	// Registered out of phase order on purpose.
	r.Register(Func(PhaseOutput, func(time.Duration) { order = append(order, "output") }))
	r.Register(Func(PhaseEvents, func(time.Duration) { order = append(order, "events") }))
	r.Register(Func(PhaseSimulate, func(time.Duration) { order = append(order, "simulate") }))
	r.Register(Func(PhaseInput, func(time.Duration) { order = append(order, "input") }))

	r.Tick(16 * time.Millisecond)

	want := []string{"input", "events", "simulate", "output"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSamePhaseKeepsRegistrationOrder(t *testing.T) {
	r := NewRunner()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		r.Register(Func(PhaseSimulate, func(time.Duration) { order = append(order, i) }))
	}
	r.Tick(time.Millisecond)
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestRegisterAfterTickResorts(t *testing.T) {
	r := NewRunner()
	var order []string
	r.Register(Func(PhaseOutput, func(time.Duration) { order = append(order, "output") }))
	r.Tick(time.Millisecond)

	r.Register(Func(PhaseInput, func(time.Duration) { order = append(order, "input") }))
	order = order[:0]
	r.Tick(time.Millisecond)

	if len(order) != 2 || order[0] != "input" || order[1] != "output" {
		t.Fatalf("order = %v, want [input output]", order)
	}
}
