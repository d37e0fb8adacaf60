package system

import "time"

// Phase fixes execution order inside a room tick.
type Phase int

const (
	PhaseInput    Phase = iota // drain session inbound queues
	PhaseEvents                // deliver events queued by the handlers
	PhaseSimulate              // projectiles, combat, enemy AI
	PhaseWorld                 // spawns, dungeon bookkeeping
	PhasePersist               // loot expiry, sweeps, auto-save
	PhaseOutput                // batcher flush + delta broadcast
	PhaseCleanup               // hand buffered frames to the writers
)

// System is one pass of the room tick.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Func adapts a closure into a System.
func Func(p Phase, fn func(dt time.Duration)) System {
	return funcSystem{phase: p, fn: fn}
}

type funcSystem struct {
	phase Phase
	fn    func(time.Duration)
}

func (s funcSystem) Phase() Phase            { return s.phase }
func (s funcSystem) Update(dt time.Duration) { s.fn(dt) }
