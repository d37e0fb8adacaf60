// Package dungeon generates seeded, reproducible dungeon instances and
// tracks per-account runs through them. Two servers generating from the
// same (seed, difficulty, level) produce identical layouts.
package dungeon

const (
	lcgMul = 9301
	lcgInc = 49297
	lcgMod = 233280
)

// LCG is the fixed linear-congruential generator the layout sequence is
// defined against. Not for anything security-adjacent.
type LCG struct {
	state int64
}

func NewLCG(seed int64) *LCG {
	s := seed % lcgMod
	if s < 0 {
		s += lcgMod
	}
	return &LCG{state: s}
}

// Next returns the next value in [0, 1).
func (r *LCG) Next() float64 {
	r.state = (r.state*lcgMul + lcgInc) % lcgMod
	return float64(r.state) / lcgMod
}

// Intn returns a value in [0, n).
func (r *LCG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() * float64(n))
}

// Range returns min + ⌊rng × (max − min)⌋.
func (r *LCG) Range(min, max int) int {
	if max <= min {
		return min
	}
	return min + r.Intn(max-min)
}
