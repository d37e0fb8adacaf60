package world

import (
	"math"
	"time"
)

// comboWindow is how long a kill streak stays alive without a new kill.
const comboWindow = 8 * time.Second

// comboCap is the maximum damage multiplier a streak can reach.
const comboCap = 3.0

// Combo tracks one player's kill streak.
type Combo struct {
	Kills       int
	WindowStart time.Time
	Multiplier  float64
	lastKill    time.Time
}

// ComboSet holds per-account kill streaks for one room.
// Single-goroutine access only (room loop).
type ComboSet struct {
	byAccount map[string]*Combo
}

func NewComboSet() *ComboSet {
	return &ComboSet{byAccount: make(map[string]*Combo)}
}

// RecordKill advances the account's streak, starting a fresh one when the
// previous streak has been idle past the window.
func (s *ComboSet) RecordKill(account string, now time.Time) *Combo {
	c, ok := s.byAccount[account]
	if !ok || now.Sub(c.lastKill) > comboWindow {
		c = &Combo{WindowStart: now}
		s.byAccount[account] = c
	}
	c.Kills++
	c.lastKill = now
	c.Multiplier = multiplierFor(c.Kills)
	return c
}

// MultiplierFor returns the account's current damage multiplier, expiring
// stale streaks on read.
func (s *ComboSet) MultiplierFor(account string, now time.Time) float64 {
	c, ok := s.byAccount[account]
	if !ok {
		return 1.0
	}
	if now.Sub(c.lastKill) > comboWindow {
		delete(s.byAccount, account)
		return 1.0
	}
	return c.Multiplier
}

// Get returns the live streak for an account, or nil.
func (s *ComboSet) Get(account string, now time.Time) *Combo {
	c, ok := s.byAccount[account]
	if !ok {
		return nil
	}
	if now.Sub(c.lastKill) > comboWindow {
		delete(s.byAccount, account)
		return nil
	}
	return c
}

// Remove drops the account's streak.
func (s *ComboSet) Remove(account string) {
	delete(s.byAccount, account)
}

// SweepIdle evicts streaks idle longer than maxIdle and returns the number
// evicted. The memory sweep calls this under RSS pressure.
func (s *ComboSet) SweepIdle(now time.Time, maxIdle time.Duration) int {
	n := 0
	for account, c := range s.byAccount {
		if now.Sub(c.lastKill) > maxIdle {
			delete(s.byAccount, account)
			n++
		}
	}
	return n
}

// Len returns the number of live streaks.
func (s *ComboSet) Len() int {
	return len(s.byAccount)
}

// multiplierFor is 1 + 0.1 per kill beyond the second, capped.
func multiplierFor(kills int) float64 {
	m := 1 + math.Max(0, float64(kills-2))*0.1
	return math.Min(m, comboCap)
}
