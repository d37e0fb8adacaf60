// Package validate implements the server-side checker consulted on every
// state-changing client message: movement, damage, spell cooldowns,
// inventory changes and action-rate ceilings, with suspicion scoring that
// escalates to a kick.
package validate

import (
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// Level orders suspicion severities.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "none"
	}
}

var (
	ErrOnCooldown = errors.New("spell on cooldown")
	ErrNoMana     = errors.New("not enough mana")
)

// Entry is one recorded suspicious activity.
type Entry struct {
	Account string
	Reason  string
	Level   Level
	At      time.Time
}

// Config carries the tunable bounds. Zero values fall back to the defaults
// of the game rules.
type Config struct {
	BaseSpeed     float64       // base walk speed, units/s
	TeleportDist  float64       // hard distance bound per movement
	MaxDamage     int           // upper damage bound per hit
	MaxQty        int           // upper inventory quantity per change
	WindowActions int           // actions allowed per sliding window
	Window        time.Duration // sliding window size
}

func (c *Config) fill() {
	if c.BaseSpeed <= 0 {
		c.BaseSpeed = 5
	}
	if c.TeleportDist <= 0 {
		c.TeleportDist = 50
	}
	if c.MaxDamage <= 0 {
		c.MaxDamage = 10000
	}
	if c.MaxQty <= 0 {
		c.MaxQty = 10000
	}
	if c.WindowActions <= 0 {
		c.WindowActions = 100
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
}

const (
	dtMin = 16 * time.Millisecond
	dtMax = time.Second

	// speed rejection threshold: 2.5x base walk speed plus a 50% margin
	speedFactor = 2.5
	speedMargin = 1.5

	maxEntriesPerAccount = 256
)

type position struct {
	x, y, z float64
	at      time.Time
	set     bool
}

type cooldownKey struct {
	account string
	spell   string
}

// Validator is room-private and accessed only from the room loop.
type Validator struct {
	cfg     Config
	log     *zap.Logger
	onEntry func(Entry)

	lastPos   map[string]position
	cooldowns map[cooldownKey]time.Time
	actions   map[string][]time.Time
	entries   map[string][]Entry
}

// NewValidator builds a validator. onEntry, when non-nil, receives every
// suspicion record (the room feeds these to the monitor).
func NewValidator(cfg Config, log *zap.Logger, onEntry func(Entry)) *Validator {
	cfg.fill()
	return &Validator{
		cfg:       cfg,
		log:       log,
		onEntry:   onEntry,
		lastPos:   make(map[string]position),
		cooldowns: make(map[cooldownKey]time.Time),
		actions:   make(map[string][]time.Time),
		entries:   make(map[string][]Entry),
	}
}

// SeedPosition installs the server-accepted position at join time.
func (v *Validator) SeedPosition(account string, x, y, z float64, at time.Time) {
	v.lastPos[account] = position{x: x, y: y, z: z, at: at, set: true}
}

// Movement checks the target position against the last server-accepted one.
// The client's claimed origin is ignored. On acceptance the new position
// becomes the accepted one; on rejection the caller sends a position
// correction back to the stored position.
func (v *Validator) Movement(account string, toX, toY, toZ float64, ts time.Time) bool {
	last, ok := v.lastPos[account]
	if !ok || !last.set {
		v.lastPos[account] = position{x: toX, y: toY, z: toZ, at: ts, set: true}
		return true
	}

	dist := planarDist(last.x, last.z, toX, toZ)
	if dist > v.cfg.TeleportDist {
		v.record(account, "teleport", LevelHigh, ts)
		return false
	}

	dt := ts.Sub(last.at)
	if dt < dtMin {
		dt = dtMin
	}
	if dt > dtMax {
		dt = dtMax
	}
	speed := dist / dt.Seconds()
	if speed > v.cfg.BaseSpeed*speedFactor*speedMargin {
		v.record(account, "speed hack", LevelMedium, ts)
		return false
	}

	v.lastPos[account] = position{x: toX, y: toY, z: toZ, at: ts, set: true}
	return true
}

// AcceptedPosition returns the stored server-accepted position for the
// account, for position corrections.
func (v *Validator) AcceptedPosition(account string) (x, y, z float64, ok bool) {
	p, ok := v.lastPos[account]
	if !ok || !p.set {
		return 0, 0, 0, false
	}
	return p.x, p.y, p.z, true
}

// Damage bounds a single hit amount.
func (v *Validator) Damage(account string, amount int, now time.Time) bool {
	if amount <= 0 {
		v.record(account, "non-positive damage", LevelLow, now)
		return false
	}
	if amount > v.cfg.MaxDamage {
		v.record(account, "excessive damage", LevelHigh, now)
		return false
	}
	return true
}

// SpellCast enforces per-(account, spell) cooldowns and the mana budget.
// A successful call records the cast time.
func (v *Validator) SpellCast(account, spell string, mana, manaCost int, cooldown time.Duration, now time.Time) error {
	k := cooldownKey{account: account, spell: spell}
	if last, ok := v.cooldowns[k]; ok && now.Sub(last) < cooldown {
		v.record(account, "spell cooldown violation", LevelMedium, now)
		return ErrOnCooldown
	}
	if mana < manaCost {
		return ErrNoMana
	}
	v.cooldowns[k] = now
	return nil
}

// InventoryChange bounds item quantity mutations. op is "add" or "remove".
func (v *Validator) InventoryChange(account, item string, qty int, op string, now time.Time) bool {
	if op == "remove" && qty < 0 {
		v.record(account, "negative remove quantity", LevelHigh, now)
		return false
	}
	if qty <= 0 || qty > v.cfg.MaxQty {
		v.record(account, "invalid item quantity", LevelMedium, now)
		return false
	}
	return true
}

// RecordAction counts one inbound action into the sliding window and
// returns the account's current suspicion level. Exceeding the window
// ceiling records a high entry; LevelCritical means the session must be
// kicked.
func (v *Validator) RecordAction(account, action string, now time.Time) Level {
	cutoff := now.Add(-v.cfg.Window)
	win := pruneTimes(v.actions[account], cutoff)
	win = append(win, now)
	v.actions[account] = win

	if len(win) > v.cfg.WindowActions {
		v.record(account, "action rate exceeded: "+action, LevelHigh, now)
	}
	return v.SuspicionLevel(account, now)
}

// SuspicionLevel maps the number of suspicion entries in the last window to
// a level: >=3 low, >=5 medium, >=10 high, >=20 critical.
func (v *Validator) SuspicionLevel(account string, now time.Time) Level {
	cutoff := now.Add(-v.cfg.Window)
	n := 0
	for _, e := range v.entries[account] {
		if e.At.After(cutoff) {
			n++
		}
	}
	switch {
	case n >= 20:
		return LevelCritical
	case n >= 10:
		return LevelHigh
	case n >= 5:
		return LevelMedium
	case n >= 3:
		return LevelLow
	default:
		return LevelNone
	}
}

// Entries returns the retained suspicion records for an account.
func (v *Validator) Entries(account string) []Entry {
	return v.entries[account]
}

// ClearSession drops the per-session movement, cooldown and rate state.
// Suspicion entries are kept for moderation.
func (v *Validator) ClearSession(account string) {
	delete(v.lastPos, account)
	delete(v.actions, account)
	for k := range v.cooldowns {
		if k.account == account {
			delete(v.cooldowns, k)
		}
	}
}

func (v *Validator) record(account, reason string, level Level, at time.Time) {
	e := Entry{Account: account, Reason: reason, Level: level, At: at}
	list := append(v.entries[account], e)
	if len(list) > maxEntriesPerAccount {
		list = list[len(list)-maxEntriesPerAccount:]
	}
	v.entries[account] = list

	v.log.Warn("suspicious activity",
		zap.String("account", account),
		zap.String("reason", reason),
		zap.String("level", level.String()),
	)
	if v.onEntry != nil {
		v.onEntry(e)
	}
}

func pruneTimes(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	return ts[i:]
}

func planarDist(x1, z1, x2, z2 float64) float64 {
	return math.Hypot(x2-x1, z2-z1)
}
