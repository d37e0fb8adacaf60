package dungeon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/persist"
	"github.com/nexusroom/server/internal/scripting"
)

var (
	ErrNotFound        = errors.New("dungeon not found")
	ErrAlreadyBound    = errors.New("account already in another dungeon")
	ErrNotBound        = errors.New("account not in this dungeon")
	ErrRoomsUncleared  = errors.New("uncleared rooms remain")
	ErrAlreadyComplete = errors.New("dungeon already completed")
)

const idleRelease = 60 * time.Second

// Progress is one account's run through a dungeon.
type Progress struct {
	AccountID        string
	DungeonID        string
	CurrentFloor     int
	RoomsCleared     []int
	EntitiesDefeated []int
	StartedAt        time.Time
}

// Rewards is the payout of a completed run.
type Rewards struct {
	XP       int
	Credits  int
	Crystals int
}

// Manager owns every dungeon instance of a room. It runs on the room
// goroutine and is not safe for concurrent use.
type Manager struct {
	cfg     Config
	store   persist.DungeonStore
	scripts *scripting.Engine
	log     *zap.Logger

	dungeons  map[string]*Dungeon
	byAccount map[string]string // account id -> dungeon id
	progress  map[string]*Progress

	// OnComplete fires once per bound account when a run completes.
	OnComplete func(account string, d *Dungeon, r Rewards)
}

func NewManager(cfg Config, store persist.DungeonStore, scripts *scripting.Engine, log *zap.Logger) *Manager {
	cfg.fill()
	return &Manager{
		cfg:       cfg,
		store:     store,
		scripts:   scripts,
		log:       log,
		dungeons:  make(map[string]*Dungeon),
		byAccount: make(map[string]string),
		progress:  make(map[string]*Progress),
	}
}

// Create generates and registers a new instance.
func (m *Manager) Create(seed int64, difficulty, level int) *Dungeon {
	d := Generate(m.cfg, seed, difficulty, level)
	m.dungeons[d.ID] = d
	m.log.Info("dungeon created",
		zap.String("dungeon", d.ID),
		zap.Int64("seed", seed),
		zap.Int("difficulty", difficulty),
		zap.Int("level", level),
		zap.Int("rooms", len(d.Rooms)),
		zap.Int("entities", len(d.Entities)),
	)
	return d
}

// Get returns a registered instance, or nil.
func (m *Manager) Get(id string) *Dungeon {
	return m.dungeons[id]
}

// DungeonOf returns the instance the account is bound to, or nil.
func (m *Manager) DungeonOf(account string) *Dungeon {
	if id, ok := m.byAccount[account]; ok {
		return m.dungeons[id]
	}
	return nil
}

// ProgressOf returns the account's run record, or nil.
func (m *Manager) ProgressOf(account string) *Progress {
	return m.progress[account]
}

// Enter binds the account to the dungeon and marks its entities spawned.
// Re-entering the same dungeon is a no-op; a different one is rejected.
func (m *Manager) Enter(account, dungeonID string) (*Dungeon, error) {
	d, ok := m.dungeons[dungeonID]
	if !ok {
		return nil, ErrNotFound
	}
	if bound, ok := m.byAccount[account]; ok {
		if bound != dungeonID {
			return nil, ErrAlreadyBound
		}
		d.lastActive = time.Now()
		return d, nil
	}

	m.byAccount[account] = dungeonID
	d.Players = append(d.Players, account)
	m.progress[account] = &Progress{
		AccountID: account,
		DungeonID: dungeonID,
		StartedAt: time.Now(),
	}
	for _, e := range d.Entities {
		e.Spawned = true
	}
	d.lastActive = time.Now()
	return d, nil
}

// Exit unbinds the account and persists its progress so a later run can
// resume review of it.
func (m *Manager) Exit(ctx context.Context, account string) {
	id, ok := m.byAccount[account]
	if !ok {
		return
	}
	delete(m.byAccount, account)

	if d, ok := m.dungeons[id]; ok {
		for i, p := range d.Players {
			if p == account {
				d.Players = append(d.Players[:i], d.Players[i+1:]...)
				break
			}
		}
		d.lastActive = time.Now()
		m.persistProgress(ctx, account, d)
	}
	delete(m.progress, account)
}

// ClearRoom marks a room cleared on the instance and on every bound run.
func (m *Manager) ClearRoom(dungeonID string, roomID int) error {
	d, ok := m.dungeons[dungeonID]
	if !ok {
		return ErrNotFound
	}
	if roomID < 0 || roomID >= len(d.Rooms) {
		return fmt.Errorf("room %d out of range", roomID)
	}
	m.clearRoom(d, d.Rooms[roomID])
	return nil
}

func (m *Manager) clearRoom(d *Dungeon, room *Room) {
	if room.Cleared {
		return
	}
	room.Cleared = true
	d.lastActive = time.Now()
	for _, account := range d.Players {
		if p := m.progress[account]; p != nil && !containsInt(p.RoomsCleared, room.ID) {
			p.RoomsCleared = append(p.RoomsCleared, room.ID)
		}
	}
}

// DefeatEntity marks an entity defeated on the instance and on every bound
// run. Defeating the last live entity in a room auto-clears the room; the
// returned flag reports that.
func (m *Manager) DefeatEntity(dungeonID string, entityID int) (roomCleared bool, err error) {
	d, ok := m.dungeons[dungeonID]
	if !ok {
		return false, ErrNotFound
	}
	if entityID < 0 || entityID >= len(d.Entities) {
		return false, fmt.Errorf("entity %d out of range", entityID)
	}
	e := d.Entities[entityID]
	if e.Defeated {
		return false, nil
	}
	e.Defeated = true
	d.lastActive = time.Now()
	for _, account := range d.Players {
		if p := m.progress[account]; p != nil && !containsInt(p.EntitiesDefeated, entityID) {
			p.EntitiesDefeated = append(p.EntitiesDefeated, entityID)
		}
	}

	if len(d.RoomEntities(e.RoomID)) == 0 {
		m.clearRoom(d, d.Rooms[e.RoomID])
		return true, nil
	}
	return false, nil
}

// Complete finishes the run: every non-start room must be cleared. Rewards
// scale with level and difficulty, pass through the scripting hook, and
// are persisted per bound account along with a completion row.
func (m *Manager) Complete(ctx context.Context, dungeonID string) (Rewards, error) {
	d, ok := m.dungeons[dungeonID]
	if !ok {
		return Rewards{}, ErrNotFound
	}
	if d.Completed {
		return Rewards{}, ErrAlreadyComplete
	}
	for _, room := range d.Rooms {
		if room.Type != RoomStart && !room.Cleared {
			return Rewards{}, ErrRoomsUncleared
		}
	}

	d.Completed = true
	d.CompletedAt = time.Now()
	d.lastActive = d.CompletedAt

	r := Rewards{
		XP:       int(math.Floor(float64(d.Level) * 100 * (1 + 0.2*float64(d.Difficulty)))),
		Credits:  int(math.Floor(float64(d.Level) * 50 * (1 + 0.2*float64(d.Difficulty)))),
		Crystals: d.Difficulty,
	}
	if m.scripts != nil {
		r.XP = m.scripts.RewardBonus(scripting.RewardContext{
			Kind: "xp", Base: r.XP, Level: d.Level, Difficulty: d.Difficulty,
		})
		r.Credits = m.scripts.RewardBonus(scripting.RewardContext{
			Kind: "credits", Base: r.Credits, Level: d.Level, Difficulty: d.Difficulty,
		})
	}

	duration := d.CompletedAt.Sub(d.StartedAt)
	for _, account := range d.Players {
		m.persistProgress(ctx, account, d)
		if m.store != nil {
			err := m.store.RecordDungeonCompletion(ctx, &persist.DungeonCompletionRow{
				ID:          uuid.NewString(),
				AccountID:   account,
				DungeonID:   d.ID,
				Difficulty:  d.Difficulty,
				Level:       d.Level,
				XP:          r.XP,
				Credits:     r.Credits,
				Crystals:    r.Crystals,
				Duration:    duration,
				CompletedAt: d.CompletedAt,
			})
			if err != nil {
				m.log.Error("record dungeon completion failed",
					zap.String("account", account),
					zap.String("dungeon", d.ID),
					zap.Error(err),
				)
			}
		}
		if m.OnComplete != nil {
			m.OnComplete(account, d, r)
		}
	}

	m.log.Info("dungeon completed",
		zap.String("dungeon", d.ID),
		zap.Int("xp", r.XP),
		zap.Int("credits", r.Credits),
		zap.Int("crystals", r.Crystals),
	)
	return r, nil
}

// Sweep releases empty instances idle for longer than the release window
// and returns their ids.
func (m *Manager) Sweep(now time.Time) []string {
	var released []string
	for id, d := range m.dungeons {
		if len(d.Players) == 0 && now.Sub(d.lastActive) > idleRelease {
			delete(m.dungeons, id)
			released = append(released, id)
		}
	}
	if len(released) > 0 {
		m.log.Debug("released idle dungeons", zap.Int("count", len(released)))
	}
	return released
}

// Count returns the number of live instances.
func (m *Manager) Count() int {
	return len(m.dungeons)
}

func (m *Manager) persistProgress(ctx context.Context, account string, d *Dungeon) {
	if m.store == nil {
		return
	}
	p := m.progress[account]
	if p == nil {
		return
	}
	bossDown := false
	for _, e := range d.Entities {
		if e.Type == EntityBoss && e.Defeated {
			bossDown = true
			break
		}
	}
	err := m.store.SaveDungeonProgress(ctx, &persist.DungeonProgressRow{
		AccountID:    account,
		DungeonID:    d.ID,
		Difficulty:   d.Difficulty,
		Floor:        p.CurrentFloor,
		RoomsCleared: len(p.RoomsCleared),
		BossDefeated: bossDown,
	})
	if err != nil {
		m.log.Error("save dungeon progress failed",
			zap.String("account", account),
			zap.String("dungeon", d.ID),
			zap.Error(err),
		)
	}
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
