// Package room implements the authoritative game loop. One goroutine owns
// each room: sessions post work onto the loop, the ticker drives simulation
// at the configured rate, and every piece of world state is touched from
// this goroutine only.
package room

import (
	"context"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/config"
	"github.com/nexusroom/server/internal/core/event"
	coresys "github.com/nexusroom/server/internal/core/system"
	"github.com/nexusroom/server/internal/data"
	"github.com/nexusroom/server/internal/dungeon"
	"github.com/nexusroom/server/internal/handler"
	"github.com/nexusroom/server/internal/identity"
	"github.com/nexusroom/server/internal/monitor"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/persist"
	"github.com/nexusroom/server/internal/pubsub"
	"github.com/nexusroom/server/internal/replication"
	"github.com/nexusroom/server/internal/scripting"
	"github.com/nexusroom/server/internal/trade"
	"github.com/nexusroom/server/internal/validate"
	"github.com/nexusroom/server/internal/world"
)

// tickWindow is the rolling sample count for tick time stats.
const tickWindow = 100

// comboIdleEvict is how long a combo may sit idle before the memory sweep
// may evict it.
const comboIdleEvict = 30 * time.Second

// Options carries everything a room needs. Players is the hot-path player
// repository (normally the write-behind cache over Store); Store serves the
// account, dungeon and trade-log tables directly.
type Options struct {
	Config    *config.Config
	Log       *zap.Logger
	Players   persist.PlayerStore
	Store     persist.Store
	Verifier  identity.Verifier
	Scripts   *scripting.Engine
	Monitor   *monitor.Core
	Pub       *pubsub.Publisher
	Spells    *data.SpellTable
	Emotes    *data.EmoteTable
	Enemies   *data.EnemyTable
	Drops     *data.DropTable
	Resources *data.ResourceTable
	Quests    collab.QuestSystem
	Pass      collab.BattlePass
	Achieve   collab.AchievementSystem

	// Seed fixes the room rng; 0 seeds from the clock.
	Seed int64
	// Now overrides the room clock; tests inject a fixed one.
	Now func() time.Time
}

// Room is one simulation instance. All fields below are owned by the Run
// goroutine; the only safe entry points from outside are Post and Close.
type Room struct {
	name string
	cfg  *config.Config
	log  *zap.Logger

	players  persist.PlayerStore
	store    persist.Store
	verifier identity.Verifier
	scripts  *scripting.Engine
	mon      *monitor.Core
	pub      *pubsub.Publisher

	spells      *data.SpellTable
	emotes      *data.EmoteTable
	enemyTab    *data.EnemyTable
	drops       *data.DropTable
	resourceTab *data.ResourceTable

	quests  collab.QuestSystem
	pass    collab.BattlePass
	achieve collab.AchievementSystem

	world     *world.State
	validator *validate.Validator
	batcher   *replication.Batcher
	deltas    *replication.DeltaCompressor
	bus       *event.Bus
	runner    *coresys.Runner
	registry  *message.Registry
	trades    *trade.Manager
	dungeons  *dungeon.Manager
	deps      *handler.Deps

	// sessions is the account -> live session map. One account, one
	// session; a new join supersedes the old entry.
	sessions map[string]*net.Session

	slots   map[string]*dungeonSlot
	slotSeq int

	rng   *rand.Rand
	clock func() time.Time
	now   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	postCh chan func()
	done   chan struct{}

	tick       uint64
	lastTick   time.Time
	lastFlush  time.Time
	lastSpawn  time.Time
	lastSweep  time.Time
	lastSave   time.Time
	nextBoss   time.Time
	bossActive bool
	bossID     uint64

	tickMS   [tickWindow]float64
	tickIdx  int
	tickSeen int
}

// NewRoom wires a room from its options. Run must be called to start the
// loop; until then the room only accepts Post from tests.
func NewRoom(name string, opts Options) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		name:        name,
		cfg:         opts.Config,
		log:         opts.Log.Named("room").With(zap.String("room", name)),
		players:     opts.Players,
		store:       opts.Store,
		verifier:    opts.Verifier,
		scripts:     opts.Scripts,
		mon:         opts.Monitor,
		pub:         opts.Pub,
		spells:      opts.Spells,
		emotes:      opts.Emotes,
		enemyTab:    opts.Enemies,
		drops:       opts.Drops,
		resourceTab: opts.Resources,
		quests:      opts.Quests,
		pass:        opts.Pass,
		achieve:     opts.Achieve,
		sessions:    make(map[string]*net.Session),
		slots:       make(map[string]*dungeonSlot),
		clock:       opts.Now,
		ctx:         ctx,
		cancel:      cancel,
		postCh:      make(chan func(), 256),
		done:        make(chan struct{}),
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = r.clock().UnixNano()
	}
	r.rng = rand.New(rand.NewSource(seed))

	if r.quests == nil {
		r.quests = collab.LoggingQuests{Log: r.log}
	}
	if r.pass == nil {
		r.pass = collab.LoggingBattlePass{Log: r.log}
	}
	if r.achieve == nil {
		r.achieve = collab.LoggingAchievements{Log: r.log}
	}

	r.world = world.NewState(r.cfg.Game.GridCellSize)
	r.validator = validate.NewValidator(validate.Config{
		BaseSpeed: r.cfg.Game.PlayerBaseSpeed,
	}, r.log, r.onSuspicion)
	r.batcher = replication.NewBatcher()
	r.deltas = replication.NewDeltaCompressor()
	r.bus = event.NewBus()
	r.trades = trade.NewManager(r.players, r.store, r.log)
	r.dungeons = dungeon.NewManager(dungeon.Config{
		GridWidth:  r.cfg.Dungeon.GridWidth,
		GridHeight: r.cfg.Dungeon.GridHeight,
		GridFloors: r.cfg.Dungeon.GridFloors,
		RoomMin:    r.cfg.Dungeon.RoomMin,
		RoomMax:    r.cfg.Dungeon.RoomMax,
	}, r.store, r.scripts, r.log)
	r.dungeons.OnComplete = r.onDungeonComplete

	r.now = r.clock()
	r.lastTick = r.now
	r.lastFlush = r.now
	r.lastSpawn = r.now
	r.lastSweep = r.now
	r.lastSave = r.now
	r.nextBoss = r.now.Add(r.cfg.Game.WorldBossEvery)

	r.deps = &handler.Deps{
		Config:    r.cfg,
		Log:       r.log,
		World:     r.world,
		Validator: r.validator,
		Batcher:   r.batcher,
		Bus:       r.bus,
		Spells:    r.spells,
		Emotes:    r.emotes,
		Trades:    r.trades,
		Dungeons:  r.dungeons,
		Quests:    r.quests,
		Pass:      r.pass,
		Achieve:   r.achieve,
		Ctx:       r.ctx,
		Now:       func() time.Time { return r.now },
		Kick:      r.kick,
	}
	r.registry = message.NewRegistry(r.log)
	handler.RegisterAll(r.registry, r.deps)

	r.runner = coresys.NewRunner()
	r.runner.Register(coresys.Func(coresys.PhaseInput, func(time.Duration) { r.inputPass() }))
	r.runner.Register(coresys.Func(coresys.PhaseEvents, func(time.Duration) { r.bus.Dispatch() }))
	r.runner.Register(coresys.Func(coresys.PhaseSimulate, r.combatPass))
	r.runner.Register(coresys.Func(coresys.PhaseSimulate, func(time.Duration) { r.aiPass() }))
	r.runner.Register(coresys.Func(coresys.PhaseWorld, func(time.Duration) { r.spawnPass() }))
	r.runner.Register(coresys.Func(coresys.PhaseWorld, func(time.Duration) { r.dungeonPass() }))
	r.runner.Register(coresys.Func(coresys.PhasePersist, func(time.Duration) { r.periodicPass() }))
	r.runner.Register(coresys.Func(coresys.PhaseOutput, func(time.Duration) { r.replicationPass() }))
	r.runner.Register(coresys.Func(coresys.PhaseCleanup, func(time.Duration) { r.flushOutputs() }))

	r.wireEvents()
	r.seedResources()
	return r
}

// Name returns the room's name.
func (r *Room) Name() string { return r.name }

// Run owns the room until the context is cancelled. It must be called at
// most once, on its own goroutine.
func (r *Room) Run() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.Server.TickRate)
	defer ticker.Stop()

	r.log.Info("room running",
		zap.Duration("tick", r.cfg.Server.TickRate),
		zap.Int("capacity", r.cfg.Server.RoomCapacity))

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return
		case fn := <-r.postCh:
			fn()
		case <-ticker.C:
			r.tickOnce(r.clock())
		}
	}
}

// Post schedules fn onto the room loop. It reports false once the room is
// shutting down, in which case fn never runs.
func (r *Room) Post(fn func()) bool {
	select {
	case <-r.ctx.Done():
		return false
	case r.postCh <- fn:
		return true
	}
}

// Close stops the loop and waits for disposal: final saves, batcher drain
// and session closes all happen before Close returns. Safe to call when
// Run was never started; disposal then runs on the caller.
func (r *Room) Close() {
	select {
	case <-r.done:
		return
	default:
	}
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		r.log.Warn("room close timed out")
	}
}

// CloseDirect disposes a room whose Run loop never started. Test helper
// path; the production server always runs the loop.
func (r *Room) CloseDirect() {
	r.cancel()
	r.shutdown()
	close(r.done)
}

// tickOnce runs one simulation step. A panic in any pass is contained so a
// single bad tick cannot take the process down.
func (r *Room) tickOnce(now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tick panic", zap.Any("panic", rec), zap.Stack("stack"))
			r.mon.Log(monitor.LevelError, "tick panic", map[string]string{"room": r.name})
		}
	}()

	dt := now.Sub(r.lastTick)
	if dt <= 0 || dt > time.Second {
		dt = r.cfg.Server.TickRate
	}
	r.lastTick = now
	r.now = now
	r.tick++

	started := r.clock()
	r.runner.Tick(dt)
	r.observeTick(r.clock().Sub(started))
}

// inputPass drains each session's inbound queue, up to the per-tick budget,
// and charges the action window before dispatching.
func (r *Room) inputPass() {
	for account, sess := range r.sessions {
		if sess.IsClosed() {
			r.leave(account, "connection closed")
			continue
		}
		r.drainSession(account, sess)
	}
}

func (r *Room) drainSession(account string, sess *net.Session) {
	if n := sess.TakeRateDrops(); n > 0 {
		lvl := validate.LevelNone
		for i := 0; i < n; i++ {
			lvl = r.validator.RecordAction(account, "rate limited frame", r.now)
		}
		sess.Send(message.Encode(message.TypeRateLimitExceeded, message.RateLimitExceeded{Dropped: n}))
		if lvl == validate.LevelCritical {
			r.kick(account, "message flood")
			return
		}
	}
	for i := 0; i < r.cfg.Server.MaxMsgsTick; i++ {
		select {
		case raw := <-sess.InQueue:
			// move frames are judged by the movement validator; counting
			// them here would trip the window at normal client rates
			if typ := message.PeekType(raw); typ != "" && typ != message.TypeMove {
				if lvl := r.validator.RecordAction(account, typ, r.now); lvl == validate.LevelCritical {
					r.kick(account, "cheating detected")
					return
				}
			}
			if err := r.registry.Dispatch(sess, sess.State(), raw); err != nil {
				r.log.Debug("frame rejected",
					zap.String("account", account),
					zap.Error(err))
			}
		default:
			return
		}
	}
}

// replicationPass runs the batcher flush and the periodic delta snapshot.
func (r *Room) replicationPass() {
	if r.now.Sub(r.lastFlush) >= r.cfg.Game.BatchFlushEvery {
		r.lastFlush = r.now
		if ups := r.batcher.Flush(); len(ups) > 0 {
			r.broadcast(message.TypeBatchUpdate, batchFrame{Updates: ups})
		}
	}
	if r.cfg.Game.DeltaEveryTicks > 0 && r.tick%uint64(r.cfg.Game.DeltaEveryTicks) == 0 {
		if changes := r.deltas.Diff(r.collectCores()); len(changes) > 0 {
			r.broadcast(message.TypeDelta, deltaFrame{Changes: changes})
		}
	}
}

// batchFrame and deltaFrame are the wire envelopes for the two replication
// channels.
type batchFrame struct {
	Updates []replication.Update `json:"updates"`
}

type deltaFrame struct {
	Changes []replication.Change `json:"changes"`
}

// collectCores reduces the live entities to the delta snapshot fields.
func (r *Room) collectCores() map[uint64]replication.EntityCore {
	cores := make(map[uint64]replication.EntityCore, r.world.PlayerCount()+r.world.EnemyCount())
	r.world.EachPlayer(func(p *world.Player) {
		cores[p.EntityID] = replication.EntityCore{
			Kind: "player",
			X:    p.X, Y: p.Y, Z: p.Z,
			Rotation: p.Rotation,
			HP:       p.HP, MaxHP: p.MaxHP,
			Mana:  p.Mana,
			Level: p.Level,
		}
	})
	r.world.EachEnemy(func(e *world.Enemy) {
		cores[e.ID] = replication.EntityCore{
			Kind: "enemy",
			X:    e.X, Y: e.Y, Z: e.Z,
			Rotation: e.Heading,
			HP:       e.HP, MaxHP: e.MaxHP,
			Level: e.Level,
		}
	})
	return cores
}

// periodicPass covers loot expiry and the slower sweep and save timers.
func (r *Room) periodicPass() {
	for _, l := range r.world.ExpireLoot(r.now) {
		r.broadcast(message.TypeLootRemoved, message.LootRemoved{LootID: l.ID})
	}
	if r.now.Sub(r.lastSweep) >= r.cfg.Game.SweepEvery {
		r.lastSweep = r.now
		r.sweepPass()
	}
	if r.now.Sub(r.lastSave) >= r.cfg.Game.AutoSaveEvery {
		r.lastSave = r.now
		r.autoSave(false)
	}
}

// sweepPass reclaims idle trades, idle dungeons and, under memory
// pressure, idle combo state. Entity gauges refresh here too.
func (r *Room) sweepPass() {
	if n := r.trades.Sweep(r.now); n > 0 {
		r.log.Debug("idle trades cancelled", zap.Int("count", n))
	}
	for _, id := range r.dungeons.Sweep(r.now) {
		r.releaseDungeonSlot(id)
		r.log.Info("dungeon released", zap.String("dungeon", id))
	}

	mb := heapMB()
	r.mon.RecordMetric("heap_mb", mb, nil)
	if mb > float64(r.cfg.Game.MemoryThresholdMB) {
		if n := r.world.Combos.SweepIdle(r.now, comboIdleEvict); n > 0 {
			r.log.Warn("memory pressure, combo state evicted",
				zap.Float64("heap_mb", mb),
				zap.Int("evicted", n))
		}
	}

	monitor.SetEntities("player", r.world.PlayerCount())
	monitor.SetEntities("enemy", r.world.EnemyCount())
	monitor.SetEntities("projectile", r.world.ProjectileCount())
	monitor.SetEntities("loot", r.world.LootCount())
	monitor.SetActiveDungeons(r.dungeons.Count())
}

func heapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1 << 20)
}

// autoSave queues dirty player rows to the store. With all set, clean rows
// go too; that is the disposal path. A failed save keeps the dirty flag so
// the next cycle retries.
func (r *Room) autoSave(all bool) {
	saved := 0
	r.world.EachPlayer(func(p *world.Player) {
		if !p.Dirty && !all {
			return
		}
		if err := r.players.SavePlayer(r.ctx, r.rowFromPlayer(p)); err != nil {
			r.log.Error("player save failed",
				zap.String("account", p.AccountID),
				zap.Error(err))
			r.mon.Log(monitor.LevelError, "player save failed", map[string]string{"account": p.AccountID})
			return
		}
		p.Dirty = false
		saved++
	})
	if saved > 0 {
		r.log.Debug("auto-save", zap.Int("players", saved))
	}
}

// flushOutputs hands each session's buffered frames to its writer.
func (r *Room) flushOutputs() {
	for _, sess := range r.sessions {
		sess.FlushOutput()
	}
}

// broadcast queues one frame to every session in the room.
func (r *Room) broadcast(typ string, payload any) {
	frame := message.Encode(typ, payload)
	for _, sess := range r.sessions {
		sess.Send(frame)
	}
}

// broadcastExcept queues one frame to everyone but skip.
func (r *Room) broadcastExcept(skip *net.Session, typ string, payload any) {
	frame := message.Encode(typ, payload)
	for _, sess := range r.sessions {
		if sess != skip {
			sess.Send(frame)
		}
	}
}

// onSuspicion forwards validator entries to the metrics and the monitor
// log so operators see escalation before the kick lands.
func (r *Room) onSuspicion(e validate.Entry) {
	monitor.RecordValidation(e.Level.String())
	if e.Level >= validate.LevelHigh {
		r.mon.Log(monitor.LevelWarn, "suspicious activity", map[string]string{
			"account": e.Account,
			"reason":  e.Reason,
			"level":   e.Level.String(),
		})
	}
}

func (r *Room) observeTick(elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0
	r.tickMS[r.tickIdx] = ms
	r.tickIdx = (r.tickIdx + 1) % tickWindow
	if r.tickSeen < tickWindow {
		r.tickSeen++
	}
	monitor.ObserveTick(elapsed)
	r.mon.RecordMetric("tick_ms", ms, nil)
}

// TickStats returns the rolling mean and max tick time in milliseconds.
func (r *Room) TickStats() (mean, max float64) {
	if r.tickSeen == 0 {
		return 0, 0
	}
	sum := 0.0
	for i := 0; i < r.tickSeen; i++ {
		sum += r.tickMS[i]
		if r.tickMS[i] > max {
			max = r.tickMS[i]
		}
	}
	return sum / float64(r.tickSeen), max
}

// shutdown is the disposal path: save everyone, drain the batcher, close
// every session and clear the world.
func (r *Room) shutdown() {
	r.log.Info("room closing", zap.Int("clients", len(r.sessions)))
	r.autoSave(true)
	if ups := r.batcher.Flush(); len(ups) > 0 {
		r.broadcast(message.TypeBatchUpdate, batchFrame{Updates: ups})
	}
	r.flushOutputs()
	for account, sess := range r.sessions {
		delete(r.sessions, account)
		sess.CloseWithCode(net.CloseNormal, "server shutting down")
	}
	r.world.Clear()
	r.deltas.Reset()
	r.pub.Publish(pubsub.KindRoomClose, r.name, "", nil)
	monitor.SetClients(0)
}
