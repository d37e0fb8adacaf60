package room

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/config"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/data"
	"github.com/nexusroom/server/internal/monitor"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/persist"
	"github.com/nexusroom/server/internal/world"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type roomEnv struct {
	r      *Room
	store  *persist.MemoryStore
	now    time.Time
	nextID uint64
}

// newRoomEnv builds a room with a fixed clock and rng, no Lua engine and
// no drop or resource tables, so rolls stay predictable. Tests drive
// tickOnce directly instead of starting the Run loop.
func newRoomEnv(t *testing.T) *roomEnv {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	spells, err := data.LoadSpellTable("")
	require.NoError(t, err)
	emotes, err := data.LoadEmoteTable("")
	require.NoError(t, err)
	enemies, err := data.LoadEnemyTable("")
	require.NoError(t, err)

	env := &roomEnv{store: persist.NewMemoryStore(), now: testStart}
	env.r = NewRoom("default", Options{
		Config:  cfg,
		Log:     zap.NewNop(),
		Players: env.store,
		Store:   env.store,
		Monitor: monitor.NewCore(),
		Spells:  spells,
		Emotes:  emotes,
		Enemies: enemies,
		Seed:    1,
		Now:     func() time.Time { return env.now },
	})
	return env
}

func (env *roomEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// tick advances the clock one tick step and runs the simulation once.
func (env *roomEnv) tick() {
	env.advance(16 * time.Millisecond)
	env.r.tickOnce(env.now)
}

func (env *roomEnv) newSession() *net.Session {
	env.nextID++
	return net.NewSession(nil, env.nextID, 128, 256, 0, 0, zap.NewNop())
}

// join runs the loop half of the join flow directly.
func (env *roomEnv) join(t *testing.T, account, name string) (*world.Player, *net.Session) {
	t.Helper()
	sess := env.newSession()
	env.r.completeJoin(joinTicket{sess: sess, account: account, name: name})
	p := env.r.world.GetPlayer(account)
	require.NotNil(t, p)
	return p, sess
}

// resetRolls pins the rng right before a combat sequence; seed 1's first
// draws all land above the crit chance.
func (env *roomEnv) resetRolls() {
	env.r.rng = rand.New(rand.NewSource(1))
}

func frames(t *testing.T, sess *net.Session) []message.Envelope {
	t.Helper()
	sess.FlushOutput()
	var out []message.Envelope
	for {
		select {
		case raw := <-sess.OutQueue:
			var env message.Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func framesOfType(t *testing.T, sess *net.Session, typ string) []message.Envelope {
	t.Helper()
	var matched []message.Envelope
	for _, env := range frames(t, sess) {
		if env.Type == typ {
			matched = append(matched, env)
		}
	}
	return matched
}

func decodePayload[T any](t *testing.T, env message.Envelope) T {
	t.Helper()
	v, err := message.Decode[T](env.Payload)
	require.NoError(t, err)
	return v
}

func TestJoinPlacesPlayerAndSendsSnapshot(t *testing.T) {
	env := newRoomEnv(t)
	p, sess := env.join(t, "acct-1", "rei")

	require.Equal(t, 1.0, p.Y)
	require.Equal(t, starterSpells, p.Spells)
	require.Equal(t, sess, env.r.sessions["acct-1"])
	require.Equal(t, message.StateInWorld, sess.State())

	// the first client triggers the seed wave
	require.Greater(t, env.r.world.EnemyCount(), 0)

	row, err := env.store.GetPlayer(context.Background(), "acct-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "rei", row.Name)

	all := frames(t, sess)
	require.Equal(t, message.TypeJoined, all[0].Type)
	joined := decodePayload[message.Joined](t, all[0])
	require.Equal(t, p.EntityID, joined.EntityID)
	require.Equal(t, message.TypeSnapshot, all[1].Type)
}

func TestJoinSupersedesDuplicateSession(t *testing.T) {
	env := newRoomEnv(t)
	p1, s1 := env.join(t, "acct-1", "rei")
	p1.Credits = 777
	entity1 := p1.EntityID

	s2 := env.newSession()
	env.r.completeJoin(joinTicket{sess: s2, account: "acct-1", name: "rei"})

	require.True(t, s1.IsClosed())
	require.Equal(t, net.CloseNormal, s1.CloseCode())
	require.Equal(t, s2, env.r.sessions["acct-1"])
	require.Equal(t, 1, env.r.world.PlayerCount())

	// the live state, not the stale row, carries over
	p2 := env.r.world.GetPlayer("acct-1")
	require.Equal(t, 777, p2.Credits)
	require.NotEqual(t, entity1, p2.EntityID)
}

func TestJoinRejectsNameCollision(t *testing.T) {
	env := newRoomEnv(t)
	env.join(t, "acct-1", "rei")

	s2 := env.newSession()
	env.r.completeJoin(joinTicket{sess: s2, account: "acct-2", name: "rei"})

	require.True(t, s2.IsClosed())
	require.Equal(t, net.CloseNameTaken, s2.CloseCode())
	require.Nil(t, env.r.world.GetPlayer("acct-2"))

	// no phantom record for the rejected join
	row, err := env.store.GetPlayer(context.Background(), "acct-2")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestAuthenticateRejectsPersistedNameCollision(t *testing.T) {
	env := newRoomEnv(t)
	require.NoError(t, env.store.CreatePlayer(context.Background(), &persist.PlayerRow{
		AccountID: "acct-1",
		Name:      "rei",
	}))

	sess := env.newSession()
	_, ok := env.r.authenticate(context.Background(), sess, message.Join{Name: "rei"})
	require.False(t, ok)
	require.Equal(t, net.CloseNameTaken, sess.CloseCode())
}

func TestProjectileHitDamagesEnemy(t *testing.T) {
	env := newRoomEnv(t)
	env.join(t, "acct-1", "rei")

	e := &world.Enemy{
		ID:    env.r.world.NextEntityID(),
		Type:  "goblin",
		X:     5,
		HP:    100,
		MaxHP: 100,
		Level: 1,
	}
	env.r.world.AddEnemy(e)
	env.r.world.AddProjectile(&world.Projectile{
		ID:            env.r.world.NextEntityID(),
		SpellID:       "fireball",
		CasterAccount: "acct-1",
		DirX:          1,
		Speed:         10,
		TTL:           2 * time.Second,
	})
	env.resetRolls()

	hitAt := time.Duration(0)
	for i := 0; i < 40 && e.HP == 100; i++ {
		env.tick()
		hitAt += 16 * time.Millisecond
	}
	require.Equal(t, 50, e.HP)
	require.LessOrEqual(t, hitAt, 500*time.Millisecond)
	require.Equal(t, 0, env.r.world.ProjectileCount())

	// the non-crit number rides the batcher
	found := false
	for _, up := range env.r.batcher.Flush() {
		if up.Kind == "damage" && up.ID == e.ID {
			require.EqualValues(t, 50, up.Fields["amount"])
			found = true
		}
	}
	require.True(t, found)
}

func TestComboScalesDamageAndResets(t *testing.T) {
	env := newRoomEnv(t)
	env.join(t, "acct-1", "rei")
	env.resetRolls()

	for i := 0; i < 3; i++ {
		e := &world.Enemy{ID: env.r.world.NextEntityID(), Type: "goblin", HP: 0, MaxHP: 30, Level: 1}
		env.r.world.AddEnemy(e)
		env.r.killEnemy(e, "acct-1", false)
	}
	combo := env.r.world.Combos.Get("acct-1", env.now)
	require.NotNil(t, combo)
	require.Equal(t, 3, combo.Kills)
	require.InDelta(t, 1.1, combo.Multiplier, 1e-9)

	// the next hit lands at 50 * 1.1
	target := &world.Enemy{ID: env.r.world.NextEntityID(), Type: "goblin", X: 0.1, HP: 100, MaxHP: 100, Level: 1}
	env.r.world.AddEnemy(target)
	env.r.resolveHit(&world.Projectile{SpellID: "fireball", CasterAccount: "acct-1"}, target)
	require.Equal(t, 45, target.HP)

	// eight idle seconds close the window
	env.advance(9 * time.Second)
	env.r.tickOnce(env.now)
	e := &world.Enemy{ID: env.r.world.NextEntityID(), Type: "goblin", HP: 0, MaxHP: 30, Level: 1}
	env.r.world.AddEnemy(e)
	env.r.killEnemy(e, "acct-1", false)
	combo = env.r.world.Combos.Get("acct-1", env.now)
	require.Equal(t, 1, combo.Kills)
	require.InDelta(t, 1.0, combo.Multiplier, 1e-9)
}

func TestInputFloodEscalatesToKick(t *testing.T) {
	env := newRoomEnv(t)
	_, sess := env.join(t, "acct-1", "rei")

	frame := message.Encode(message.TypeChat, message.Chat{Text: "spam"})
	for i := 0; i < 124; i++ {
		sess.InQueue <- frame
	}
	for i := 0; i < 5 && !sess.IsClosed(); i++ {
		env.tick()
	}

	require.True(t, sess.IsClosed())
	require.Equal(t, net.CloseNormal, sess.CloseCode())
	require.Nil(t, env.r.world.GetPlayer("acct-1"))
	require.Empty(t, env.r.sessions)
}

func TestWorldBossSpawnsOnSchedule(t *testing.T) {
	env := newRoomEnv(t)
	_, sess := env.join(t, "acct-1", "rei")
	frames(t, sess) // drain the join frames

	env.advance(4 * time.Hour)
	env.r.tickOnce(env.now)

	require.True(t, env.r.bossActive)
	boss := env.r.world.GetEnemy(env.r.bossID)
	require.NotNil(t, boss)
	require.True(t, boss.Boss)
	require.Equal(t, bossHP, boss.HP)
	require.Equal(t, bossLevel, boss.Level)
	require.Equal(t, 0.0, boss.X)

	spawns := framesOfType(t, sess, message.TypeBossSpawned)
	require.Len(t, spawns, 1)
	payload := decodePayload[message.BossSpawned](t, spawns[0])
	require.Equal(t, env.r.bossID, payload.EnemyID)

	// killing it clears the flag for the next cycle
	boss.HP = 0
	env.r.killEnemy(boss, "acct-1", false)
	require.False(t, env.r.bossActive)
}

func TestEnemyAIPursuesLeashesAndDrifts(t *testing.T) {
	env := newRoomEnv(t)

	pursuer := &world.Enemy{ID: env.r.world.NextEntityID(), Type: "goblin", X: 0, Z: 0, HP: 30, MaxHP: 30}
	leashed := &world.Enemy{ID: env.r.world.NextEntityID(), Type: "goblin", X: 100, Z: 0, AnchorX: 130, HP: 30, MaxHP: 30}
	drifter := &world.Enemy{ID: env.r.world.NextEntityID(), Type: "goblin", X: 205, Z: 0, AnchorX: 200, HP: 30, MaxHP: 30}
	env.r.world.AddEnemy(pursuer)
	env.r.world.AddEnemy(leashed)
	env.r.world.AddEnemy(drifter)

	p, _ := env.join(t, "acct-1", "rei")
	env.r.world.MovePlayer(p, 3, 1, 0, 0)

	env.r.aiPass()

	// in aggro range: one pursue step toward the player
	require.InDelta(t, pursueStep, pursuer.X, 1e-9)
	// past the leash: one return step toward the anchor
	require.InDelta(t, 100+returnStep, leashed.X, 1e-9)
	// idle: one drift step toward the anchor
	require.InDelta(t, 205-driftStep, drifter.X, 1e-9)
}

func TestKillAwardsXPAndDropsLoot(t *testing.T) {
	env := newRoomEnv(t)
	p, sess := env.join(t, "acct-1", "rei")
	frames(t, sess) // drain the join frames

	e := &world.Enemy{
		ID:    env.r.world.NextEntityID(),
		Type:  "orc_brute",
		X:     10,
		Z:     4,
		HP:    0,
		MaxHP: 300,
		Level: 5,
	}
	env.r.world.AddEnemy(e)
	env.r.killEnemy(e, "acct-1", false)

	// orc_brute pays 140 xp: level 1 -> 2 with 40 left over
	require.Equal(t, 2, p.Level)
	require.Equal(t, 40, p.XP)
	require.True(t, p.Dirty)

	require.Nil(t, env.r.world.GetEnemy(e.ID))
	require.False(t, env.r.world.HasSpawnAnchor(e.ID))

	var loot *world.Loot
	env.r.world.EachLoot(func(l *world.Loot) { loot = l })
	require.NotNil(t, loot)
	require.Equal(t, 60, loot.Credits)
	require.Equal(t, 10.0, loot.X)
	require.Equal(t, "", loot.OwnerAccount)

	kills := framesOfType(t, sess, message.TypeEnemyKilled)
	require.Len(t, kills, 1)
	killed := decodePayload[message.EnemyKilled](t, kills[0])
	require.Equal(t, e.ID, killed.EnemyID)
	require.Equal(t, p.EntityID, killed.Killer)
	require.Equal(t, 140, killed.XP)
	require.InDelta(t, 1.0, killed.Combo, 1e-9)
}

func TestDungeonRunCompletes(t *testing.T) {
	env := newRoomEnv(t)
	p, sess := env.join(t, "acct-1", "rei")

	d := env.r.dungeons.Create(12345, 1, 10)
	_, err := env.r.dungeons.Enter("acct-1", d.ID)
	require.NoError(t, err)
	env.r.onDungeonEntered(event.DungeonEntered{Account: "acct-1", DungeonID: d.ID})

	// teleported onto the instance shelf
	require.Greater(t, p.X, shelfBaseX-1)
	slot := env.r.slots[d.ID]
	require.NotNil(t, slot)
	require.True(t, slot.materialized)

	// map world enemies back to their dungeon entities
	byEntity := make(map[int]*world.Enemy)
	env.r.world.EachEnemy(func(e *world.Enemy) {
		if e.DungeonID == d.ID {
			byEntity[e.DungeonEntity] = e
		}
	})

	frames(t, sess) // drain the join frames

	for _, ent := range d.Entities {
		if ent.Defeated {
			continue
		}
		switch ent.Type {
		case "enemy", "boss":
			e := byEntity[ent.ID]
			require.NotNil(t, e)
			e.HP = 0
			env.r.killEnemy(e, "acct-1", false)
		case "loot":
			env.r.defeatDungeonEntity(d.ID, ent.ID)
		case "puzzle":
			env.r.world.MovePlayer(p, slot.originX+ent.X, 1, slot.originZ+ent.Y, 0)
			env.r.dungeonPass()
		}
	}

	require.True(t, d.Completed)
	require.Equal(t, 1, p.Inventory["quantum_crystal"])

	done := framesOfType(t, sess, message.TypeDungeonCompleted)
	require.Len(t, done, 1)
	rw := decodePayload[message.DungeonCompleted](t, done[0])
	require.Equal(t, 1200, rw.XP)
	require.Equal(t, 600, rw.Credits)
	require.Equal(t, 1, rw.Crystals)

	// leaving puts the player back near origin
	env.r.dungeons.Exit(context.Background(), "acct-1")
	env.r.onDungeonExited(event.DungeonExited{Account: "acct-1", DungeonID: d.ID})
	require.Less(t, p.X, 100.0)
}

func TestAutoSavePersistsDirtyPlayers(t *testing.T) {
	env := newRoomEnv(t)
	p, _ := env.join(t, "acct-1", "rei")

	p.Credits = 4242
	p.Dirty = true
	env.advance(61 * time.Second)
	env.r.tickOnce(env.now)

	require.False(t, p.Dirty)
	row, err := env.store.GetPlayer(context.Background(), "acct-1")
	require.NoError(t, err)
	require.EqualValues(t, 4242, row.Credits)
}

func TestLootExpiryBroadcastsRemoval(t *testing.T) {
	env := newRoomEnv(t)
	_, sess := env.join(t, "acct-1", "rei")
	frames(t, sess) // drain the join frames

	l := &world.Loot{
		ID:        env.r.world.NextEntityID(),
		Credits:   10,
		ExpiresAt: env.now.Add(50 * time.Millisecond),
	}
	env.r.world.AddLoot(l)

	env.advance(100 * time.Millisecond)
	env.r.tickOnce(env.now)

	require.Equal(t, 0, env.r.world.LootCount())
	removed := framesOfType(t, sess, message.TypeLootRemoved)
	require.Len(t, removed, 1)
	require.Equal(t, l.ID, decodePayload[message.LootRemoved](t, removed[0]).LootID)
}

func TestLeaveSavesAndAnnounces(t *testing.T) {
	env := newRoomEnv(t)
	p, _ := env.join(t, "acct-1", "rei")
	_, s2 := env.join(t, "acct-2", "kai")
	frames(t, s2) // drain the join frames

	p.Credits = 99
	env.r.leave("acct-1", "connection closed")

	require.Nil(t, env.r.world.GetPlayer("acct-1"))
	require.NotContains(t, env.r.sessions, "acct-1")
	row, err := env.store.GetPlayer(context.Background(), "acct-1")
	require.NoError(t, err)
	require.EqualValues(t, 99, row.Credits)

	left := framesOfType(t, s2, message.TypePlayerLeft)
	require.Len(t, left, 1)
	require.Equal(t, "acct-1", decodePayload[message.PlayerLeft](t, left[0]).Account)
}
