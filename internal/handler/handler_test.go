package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/config"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/data"
	"github.com/nexusroom/server/internal/dungeon"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/persist"
	"github.com/nexusroom/server/internal/replication"
	"github.com/nexusroom/server/internal/trade"
	"github.com/nexusroom/server/internal/validate"
	"github.com/nexusroom/server/internal/world"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	deps  *Deps
	store *persist.MemoryStore
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	spells, err := data.LoadSpellTable("")
	require.NoError(t, err)
	emotes, err := data.LoadEmoteTable("")
	require.NoError(t, err)

	log := zap.NewNop()
	store := persist.NewMemoryStore()
	env := &testEnv{store: store, now: testStart}
	env.deps = &Deps{
		Config:    cfg,
		Log:       log,
		World:     world.NewState(cfg.Game.GridCellSize),
		Validator: validate.NewValidator(validate.Config{}, log, nil),
		Batcher:   replication.NewBatcher(),
		Bus:       event.NewBus(),
		Spells:    spells,
		Emotes:    emotes,
		Trades:    trade.NewManager(store, store, log),
		Dungeons:  dungeon.NewManager(dungeon.Config{}, store, nil, log),
		Quests:    collab.LoggingQuests{Log: log},
		Pass:      collab.LoggingBattlePass{Log: log},
		Achieve:   collab.LoggingAchievements{Log: log},
		Ctx:       context.Background(),
		Now:       func() time.Time { return env.now },
	}
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// addPlayer puts a player in the world with a conn-less session and a
// matching persisted row, positioned at (x, 1, z).
func (env *testEnv) addPlayer(t *testing.T, account, name string, x, z float64) (*world.Player, *net.Session) {
	t.Helper()
	sess := net.NewSession(nil, env.deps.World.NextEntityID(), 16, 64, 0, 0, zap.NewNop())
	sess.AccountID = account
	sess.Name = name
	sess.SetState(message.StateInWorld)

	p := &world.Player{
		EntityID:  env.deps.World.NextEntityID(),
		AccountID: account,
		Sess:      sess,
		Name:      name,
		X:         x,
		Y:         1,
		Z:         z,
		HP:        100,
		MaxHP:     100,
		Mana:      100,
		MaxMana:   100,
		Level:     3,
		Credits:   500,
		Inventory: map[string]int{"iron_ore": 5},
		Spells:    []string{"fireball", "frostbolt", "heal"},
	}
	env.deps.World.AddPlayer(p)
	env.deps.Validator.SeedPosition(account, x, 1, z, env.now)

	require.NoError(t, env.store.CreatePlayer(context.Background(), &persist.PlayerRow{
		AccountID: account,
		Name:      name,
		X:         x,
		Y:         1,
		Z:         z,
		HP:        100,
		MaxHP:     100,
		Mana:      100,
		MaxMana:   100,
		Level:     3,
		Credits:   500,
		Inventory: map[string]int{"iron_ore": 5},
		Spells:    []string{"fireball", "frostbolt", "heal"},
	}))
	return p, sess
}

// frames drains the session's buffered output and decodes every envelope.
func frames(t *testing.T, sess *net.Session) []message.Envelope {
	t.Helper()
	sess.FlushOutput()
	var out []message.Envelope
	for {
		select {
		case data := <-sess.OutQueue:
			var env message.Envelope
			require.NoError(t, json.Unmarshal(data, &env))
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

func encode(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func TestHandleMoveAcceptsLegalStep(t *testing.T) {
	env := newTestEnv(t)
	p, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	env.advance(100 * time.Millisecond)
	HandleMove(sess, encode(t, message.Move{X: 0.4, Y: 1, Z: 0.2, Rotation: 1.5}), env.deps)

	require.Equal(t, 0.4, p.X)
	require.Equal(t, 0.2, p.Z)
	require.Equal(t, 1.5, p.Rotation)
	require.Empty(t, framesOfType(t, sess, message.TypePositionCorrection))
	require.Equal(t, 1, env.deps.Batcher.Pending())
}

func TestHandleMoveRejectsTeleport(t *testing.T) {
	env := newTestEnv(t)
	p, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	env.advance(100 * time.Millisecond)
	HandleMove(sess, encode(t, message.Move{X: 500, Y: 1, Z: 500}), env.deps)

	require.Equal(t, 0.0, p.X)
	require.Equal(t, 0.0, p.Z)
	corrections := framesOfType(t, sess, message.TypePositionCorrection)
	require.Len(t, corrections, 1)
	fix := decodePayload[message.PositionCorrection](t, corrections[0])
	require.Equal(t, 0.0, fix.X)
	require.Equal(t, 0.0, fix.Z)
}

func TestHandleCastSpellSpawnsProjectile(t *testing.T) {
	env := newTestEnv(t)
	p, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	HandleCastSpell(sess, encode(t, message.CastSpell{
		SpellID:  "fireball",
		Position: message.Vec3{X: 5, Y: 1, Z: 5},
	}), env.deps)

	require.Equal(t, 80, p.Mana) // fireball costs 20
	require.Equal(t, 1, env.deps.World.ProjectileCount())
	require.Empty(t, framesOfType(t, sess, message.TypeSpellCastRejected))
}

func TestHandleCastSpellRejections(t *testing.T) {
	env := newTestEnv(t)
	p, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	// Unknown spell.
	HandleCastSpell(sess, encode(t, message.CastSpell{SpellID: "meteor"}), env.deps)
	rejected := framesOfType(t, sess, message.TypeSpellCastRejected)
	require.Len(t, rejected, 1)

	// Out of cast range (default 20).
	HandleCastSpell(sess, encode(t, message.CastSpell{
		SpellID:  "fireball",
		Position: message.Vec3{X: 100, Z: 100},
	}), env.deps)
	require.Len(t, framesOfType(t, sess, message.TypeSpellCastRejected), 1)

	// Cooldown: first cast lands, immediate recast is rejected.
	HandleCastSpell(sess, encode(t, message.CastSpell{SpellID: "fireball"}), env.deps)
	HandleCastSpell(sess, encode(t, message.CastSpell{SpellID: "fireball"}), env.deps)
	rejected = framesOfType(t, sess, message.TypeSpellCastRejected)
	require.Len(t, rejected, 1)
	require.Contains(t, decodePayload[message.ErrorReply](t, rejected[0]).Reason, "cooldown")

	// Mana floor: heal costs 25, drain the pool first.
	p.Mana = 10
	HandleCastSpell(sess, encode(t, message.CastSpell{SpellID: "heal"}), env.deps)
	rejected = framesOfType(t, sess, message.TypeSpellCastRejected)
	require.Len(t, rejected, 1)
	require.Contains(t, decodePayload[message.ErrorReply](t, rejected[0]).Reason, "mana")
	require.Equal(t, 10, p.Mana)
	require.Equal(t, 1, env.deps.World.ProjectileCount())
}

func TestHandleCastSpellHealClampsAtMax(t *testing.T) {
	env := newTestEnv(t)
	p, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)
	p.HP = 80

	HandleCastSpell(sess, encode(t, message.CastSpell{SpellID: "heal"}), env.deps)

	require.Equal(t, 100, p.HP) // 80 + 40 clamped to max
	require.Equal(t, 75, p.Mana)
	require.Equal(t, 0, env.deps.World.ProjectileCount())
}

func TestHandleChatReachesEveryPlayer(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.addPlayer(t, "acct-a", "Alice", 0, 0)
	_, bob := env.addPlayer(t, "acct-b", "Bob", 400, 400)

	HandleChat(alice, encode(t, message.Chat{Text: "  hello room  "}), env.deps)

	for _, sess := range []*net.Session{alice, bob} {
		got := framesOfType(t, sess, message.TypeChatBroadcast)
		require.Len(t, got, 1)
		chat := decodePayload[message.ChatBroadcast](t, got[0])
		require.Equal(t, "room", chat.Channel)
		require.Equal(t, "Alice", chat.FromName)
		require.Equal(t, "hello room", chat.Text)
	}
}

func TestHandleWhisperTargetsByName(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.addPlayer(t, "acct-a", "Alice", 0, 0)
	_, bob := env.addPlayer(t, "acct-b", "Bob", 3, 0)

	HandleWhisper(alice, encode(t, message.Whisper{TargetID: "Bob", Text: "psst"}), env.deps)

	got := framesOfType(t, bob, message.TypeWhisperDelivery)
	require.Len(t, got, 1)
	w := decodePayload[message.WhisperDelivery](t, got[0])
	require.Equal(t, "Alice", w.FromName)
	require.Equal(t, "psst", w.Text)
	require.Empty(t, frames(t, alice))
}

func TestHandleWhisperUnknownTarget(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.addPlayer(t, "acct-a", "Alice", 0, 0)

	HandleWhisper(alice, encode(t, message.Whisper{TargetID: "Nobody", Text: "psst"}), env.deps)

	got := framesOfType(t, alice, message.TypeError)
	require.Len(t, got, 1)
	require.Equal(t, "NotFound", decodePayload[message.ErrorReply](t, got[0]).Code)
}

func TestHandleEmoteRadius(t *testing.T) {
	env := newTestEnv(t)
	p, alice := env.addPlayer(t, "acct-a", "Alice", 0, 0)
	_, near := env.addPlayer(t, "acct-b", "Bob", 10, 0)
	_, far := env.addPlayer(t, "acct-c", "Cara", 100, 0)

	HandleEmote(alice, encode(t, message.Emote{Emote: "dance"}), env.deps)

	got := framesOfType(t, near, message.TypeEmoteBroadcast)
	require.Len(t, got, 1)
	e := decodePayload[message.EmoteBroadcast](t, got[0])
	require.Equal(t, p.EntityID, e.EntityID)
	require.Equal(t, "dance", e.Emote)
	require.Empty(t, framesOfType(t, far, message.TypeEmoteBroadcast))

	// Unknown emotes are dropped silently.
	HandleEmote(alice, encode(t, message.Emote{Emote: "moonwalk"}), env.deps)
	require.Empty(t, framesOfType(t, near, message.TypeEmoteBroadcast))
}
