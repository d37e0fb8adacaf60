package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/net/message"
)

func TestDungeonCreateEnterExit(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	var entered []event.DungeonEntered
	var exited []event.DungeonExited
	event.Subscribe(env.deps.Bus, func(ev event.DungeonEntered) { entered = append(entered, ev) })
	event.Subscribe(env.deps.Bus, func(ev event.DungeonExited) { exited = append(exited, ev) })

	HandleCreateDungeon(sess, encode(t, message.CreateDungeon{Difficulty: 2, Level: 4}), env.deps)
	created := framesOfType(t, sess, message.TypeDungeonState)
	require.Len(t, created, 1)
	state := decodePayload[message.DungeonState](t, created[0])
	require.NotEmpty(t, state.DungeonID)
	require.Equal(t, 2, state.Difficulty)
	require.Equal(t, 4, state.Level)
	require.GreaterOrEqual(t, len(state.Rooms), 9) // 5 + 2*difficulty minimum
	require.Equal(t, "start", state.Rooms[0].Type)

	HandleEnterDungeon(sess, encode(t, message.DungeonRef{DungeonID: state.DungeonID}), env.deps)
	require.Len(t, framesOfType(t, sess, message.TypeDungeonState), 1)
	env.deps.Bus.Dispatch()
	require.Len(t, entered, 1)
	require.Equal(t, state.DungeonID, entered[0].DungeonID)

	HandleRequestDungeonProgress(sess, nil, env.deps)
	progress := framesOfType(t, sess, message.TypeDungeonProgress)
	require.Len(t, progress, 1)
	prog := decodePayload[message.DungeonProgressReply](t, progress[0])
	require.Equal(t, state.DungeonID, prog.DungeonID)
	require.Empty(t, prog.RoomsCleared)

	HandleExitDungeon(sess, nil, env.deps)
	env.deps.Bus.Dispatch()
	require.Len(t, exited, 1)

	// Progress request after exit fails.
	HandleRequestDungeonProgress(sess, nil, env.deps)
	errs := framesOfType(t, sess, message.TypeDungeonError)
	require.Len(t, errs, 1)
	require.Equal(t, "NotFound", decodePayload[message.ErrorReply](t, errs[0]).Code)
}

func TestDungeonEnterUnknownID(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	HandleEnterDungeon(sess, encode(t, message.DungeonRef{DungeonID: "nope"}), env.deps)

	errs := framesOfType(t, sess, message.TypeDungeonError)
	require.Len(t, errs, 1)
}

func TestDungeonSecondInstanceRejected(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.addPlayer(t, "acct-1", "Rei", 0, 0)

	d1 := env.deps.Dungeons.Create(1, 1, 1)
	d2 := env.deps.Dungeons.Create(2, 1, 1)

	HandleEnterDungeon(sess, encode(t, message.DungeonRef{DungeonID: d1.ID}), env.deps)
	frames(t, sess)

	HandleEnterDungeon(sess, encode(t, message.DungeonRef{DungeonID: d2.ID}), env.deps)
	errs := framesOfType(t, sess, message.TypeDungeonError)
	require.Len(t, errs, 1)
	require.Contains(t, decodePayload[message.ErrorReply](t, errs[0]).Reason, "another dungeon")
}
