package handler

import (
	"encoding/json"

	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/dungeon"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
)

// HandleCreateDungeon generates a fresh instance seeded from the clock.
// Nothing spawns until somebody enters it.
func HandleCreateDungeon(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.CreateDungeon](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	if m.Difficulty < 1 {
		m.Difficulty = 1
	}
	if m.Difficulty > 5 {
		m.Difficulty = 5
	}
	if m.Level < 1 {
		m.Level = p.Level
	}
	d := deps.Dungeons.Create(deps.Now().UnixNano(), m.Difficulty, m.Level)
	reply(sess, message.TypeDungeonState, dungeonStateWire(d))
}

// HandleEnterDungeon binds the player to an instance. Entity materialization
// into the world happens on the room's event pass.
func HandleEnterDungeon(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.DungeonRef](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	d, err := deps.Dungeons.Enter(p.AccountID, m.DungeonID)
	if err != nil {
		reply(sess, message.TypeDungeonError, message.ErrorReply{Reason: err.Error()})
		return
	}
	reply(sess, message.TypeDungeonState, dungeonStateWire(d))
	event.Emit(deps.Bus, event.DungeonEntered{Account: p.AccountID, DungeonID: d.ID})
}

// HandleExitDungeon unbinds the player and persists the run so far.
func HandleExitDungeon(sess *net.Session, _ json.RawMessage, deps *Deps) {
	d := deps.Dungeons.DungeonOf(sess.AccountID)
	if d == nil {
		reply(sess, message.TypeDungeonError, message.ErrorReply{
			Code:   "NotFound",
			Reason: "not in a dungeon",
		})
		return
	}
	deps.Dungeons.Exit(deps.Ctx, sess.AccountID)
	event.Emit(deps.Bus, event.DungeonExited{Account: sess.AccountID, DungeonID: d.ID})
}

// HandleRequestDungeonProgress mirrors the caller's run record.
func HandleRequestDungeonProgress(sess *net.Session, _ json.RawMessage, deps *Deps) {
	prog := deps.Dungeons.ProgressOf(sess.AccountID)
	if prog == nil {
		reply(sess, message.TypeDungeonError, message.ErrorReply{
			Code:   "NotFound",
			Reason: "no active dungeon run",
		})
		return
	}
	reply(sess, message.TypeDungeonProgress, message.DungeonProgressReply{
		DungeonID:        prog.DungeonID,
		Floor:            prog.CurrentFloor,
		RoomsCleared:     append([]int(nil), prog.RoomsCleared...),
		EntitiesDefeated: append([]int(nil), prog.EntitiesDefeated...),
	})
}

func dungeonStateWire(d *dungeon.Dungeon) message.DungeonState {
	state := message.DungeonState{
		DungeonID:  d.ID,
		Seed:       d.Seed,
		Difficulty: d.Difficulty,
		Level:      d.Level,
		Completed:  d.Completed,
		Rooms:      make([]message.DungeonRoomState, 0, len(d.Rooms)),
		Entities:   make([]message.DungeonEntityState, 0, len(d.Entities)),
	}
	for _, r := range d.Rooms {
		state.Rooms = append(state.Rooms, message.DungeonRoomState{
			ID:      r.ID,
			Type:    string(r.Type),
			X:       r.X,
			Y:       r.Y,
			W:       r.W,
			H:       r.H,
			Cleared: r.Cleared,
		})
	}
	for _, e := range d.Entities {
		state.Entities = append(state.Entities, message.DungeonEntityState{
			ID:       e.ID,
			Type:     string(e.Type),
			Room:     e.RoomID,
			X:        e.X,
			Y:        e.Y,
			Level:    e.Level,
			HP:       e.HP,
			MaxHP:    e.MaxHP,
			Kind:     e.Kind,
			Defeated: e.Defeated,
		})
	}
	return state
}
