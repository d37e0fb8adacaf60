package handler

import (
	"encoding/json"

	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
)

// HandleMove applies a client position update. The client's claimed origin
// is never trusted: the validator checks the target against the last
// server-accepted position, and a rejection answers with a correction back
// to that position.
func HandleMove(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.Move](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}

	if !deps.Validator.Movement(p.AccountID, m.X, m.Y, m.Z, deps.Now()) {
		reply(sess, message.TypePositionCorrection, message.PositionCorrection{
			X:        p.X,
			Y:        p.Y,
			Z:        p.Z,
			Rotation: p.Rotation,
		})
		return
	}

	deps.World.MovePlayer(p, m.X, m.Y, m.Z, m.Rotation)
	deps.Batcher.Queue("player", p.EntityID, map[string]any{
		"x":        m.X,
		"y":        m.Y,
		"z":        m.Z,
		"rotation": m.Rotation,
	})
}
