package handler

import (
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/world"
)

// reply buffers a directed frame on the session; it goes out with the next
// tick flush.
func reply(sess *net.Session, typ string, payload any) {
	sess.Send(message.Encode(typ, payload))
}

// broadcastAll sends one frame to every connected player. Used for the
// high-priority events that bypass the batcher.
func broadcastAll(deps *Deps, typ string, payload any) {
	frame := message.Encode(typ, payload)
	deps.World.EachPlayer(func(p *world.Player) {
		if p.Sess != nil {
			p.Sess.Send(frame)
		}
	})
}

// broadcastNear sends one frame to players within a planar radius.
func broadcastNear(deps *Deps, x, y, z, radius float64, typ string, payload any) {
	frame := message.Encode(typ, payload)
	deps.World.PlayersWithin(x, y, z, radius, func(p *world.Player) {
		if p.Sess != nil {
			p.Sess.Send(frame)
		}
	})
}
