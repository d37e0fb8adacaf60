package room

import (
	"context"

	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/pubsub"
)

// Manager owns the server's rooms. A single default room takes every join
// today; the account -> session invariant lives inside the room, so adding
// sharded rooms later means adding routing here, nothing below changes.
type Manager struct {
	room *Room
}

// NewManager builds the default room from opts.
func NewManager(opts Options) *Manager {
	return &Manager{room: NewRoom("default", opts)}
}

// Start launches the room loop.
func (m *Manager) Start() {
	go m.room.Run()
	m.room.pub.Publish(pubsub.KindRoomOpen, m.room.name, "", nil)
}

// OnJoin is the transport join callback; it routes every join to the
// default room.
func (m *Manager) OnJoin(ctx context.Context, sess *net.Session, join message.Join) {
	m.room.OnJoin(ctx, sess, join)
}

// Room returns the default room.
func (m *Manager) Room() *Room {
	return m.room
}

// Close disposes the room: final saves, batcher drain, session closes.
func (m *Manager) Close() {
	m.room.Close()
}
