// Package pubsub publishes advisory lifecycle events to Redis. The
// messages are observability-only; no room state is derived from them.
package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultChannel = "nexus:events"

// Event kinds published by the server.
const (
	KindRoomOpen        = "room_open"
	KindRoomClose       = "room_close"
	KindPlayerJoin      = "player_join"
	KindPlayerLeave     = "player_leave"
	KindKick            = "kick"
	KindBossSpawn       = "boss_spawn"
	KindDungeonComplete = "dungeon_complete"
)

// Event is one advisory message.
type Event struct {
	Kind    string            `json:"kind"`
	Room    string            `json:"room,omitempty"`
	Account string            `json:"account,omitempty"`
	Detail  map[string]string `json:"detail,omitempty"`
	At      time.Time         `json:"at"`
}

// Publisher fans events out to a Redis channel. A nil *Publisher is
// valid and publishes nothing, so callers never branch on whether Redis
// is configured.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

// Connect dials Redis and verifies the connection. An empty url returns
// (nil, nil); an empty channel falls back to the default.
func Connect(ctx context.Context, url, channel string, log *zap.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	if channel == "" {
		channel = defaultChannel
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	log.Info("redis connected", zap.String("addr", opts.Addr), zap.String("channel", channel))
	return &Publisher{client: client, channel: channel, log: log}, nil
}

// Publish sends one event off the caller's goroutine. Failures are
// logged, never returned.
func (p *Publisher) Publish(kind, room, account string, detail map[string]string) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(Event{
		Kind:    kind,
		Room:    room,
		Account: account,
		Detail:  detail,
		At:      time.Now().UTC(),
	})
	if err != nil {
		p.log.Error("pubsub marshal failed", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
			p.log.Warn("pubsub publish failed", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Close()
}
