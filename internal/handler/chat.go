package handler

import (
	"encoding/json"
	"strings"

	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/world"
)

const (
	maxChatLen  = 256
	emoteRadius = 20.0
)

// HandleChat fans a room-wide message out to every player. Chat is
// high-priority traffic and never waits for the batcher.
func HandleChat(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.Chat](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	text := sanitizeChat(m.Text)
	if text == "" {
		return
	}
	broadcastAll(deps, message.TypeChatBroadcast, message.ChatBroadcast{
		Channel:  "room",
		From:     p.AccountID,
		FromName: p.Name,
		Text:     text,
	})
}

// HandleGuildChat delivers a message to guild members only.
func HandleGuildChat(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.Chat](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	if p.GuildID == "" {
		reply(sess, message.TypeGuildError, message.ErrorReply{
			Code:   "InvalidState",
			Reason: "not in a guild",
		})
		return
	}
	text := sanitizeChat(m.Text)
	if text == "" {
		return
	}
	frame := message.Encode(message.TypeChatBroadcast, message.ChatBroadcast{
		Channel:  "guild",
		From:     p.AccountID,
		FromName: p.Name,
		Text:     text,
	})
	deps.World.EachPlayer(func(other *world.Player) {
		if other.GuildID == p.GuildID && other.Sess != nil {
			other.Sess.Send(frame)
		}
	})
}

// HandleWhisper delivers a private message. The target may be named by
// account id or by character name.
func HandleWhisper(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.Whisper](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	text := sanitizeChat(m.Text)
	if text == "" {
		return
	}
	target := deps.World.GetPlayer(m.TargetID)
	if target == nil {
		target = deps.World.GetPlayerByName(m.TargetID)
	}
	if target == nil || target.Sess == nil {
		reply(sess, message.TypeError, message.ErrorReply{
			Code:   "NotFound",
			Reason: "whisper target not online",
		})
		return
	}
	target.Sess.Send(message.Encode(message.TypeWhisperDelivery, message.WhisperDelivery{
		From:     p.AccountID,
		FromName: p.Name,
		Text:     text,
	}))
}

// HandleEmote plays a gesture for everyone nearby. Unknown emotes are
// dropped without a reply.
func HandleEmote(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.Emote](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	if !deps.Emotes.Valid(m.Emote) {
		return
	}
	broadcastNear(deps, p.X, p.Y, p.Z, emoteRadius, message.TypeEmoteBroadcast, message.EmoteBroadcast{
		EntityID: p.EntityID,
		Emote:    m.Emote,
	})
}

func sanitizeChat(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > maxChatLen {
		text = text[:maxChatLen]
	}
	return text
}
