package handler

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/world"
)

// HandleCreateGuild founds a guild with the caller as leader. Name and tag
// constraints live in the world layer; violations come back as guildError.
func HandleCreateGuild(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.CreateGuild](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	g, err := deps.World.Guilds.Create(uuid.NewString(), m.Name, m.Tag, p.AccountID)
	if err != nil {
		reply(sess, message.TypeGuildError, message.ErrorReply{Reason: err.Error()})
		return
	}
	p.GuildID = g.ID
	p.Dirty = true
	broadcastGuild(deps, "created", g, p.AccountID)
}

// HandleJoinGuild adds the caller to an existing guild.
func HandleJoinGuild(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.JoinGuild](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	g, err := deps.World.Guilds.Join(m.GuildID, p.AccountID)
	if err != nil {
		reply(sess, message.TypeGuildError, message.ErrorReply{Reason: err.Error()})
		return
	}
	p.GuildID = g.ID
	p.Dirty = true
	broadcastGuild(deps, "joined", g, p.AccountID)
}

// HandleLeaveGuild removes the caller from their guild. The last member out
// disbands it; leadership otherwise passes to the oldest member.
func HandleLeaveGuild(sess *net.Session, _ json.RawMessage, deps *Deps) {
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	g, removed, err := deps.World.Guilds.Leave(p.AccountID)
	if err != nil {
		reply(sess, message.TypeGuildError, message.ErrorReply{Reason: err.Error()})
		return
	}
	p.GuildID = ""
	p.Dirty = true
	if removed {
		broadcastAll(deps, message.TypeGuildUpdate, message.GuildUpdate{
			Event:   "disbanded",
			GuildID: g.ID,
			Account: p.AccountID,
		})
		return
	}
	broadcastGuild(deps, "left", g, p.AccountID)
}

func broadcastGuild(deps *Deps, evt string, g *world.Guild, account string) {
	broadcastAll(deps, message.TypeGuildUpdate, message.GuildUpdate{
		Event:   evt,
		GuildID: g.ID,
		Name:    g.Name,
		Tag:     g.Tag,
		Leader:  g.LeaderAccount,
		Members: append([]string(nil), g.Members...),
		Account: account,
	})
}
