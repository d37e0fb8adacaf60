package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusroom/server/internal/net/message"
)

func TestGuildCreateJoinLeave(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceSess := env.addPlayer(t, "acct-a", "Alice", 0, 0)
	bob, bobSess := env.addPlayer(t, "acct-b", "Bob", 2, 0)

	HandleCreateGuild(aliceSess, encode(t, message.CreateGuild{Name: "Night Watch", Tag: "nw"}), env.deps)

	created := framesOfType(t, aliceSess, message.TypeGuildUpdate)
	require.Len(t, created, 1)
	g := decodePayload[message.GuildUpdate](t, created[0])
	require.Equal(t, "created", g.Event)
	require.Equal(t, "NW", g.Tag) // tags are stored folded
	require.Equal(t, "acct-a", g.Leader)
	require.Equal(t, g.GuildID, alice.GuildID)
	require.Len(t, framesOfType(t, bobSess, message.TypeGuildUpdate), 1)

	HandleJoinGuild(bobSess, encode(t, message.JoinGuild{GuildID: g.GuildID}), env.deps)
	joined := framesOfType(t, bobSess, message.TypeGuildUpdate)
	require.Len(t, joined, 1)
	j := decodePayload[message.GuildUpdate](t, joined[0])
	require.Equal(t, "joined", j.Event)
	require.ElementsMatch(t, []string{"acct-a", "acct-b"}, j.Members)
	require.Equal(t, g.GuildID, bob.GuildID)

	// Leader leaves: leadership passes to Bob.
	HandleLeaveGuild(aliceSess, nil, env.deps)
	left := framesOfType(t, aliceSess, message.TypeGuildUpdate)
	require.Len(t, left, 1)
	l := decodePayload[message.GuildUpdate](t, left[0])
	require.Equal(t, "left", l.Event)
	require.Equal(t, "acct-b", l.Leader)
	require.Empty(t, alice.GuildID)

	// Last member out disbands.
	HandleLeaveGuild(bobSess, nil, env.deps)
	disbanded := framesOfType(t, bobSess, message.TypeGuildUpdate)
	require.Len(t, disbanded, 2) // "left" broadcast for alice + "disbanded"
	d := decodePayload[message.GuildUpdate](t, disbanded[1])
	require.Equal(t, "disbanded", d.Event)
	require.Equal(t, 0, env.deps.World.Guilds.Count())
}

func TestGuildCreateRejectsBadNames(t *testing.T) {
	env := newTestEnv(t)
	_, sess := env.addPlayer(t, "acct-a", "Alice", 0, 0)

	HandleCreateGuild(sess, encode(t, message.CreateGuild{Name: "ab", Tag: "ABCD"}), env.deps)
	errs := framesOfType(t, sess, message.TypeGuildError)
	require.Len(t, errs, 1)

	HandleCreateGuild(sess, encode(t, message.CreateGuild{Name: "Valid Name", Tag: "TOOLONG"}), env.deps)
	require.Len(t, framesOfType(t, sess, message.TypeGuildError), 1)

	require.Equal(t, 0, env.deps.World.Guilds.Count())
}

func TestGuildChatStaysInGuild(t *testing.T) {
	env := newTestEnv(t)
	_, aliceSess := env.addPlayer(t, "acct-a", "Alice", 0, 0)
	_, bobSess := env.addPlayer(t, "acct-b", "Bob", 2, 0)
	_, caraSess := env.addPlayer(t, "acct-c", "Cara", 4, 0)

	HandleCreateGuild(aliceSess, encode(t, message.CreateGuild{Name: "Night Watch", Tag: "NW"}), env.deps)
	created := framesOfType(t, aliceSess, message.TypeGuildUpdate)
	g := decodePayload[message.GuildUpdate](t, created[0])
	HandleJoinGuild(bobSess, encode(t, message.JoinGuild{GuildID: g.GuildID}), env.deps)
	frames(t, bobSess)
	frames(t, caraSess)

	HandleGuildChat(aliceSess, encode(t, message.Chat{Text: "rally up"}), env.deps)

	got := framesOfType(t, bobSess, message.TypeChatBroadcast)
	require.Len(t, got, 1)
	require.Equal(t, "guild", decodePayload[message.ChatBroadcast](t, got[0]).Channel)
	require.Empty(t, framesOfType(t, caraSess, message.TypeChatBroadcast))

	// Outsiders get a guildError.
	HandleGuildChat(caraSess, encode(t, message.Chat{Text: "let me in"}), env.deps)
	require.Len(t, framesOfType(t, caraSess, message.TypeGuildError), 1)
}
