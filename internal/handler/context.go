package handler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/config"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/data"
	"github.com/nexusroom/server/internal/dungeon"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/replication"
	"github.com/nexusroom/server/internal/trade"
	"github.com/nexusroom/server/internal/validate"
	"github.com/nexusroom/server/internal/world"
)

// Deps holds shared dependencies injected into all message handlers. One
// Deps exists per room; handlers run on the room loop and may touch room
// state freely.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Validator *validate.Validator
	Batcher   *replication.Batcher
	Bus       *event.Bus
	Spells    *data.SpellTable
	Emotes    *data.EmoteTable
	Trades    *trade.Manager
	Dungeons  *dungeon.Manager
	Quests    collab.QuestSystem
	Pass      collab.BattlePass
	Achieve   collab.AchievementSystem

	// Ctx is the room lifetime context, used for repository calls made
	// from handlers (trade execution, dungeon persistence).
	Ctx context.Context

	// Now is the room clock; tests inject a fixed one.
	Now func() time.Time

	// Kick removes the player, persists the record and closes the session
	// with code 1000. Provided by the room.
	Kick func(account, reason string)
}

// RegisterAll registers every inbound message handler into the registry.
// The join message never reaches the registry; the transport layer finishes
// the join flow before the room sees the session.
func RegisterAll(reg *message.Registry, deps *Deps) {
	inWorld := []message.SessionState{message.StateInWorld}

	reg.Register(message.TypeMove, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleMove(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeCastSpell, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleCastSpell(sess.(*net.Session), payload, deps)
		},
	)

	// Social
	reg.Register(message.TypeChat, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleChat(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeGuildChat, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleGuildChat(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeWhisper, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleWhisper(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeEmote, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleEmote(sess.(*net.Session), payload, deps)
		},
	)

	// World interaction
	reg.Register(message.TypePickupLoot, inWorld,
		func(sess any, payload json.RawMessage) {
			HandlePickupLoot(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeHarvestResource, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleHarvestResource(sess.(*net.Session), payload, deps)
		},
	)

	// Guilds
	reg.Register(message.TypeCreateGuild, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleCreateGuild(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeJoinGuild, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleJoinGuild(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeLeaveGuild, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleLeaveGuild(sess.(*net.Session), payload, deps)
		},
	)

	// Collaborator forwarding
	reg.Register(message.TypeAcceptQuest, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleAcceptQuest(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeCompleteQuest, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleCompleteQuest(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeClaimBattlePassReward, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleClaimBattlePassReward(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeUnlockBattlePassPremium, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleUnlockBattlePassPremium(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeRequestBattlePassProgress, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleRequestBattlePassProgress(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeRequestAchievementProgress, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleRequestAchievementProgress(sess.(*net.Session), payload, deps)
		},
	)

	// Dungeons
	reg.Register(message.TypeCreateDungeon, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleCreateDungeon(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeEnterDungeon, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleEnterDungeon(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeExitDungeon, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleExitDungeon(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeRequestDungeonProgress, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleRequestDungeonProgress(sess.(*net.Session), payload, deps)
		},
	)

	// Trading
	reg.Register(message.TypeInitiateTrade, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleInitiateTrade(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeAddTradeItem, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleAddTradeItem(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeRemoveTradeItem, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleRemoveTradeItem(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeSetTradeCredits, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleSetTradeCredits(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeConfirmTrade, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleConfirmTrade(sess.(*net.Session), payload, deps)
		},
	)
	reg.Register(message.TypeCancelTrade, inWorld,
		func(sess any, payload json.RawMessage) {
			HandleCancelTrade(sess.(*net.Session), payload, deps)
		},
	)
}
