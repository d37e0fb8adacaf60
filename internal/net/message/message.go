// Package message defines the JSON wire envelope, the inbound and outbound
// message catalog and the state-checked dispatch registry.
package message

import (
	"encoding/json"
	"fmt"
)

// Envelope is one framed message in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound message types.
const (
	TypeJoin                       = "join"
	TypeMove                       = "move"
	TypeCastSpell                  = "castSpell"
	TypeChat                       = "chat"
	TypePickupLoot                 = "pickupLoot"
	TypeHarvestResource            = "harvestResource"
	TypeCreateGuild                = "createGuild"
	TypeJoinGuild                  = "joinGuild"
	TypeLeaveGuild                 = "leaveGuild"
	TypeGuildChat                  = "guildChat"
	TypeWhisper                    = "whisper"
	TypeEmote                      = "emote"
	TypeAcceptQuest                = "acceptQuest"
	TypeCompleteQuest              = "completeQuest"
	TypeClaimBattlePassReward      = "claimBattlePassReward"
	TypeUnlockBattlePassPremium    = "unlockBattlePassPremium"
	TypeRequestBattlePassProgress  = "requestBattlePassProgress"
	TypeCreateDungeon              = "createDungeon"
	TypeEnterDungeon               = "enterDungeon"
	TypeExitDungeon                = "exitDungeon"
	TypeRequestDungeonProgress     = "requestDungeonProgress"
	TypeInitiateTrade              = "initiateTrade"
	TypeAddTradeItem               = "addTradeItem"
	TypeRemoveTradeItem            = "removeTradeItem"
	TypeSetTradeCredits            = "setTradeCredits"
	TypeConfirmTrade               = "confirmTrade"
	TypeCancelTrade                = "cancelTrade"
	TypeRequestAchievementProgress = "requestAchievementProgress"
)

// Outbound message types.
const (
	TypeJoined              = "joined"
	TypeSnapshot            = "snapshot"
	TypeDelta               = "delta"
	TypeBatchUpdate         = "batchUpdate"
	TypePlayerJoined        = "playerJoined"
	TypePlayerLeft          = "playerLeft"
	TypeLootSpawned         = "lootSpawned"
	TypeLootRemoved         = "lootRemoved"
	TypeLootPickedUp        = "lootPickedUp"
	TypeDamageNumber        = "damageNumber"
	TypeEnemyKilled         = "enemyKilled"
	TypeBossSpawned         = "bossSpawned"
	TypeResourceHarvested   = "resourceHarvested"
	TypeChatBroadcast       = "chatBroadcast"
	TypeWhisperDelivery     = "whisperDelivery"
	TypeEmoteBroadcast      = "emoteBroadcast"
	TypeGuildUpdate         = "guildUpdate"
	TypeQuestProgress       = "questProgress"
	TypeBattlePassProgress  = "battlePassProgress"
	TypeAchievementProgress = "achievementProgress"
	TypeDungeonState        = "dungeonState"
	TypeDungeonProgress     = "dungeonProgress"
	TypeDungeonCompleted    = "dungeonCompleted"
	TypeTradeState          = "tradeState"
)

// Typed rejection replies. Rejections are not fatal: the session stays up.
const (
	TypeError              = "error"
	TypeRateLimitExceeded  = "rateLimitExceeded"
	TypeSpellCastRejected  = "spellCastRejected"
	TypePositionCorrection = "positionCorrection"
	TypeTradeError         = "tradeError"
	TypeQuestError         = "questError"
	TypeBattlePassError    = "battlePassError"
	TypeDungeonError       = "dungeonError"
	TypeGuildError         = "guildError"
)

// SessionState gates which messages a session may send.
type SessionState int

const (
	StateJoining SessionState = iota // connected, join flow not finished
	StateInWorld                     // playing
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateJoining:
		return "Joining"
	case StateInWorld:
		return "InWorld"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Encode frames a payload under the given type. Marshal failures of our own
// payload structs cannot happen in practice; the envelope degrades to an
// empty payload rather than dropping the frame.
func Encode(typ string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	data, _ := json.Marshal(Envelope{Type: typ, Payload: raw})
	return data
}

// Decode unmarshals an envelope payload into a typed struct.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// PeekType returns the envelope type without touching the payload, or ""
// for frames that are not valid envelopes.
func PeekType(data []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Type
}
