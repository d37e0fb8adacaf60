package message

import "time"

// Vec3 is a world position in a payload.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Join is the first frame a client sends. Token identifies the account in
// token mode; Name and Password drive local mode; Name also seeds the
// display name for a fresh record.
type Join struct {
	Token    string `json:"token,omitempty"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
	Race     string `json:"race,omitempty"`
}

type Move struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
}

type CastSpell struct {
	SpellID  string  `json:"spellId"`
	Position Vec3    `json:"position"`
	Rotation float64 `json:"rotation"`
}

type Chat struct {
	Text string `json:"text"`
}

type PickupLoot struct {
	LootID uint64 `json:"lootId"`
}

type HarvestResource struct {
	ResourceID uint64 `json:"resourceId"`
}

type CreateGuild struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

type JoinGuild struct {
	GuildID string `json:"guildId"`
}

type Whisper struct {
	TargetID string `json:"targetId"`
	Text     string `json:"text"`
}

type Emote struct {
	Emote string `json:"emote"`
}

type QuestRef struct {
	QuestID string `json:"questId"`
}

type ClaimBattlePassReward struct {
	Tier  int    `json:"tier"`
	Track string `json:"track"`
}

type CreateDungeon struct {
	Difficulty int `json:"difficulty"`
	Level      int `json:"level"`
}

type DungeonRef struct {
	DungeonID string `json:"dungeonId"`
}

type InitiateTrade struct {
	TargetID string `json:"targetId"`
}

type TradeItem struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

type SetTradeCredits struct {
	Credits int64 `json:"credits"`
}

// Reply payloads.

// ErrorReply carries any typed rejection. Code is a stable machine
// identifier the client switches on; Reason is human-readable.
type ErrorReply struct {
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

// RateLimitExceeded tells the client how many frames the limiter dropped
// since the last notice.
type RateLimitExceeded struct {
	Dropped int `json:"dropped"`
}

// Joined confirms the join flow and tells the client its own ids.
type Joined struct {
	Account  string `json:"account"`
	EntityID uint64 `json:"entityId"`
	Name     string `json:"name"`
}

type PositionCorrection struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
}

// ChatBroadcast is used for room chat and guild chat alike; Channel tells
// them apart.
type ChatBroadcast struct {
	Channel  string `json:"channel"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Text     string `json:"text"`
}

type WhisperDelivery struct {
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Text     string `json:"text"`
}

type EmoteBroadcast struct {
	EntityID uint64 `json:"entityId"`
	Emote    string `json:"emote"`
}

type PlayerLeft struct {
	EntityID uint64 `json:"entityId"`
	Account  string `json:"account"`
	Name     string `json:"name"`
}

// LootPickedUp announces a successful pickup; lootRemoved covers expiry.
type LootPickedUp struct {
	LootID  uint64 `json:"lootId"`
	By      uint64 `json:"by"`
	Item    string `json:"item,omitempty"`
	Qty     int    `json:"qty,omitempty"`
	Credits int    `json:"credits,omitempty"`
}

type LootRemoved struct {
	LootID uint64 `json:"lootId"`
}

type ResourceHarvested struct {
	ResourceID uint64 `json:"resourceId"`
	By         uint64 `json:"by"`
	Item       string `json:"item"`
	Qty        int    `json:"qty"`
}

// DamageNumber is one resolved hit. Crit hits bypass the batcher; normal
// hits ride it under the "damage" kind.
type DamageNumber struct {
	TargetID uint64 `json:"targetId"`
	Amount   int    `json:"amount"`
	Crit     bool   `json:"crit,omitempty"`
}

// EnemyKilled is the high-priority kill notice; it bypasses the batcher so
// combat feedback lands the same tick.
type EnemyKilled struct {
	EnemyID uint64  `json:"enemyId"`
	Killer  uint64  `json:"killer"`
	Combo   float64 `json:"combo"`
	Crit    bool    `json:"crit,omitempty"`
	XP      int     `json:"xp"`
	Credits int     `json:"credits"`
}

type BossSpawned struct {
	EnemyID uint64  `json:"enemyId"`
	Level   int     `json:"level"`
	HP      int     `json:"hp"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
}

// GuildUpdate is broadcast on create, join, leave and disband so every
// client can refresh its roster view.
type GuildUpdate struct {
	Event   string   `json:"event"`
	GuildID string   `json:"guildId"`
	Name    string   `json:"name,omitempty"`
	Tag     string   `json:"tag,omitempty"`
	Leader  string   `json:"leader,omitempty"`
	Members []string `json:"members,omitempty"`
	Account string   `json:"account,omitempty"`
}

type QuestEntry struct {
	QuestID  string `json:"questId"`
	Progress int    `json:"progress"`
	Goal     int    `json:"goal"`
	Done     bool   `json:"done"`
}

type QuestProgressReply struct {
	Quests []QuestEntry `json:"quests"`
}

type BattlePassState struct {
	Tier    int  `json:"tier"`
	XP      int  `json:"xp"`
	Premium bool `json:"premium"`
}

type AchievementState struct {
	Unlocked []string `json:"unlocked"`
}

type DungeonRoomState struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	Cleared bool   `json:"cleared"`
}

type DungeonEntityState struct {
	ID       int     `json:"id"`
	Type     string  `json:"type"`
	Room     int     `json:"room"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Level    int     `json:"level,omitempty"`
	HP       int     `json:"hp,omitempty"`
	MaxHP    int     `json:"maxHp,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Defeated bool    `json:"defeated,omitempty"`
}

// DungeonState describes a generated instance. Seed lets clients drive
// decorative generation; authoritative layout is the room and entity lists.
type DungeonState struct {
	DungeonID  string               `json:"dungeonId"`
	Seed       int64                `json:"seed"`
	Difficulty int                  `json:"difficulty"`
	Level      int                  `json:"level"`
	Completed  bool                 `json:"completed"`
	Rooms      []DungeonRoomState   `json:"rooms"`
	Entities   []DungeonEntityState `json:"entities"`
}

type DungeonProgressReply struct {
	DungeonID        string `json:"dungeonId"`
	Floor            int    `json:"floor"`
	RoomsCleared     []int  `json:"roomsCleared"`
	EntitiesDefeated []int  `json:"entitiesDefeated"`
}

type DungeonCompleted struct {
	DungeonID string `json:"dungeonId"`
	XP        int    `json:"xp"`
	Credits   int    `json:"credits"`
	Crystals  int    `json:"crystals"`
}

type TradeOffer struct {
	Items     map[string]int `json:"items"`
	Credits   int64          `json:"credits"`
	Confirmed bool           `json:"confirmed"`
}

// TradeState mirrors the full session so both parties render the same view
// after every mutation.
type TradeState struct {
	TradeID   string                `json:"tradeId"`
	Initiator string                `json:"initiator"`
	Target    string                `json:"target"`
	State     string                `json:"state"`
	Offers    map[string]TradeOffer `json:"offers"`
	ExpiresAt time.Time             `json:"expiresAt"`
}
