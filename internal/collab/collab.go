// Package collab declares the collaborator systems the room forwards
// progression events to. The server ships logging defaults that record
// the traffic and report the feature as unavailable; deployments with a
// real quest, battle pass or achievement backend swap their own
// implementations in.
package collab

import (
	"errors"

	"go.uber.org/zap"
)

// ErrUnavailable is returned by the logging defaults for every player
// initiated operation, so handlers can send a typed rejection instead
// of pretending the action succeeded.
var ErrUnavailable = errors.New("collab: system unavailable")

// QuestProgress is one quest's state for a player.
type QuestProgress struct {
	QuestID  string
	Progress int
	Goal     int
	Done     bool
}

// QuestSystem tracks quest objectives. HandleEvent is fire-and-forget;
// the room calls it for kills, pickups and crafts without waiting.
type QuestSystem interface {
	HandleEvent(account, kind, target string, qty int)
	Accept(account, questID string) error
	Complete(account, questID string) error
	Progress(account string) []QuestProgress
}

// BattlePassProgress is a player's seasonal track state.
type BattlePassProgress struct {
	Tier    int
	XP      int
	Premium bool
}

// BattlePass accumulates seasonal XP and gates tier rewards.
type BattlePass interface {
	AddXP(account string, n int)
	ClaimReward(account string, tier int, track string) error
	UnlockPremium(account string) error
	Progress(account string) BattlePassProgress
}

// AchievementEvent is one gameplay occurrence fed to the achievement
// system.
type AchievementEvent struct {
	Kind   string
	Target string
	Qty    int
}

// AchievementResult reports whether the event unlocked something.
type AchievementResult struct {
	Unlocked   bool
	Definition string
}

// AchievementSystem evaluates events against achievement definitions.
type AchievementSystem interface {
	HandleEvent(account string, ev AchievementEvent) AchievementResult
	Progress(account string) []string
}

// LoggingQuests is the default QuestSystem: events are logged at debug,
// operations fail with ErrUnavailable.
type LoggingQuests struct {
	Log *zap.Logger
}

func (q LoggingQuests) HandleEvent(account, kind, target string, qty int) {
	q.Log.Debug("quest event",
		zap.String("account", account),
		zap.String("kind", kind),
		zap.String("target", target),
		zap.Int("qty", qty))
}

func (q LoggingQuests) Accept(account, questID string) error {
	q.Log.Debug("quest accept", zap.String("account", account), zap.String("quest", questID))
	return ErrUnavailable
}

func (q LoggingQuests) Complete(account, questID string) error {
	q.Log.Debug("quest complete", zap.String("account", account), zap.String("quest", questID))
	return ErrUnavailable
}

func (q LoggingQuests) Progress(account string) []QuestProgress {
	return nil
}

// LoggingBattlePass is the default BattlePass.
type LoggingBattlePass struct {
	Log *zap.Logger
}

func (b LoggingBattlePass) AddXP(account string, n int) {
	b.Log.Debug("battle pass xp", zap.String("account", account), zap.Int("xp", n))
}

func (b LoggingBattlePass) ClaimReward(account string, tier int, track string) error {
	b.Log.Debug("battle pass claim",
		zap.String("account", account),
		zap.Int("tier", tier),
		zap.String("track", track))
	return ErrUnavailable
}

func (b LoggingBattlePass) UnlockPremium(account string) error {
	b.Log.Debug("battle pass premium unlock", zap.String("account", account))
	return ErrUnavailable
}

func (b LoggingBattlePass) Progress(account string) BattlePassProgress {
	return BattlePassProgress{}
}

// LoggingAchievements is the default AchievementSystem: nothing ever
// unlocks.
type LoggingAchievements struct {
	Log *zap.Logger
}

func (a LoggingAchievements) HandleEvent(account string, ev AchievementEvent) AchievementResult {
	a.Log.Debug("achievement event",
		zap.String("account", account),
		zap.String("kind", ev.Kind),
		zap.String("target", ev.Target),
		zap.Int("qty", ev.Qty))
	return AchievementResult{}
}

func (a LoggingAchievements) Progress(account string) []string {
	return nil
}
