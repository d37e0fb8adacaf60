package collab

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestLoggingDefaultsRejectOperations(t *testing.T) {
	log := zap.NewNop()
	var (
		quests QuestSystem       = LoggingQuests{Log: log}
		pass   BattlePass        = LoggingBattlePass{Log: log}
		achs   AchievementSystem = LoggingAchievements{Log: log}
	)

	quests.HandleEvent("acct-1", "kill", "slime", 1)
	if err := quests.Accept("acct-1", "q1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Accept err = %v, want ErrUnavailable", err)
	}
	if err := quests.Complete("acct-1", "q1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Complete err = %v, want ErrUnavailable", err)
	}
	if got := quests.Progress("acct-1"); len(got) != 0 {
		t.Fatalf("Progress = %v, want empty", got)
	}

	pass.AddXP("acct-1", 50)
	if err := pass.ClaimReward("acct-1", 3, "free"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ClaimReward err = %v, want ErrUnavailable", err)
	}
	if err := pass.UnlockPremium("acct-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("UnlockPremium err = %v, want ErrUnavailable", err)
	}
	if got := pass.Progress("acct-1"); got != (BattlePassProgress{}) {
		t.Fatalf("Progress = %+v, want zero value", got)
	}

	res := achs.HandleEvent("acct-1", AchievementEvent{Kind: "kill", Target: "slime", Qty: 1})
	if res.Unlocked || res.Definition != "" {
		t.Fatalf("HandleEvent = %+v, want nothing unlocked", res)
	}
	if got := achs.Progress("acct-1"); len(got) != 0 {
		t.Fatalf("Progress = %v, want empty", got)
	}
}
