package handler

import (
	"encoding/json"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
)

// Quest, battle pass and achievement requests forward to the collaborator
// systems and mirror the result back. Failures are per-feature errors; the
// session is never torn down over them.

func HandleAcceptQuest(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.QuestRef](raw)
	if err != nil {
		return
	}
	if err := deps.Quests.Accept(sess.AccountID, m.QuestID); err != nil {
		reply(sess, message.TypeQuestError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendQuestProgress(sess, deps)
}

func HandleCompleteQuest(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.QuestRef](raw)
	if err != nil {
		return
	}
	if err := deps.Quests.Complete(sess.AccountID, m.QuestID); err != nil {
		reply(sess, message.TypeQuestError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendQuestProgress(sess, deps)
}

func HandleClaimBattlePassReward(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.ClaimBattlePassReward](raw)
	if err != nil {
		return
	}
	if err := deps.Pass.ClaimReward(sess.AccountID, m.Tier, m.Track); err != nil {
		reply(sess, message.TypeBattlePassError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendBattlePassProgress(sess, deps)
}

func HandleUnlockBattlePassPremium(sess *net.Session, _ json.RawMessage, deps *Deps) {
	if err := deps.Pass.UnlockPremium(sess.AccountID); err != nil {
		reply(sess, message.TypeBattlePassError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendBattlePassProgress(sess, deps)
}

func HandleRequestBattlePassProgress(sess *net.Session, _ json.RawMessage, deps *Deps) {
	sendBattlePassProgress(sess, deps)
}

func HandleRequestAchievementProgress(sess *net.Session, _ json.RawMessage, deps *Deps) {
	reply(sess, message.TypeAchievementProgress, message.AchievementState{
		Unlocked: deps.Achieve.Progress(sess.AccountID),
	})
}

func sendQuestProgress(sess *net.Session, deps *Deps) {
	reply(sess, message.TypeQuestProgress, message.QuestProgressReply{
		Quests: questEntries(deps.Quests.Progress(sess.AccountID)),
	})
}

func sendBattlePassProgress(sess *net.Session, deps *Deps) {
	p := deps.Pass.Progress(sess.AccountID)
	reply(sess, message.TypeBattlePassProgress, message.BattlePassState{
		Tier:    p.Tier,
		XP:      p.XP,
		Premium: p.Premium,
	})
}

func questEntries(progress []collab.QuestProgress) []message.QuestEntry {
	entries := make([]message.QuestEntry, 0, len(progress))
	for _, q := range progress {
		entries = append(entries, message.QuestEntry{
			QuestID:  q.QuestID,
			Progress: q.Progress,
			Goal:     q.Goal,
			Done:     q.Done,
		})
	}
	return entries
}
