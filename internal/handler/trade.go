package handler

import (
	"encoding/json"

	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/trade"
	"github.com/nexusroom/server/internal/world"
)

// HandleInitiateTrade opens a session with a nearby player. The target may
// be named by account id or character name.
func HandleInitiateTrade(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.InitiateTrade](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	target := deps.World.GetPlayer(m.TargetID)
	if target == nil {
		target = deps.World.GetPlayerByName(m.TargetID)
	}
	if target == nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{
			Code:   "NotConnected",
			Reason: "trade target not online",
		})
		return
	}
	dist := world.PlanarDist(p.X, p.Z, target.X, target.Z)
	s, err := deps.Trades.Initiate(p.AccountID, target.AccountID, dist)
	if err != nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendTradeState(deps, s)
}

func HandleAddTradeItem(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.TradeItem](raw)
	if err != nil {
		return
	}
	s, err := deps.Trades.AddItem(sess.AccountID, m.Item, m.Qty)
	if err != nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendTradeState(deps, s)
}

func HandleRemoveTradeItem(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.TradeItem](raw)
	if err != nil {
		return
	}
	s, err := deps.Trades.RemoveItem(sess.AccountID, m.Item, m.Qty)
	if err != nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendTradeState(deps, s)
}

func HandleSetTradeCredits(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.SetTradeCredits](raw)
	if err != nil {
		return
	}
	s, err := deps.Trades.SetCredits(sess.AccountID, m.Credits)
	if err != nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendTradeState(deps, s)
}

// HandleConfirmTrade toggles the caller's confirmation. Both sides confirmed
// executes the exchange against persisted inventories; the world copies are
// refreshed afterwards so the next snapshot agrees with the store.
func HandleConfirmTrade(sess *net.Session, raw json.RawMessage, deps *Deps) {
	s, err := deps.Trades.Confirm(deps.Ctx, sess.AccountID)
	if err != nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{Reason: err.Error()})
		// Execution failure cancels the session; both parties see that.
		if s != nil {
			sendTradeState(deps, s)
		}
		return
	}
	if s.State == trade.StateCompleted {
		applyTradeToWorld(deps, s)
	}
	sendTradeState(deps, s)
}

func HandleCancelTrade(sess *net.Session, raw json.RawMessage, deps *Deps) {
	s, err := deps.Trades.Cancel(sess.AccountID, "cancelled by participant")
	if err != nil {
		reply(sess, message.TypeTradeError, message.ErrorReply{Reason: err.Error()})
		return
	}
	sendTradeState(deps, s)
}

// applyTradeToWorld mirrors a completed exchange onto the in-room players.
// The store already holds the authoritative result.
func applyTradeToWorld(deps *Deps, s *trade.Session) {
	for account, offer := range s.Offers {
		giver := deps.World.GetPlayer(account)
		taker := deps.World.GetPlayer(s.Other(account))
		for item, qty := range offer.Items {
			if giver != nil {
				giver.AddItem(item, -qty)
			}
			if taker != nil {
				taker.AddItem(item, qty)
			}
		}
		if giver != nil {
			giver.Credits -= int(offer.Credits)
			giver.Dirty = true
		}
		if taker != nil {
			taker.Credits += int(offer.Credits)
			taker.Dirty = true
		}
	}
}

func sendTradeState(deps *Deps, s *trade.Session) {
	state := message.TradeState{
		TradeID:   s.ID,
		Initiator: s.Initiator,
		Target:    s.Target,
		State:     string(s.State),
		Offers:    make(map[string]message.TradeOffer, len(s.Offers)),
		ExpiresAt: s.ExpiresAt,
	}
	for account, offer := range s.Offers {
		items := make(map[string]int, len(offer.Items))
		for item, qty := range offer.Items {
			items[item] = qty
		}
		state.Offers[account] = message.TradeOffer{
			Items:     items,
			Credits:   offer.Credits,
			Confirmed: offer.Confirmed,
		}
	}
	frame := message.Encode(message.TypeTradeState, state)
	for _, account := range []string{s.Initiator, s.Target} {
		if p := deps.World.GetPlayer(account); p != nil && p.Sess != nil {
			p.Sess.Send(frame)
		}
	}
}
