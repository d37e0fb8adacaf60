package handler

import (
	"encoding/json"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/world"
)

// interactRadius bounds pickups and harvests to arm's reach.
const interactRadius = 2.0

// HandlePickupLoot claims a ground drop. Unknown ids are ignored; the drop
// may already be gone by the time the request lands.
func HandlePickupLoot(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.PickupLoot](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	l := deps.World.GetLoot(m.LootID)
	if l == nil {
		return
	}
	if !l.ClaimableBy(p.AccountID) {
		reply(sess, message.TypeError, message.ErrorReply{
			Code:   "InvalidState",
			Reason: "loot reserved for another player",
		})
		return
	}
	if world.PlanarDist(p.X, p.Z, l.X, l.Z) > interactRadius {
		return
	}
	if l.Item != "" && !deps.Validator.InventoryChange(p.AccountID, l.Item, l.Qty, "add", deps.Now()) {
		return
	}

	if l.Item != "" {
		p.AddItem(l.Item, l.Qty)
	}
	p.Credits += l.Credits
	p.Dirty = true
	deps.World.RemoveLoot(l.ID)

	broadcastAll(deps, message.TypeLootPickedUp, message.LootPickedUp{
		LootID:  l.ID,
		By:      p.EntityID,
		Item:    l.Item,
		Qty:     l.Qty,
		Credits: l.Credits,
	})
	event.Emit(deps.Bus, event.LootPickedUp{
		Account: p.AccountID,
		Item:    l.Item,
		Qty:     l.Qty,
		Credits: l.Credits,
	})

	if l.DungeonID != "" {
		event.Emit(deps.Bus, event.DungeonEntityDefeated{
			DungeonID: l.DungeonID,
			EntityID:  l.DungeonEntity,
		})
	}
}

// HandleHarvestResource consumes a resource node if it has respawned.
func HandleHarvestResource(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.HarvestResource](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}
	r := deps.World.GetResource(m.ResourceID)
	if r == nil {
		return
	}
	if world.PlanarDist(p.X, p.Z, r.X, r.Z) > interactRadius {
		return
	}
	now := deps.Now()
	if !r.Available(now) {
		reply(sess, message.TypeError, message.ErrorReply{
			Code:   "InvalidState",
			Reason: "resource not yet respawned",
		})
		return
	}
	if !deps.Validator.InventoryChange(p.AccountID, r.Type, 1, "add", now) {
		return
	}
	r.Harvest(now)
	p.AddItem(r.Type, 1)
	p.Dirty = true

	broadcastAll(deps, message.TypeResourceHarvested, message.ResourceHarvested{
		ResourceID: r.ID,
		By:         p.EntityID,
		Item:       r.Type,
		Qty:        1,
	})
	deps.Quests.HandleEvent(p.AccountID, "harvest", r.Type, 1)
	deps.Achieve.HandleEvent(p.AccountID, collab.AchievementEvent{Kind: "harvest", Target: r.Type, Qty: 1})
}
