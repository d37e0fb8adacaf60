package room

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/dungeon"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/pubsub"
	"github.com/nexusroom/server/internal/replication"
	"github.com/nexusroom/server/internal/world"
)

// Dungeon instances materialize on a shelf of per-instance origins far from
// the overworld, so their entities live in the room's ordinary state and
// grid. One generator cell maps to one world unit.
const (
	shelfBaseX = 3000.0
	shelfBaseZ = 3000.0
	shelfPitch = 200.0
	shelfCols  = 16

	// players within this planar distance hold a pressure plate down
	plateRadius = 1.5

	// instance loot outlives overworld drops; runs take a while
	dungeonLootTTL = time.Hour
)

// dungeonSlot tracks what one materialized instance placed into the world.
type dungeonSlot struct {
	originX, originZ float64
	materialized     bool
	enemies          map[uint64]struct{}
	loot             map[uint64]struct{}
	plates           []plate
}

type plate struct {
	entity int
	x, z   float64
}

func (r *Room) slotFor(id string) *dungeonSlot {
	if s, ok := r.slots[id]; ok {
		return s
	}
	i := r.slotSeq
	r.slotSeq++
	s := &dungeonSlot{
		originX: shelfBaseX + float64(i%shelfCols)*shelfPitch,
		originZ: shelfBaseZ + float64(i/shelfCols)*shelfPitch,
		enemies: make(map[uint64]struct{}),
		loot:    make(map[uint64]struct{}),
	}
	r.slots[id] = s
	return s
}

// onDungeonEntered materializes the instance on first entry and moves the
// player to the start room.
func (r *Room) onDungeonEntered(ev event.DungeonEntered) {
	d := r.dungeons.Get(ev.DungeonID)
	if d == nil {
		return
	}
	s := r.slotFor(ev.DungeonID)
	if !s.materialized {
		r.materializeDungeon(d, s)
	}
	p := r.world.GetPlayer(ev.Account)
	if p == nil {
		return
	}
	start := startRoom(d)
	r.placePlayer(p, s.originX+float64(start.CenterX()), 1, s.originZ+float64(start.CenterY()))
}

func startRoom(d *dungeon.Dungeon) *dungeon.Room {
	for _, rm := range d.Rooms {
		if rm.Type == dungeon.RoomStart {
			return rm
		}
	}
	return d.Rooms[0]
}

// materializeDungeon spawns the instance's surviving entities at the slot
// origin. Already-defeated entities stay gone across re-entries.
func (r *Room) materializeDungeon(d *dungeon.Dungeon, s *dungeonSlot) {
	s.materialized = true
	for _, ent := range d.Entities {
		if ent.Defeated {
			continue
		}
		x := s.originX + ent.X
		z := s.originZ + ent.Y
		switch ent.Type {
		case dungeon.EntityEnemy, dungeon.EntityBoss:
			e := &world.Enemy{
				ID:            r.world.NextEntityID(),
				Type:          r.dungeonEnemyType(ent),
				X:             x,
				Z:             z,
				Level:         ent.Level,
				HP:            ent.HP,
				MaxHP:         ent.MaxHP,
				AnchorX:       x,
				AnchorZ:       z,
				Boss:          ent.Type == dungeon.EntityBoss,
				DungeonID:     d.ID,
				DungeonEntity: ent.ID,
			}
			r.world.AddEnemy(e)
			s.enemies[e.ID] = struct{}{}
		case dungeon.EntityLoot:
			l := &world.Loot{
				ID:            r.world.NextEntityID(),
				Credits:       ent.Credits,
				X:             x,
				Z:             z,
				ExpiresAt:     r.now.Add(dungeonLootTTL),
				DungeonID:     d.ID,
				DungeonEntity: ent.ID,
			}
			if ent.Crystals > 0 {
				l.Item = "quantum_crystal"
				l.Qty = ent.Crystals
			}
			r.world.AddLoot(l)
			r.broadcast(message.TypeLootSpawned, replication.LootWire(l))
			s.loot[l.ID] = struct{}{}
		case dungeon.EntityPuzzle:
			s.plates = append(s.plates, plate{entity: ent.ID, x: x, z: z})
		}
	}
	r.log.Info("dungeon materialized",
		zap.String("dungeon", d.ID),
		zap.Int("enemies", len(s.enemies)),
		zap.Int("loot", len(s.loot)),
		zap.Int("plates", len(s.plates)))
}

// dungeonEnemyType picks a display type for an instance enemy,
// deterministic per entity so re-entries look the same.
func (r *Room) dungeonEnemyType(ent *dungeon.Entity) string {
	if ent.Type == dungeon.EntityBoss {
		return "dungeon_boss"
	}
	types := r.enemyTab.Types()
	if len(types) == 0 {
		return "dungeon_enemy"
	}
	return types[ent.ID%len(types)]
}

// onDungeonExited returns the player to the overworld and despawns the
// instance once nobody is left inside. The instance itself stays
// registered until the idle sweep releases it.
func (r *Room) onDungeonExited(ev event.DungeonExited) {
	if p := r.world.GetPlayer(ev.Account); p != nil {
		r.placePlayer(p,
			(r.rng.Float64()-0.5)*2*spawnJitter,
			1,
			(r.rng.Float64()-0.5)*2*spawnJitter)
	}
	r.despawnIfEmpty(ev.DungeonID)
}

func (r *Room) despawnIfEmpty(id string) {
	d := r.dungeons.Get(id)
	if d == nil || len(d.Players) == 0 {
		r.despawnDungeon(id)
	}
}

// despawnDungeon removes the instance's world entities.
func (r *Room) despawnDungeon(id string) {
	s, ok := r.slots[id]
	if !ok {
		return
	}
	for eid := range s.enemies {
		if r.world.RemoveEnemy(eid) != nil {
			r.batcher.Drop("enemy", eid)
		}
	}
	for lid := range s.loot {
		if r.world.RemoveLoot(lid) != nil {
			r.broadcast(message.TypeLootRemoved, message.LootRemoved{LootID: lid})
		}
	}
	s.enemies = make(map[uint64]struct{})
	s.loot = make(map[uint64]struct{})
	s.plates = nil
	s.materialized = false
}

func (r *Room) releaseDungeonSlot(id string) {
	r.despawnDungeon(id)
	delete(r.slots, id)
}

// onDungeonEntityDefeated is the bus-delivered twin of defeatDungeonEntity
// for defeats that originate in handlers (loot pickups).
func (r *Room) onDungeonEntityDefeated(ev event.DungeonEntityDefeated) {
	r.defeatDungeonEntity(ev.DungeonID, ev.EntityID)
}

// defeatDungeonEntity marks progress and drives completion once the last
// room clears.
func (r *Room) defeatDungeonEntity(dungeonID string, entityID int) {
	cleared, err := r.dungeons.DefeatEntity(dungeonID, entityID)
	if err != nil {
		r.log.Debug("dungeon defeat ignored",
			zap.String("dungeon", dungeonID),
			zap.Int("entity", entityID),
			zap.Error(err))
		return
	}
	if !cleared {
		return
	}
	if _, err := r.dungeons.Complete(r.ctx, dungeonID); err != nil {
		if !errors.Is(err, dungeon.ErrRoomsUncleared) && !errors.Is(err, dungeon.ErrAlreadyComplete) {
			r.log.Error("dungeon completion failed",
				zap.String("dungeon", dungeonID),
				zap.Error(err))
		}
	}
}

// onDungeonComplete pays one bound account its share and notifies it. Set
// as the manager's completion hook.
func (r *Room) onDungeonComplete(account string, d *dungeon.Dungeon, rw dungeon.Rewards) {
	if p := r.world.GetPlayer(account); p != nil {
		r.awardXP(p, rw.XP)
		p.Credits += rw.Credits
		if rw.Crystals > 0 {
			p.AddItem("quantum_crystal", rw.Crystals)
		}
		p.Dirty = true
		r.batcher.Queue("player", p.EntityID, map[string]any{"credits": p.Credits})
		if p.Sess != nil {
			p.Sess.Send(message.Encode(message.TypeDungeonCompleted, message.DungeonCompleted{
				DungeonID: d.ID,
				XP:        rw.XP,
				Credits:   rw.Credits,
				Crystals:  rw.Crystals,
			}))
		}
	}
	r.pass.AddXP(account, rw.XP)
	r.quests.HandleEvent(account, "dungeon", "complete", 1)
	r.achieve.HandleEvent(account, collab.AchievementEvent{
		Kind:   "dungeon_complete",
		Target: d.ID,
		Qty:    d.Difficulty,
	})
	r.pub.Publish(pubsub.KindDungeonComplete, r.name, account, map[string]string{"dungeon": d.ID})
	r.log.Info("dungeon completed",
		zap.String("dungeon", d.ID),
		zap.String("account", account),
		zap.Int("xp", rw.XP),
		zap.Int("credits", rw.Credits))
}

// dungeonPass solves pressure plates under bound players.
func (r *Room) dungeonPass() {
	for id, s := range r.slots {
		if !s.materialized || len(s.plates) == 0 {
			continue
		}
		d := r.dungeons.Get(id)
		if d == nil {
			continue
		}
		for _, pl := range s.plates {
			if pl.entity < 0 || pl.entity >= len(d.Entities) || d.Entities[pl.entity].Defeated {
				continue
			}
			if r.playerOnPlate(d, pl) {
				r.defeatDungeonEntity(id, pl.entity)
			}
		}
	}
}

func (r *Room) playerOnPlate(d *dungeon.Dungeon, pl plate) bool {
	for _, account := range d.Players {
		if p := r.world.GetPlayer(account); p != nil {
			if world.PlanarDist(p.X, p.Z, pl.x, pl.z) <= plateRadius {
				return true
			}
		}
	}
	return false
}
