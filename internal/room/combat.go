package room

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/replication"
	"github.com/nexusroom/server/internal/world"
)

const (
	// hitQueryRadius is the grid query box around a projectile; hitRadius
	// is the actual collision distance.
	hitQueryRadius = 2.0
	hitRadius      = 1.0

	critChance       = 0.10
	defaultHitDamage = 50
)

// combatPass advances live projectiles and resolves collisions. A
// projectile is spent on TTL expiry or on its first hit.
func (r *Room) combatPass(dt time.Duration) {
	var spent []uint64
	r.world.EachProjectile(func(pr *world.Projectile) {
		if !pr.Advance(dt) {
			spent = append(spent, pr.ID)
			return
		}
		for _, id := range r.world.NearbyEnemies(pr.X, pr.Y, pr.Z, hitQueryRadius) {
			e := r.world.GetEnemy(id)
			if e == nil || !e.Alive() {
				continue
			}
			if world.Dist3(pr.X, pr.Y, pr.Z, e.X, e.Y, e.Z) >= hitRadius {
				continue
			}
			r.resolveHit(pr, e)
			spent = append(spent, pr.ID)
			break
		}
	})
	for _, id := range spent {
		r.world.RemoveProjectile(id)
	}
}

// resolveHit applies one projectile hit: base damage from the spell table,
// combo scaling, the crit roll, then the damage gate.
func (r *Room) resolveHit(pr *world.Projectile, e *world.Enemy) {
	base := defaultHitDamage
	if sp := r.spells.Get(pr.SpellID); sp != nil && sp.Damage > 0 {
		base = sp.Damage
	}
	amount := float64(base) * r.world.Combos.MultiplierFor(pr.CasterAccount, r.now)
	crit := r.rng.Float64() < critChance
	if crit {
		amount *= 2
	}
	dmg := int(math.Floor(amount))
	if !r.validator.Damage(pr.CasterAccount, dmg, r.now) {
		return
	}

	e.HP -= dmg
	r.batcher.Queue("enemy", e.ID, map[string]any{"hp": e.HP})
	if crit {
		// crits skip the batcher so the number lands this tick
		r.broadcast(message.TypeDamageNumber, message.DamageNumber{
			TargetID: e.ID,
			Amount:   dmg,
			Crit:     true,
		})
	} else {
		r.batcher.Queue("damage", e.ID, map[string]any{"amount": dmg, "crit": false})
	}

	if !e.Alive() {
		r.killEnemy(e, pr.CasterAccount, crit)
	}
}

// killEnemy settles a kill in order: combo first, then the drop, then
// removal, then the kill broadcast, then the downstream systems.
func (r *Room) killEnemy(e *world.Enemy, killer string, crit bool) {
	combo := r.world.Combos.RecordKill(killer, r.now)
	credits := r.dropKillLoot(e)

	r.world.RemoveEnemy(e.ID)
	r.batcher.Drop("enemy", e.ID)
	r.batcher.Drop("damage", e.ID)
	if e.Boss && e.ID == r.bossID {
		r.bossActive = false
		r.bossID = 0
	}

	xp := r.killXP(e)
	var killerEntity uint64
	if p := r.world.GetPlayer(killer); p != nil {
		killerEntity = p.EntityID
		r.awardXP(p, xp)
	}

	r.broadcast(message.TypeEnemyKilled, message.EnemyKilled{
		EnemyID: e.ID,
		Killer:  killerEntity,
		Combo:   combo.Multiplier,
		Crit:    crit,
		XP:      xp,
		Credits: credits,
	})
	event.Emit(r.bus, event.EnemyKilled{
		EnemyID:   e.ID,
		EnemyType: e.Type,
		Level:     e.Level,
		Boss:      e.Boss,
		Killer:    killer,
		X:         e.X,
		Y:         e.Y,
		Z:         e.Z,
	})

	r.quests.HandleEvent(killer, "kill", e.Type, 1)
	r.pass.AddXP(killer, xp)
	if res := r.achieve.HandleEvent(killer, collab.AchievementEvent{Kind: "kill", Target: e.Type, Qty: 1}); res.Unlocked {
		r.log.Info("achievement unlocked",
			zap.String("account", killer),
			zap.String("definition", res.Definition))
		if p := r.world.GetPlayer(killer); p != nil && p.Sess != nil {
			p.Sess.Send(message.Encode(message.TypeAchievementProgress, message.AchievementState{
				Unlocked: r.achieve.Progress(killer),
			}))
		}
	}

	if e.DungeonID != "" {
		r.defeatDungeonEntity(e.DungeonID, e.DungeonEntity)
	}
}

// killXP resolves the xp reward, template first, formula as fallback.
func (r *Room) killXP(e *world.Enemy) int {
	if info := r.enemyTab.Get(e.Type); info != nil && info.XPReward > 0 {
		return info.XPReward
	}
	if e.Boss {
		return 200 + e.Level*20
	}
	return 10 + e.Level*5
}

// dropKillLoot places the enemy's drop at its death position, unowned, so
// the first player within reach claims it. Returns the credit value for
// the kill broadcast.
func (r *Room) dropKillLoot(e *world.Enemy) int {
	credits := 5 + e.Level*2
	if info := r.enemyTab.Get(e.Type); info != nil && info.CreditReward > 0 {
		credits = info.CreditReward
	} else if e.Boss {
		credits = 100 + e.Level*10
	}
	l := &world.Loot{
		ID:        r.world.NextEntityID(),
		Credits:   credits,
		X:         e.X,
		Y:         e.Y,
		Z:         e.Z,
		ExpiresAt: r.now.Add(r.cfg.Game.LootExpiry),
	}
	if r.drops != nil {
		if item, qty := r.drops.Roll(e.Type, r.rng.Float64(), r.rng.Float64()); item != "" {
			l.Item, l.Qty = item, qty
		}
	}
	r.world.AddLoot(l)
	r.broadcast(message.TypeLootSpawned, replication.LootWire(l))
	return credits
}
