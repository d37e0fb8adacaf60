package handler

import (
	"encoding/json"
	"errors"

	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/validate"
	"github.com/nexusroom/server/internal/world"
)

// HandleCastSpell validates a cast and spawns the projectile. Rejections
// answer with spellCastRejected and never touch state.
func HandleCastSpell(sess *net.Session, raw json.RawMessage, deps *Deps) {
	m, err := message.Decode[message.CastSpell](raw)
	if err != nil {
		return
	}
	p := deps.World.GetPlayer(sess.AccountID)
	if p == nil {
		return
	}

	spell := deps.Spells.Get(m.SpellID)
	if spell == nil {
		reply(sess, message.TypeSpellCastRejected, message.ErrorReply{
			Code:   "NotFound",
			Reason: "unknown spell",
		})
		return
	}
	if !knowsSpell(p, spell.ID) {
		reply(sess, message.TypeSpellCastRejected, message.ErrorReply{Reason: "spell not learned"})
		return
	}
	if world.PlanarDist(p.X, p.Z, m.Position.X, m.Position.Z) > deps.Config.Game.SpellCastRange {
		reply(sess, message.TypeSpellCastRejected, message.ErrorReply{Reason: "target out of range"})
		return
	}

	if err := deps.Validator.SpellCast(p.AccountID, spell.ID, p.Mana, spell.ManaCost, spell.Cooldown, deps.Now()); err != nil {
		reason := "not enough mana"
		if errors.Is(err, validate.ErrOnCooldown) {
			reason = "spell on cooldown"
		}
		reply(sess, message.TypeSpellCastRejected, message.ErrorReply{Reason: reason})
		return
	}

	p.Mana -= spell.ManaCost
	if spell.Heal > 0 {
		p.HP += spell.Heal
	}
	p.ClampVitals()
	p.Dirty = true
	deps.Batcher.Queue("player", p.EntityID, map[string]any{
		"mana":    p.Mana,
		"hp":      p.HP,
		"casting": spell.ID,
	})

	if spell.Projectile() {
		dirX, dirZ := world.DirFromRotation(m.Rotation)
		deps.World.AddProjectile(&world.Projectile{
			ID:            deps.World.NextEntityID(),
			SpellID:       spell.ID,
			CasterAccount: p.AccountID,
			X:             p.X,
			Y:             p.Y + 1,
			Z:             p.Z,
			DirX:          dirX,
			DirZ:          dirZ,
			Speed:         spell.ProjectileSpeed,
			TTL:           spell.ProjectileTTL,
		})
	}
}

func knowsSpell(p *world.Player, id string) bool {
	for _, s := range p.Spells {
		if s == id {
			return true
		}
	}
	return false
}
