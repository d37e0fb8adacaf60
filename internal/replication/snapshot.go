// Package replication implements the room's state replication pipeline: the
// wire-schema snapshot, the update batcher and the delta compressor. Wire
// types are specified here, independent of the internal world types; rooms
// map into them at the pipeline boundary.
package replication

import (
	"strconv"

	"github.com/nexusroom/server/internal/world"
)

// PlayerState is the wire view of a player.
type PlayerState struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Race     string  `json:"race"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"maxHp"`
	Mana     int     `json:"mana"`
	MaxMana  int     `json:"maxMana"`
	Level    int     `json:"level"`
	GuildTag string  `json:"guildTag,omitempty"`
}

// EnemyState is the wire view of an enemy.
type EnemyState struct {
	ID      uint64  `json:"id"`
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
	HP      int     `json:"hp"`
	MaxHP   int     `json:"maxHp"`
	Level   int     `json:"level"`
	Boss    bool    `json:"boss,omitempty"`
}

// ProjectileState is the wire view of a projectile.
type ProjectileState struct {
	ID      uint64  `json:"id"`
	SpellID string  `json:"spellId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	DirX    float64 `json:"dirX"`
	DirY    float64 `json:"dirY"`
	DirZ    float64 `json:"dirZ"`
	Speed   float64 `json:"speed"`
}

// LootState is the wire view of a ground drop.
type LootState struct {
	ID      uint64  `json:"id"`
	Item    string  `json:"item"`
	Qty     int     `json:"qty"`
	Credits int     `json:"credits"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Owner   string  `json:"owner,omitempty"`
}

// GuildState is the wire view of a guild.
type GuildState struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Tag     string   `json:"tag"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

// Snapshot is the full room image sent to a joining client. Map keys are
// decimal entity ids; JSON objects require string keys.
type Snapshot struct {
	Players     map[string]PlayerState     `json:"players"`
	Enemies     map[string]EnemyState      `json:"enemies"`
	Projectiles map[string]ProjectileState `json:"projectiles"`
	Loot        map[string]LootState       `json:"loot"`
	Guilds      map[string]GuildState      `json:"guilds"`
	BossActive  bool                       `json:"bossActive"`
}

func key(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// PlayerWire maps an internal player into its wire view.
func PlayerWire(p *world.Player, guildTag string) PlayerState {
	return PlayerState{
		ID:       p.EntityID,
		Name:     p.Name,
		Race:     p.Race,
		X:        p.X,
		Y:        p.Y,
		Z:        p.Z,
		Rotation: p.Rotation,
		HP:       p.HP,
		MaxHP:    p.MaxHP,
		Mana:     p.Mana,
		MaxMana:  p.MaxMana,
		Level:    p.Level,
		GuildTag: guildTag,
	}
}

// EnemyWire maps an internal enemy into its wire view.
func EnemyWire(e *world.Enemy) EnemyState {
	return EnemyState{
		ID:      e.ID,
		Type:    e.Type,
		X:       e.X,
		Y:       e.Y,
		Z:       e.Z,
		Heading: e.Heading,
		HP:      e.HP,
		MaxHP:   e.MaxHP,
		Level:   e.Level,
		Boss:    e.Boss,
	}
}

// ProjectileWire maps an internal projectile into its wire view.
func ProjectileWire(p *world.Projectile) ProjectileState {
	return ProjectileState{
		ID:      p.ID,
		SpellID: p.SpellID,
		X:       p.X,
		Y:       p.Y,
		Z:       p.Z,
		DirX:    p.DirX,
		DirY:    p.DirY,
		DirZ:    p.DirZ,
		Speed:   p.Speed,
	}
}

// LootWire maps an internal drop into its wire view.
func LootWire(l *world.Loot) LootState {
	return LootState{
		ID:      l.ID,
		Item:    l.Item,
		Qty:     l.Qty,
		Credits: l.Credits,
		X:       l.X,
		Y:       l.Y,
		Z:       l.Z,
		Owner:   l.OwnerAccount,
	}
}

// GuildWire maps a guild into its wire view.
func GuildWire(g *world.Guild) GuildState {
	return GuildState{
		ID:      g.ID,
		Name:    g.Name,
		Tag:     g.Tag,
		Leader:  g.LeaderAccount,
		Members: append([]string(nil), g.Members...),
	}
}

// BuildSnapshot produces the full wire snapshot of the given state.
func BuildSnapshot(st *world.State, bossActive bool) *Snapshot {
	snap := &Snapshot{
		Players:     make(map[string]PlayerState),
		Enemies:     make(map[string]EnemyState),
		Projectiles: make(map[string]ProjectileState),
		Loot:        make(map[string]LootState),
		Guilds:      make(map[string]GuildState),
		BossActive:  bossActive,
	}
	st.EachPlayer(func(p *world.Player) {
		tag := ""
		if g := st.Guilds.GuildOf(p.AccountID); g != nil {
			tag = g.Tag
		}
		snap.Players[key(p.EntityID)] = PlayerWire(p, tag)
	})
	st.EachEnemy(func(e *world.Enemy) {
		snap.Enemies[key(e.ID)] = EnemyWire(e)
	})
	st.EachProjectile(func(p *world.Projectile) {
		snap.Projectiles[key(p.ID)] = ProjectileWire(p)
	})
	st.EachLoot(func(l *world.Loot) {
		snap.Loot[key(l.ID)] = LootWire(l)
	})
	for id, g := range st.Guilds.All() {
		snap.Guilds[id] = GuildWire(g)
	}
	return snap
}
