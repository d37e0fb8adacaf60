// Package world holds the entity types and mutable state owned by a room.
// Nothing in this package is goroutine-safe: all access happens on the
// owning room's loop.
package world

import (
	"math"
	"time"

	"github.com/nexusroom/server/internal/spatial"
)

// State is the authoritative world state of one room: entity maps, the
// spatial grids, guilds and combo streaks. The room tick is the only writer.
type State struct {
	players         map[string]*Player // accountID -> player
	playersByEntity map[uint64]*Player
	playersByName   map[string]*Player // normalized name -> player
	enemies         map[uint64]*Enemy
	projectiles     map[uint64]*Projectile
	loot            map[uint64]*Loot
	resources       map[uint64]*ResourceNode
	spawnAnchors    map[uint64][3]float64

	Guilds *GuildSet
	Combos *ComboSet

	playerGrid *spatial.Grid
	enemyGrid  *spatial.Grid

	nextID   uint64
	queryBuf []uint64
}

func NewState(cellSize float64) *State {
	return &State{
		players:         make(map[string]*Player),
		playersByEntity: make(map[uint64]*Player),
		playersByName:   make(map[string]*Player),
		enemies:         make(map[uint64]*Enemy),
		projectiles:     make(map[uint64]*Projectile),
		loot:            make(map[uint64]*Loot),
		resources:       make(map[uint64]*ResourceNode),
		spawnAnchors:    make(map[uint64][3]float64),
		Guilds:          NewGuildSet(),
		Combos:          NewComboSet(),
		playerGrid:      spatial.NewGrid(cellSize),
		enemyGrid:       spatial.NewGrid(cellSize),
		queryBuf:        make([]uint64, 0, 64),
	}
}

// NextEntityID hands out room-unique entity ids.
func (s *State) NextEntityID() uint64 {
	s.nextID++
	return s.nextID
}

// --- players ---

func (s *State) AddPlayer(p *Player) {
	s.players[p.AccountID] = p
	s.playersByEntity[p.EntityID] = p
	s.playersByName[NormalizeName(p.Name)] = p
	s.playerGrid.Insert(p.EntityID, p.X, p.Y, p.Z)
}

func (s *State) RemovePlayer(account string) *Player {
	p, ok := s.players[account]
	if !ok {
		return nil
	}
	delete(s.players, account)
	delete(s.playersByEntity, p.EntityID)
	delete(s.playersByName, NormalizeName(p.Name))
	s.playerGrid.Remove(p.EntityID)
	return p
}

func (s *State) GetPlayer(account string) *Player {
	return s.players[account]
}

func (s *State) GetPlayerByEntity(id uint64) *Player {
	return s.playersByEntity[id]
}

func (s *State) GetPlayerByName(name string) *Player {
	return s.playersByName[NormalizeName(name)]
}

func (s *State) PlayerCount() int {
	return len(s.players)
}

func (s *State) EachPlayer(fn func(*Player)) {
	for _, p := range s.players {
		fn(p)
	}
}

// MovePlayer commits a validated position and re-buckets the grid entry.
func (s *State) MovePlayer(p *Player, x, y, z, rotation float64) {
	p.X, p.Y, p.Z = x, y, z
	p.Rotation = rotation
	p.Dirty = true
	s.playerGrid.Move(p.EntityID, x, y, z)
}

// --- enemies ---

func (s *State) AddEnemy(e *Enemy) {
	s.enemies[e.ID] = e
	s.spawnAnchors[e.ID] = [3]float64{e.AnchorX, e.AnchorY, e.AnchorZ}
	s.enemyGrid.Insert(e.ID, e.X, e.Y, e.Z)
}

// RemoveEnemy drops the enemy from the state map, the grid and the spawn
// anchor map in one step, keeping the dead-enemy invariant within a tick.
func (s *State) RemoveEnemy(id uint64) *Enemy {
	e, ok := s.enemies[id]
	if !ok {
		return nil
	}
	delete(s.enemies, id)
	delete(s.spawnAnchors, id)
	s.enemyGrid.Remove(id)
	return e
}

func (s *State) GetEnemy(id uint64) *Enemy {
	return s.enemies[id]
}

func (s *State) EnemyCount() int {
	return len(s.enemies)
}

func (s *State) EachEnemy(fn func(*Enemy)) {
	for _, e := range s.enemies {
		fn(e)
	}
}

// MoveEnemy commits an AI step and re-buckets the grid entry.
func (s *State) MoveEnemy(e *Enemy, x, y, z float64) {
	e.X, e.Y, e.Z = x, y, z
	s.enemyGrid.Move(e.ID, x, y, z)
}

// HasSpawnAnchor reports whether the enemy id still occupies the anchor map.
func (s *State) HasSpawnAnchor(id uint64) bool {
	_, ok := s.spawnAnchors[id]
	return ok
}

// --- projectiles ---

func (s *State) AddProjectile(p *Projectile) {
	s.projectiles[p.ID] = p
}

func (s *State) RemoveProjectile(id uint64) {
	delete(s.projectiles, id)
}

func (s *State) ProjectileCount() int {
	return len(s.projectiles)
}

func (s *State) EachProjectile(fn func(*Projectile)) {
	for _, p := range s.projectiles {
		fn(p)
	}
}

// --- loot ---

func (s *State) AddLoot(l *Loot) {
	s.loot[l.ID] = l
}

func (s *State) RemoveLoot(id uint64) *Loot {
	l, ok := s.loot[id]
	if !ok {
		return nil
	}
	delete(s.loot, id)
	return l
}

func (s *State) GetLoot(id uint64) *Loot {
	return s.loot[id]
}

func (s *State) LootCount() int {
	return len(s.loot)
}

func (s *State) EachLoot(fn func(*Loot)) {
	for _, l := range s.loot {
		fn(l)
	}
}

// ExpireLoot removes drops past their expiry and returns them for broadcast.
func (s *State) ExpireLoot(now time.Time) []*Loot {
	var expired []*Loot
	for id, l := range s.loot {
		if l.Expired(now) {
			expired = append(expired, l)
			delete(s.loot, id)
		}
	}
	return expired
}

// --- resources ---

func (s *State) AddResource(r *ResourceNode) {
	s.resources[r.ID] = r
}

func (s *State) GetResource(id uint64) *ResourceNode {
	return s.resources[id]
}

func (s *State) EachResource(fn func(*ResourceNode)) {
	for _, r := range s.resources {
		fn(r)
	}
}

// --- proximity ---

// NearbyEnemies returns enemy ids whose cells overlap the radius cube around
// the point. The slice aliases an internal buffer valid until the next call.
func (s *State) NearbyEnemies(x, y, z, radius float64) []uint64 {
	s.queryBuf = s.enemyGrid.QueryAppend(x, y, z, radius, s.queryBuf[:0])
	return s.queryBuf
}

// NearestPlayerWithin finds the closest player by planar distance within
// radius, or nil.
func (s *State) NearestPlayerWithin(x, y, z, radius float64) *Player {
	var best *Player
	bestDist := math.Inf(1)
	for id := range s.playerGrid.Query(x, y, z, radius) {
		p, ok := s.playersByEntity[id]
		if !ok {
			continue
		}
		d := PlanarDist(x, z, p.X, p.Z)
		if d <= radius && d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best
}

// PlayersWithin visits players inside a planar radius, for emotes and other
// local broadcasts.
func (s *State) PlayersWithin(x, y, z, radius float64, fn func(*Player)) {
	for id := range s.playerGrid.Query(x, y, z, radius) {
		p, ok := s.playersByEntity[id]
		if !ok {
			continue
		}
		if PlanarDist(x, z, p.X, p.Z) <= radius {
			fn(p)
		}
	}
}

// Clear empties all state during room disposal.
func (s *State) Clear() {
	s.players = make(map[string]*Player)
	s.playersByEntity = make(map[uint64]*Player)
	s.playersByName = make(map[string]*Player)
	s.enemies = make(map[uint64]*Enemy)
	s.projectiles = make(map[uint64]*Projectile)
	s.loot = make(map[uint64]*Loot)
	s.resources = make(map[uint64]*ResourceNode)
	s.spawnAnchors = make(map[uint64][3]float64)
	s.playerGrid.Clear()
	s.enemyGrid.Clear()
}
