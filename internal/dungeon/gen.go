package dungeon

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Cell uint8

const (
	CellWall Cell = iota
	CellRoom
	CellCorridor
)

type RoomType string

const (
	RoomStart    RoomType = "start"
	RoomNormal   RoomType = "normal"
	RoomBoss     RoomType = "boss"
	RoomTreasure RoomType = "treasure"
	RoomPuzzle   RoomType = "puzzle"
)

type EntityType string

const (
	EntityEnemy  EntityType = "enemy"
	EntityBoss   EntityType = "boss"
	EntityLoot   EntityType = "loot"
	EntityPuzzle EntityType = "puzzle"
)

// Room is one placed room. Bounds are inclusive cell coordinates on the
// ground floor.
type Room struct {
	ID          int
	Type        RoomType
	X, Y        int
	W, H        int
	Floor       int
	Connections []int
	Cleared     bool
}

func (r *Room) CenterX() int { return r.X + r.W/2 }
func (r *Room) CenterY() int { return r.Y + r.H/2 }

// overlaps reports whether the rooms are closer than margin cells apart.
func (r *Room) overlaps(o *Room, margin int) bool {
	return r.X < o.X+o.W+margin &&
		r.X+r.W+margin > o.X &&
		r.Y < o.Y+o.H+margin &&
		r.Y+r.H+margin > o.Y
}

// Entity is one spawnable object inside a dungeon.
type Entity struct {
	ID       int
	Type     EntityType
	RoomID   int
	X, Y     float64
	Level    int
	HP       int
	MaxHP    int
	Credits  int
	Crystals int
	Kind     string // puzzle mechanism name
	Spawned  bool
	Defeated bool
}

// Dungeon is one generated instance.
type Dungeon struct {
	ID          string
	Seed        int64
	Difficulty  int
	Level       int
	Grid        [][][]Cell // [floor][y][x]
	Rooms       []*Room
	Entities    []*Entity
	Players     []string
	Completed   bool
	StartedAt   time.Time
	CompletedAt time.Time

	lastActive time.Time
}

// Config bounds the generator. Zero values fall back to the standard
// 50x50x3 grid with 4..8 cell rooms.
type Config struct {
	GridWidth  int
	GridHeight int
	GridFloors int
	RoomMin    int
	RoomMax    int
}

func (c *Config) fill() {
	if c.GridWidth <= 0 {
		c.GridWidth = 50
	}
	if c.GridHeight <= 0 {
		c.GridHeight = 50
	}
	if c.GridFloors <= 0 {
		c.GridFloors = 3
	}
	if c.RoomMin <= 0 {
		c.RoomMin = 4
	}
	if c.RoomMax <= c.RoomMin {
		c.RoomMax = c.RoomMin + 4
	}
}

const (
	placementAttempts = 50
	overlapMargin     = 2

	connSeed   = 54321
	entitySeed = 99999

	extraEdgeMaxDist = 20.0
	extraEdgeChance  = 0.3
	extraEdgeRatio   = 0.3
)

// Generate builds a dungeon from (seed, difficulty, level). Three RNG
// streams keep the outcome stable: the caller's seed drives room count,
// sizes, placement and type rolls; fixed streams 54321 and 99999 drive
// extra corridors and entity spawns. Consumption order is part of the
// layout contract: per room, width then height, then per attempt x then y,
// then one type roll for intermediate rooms.
func Generate(cfg Config, seed int64, difficulty, level int) *Dungeon {
	cfg.fill()
	placeRNG := NewLCG(seed)
	connRNG := NewLCG(connSeed)
	entRNG := NewLCG(entitySeed)

	d := &Dungeon{
		ID:         uuid.NewString(),
		Seed:       seed,
		Difficulty: difficulty,
		Level:      level,
		StartedAt:  time.Now(),
		lastActive: time.Now(),
	}

	d.Grid = make([][][]Cell, cfg.GridFloors)
	for f := range d.Grid {
		d.Grid[f] = make([][]Cell, cfg.GridHeight)
		for y := range d.Grid[f] {
			d.Grid[f][y] = make([]Cell, cfg.GridWidth)
		}
	}

	minRooms := 5 + 2*difficulty
	maxRooms := minRooms + 10
	n := placeRNG.Range(minRooms, maxRooms)

	for i := 0; i < n; i++ {
		w := placeRNG.Range(cfg.RoomMin, cfg.RoomMax)
		h := placeRNG.Range(cfg.RoomMin, cfg.RoomMax)
		room := &Room{ID: len(d.Rooms), W: w, H: h}

		if i == 0 {
			room.Type = RoomStart
			room.X = (cfg.GridWidth - w) / 2
			room.Y = (cfg.GridHeight - h) / 2
		} else {
			placed := false
			for attempt := 0; attempt < placementAttempts; attempt++ {
				room.X = placeRNG.Intn(cfg.GridWidth - w)
				room.Y = placeRNG.Intn(cfg.GridHeight - h)
				if d.fits(room) {
					placed = true
					break
				}
			}
			if !placed {
				continue
			}
			if i == n-1 {
				room.Type = RoomBoss
			} else {
				switch roll := placeRNG.Next(); {
				case roll < 0.10:
					room.Type = RoomPuzzle
				case roll < 0.25:
					room.Type = RoomTreasure
				default:
					room.Type = RoomNormal
				}
			}
		}

		d.carveRoom(room)
		d.Rooms = append(d.Rooms, room)
	}

	// The boss room is the last placed one; if its intended slot failed
	// placement, promote the final room.
	if len(d.Rooms) > 1 {
		last := d.Rooms[len(d.Rooms)-1]
		if last.Type != RoomBoss {
			last.Type = RoomBoss
		}
	}

	d.connectRooms(connRNG)
	d.spawnEntities(entRNG)
	return d
}

func (d *Dungeon) fits(candidate *Room) bool {
	for _, r := range d.Rooms {
		if candidate.overlaps(r, overlapMargin) {
			return false
		}
	}
	return true
}

func (d *Dungeon) carveRoom(r *Room) {
	floor := d.Grid[r.Floor]
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			floor[y][x] = CellRoom
		}
	}
}

// connectRooms guarantees connectivity with a minimum spanning tree over
// room centers, then adds a few redundant corridors between close pairs.
func (d *Dungeon) connectRooms(rng *LCG) {
	n := len(d.Rooms)
	if n < 2 {
		return
	}

	inTree := make([]bool, n)
	inTree[0] = true
	for added := 1; added < n; added++ {
		bestFrom, bestTo := -1, -1
		bestDist := math.MaxFloat64
		for i := 0; i < n; i++ {
			if !inTree[i] {
				continue
			}
			for j := 0; j < n; j++ {
				if inTree[j] {
					continue
				}
				if dist := d.roomDist(i, j); dist < bestDist {
					bestDist = dist
					bestFrom, bestTo = i, j
				}
			}
		}
		d.addCorridor(bestFrom, bestTo)
		inTree[bestTo] = true
	}

	maxExtra := int(extraEdgeRatio * float64(n))
	extra := 0
	for i := 0; i < n && extra < maxExtra; i++ {
		for j := i + 1; j < n && extra < maxExtra; j++ {
			if d.connected(i, j) || d.roomDist(i, j) > extraEdgeMaxDist {
				continue
			}
			if rng.Next() < extraEdgeChance {
				d.addCorridor(i, j)
				extra++
			}
		}
	}
}

func (d *Dungeon) roomDist(i, j int) float64 {
	a, b := d.Rooms[i], d.Rooms[j]
	dx := float64(a.CenterX() - b.CenterX())
	dy := float64(a.CenterY() - b.CenterY())
	return math.Sqrt(dx*dx + dy*dy)
}

func (d *Dungeon) connected(i, j int) bool {
	for _, c := range d.Rooms[i].Connections {
		if c == j {
			return true
		}
	}
	return false
}

// addCorridor links two rooms and carves an L-shaped corridor between
// their centers: horizontal leg first, then vertical.
func (d *Dungeon) addCorridor(i, j int) {
	a, b := d.Rooms[i], d.Rooms[j]
	a.Connections = append(a.Connections, j)
	b.Connections = append(b.Connections, i)

	floor := d.Grid[a.Floor]
	x1, y1 := a.CenterX(), a.CenterY()
	x2, y2 := b.CenterX(), b.CenterY()

	for x := min(x1, x2); x <= max(x1, x2); x++ {
		if floor[y1][x] == CellWall {
			floor[y1][x] = CellCorridor
		}
	}
	for y := min(y1, y2); y <= max(y1, y2); y++ {
		if floor[y][x2] == CellWall {
			floor[y][x2] = CellCorridor
		}
	}
}

// spawnEntities populates rooms in placement order. Consumption: treasure
// rooms roll crystals chance then count; normal rooms roll count then an
// x and y offset per enemy.
func (d *Dungeon) spawnEntities(rng *LCG) {
	for _, room := range d.Rooms {
		switch room.Type {
		case RoomBoss:
			d.addEntity(&Entity{
				Type:   EntityBoss,
				RoomID: room.ID,
				X:      float64(room.CenterX()),
				Y:      float64(room.CenterY()),
				Level:  d.Level + 5,
				HP:     1000 + d.Level*100,
				MaxHP:  1000 + d.Level*100,
			})
		case RoomTreasure:
			e := &Entity{
				Type:    EntityLoot,
				RoomID:  room.ID,
				X:       float64(room.CenterX()),
				Y:       float64(room.CenterY()),
				Credits: 100 + d.Level*50,
			}
			if rng.Next() < 0.7 {
				e.Crystals = 1 + rng.Intn(3)
			}
			d.addEntity(e)
		case RoomNormal:
			count := 2 + rng.Intn(3)
			for k := 0; k < count; k++ {
				offX := (rng.Next() - 0.5) * float64(room.W) * 0.6
				offY := (rng.Next() - 0.5) * float64(room.H) * 0.6
				hp := 50 + d.Level*25
				d.addEntity(&Entity{
					Type:   EntityEnemy,
					RoomID: room.ID,
					X:      float64(room.CenterX()) + offX,
					Y:      float64(room.CenterY()) + offY,
					Level:  d.Level,
					HP:     hp,
					MaxHP:  hp,
				})
			}
		case RoomPuzzle:
			d.addEntity(&Entity{
				Type:   EntityPuzzle,
				RoomID: room.ID,
				X:      float64(room.CenterX()),
				Y:      float64(room.CenterY()),
				Kind:   "pressure_plates",
			})
		}
	}
}

func (d *Dungeon) addEntity(e *Entity) {
	e.ID = len(d.Entities)
	d.Entities = append(d.Entities, e)
}

// RoomEntities returns the live (non-defeated) entities bound to a room.
func (d *Dungeon) RoomEntities(roomID int) []*Entity {
	var out []*Entity
	for _, e := range d.Entities {
		if e.RoomID == roomID && !e.Defeated {
			out = append(out, e)
		}
	}
	return out
}
