package room

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/pubsub"
	"github.com/nexusroom/server/internal/world"
)

const (
	// spawn ring around origin for overworld enemies
	spawnRingMin = 15.0
	spawnRingMax = 30.0

	// resource nodes scatter a little wider
	resourceRingMin = 10.0
	resourceRingMax = 40.0

	bossType  = "world_boss"
	bossLevel = 50
	bossHP    = 10000
)

// spawnPass runs the periodic spawner and the world boss schedule. The
// boss timer advances even in an empty room.
func (r *Room) spawnPass() {
	if r.now.Sub(r.lastSpawn) >= r.cfg.Game.EnemySpawnEvery {
		r.lastSpawn = r.now
		if r.world.PlayerCount() > 0 && r.world.EnemyCount() < r.cfg.Game.MaxEnemies {
			r.spawnEnemy()
		}
	}
	if !r.now.Before(r.nextBoss) {
		r.nextBoss = r.now.Add(r.cfg.Game.WorldBossEvery)
		r.spawnWorldBoss()
	}
}

// spawnBurst seeds the first wave once a room gains clients, scaled to the
// head count and capped at five.
func (r *Room) spawnBurst() {
	n := r.world.PlayerCount() / 2
	if n < 1 {
		n = 1
	}
	if n > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		r.spawnEnemy()
	}
}

// spawnEnemy places one templated enemy on the spawn ring, anchored where
// it lands.
func (r *Room) spawnEnemy() {
	types := r.enemyTab.Types()
	if len(types) == 0 {
		return
	}
	info := r.enemyTab.Get(types[r.rng.Intn(len(types))])
	angle := r.rng.Float64() * 2 * math.Pi
	radius := spawnRingMin + r.rng.Float64()*(spawnRingMax-spawnRingMin)
	x := math.Cos(angle) * radius
	z := math.Sin(angle) * radius

	e := &world.Enemy{
		ID:      r.world.NextEntityID(),
		Type:    info.Type,
		X:       x,
		Z:       z,
		Level:   info.Level,
		HP:      info.MaxHP(),
		MaxHP:   info.MaxHP(),
		AnchorX: x,
		AnchorZ: z,
	}
	r.world.AddEnemy(e)
}

// spawnWorldBoss drops the scheduled boss at origin and announces it
// through every channel: broadcast, bus and the cross-room feed.
func (r *Room) spawnWorldBoss() {
	if r.bossActive {
		return
	}
	e := &world.Enemy{
		ID:    r.world.NextEntityID(),
		Type:  bossType,
		Level: bossLevel,
		HP:    bossHP,
		MaxHP: bossHP,
		Boss:  true,
	}
	r.world.AddEnemy(e)
	r.bossActive = true
	r.bossID = e.ID

	r.broadcast(message.TypeBossSpawned, message.BossSpawned{
		EnemyID: e.ID,
		Level:   e.Level,
		HP:      e.HP,
	})
	event.Emit(r.bus, event.BossSpawned{EnemyID: e.ID, Level: e.Level, HP: e.HP})
	r.pub.Publish(pubsub.KindBossSpawn, r.name, "", map[string]string{
		"enemy": strconv.FormatUint(e.ID, 10),
	})
	r.log.Info("world boss spawned", zap.Uint64("enemy", e.ID))
}

// seedResources scatters the configured harvest nodes around the
// overworld at boot.
func (r *Room) seedResources() {
	if r.resourceTab == nil {
		return
	}
	for _, info := range r.resourceTab.All() {
		for i := 0; i < info.Count; i++ {
			angle := r.rng.Float64() * 2 * math.Pi
			radius := resourceRingMin + r.rng.Float64()*(resourceRingMax-resourceRingMin)
			r.world.AddResource(&world.ResourceNode{
				ID:           r.world.NextEntityID(),
				Type:         info.Type,
				X:            math.Cos(angle) * radius,
				Z:            math.Sin(angle) * radius,
				RespawnEvery: r.cfg.Game.ResourceRespawn,
			})
		}
	}
}
