package world

import "time"

// Loot is a ground drop. Once OwnerAccount is set only that player may pick
// it up; the drop vanishes at ExpiresAt or on successful pickup.
type Loot struct {
	ID      uint64
	Item    string
	Qty     int
	Credits int
	X, Y, Z float64

	OwnerAccount string
	ExpiresAt    time.Time

	// DungeonID and DungeonEntity tie treasure drops back to their dungeon
	// instance so pickups mark the entity defeated. Zero values mean an
	// open-world drop.
	DungeonID     string
	DungeonEntity int
}

// Expired reports whether the drop should be pruned.
func (l *Loot) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// ClaimableBy reports whether the account may pick this drop up.
func (l *Loot) ClaimableBy(account string) bool {
	return l.OwnerAccount == "" || l.OwnerAccount == account
}

// ResourceNode is a static harvestable. LastHarvested only moves forward.
type ResourceNode struct {
	ID            uint64
	Type          string
	X, Y, Z       float64
	LastHarvested time.Time
	RespawnEvery  time.Duration
}

// Available reports whether the node has respawned since its last harvest.
func (r *ResourceNode) Available(now time.Time) bool {
	return r.LastHarvested.IsZero() || now.Sub(r.LastHarvested) >= r.RespawnEvery
}

// Harvest marks the node consumed. Returns false if still on cooldown.
func (r *ResourceNode) Harvest(now time.Time) bool {
	if !r.Available(now) {
		return false
	}
	if now.After(r.LastHarvested) {
		r.LastHarvested = now
	}
	return true
}
