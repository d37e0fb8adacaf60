package event

// Room events. Emitted during a tick, delivered at the start of the next.

// PlayerJoined fires once the join flow has placed the player in the world.
type PlayerJoined struct {
	Account  string
	EntityID uint64
	Name     string
}

// PlayerLeft fires after the leaving player's final save was queued.
type PlayerLeft struct {
	Account  string
	EntityID uint64
	Reason   string
}

// PlayerKicked fires when anti-cheat or an admin removes a session.
type PlayerKicked struct {
	Account string
	Reason  string
}

// EnemyKilled feeds the collaborator systems and the kill feed.
type EnemyKilled struct {
	EnemyID   uint64
	EnemyType string
	Level     int
	Boss      bool
	Killer    string
	X, Y, Z   float64
}

// LootPickedUp fires after a validated pickup was applied to the inventory.
type LootPickedUp struct {
	Account string
	Item    string
	Qty     int
	Credits int
}

// BossSpawned fires when the world-boss timer inserts the boss at origin.
type BossSpawned struct {
	EnemyID uint64
	Level   int
	HP      int
}

// DungeonEntered fires after an account binds to an instance; the room
// materializes the instance's entities into the world on delivery.
type DungeonEntered struct {
	Account   string
	DungeonID string
}

// DungeonExited fires after an account unbinds from an instance.
type DungeonExited struct {
	Account   string
	DungeonID string
}

// DungeonEntityDefeated fires when a dungeon-bound enemy dies or its
// treasure is picked up; the room marks defeat and checks completion.
type DungeonEntityDefeated struct {
	DungeonID string
	EntityID  int
}
