package world

// Enemy is a server-controlled combatant. AnchorX/Y/Z is the spawn anchor and
// never changes for the enemy's lifetime; the AI pass uses it for leashing.
type Enemy struct {
	ID      uint64
	Type    string
	X, Y, Z float64
	Heading float64
	HP      int
	MaxHP   int
	Level   int

	AnchorX, AnchorY, AnchorZ float64

	Boss bool

	// DungeonID binds the enemy to a dungeon instance and DungeonEntity to
	// the entity index inside it. Zero values mean an open-world enemy.
	DungeonID     string
	DungeonEntity int
}

// Alive reports whether the enemy still participates in simulation.
func (e *Enemy) Alive() bool {
	return e.HP > 0
}
