// dungeonpreview renders a generated dungeon layout to the terminal so
// seeds can be inspected without booting the server. The same seed,
// difficulty and level always produce the same layout.
//
// Usage:
//
//	go run ./cmd/dungeonpreview -seed 12345 -difficulty 1 -level 10
package main

import (
	"flag"
	"fmt"

	"github.com/nexusroom/server/internal/dungeon"
)

func main() {
	seed := flag.Int64("seed", 12345, "generation seed")
	difficulty := flag.Int("difficulty", 1, "dungeon difficulty")
	level := flag.Int("level", 10, "dungeon level")
	flag.Parse()

	d := dungeon.Generate(dungeon.Config{}, *seed, *difficulty, *level)

	fmt.Printf("dungeon %s  seed=%d difficulty=%d level=%d\n",
		d.ID, d.Seed, d.Difficulty, d.Level)
	fmt.Printf("rooms=%d entities=%d\n\n", len(d.Rooms), len(d.Entities))

	for _, r := range d.Rooms {
		fmt.Printf("  room %2d  %-8s  at (%2d,%2d) %dx%d  connects %v\n",
			r.ID, r.Type, r.X, r.Y, r.W, r.H, r.Connections)
	}
	fmt.Println()
	for _, e := range d.Entities {
		switch e.Type {
		case dungeon.EntityLoot:
			fmt.Printf("  %-6s room %2d  credits=%d crystals=%d\n",
				e.Type, e.RoomID, e.Credits, e.Crystals)
		case dungeon.EntityPuzzle:
			fmt.Printf("  %-6s room %2d  kind=%s\n", e.Type, e.RoomID, e.Kind)
		default:
			fmt.Printf("  %-6s room %2d  level=%d hp=%d\n",
				e.Type, e.RoomID, e.Level, e.HP)
		}
	}
	fmt.Println()

	// Ground floor map: # wall, . room, + corridor.
	ground := d.Grid[0]
	for y := range ground {
		row := make([]byte, len(ground[y]))
		for x, c := range ground[y] {
			switch c {
			case dungeon.CellRoom:
				row[x] = '.'
			case dungeon.CellCorridor:
				row[x] = '+'
			default:
				row[x] = '#'
			}
		}
		fmt.Println(string(row))
	}
}
