package room

import (
	"math"

	"github.com/nexusroom/server/internal/scripting"
	"github.com/nexusroom/server/internal/world"
)

// Aggro and leash geometry plus the per-tick steps. The Lua hook sees the
// same numbers through its context table.
const (
	aggroRange = 10.0
	leashRange = 20.0

	pursueStep = 0.05
	returnStep = 0.03
	driftStep  = 0.02
)

// aiPass takes one decision per live enemy: pursue the nearest player in
// aggro range, return home once past the leash, otherwise drift around the
// spawn anchor. The Lua script decides when loaded; builtinAI mirrors it.
func (r *Room) aiPass() {
	r.world.EachEnemy(func(e *world.Enemy) {
		if !e.Alive() {
			return
		}
		var baseStep float64
		if info := r.enemyTab.Get(e.Type); info != nil {
			baseStep = info.MoveStep
		}

		target := r.world.NearestPlayerWithin(e.X, e.Y, e.Z, aggroRange)
		targetDist := -1.0
		if target != nil {
			targetDist = world.PlanarDist(e.X, e.Z, target.X, target.Z)
		}
		anchorDist := world.PlanarDist(e.X, e.Z, e.AnchorX, e.AnchorZ)

		var cmd scripting.AICommand
		ok := false
		if r.scripts != nil {
			cmd, ok = r.scripts.RunEnemyAI(scripting.AIContext{
				EnemyID:    e.ID,
				Type:       e.Type,
				Boss:       e.Boss,
				HP:         e.HP,
				MaxHP:      e.MaxHP,
				Level:      e.Level,
				TargetDist: targetDist,
				AnchorDist: anchorDist,
				BaseStep:   baseStep,
			})
		}
		if !ok {
			cmd = builtinAI(targetDist, anchorDist, baseStep)
		}

		switch cmd.Type {
		case "pursue":
			if target != nil {
				r.stepToward(e, target.X, target.Z, cmd.Step)
			}
		case "return_home", "drift":
			r.stepToward(e, e.AnchorX, e.AnchorZ, cmd.Step)
		}
	})
}

// builtinAI is the fallback decision tree, exercised when the script
// engine is absent or the script errors out.
func builtinAI(targetDist, anchorDist, baseStep float64) scripting.AICommand {
	if targetDist >= 0 && targetDist <= aggroRange {
		step := pursueStep
		if baseStep > 0 {
			step = baseStep
		}
		return scripting.AICommand{Type: "pursue", Step: step}
	}
	if anchorDist > leashRange {
		return scripting.AICommand{Type: "return_home", Step: returnStep}
	}
	return scripting.AICommand{Type: "drift", Step: driftStep}
}

// stepToward moves the enemy one step along the planar direction to the
// target point and turns its heading there. The step never overshoots.
func (r *Room) stepToward(e *world.Enemy, tx, tz, step float64) {
	dx := tx - e.X
	dz := tz - e.Z
	dist := math.Hypot(dx, dz)
	if dist < 1e-6 || step <= 0 {
		return
	}
	if step > dist {
		step = dist
	}
	e.Heading = world.HeadingTo(e.X, e.Z, tx, tz)
	r.world.MoveEnemy(e, e.X+dx/dist*step, e.Y, e.Z+dz/dist*step)
}
