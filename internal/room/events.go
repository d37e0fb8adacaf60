package room

import (
	"github.com/nexusroom/server/internal/collab"
	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/monitor"
)

// wireEvents subscribes the room to its own bus. The bus dispatches right
// after the input pass, so handler emissions land in the same tick;
// anything emitted later in a tick is delivered on the next.
func (r *Room) wireEvents() {
	event.Subscribe(r.bus, r.onDungeonEntered)
	event.Subscribe(r.bus, r.onDungeonExited)
	event.Subscribe(r.bus, r.onDungeonEntityDefeated)

	event.Subscribe(r.bus, func(ev event.LootPickedUp) {
		if ev.Item == "" {
			return
		}
		r.quests.HandleEvent(ev.Account, "collect", ev.Item, ev.Qty)
		r.achieve.HandleEvent(ev.Account, collab.AchievementEvent{
			Kind:   "collect",
			Target: ev.Item,
			Qty:    ev.Qty,
		})
	})

	event.Subscribe(r.bus, func(ev event.EnemyKilled) {
		tags := map[string]string{"type": ev.EnemyType}
		if ev.Boss {
			tags["boss"] = "true"
		}
		r.mon.RecordMetric("kills", 1, tags)
	})

	event.Subscribe(r.bus, func(ev event.PlayerKicked) {
		r.mon.Log(monitor.LevelWarn, "player kicked", map[string]string{
			"account": ev.Account,
			"reason":  ev.Reason,
		})
	})
}
