package event

import "testing"

func TestDispatchDelaysOneTick(t *testing.T) {
	b := NewBus()
	var got []EnemyKilled
	Subscribe(b, func(ev EnemyKilled) { got = append(got, ev) })

	Emit(b, EnemyKilled{EnemyID: 7, Killer: "acct-1"})
	if len(got) != 0 {
		t.Fatalf("event delivered before Dispatch: %v", got)
	}
	if b.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", b.Pending())
	}

	b.Dispatch()
	if len(got) != 1 || got[0].EnemyID != 7 || got[0].Killer != "acct-1" {
		t.Fatalf("after Dispatch got = %v", got)
	}

	b.Dispatch()
	if len(got) != 1 {
		t.Fatalf("event delivered twice: %v", got)
	}
}

func TestEmitDuringDispatchWaitsForNextTick(t *testing.T) {
	b := NewBus()
	var kicks int
	Subscribe(b, func(ev EnemyKilled) {
		Emit(b, PlayerKicked{Account: ev.Killer, Reason: "test"})
	})
	Subscribe(b, func(PlayerKicked) { kicks++ })

	Emit(b, EnemyKilled{Killer: "acct-1"})
	b.Dispatch()
	if kicks != 0 {
		t.Fatalf("re-emitted event delivered in same Dispatch")
	}
	b.Dispatch()
	if kicks != 1 {
		t.Fatalf("kicks = %d, want 1", kicks)
	}
}

func TestMultipleSubscribersAndTypes(t *testing.T) {
	b := NewBus()
	var a, c int
	Subscribe(b, func(PlayerJoined) { a++ })
	Subscribe(b, func(PlayerJoined) { a++ })
	Subscribe(b, func(PlayerLeft) { c++ })

	Emit(b, PlayerJoined{Account: "x"})
	Emit(b, PlayerJoined{Account: "y"})
	Emit(b, PlayerLeft{Account: "x"})
	b.Dispatch()

	if a != 4 {
		t.Fatalf("PlayerJoined deliveries = %d, want 4", a)
	}
	if c != 1 {
		t.Fatalf("PlayerLeft deliveries = %d, want 1", c)
	}
}
