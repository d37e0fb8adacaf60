package trade

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/persist"
)

func newTestManager(t *testing.T) (*Manager, *persist.MemoryStore) {
	t.Helper()
	store := persist.NewMemoryStore()
	ctx := context.Background()

	alice := &persist.PlayerRow{
		AccountID: "alice",
		Name:      "Alice",
		Credits:   500,
		Inventory: map[string]int{"sword": 2, "potion": 10},
	}
	bob := &persist.PlayerRow{
		AccountID: "bob",
		Name:      "Bob",
		Credits:   200,
		Inventory: map[string]int{"ore": 5},
	}
	for _, row := range []*persist.PlayerRow{alice, bob} {
		if err := store.CreatePlayer(ctx, row); err != nil {
			t.Fatalf("seed %s: %v", row.AccountID, err)
		}
	}
	return NewManager(store, store, zap.NewNop()), store
}

func TestInitiateGuards(t *testing.T) {
	m, _ := newTestManager(t)

	if _, err := m.Initiate("alice", "alice", 0); err != ErrSelfTrade {
		t.Fatalf("self trade: got %v, want ErrSelfTrade", err)
	}
	if _, err := m.Initiate("alice", "bob", 6.0); err != ErrTooFar {
		t.Fatalf("distant trade: got %v, want ErrTooFar", err)
	}

	s, err := m.Initiate("alice", "bob", 4.9)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if s.State != StatePending {
		t.Fatalf("state = %s, want pending", s.State)
	}
	if m.SessionOf("alice") != s || m.SessionOf("bob") != s {
		t.Fatal("participants not bound to session")
	}

	if _, err := m.Initiate("bob", "carol", 1.0); err != ErrBusy {
		t.Fatalf("busy participant: got %v, want ErrBusy", err)
	}
	if _, err := m.Initiate("carol", "alice", 1.0); err != ErrBusy {
		t.Fatalf("busy target: got %v, want ErrBusy", err)
	}
}

func TestOfferMutationGuards(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.AddItem("alice", "sword", 1); err != ErrNoSession {
		t.Fatalf("no session: got %v, want ErrNoSession", err)
	}

	if _, err := m.Initiate("alice", "bob", 1.0); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"add zero", func() error { _, err := m.AddItem("alice", "sword", 0); return err }, ErrBadQuantity},
		{"add negative", func() error { _, err := m.AddItem("alice", "sword", -3); return err }, ErrBadQuantity},
		{"add over stack cap", func() error { _, err := m.AddItem("alice", "sword", 10001); return err }, ErrBadQuantity},
		{"remove more than offered", func() error { _, err := m.RemoveItem("alice", "sword", 1); return err }, ErrBadQuantity},
		{"negative credits", func() error { _, err := m.SetCredits("alice", -1); return err }, ErrBadCredits},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != tc.want {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMutationResetsConfirmations(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Initiate("alice", "bob", 1.0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := m.Confirm(context.Background(), "alice"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !s.Offers["alice"].Confirmed {
		t.Fatal("alice flag not set")
	}

	if _, err := m.AddItem("bob", "ore", 2); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if s.Offers["alice"].Confirmed || s.Offers["bob"].Confirmed {
		t.Fatal("mutation did not reset confirmations")
	}
}

func TestConfirmToggles(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Initiate("alice", "bob", 1.0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := m.Confirm(context.Background(), "alice"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := m.Confirm(context.Background(), "alice"); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if s.Offers["alice"].Confirmed {
		t.Fatal("second confirm did not toggle the flag off")
	}
	if s.State != StatePending {
		t.Fatalf("state = %s, want pending", s.State)
	}
}

func TestExecuteConservesGoods(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Initiate("alice", "bob", 2.0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := m.AddItem("alice", "sword", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.SetCredits("alice", 100); err != nil {
		t.Fatalf("credits: %v", err)
	}
	if _, err := m.AddItem("bob", "ore", 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.SetCredits("bob", 50); err != nil {
		t.Fatalf("credits: %v", err)
	}

	if _, err := m.Confirm(ctx, "alice"); err != nil {
		t.Fatalf("confirm alice: %v", err)
	}
	if _, err := m.Confirm(ctx, "bob"); err != nil {
		t.Fatalf("confirm bob: %v", err)
	}
	if s.State != StateCompleted {
		t.Fatalf("state = %s, want completed", s.State)
	}

	alice, _ := store.GetPlayer(ctx, "alice")
	bob, _ := store.GetPlayer(ctx, "bob")

	if got := alice.Credits + bob.Credits; got != 700 {
		t.Errorf("total credits = %d, want 700", got)
	}
	if got := alice.Inventory["sword"] + bob.Inventory["sword"]; got != 2 {
		t.Errorf("total swords = %d, want 2", got)
	}
	if got := alice.Inventory["ore"] + bob.Inventory["ore"]; got != 5 {
		t.Errorf("total ore = %d, want 5", got)
	}

	if alice.Credits != 450 || alice.Inventory["sword"] != 1 || alice.Inventory["ore"] != 3 {
		t.Errorf("alice after trade: %+v credits %d", alice.Inventory, alice.Credits)
	}
	if bob.Credits != 250 || bob.Inventory["sword"] != 1 || bob.Inventory["ore"] != 2 {
		t.Errorf("bob after trade: %+v credits %d", bob.Inventory, bob.Credits)
	}

	if m.SessionOf("alice") != nil || m.SessionOf("bob") != nil {
		t.Error("participants still bound after completion")
	}
	if rows := store.TradeLog(); len(rows) != 4 {
		t.Errorf("trade log rows = %d, want 4", len(rows))
	}

	found := false
	for _, e := range m.Audit() {
		if e.Action == "complete" && e.Session == s.ID {
			found = true
		}
	}
	if !found {
		t.Error("no completion entry in audit log")
	}
}

func TestExecuteRevalidatesAgainstStore(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Initiate("alice", "bob", 2.0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Alice offers more swords than she owns; the session itself does
	// not know inventories, so this only fails at execution.
	if _, err := m.AddItem("alice", "sword", 5); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.Confirm(ctx, "alice"); err != nil {
		t.Fatalf("confirm alice: %v", err)
	}
	if _, err := m.Confirm(ctx, "bob"); err == nil {
		t.Fatal("execution succeeded with an overdrawn offer")
	}
	if s.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", s.State)
	}

	alice, _ := store.GetPlayer(ctx, "alice")
	bob, _ := store.GetPlayer(ctx, "bob")
	if alice.Inventory["sword"] != 2 || alice.Credits != 500 || bob.Credits != 200 {
		t.Error("cancelled execution mutated stored records")
	}
	if len(store.TradeLog()) != 0 {
		t.Error("cancelled execution wrote audit rows")
	}

	// Both sides are free to trade again.
	if _, err := m.Initiate("alice", "bob", 1.0); err != nil {
		t.Fatalf("re-initiate after cancel: %v", err)
	}
}

func TestCancelAndMutateAfterTerminal(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Initiate("alice", "bob", 1.0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := m.Cancel("bob", "changed my mind"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", s.State)
	}
	if _, err := m.AddItem("alice", "sword", 1); err != ErrNoSession {
		t.Fatalf("mutate after cancel: got %v, want ErrNoSession", err)
	}
	if _, err := m.Cancel("alice", ""); err != ErrNoSession {
		t.Fatalf("double cancel: got %v, want ErrNoSession", err)
	}
}

func TestSweepExpiresStaleSessions(t *testing.T) {
	m, _ := newTestManager(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if _, err := m.Initiate("alice", "bob", 1.0); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if culled := m.Sweep(base.Add(4 * time.Minute)); culled != 0 {
		t.Fatalf("early sweep culled %d", culled)
	}
	if culled := m.Sweep(base.Add(5*time.Minute + time.Second)); culled != 1 {
		t.Fatalf("sweep culled %d, want 1", culled)
	}
	if m.SessionOf("alice") != nil || m.SessionOf("bob") != nil {
		t.Error("expired session still bound")
	}
}

func TestReleaseOnDisconnect(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Initiate("alice", "bob", 1.0)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	m.Release("alice")
	if s.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", s.State)
	}
	if m.SessionOf("bob") != nil {
		t.Error("counterparty still bound after release")
	}
}

func TestAuditRingBounded(t *testing.T) {
	m, _ := newTestManager(t)
	for i := 0; i < auditCap+100; i++ {
		m.record("s", "alice", "action", fmt.Sprintf("%d", i))
	}
	got := m.Audit()
	if len(got) != auditCap {
		t.Fatalf("audit length = %d, want %d", len(got), auditCap)
	}
	if got[0].Detail != "100" {
		t.Errorf("oldest retained entry = %s, want 100", got[0].Detail)
	}
	if got[len(got)-1].Detail != fmt.Sprintf("%d", auditCap+99) {
		t.Errorf("newest entry = %s", got[len(got)-1].Detail)
	}
}
