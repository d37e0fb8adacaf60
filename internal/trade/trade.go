// Package trade implements player-to-player trading sessions.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/persist"
)

const (
	// MaxDistance is how far apart two players may stand at initiate time.
	MaxDistance = 5.0

	sessionTTL = 5 * time.Minute
	auditCap   = 1000
	maxStack   = 10000
)

var (
	ErrTooFar       = errors.New("participants too far apart")
	ErrBusy         = errors.New("participant already trading")
	ErrSelfTrade    = errors.New("cannot trade with yourself")
	ErrNoSession    = errors.New("no active trade session")
	ErrInvalidState = errors.New("trade not in a mutable state")
	ErrBadQuantity  = errors.New("invalid item quantity")
	ErrBadCredits   = errors.New("invalid credit amount")
)

type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Offer is one participant's side of a session.
type Offer struct {
	Items     map[string]int
	Credits   int64
	Confirmed bool
}

// Session is a single trade between two players.
type Session struct {
	ID        string
	Initiator string
	Target    string
	Offers    map[string]*Offer
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) terminal() bool {
	return s.State == StateCompleted || s.State == StateCancelled
}

// Other returns the counterparty of the given participant.
func (s *Session) Other(account string) string {
	if account == s.Initiator {
		return s.Target
	}
	return s.Initiator
}

// AuditEntry records one transition for moderation review.
type AuditEntry struct {
	At      time.Time
	Session string
	Account string
	Action  string
	Detail  string
}

// PlayerStore is the slice of the persistence layer trade executions
// run against. Validation and the final save both go through it.
type PlayerStore interface {
	GetPlayer(ctx context.Context, accountID string) (*persist.PlayerRow, error)
	SavePlayers(ctx context.Context, rows []*persist.PlayerRow) error
}

// AuditStore receives durable audit rows for completed trades.
type AuditStore interface {
	AppendTradeLog(ctx context.Context, entries []persist.TradeLogEntry) error
}

// Manager owns the trade sessions of one room. It runs on the room
// goroutine and is not safe for concurrent use.
type Manager struct {
	store PlayerStore
	wal   AuditStore
	log   *zap.Logger
	now   func() time.Time

	sessions  map[string]*Session
	byAccount map[string]*Session

	audit     []AuditEntry
	auditHead int
}

func NewManager(store PlayerStore, wal AuditStore, log *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		wal:       wal,
		log:       log,
		now:       time.Now,
		sessions:  make(map[string]*Session),
		byAccount: make(map[string]*Session),
	}
}

// SessionOf returns the account's live session, or nil.
func (m *Manager) SessionOf(account string) *Session {
	return m.byAccount[account]
}

// Initiate opens a pending session between two players standing within
// MaxDistance of each other. Each participant may hold one live session.
func (m *Manager) Initiate(initiator, target string, distance float64) (*Session, error) {
	if initiator == target {
		return nil, ErrSelfTrade
	}
	if distance > MaxDistance {
		return nil, ErrTooFar
	}
	if m.byAccount[initiator] != nil || m.byAccount[target] != nil {
		return nil, ErrBusy
	}

	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Initiator: initiator,
		Target:    target,
		Offers: map[string]*Offer{
			initiator: {Items: make(map[string]int)},
			target:    {Items: make(map[string]int)},
		},
		State:     StatePending,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	m.sessions[s.ID] = s
	m.byAccount[initiator] = s
	m.byAccount[target] = s
	m.record(s.ID, initiator, "initiate", target)
	return s, nil
}

// AddItem raises the account's offered quantity of an item. Any offer
// mutation clears both confirmations.
func (m *Manager) AddItem(account, item string, qty int) (*Session, error) {
	s, offer, err := m.mutable(account)
	if err != nil {
		return nil, err
	}
	if qty <= 0 || offer.Items[item]+qty > maxStack {
		return nil, ErrBadQuantity
	}
	offer.Items[item] += qty
	m.resetConfirmations(s)
	m.record(s.ID, account, "add_item", fmt.Sprintf("%s x%d", item, qty))
	return s, nil
}

// RemoveItem lowers the account's offered quantity of an item.
func (m *Manager) RemoveItem(account, item string, qty int) (*Session, error) {
	s, offer, err := m.mutable(account)
	if err != nil {
		return nil, err
	}
	if qty <= 0 || qty > offer.Items[item] {
		return nil, ErrBadQuantity
	}
	offer.Items[item] -= qty
	if offer.Items[item] == 0 {
		delete(offer.Items, item)
	}
	m.resetConfirmations(s)
	m.record(s.ID, account, "remove_item", fmt.Sprintf("%s x%d", item, qty))
	return s, nil
}

// SetCredits replaces the account's offered credits.
func (m *Manager) SetCredits(account string, credits int64) (*Session, error) {
	s, offer, err := m.mutable(account)
	if err != nil {
		return nil, err
	}
	if credits < 0 {
		return nil, ErrBadCredits
	}
	offer.Credits = credits
	m.resetConfirmations(s)
	m.record(s.ID, account, "set_credits", fmt.Sprintf("%d", credits))
	return s, nil
}

// Confirm toggles the account's confirmation flag. Once both sides are
// confirmed the session executes atomically: offers are revalidated
// against the stored records, transferred, and both records saved. Any
// failure cancels the session instead.
func (m *Manager) Confirm(ctx context.Context, account string) (*Session, error) {
	s, offer, err := m.mutable(account)
	if err != nil {
		return nil, err
	}
	offer.Confirmed = !offer.Confirmed
	if !offer.Confirmed {
		m.record(s.ID, account, "unconfirm", "")
		return s, nil
	}
	m.record(s.ID, account, "confirm", "")

	if !s.Offers[s.Initiator].Confirmed || !s.Offers[s.Target].Confirmed {
		return s, nil
	}

	s.State = StateConfirmed
	m.record(s.ID, account, "both_confirmed", "")
	if err := m.execute(ctx, s); err != nil {
		m.finish(s, StateCancelled, account, err.Error())
		return s, err
	}
	m.finish(s, StateCompleted, account, "")
	return s, nil
}

// Cancel moves a live session to cancelled and releases both
// participants.
func (m *Manager) Cancel(account, reason string) (*Session, error) {
	s := m.byAccount[account]
	if s == nil {
		return nil, ErrNoSession
	}
	m.finish(s, StateCancelled, account, reason)
	return s, nil
}

// Sweep cancels sessions that outlived their expiry and returns how
// many were culled.
func (m *Manager) Sweep(now time.Time) int {
	culled := 0
	for _, s := range m.sessions {
		if !s.terminal() && now.After(s.ExpiresAt) {
			m.finish(s, StateCancelled, "", "expired")
			culled++
		}
	}
	return culled
}

// Release cancels the account's live session, if any. Used when a
// participant disconnects.
func (m *Manager) Release(account string) {
	if s := m.byAccount[account]; s != nil {
		m.finish(s, StateCancelled, account, "disconnected")
	}
}

// Audit returns the retained transition log, oldest first.
func (m *Manager) Audit() []AuditEntry {
	out := make([]AuditEntry, 0, len(m.audit))
	out = append(out, m.audit[m.auditHead:]...)
	out = append(out, m.audit[:m.auditHead]...)
	return out
}

func (m *Manager) mutable(account string) (*Session, *Offer, error) {
	s := m.byAccount[account]
	if s == nil {
		return nil, nil, ErrNoSession
	}
	if s.State != StatePending {
		return nil, nil, ErrInvalidState
	}
	return s, s.Offers[account], nil
}

func (m *Manager) resetConfirmations(s *Session) {
	s.Offers[s.Initiator].Confirmed = false
	s.Offers[s.Target].Confirmed = false
}

// execute transfers both offers between the stored records. Quantities
// and credits are revalidated against the store, not the session, so a
// stale offer cannot overdraw.
func (m *Manager) execute(ctx context.Context, s *Session) error {
	a, err := m.store.GetPlayer(ctx, s.Initiator)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.Initiator, err)
	}
	b, err := m.store.GetPlayer(ctx, s.Target)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.Target, err)
	}
	if a == nil || b == nil {
		return errors.New("participant record missing")
	}

	rows := map[string]*persist.PlayerRow{s.Initiator: a, s.Target: b}
	for account, offer := range s.Offers {
		row := rows[account]
		for item, qty := range offer.Items {
			if row.Inventory[item] < qty {
				return fmt.Errorf("%s lacks %d of %s", account, qty, item)
			}
		}
		if row.Credits < offer.Credits {
			return fmt.Errorf("%s lacks %d credits", account, offer.Credits)
		}
	}

	for account, offer := range s.Offers {
		from, to := rows[account], rows[s.Other(account)]
		for item, qty := range offer.Items {
			from.Inventory[item] -= qty
			if from.Inventory[item] == 0 {
				delete(from.Inventory, item)
			}
			if to.Inventory == nil {
				to.Inventory = make(map[string]int)
			}
			to.Inventory[item] += qty
		}
		from.Credits -= offer.Credits
		to.Credits += offer.Credits
	}

	if err := m.store.SavePlayers(ctx, []*persist.PlayerRow{a, b}); err != nil {
		return fmt.Errorf("save participants: %w", err)
	}
	m.appendWAL(ctx, s)
	return nil
}

func (m *Manager) appendWAL(ctx context.Context, s *Session) {
	if m.wal == nil {
		return
	}
	var entries []persist.TradeLogEntry
	for account, offer := range s.Offers {
		other := s.Other(account)
		for item, qty := range offer.Items {
			entries = append(entries, persist.TradeLogEntry{
				TradeID:     s.ID,
				FromAccount: account,
				ToAccount:   other,
				Item:        item,
				Qty:         qty,
			})
		}
		if offer.Credits > 0 {
			entries = append(entries, persist.TradeLogEntry{
				TradeID:     s.ID,
				FromAccount: account,
				ToAccount:   other,
				Credits:     offer.Credits,
			})
		}
	}
	if err := m.wal.AppendTradeLog(ctx, entries); err != nil {
		m.log.Error("trade audit append failed", zap.String("trade", s.ID), zap.Error(err))
	}
}

func (m *Manager) finish(s *Session, state State, account, detail string) {
	s.State = state
	delete(m.byAccount, s.Initiator)
	delete(m.byAccount, s.Target)
	delete(m.sessions, s.ID)

	action := "cancel"
	if state == StateCompleted {
		action = "complete"
	}
	m.record(s.ID, account, action, detail)
	m.log.Info("trade finished",
		zap.String("trade", s.ID),
		zap.String("state", string(state)),
		zap.String("initiator", s.Initiator),
		zap.String("target", s.Target),
	)
}

func (m *Manager) record(session, account, action, detail string) {
	e := AuditEntry{At: m.now(), Session: session, Account: account, Action: action, Detail: detail}
	if len(m.audit) < auditCap {
		m.audit = append(m.audit, e)
		return
	}
	m.audit[m.auditHead] = e
	m.auditHead = (m.auditHead + 1) % auditCap
}
