package room

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusroom/server/internal/core/event"
	"github.com/nexusroom/server/internal/monitor"
	"github.com/nexusroom/server/internal/net"
	"github.com/nexusroom/server/internal/net/message"
	"github.com/nexusroom/server/internal/persist"
	"github.com/nexusroom/server/internal/pubsub"
	"github.com/nexusroom/server/internal/replication"
	"github.com/nexusroom/server/internal/world"
)

const (
	starterHP   = 100
	starterMana = 100

	// spawnJitter bounds the random offset around origin for fresh and
	// returning-from-dungeon placements.
	spawnJitter = 5.0
)

var starterSpells = []string{"fireball", "frostbolt", "heal"}

// joinTicket carries a verified join from the transport goroutine onto the
// room loop.
type joinTicket struct {
	sess    *net.Session
	account string
	name    string
	race    string
	row     *persist.PlayerRow
}

// OnJoin implements the transport join callback. It runs on the session's
// read goroutine: identity and the repository reads stay off the tick path,
// then placement is posted onto the loop.
func (r *Room) OnJoin(ctx context.Context, sess *net.Session, join message.Join) {
	t, ok := r.authenticate(ctx, sess, join)
	if !ok {
		return
	}
	if !r.Post(func() { r.completeJoin(t) }) {
		sess.CloseWithCode(net.CloseNormal, "room closed")
	}
}

func (r *Room) authenticate(ctx context.Context, sess *net.Session, join message.Join) (joinTicket, bool) {
	t := joinTicket{sess: sess, race: join.Race, name: world.NormalizeName(join.Name)}

	switch r.cfg.Auth.Mode {
	case "", "none":
		t.account = "session-" + strconv.FormatUint(sess.ID, 10)
		r.log.Warn("auth mode none, trusting transport session id",
			zap.Uint64("session", sess.ID))
	case "token":
		if join.Token == "" {
			monitor.RecordRejectedConn("auth_required")
			sess.CloseWithCode(net.CloseAuthRequired, "token required")
			return t, false
		}
		id, err := r.verifier.Verify(ctx, join.Token)
		if err != nil || id.AccountID == "" {
			monitor.RecordRejectedConn("auth_invalid")
			sess.CloseWithCode(net.CloseAuthInvalid, "token rejected")
			return t, false
		}
		t.account = id.AccountID
	case "local":
		account, ok := r.localLogin(ctx, sess, join)
		if !ok {
			return t, false
		}
		t.account = account
	default:
		r.log.Error("unknown auth mode", zap.String("mode", r.cfg.Auth.Mode))
		sess.CloseWithCode(net.CloseAuthInvalid, "auth misconfigured")
		return t, false
	}

	if t.name == "" {
		t.name = "Wanderer-" + strconv.FormatUint(sess.ID, 10)
	}

	row, err := r.players.GetPlayer(ctx, t.account)
	if err != nil {
		// degraded store: log it and join with a fresh record rather
		// than turning the player away
		r.log.Error("player load failed", zap.String("account", t.account), zap.Error(err))
		r.mon.Log(monitor.LevelError, "player load failed", map[string]string{"account": t.account})
		row = nil
	}
	if row == nil {
		taken, err := r.players.PlayerNameExists(ctx, t.name)
		if err != nil {
			r.log.Error("name check failed", zap.String("name", t.name), zap.Error(err))
		} else if taken {
			monitor.RecordRejectedConn("name_taken")
			sess.CloseWithCode(net.CloseNameTaken, "name already in use")
			return t, false
		}
	} else {
		t.name = row.Name
	}
	t.row = row
	return t, true
}

// localLogin validates name/password against the accounts table, creating
// the account when auto-create is on. The login name doubles as account id.
func (r *Room) localLogin(ctx context.Context, sess *net.Session, join message.Join) (string, bool) {
	name := world.NormalizeName(join.Name)
	if name == "" || join.Password == "" {
		monitor.RecordRejectedConn("auth_required")
		sess.CloseWithCode(net.CloseAuthRequired, "name and password required")
		return "", false
	}
	acct, err := r.store.LoadAccount(ctx, name)
	if err != nil {
		r.log.Error("account load failed", zap.String("name", name), zap.Error(err))
		sess.CloseWithCode(net.CloseAuthInvalid, "account lookup failed")
		return "", false
	}
	if acct == nil {
		if !r.cfg.Auth.AutoCreateAccounts {
			monitor.RecordRejectedConn("auth_invalid")
			sess.CloseWithCode(net.CloseAuthInvalid, "unknown account")
			return "", false
		}
		acct, err = r.store.CreateAccount(ctx, name, join.Password)
		if err != nil {
			r.log.Error("account create failed", zap.String("name", name), zap.Error(err))
			sess.CloseWithCode(net.CloseAuthInvalid, "account create failed")
			return "", false
		}
		r.log.Info("account created", zap.String("name", name))
	} else if !persist.ValidatePassword(acct.PasswordHash, join.Password) {
		monitor.RecordRejectedConn("auth_invalid")
		sess.CloseWithCode(net.CloseAuthInvalid, "bad credentials")
		return "", false
	}
	if acct.Banned {
		monitor.RecordRejectedConn("banned")
		sess.CloseWithCode(net.CloseAuthInvalid, "account banned")
		return "", false
	}
	if err := r.store.SetOnline(ctx, name, true); err != nil {
		r.log.Debug("online flag update failed", zap.Error(err))
	}
	if err := r.store.TouchAccount(ctx, name); err != nil {
		r.log.Debug("account touch failed", zap.Error(err))
	}
	return name, true
}

// completeJoin finishes the join on the room loop: capacity, supersede,
// name collision, then placement and the snapshot.
func (r *Room) completeJoin(t joinTicket) {
	sess := t.sess
	if sess.IsClosed() {
		return
	}
	if r.world.PlayerCount() >= r.cfg.Server.RoomCapacity {
		monitor.RecordRejectedConn("room_full")
		sess.CloseWithCode(net.CloseNormal, "room full")
		return
	}

	row := t.row
	if old, ok := r.sessions[t.account]; ok && old != sess {
		// same account, second connection: the live player state wins
		// over whatever the ticket loaded before the post
		if p := r.world.RemovePlayer(t.account); p != nil {
			row = r.rowFromPlayer(p)
			r.batcher.Drop("player", p.EntityID)
			r.broadcast(message.TypePlayerLeft, message.PlayerLeft{
				EntityID: p.EntityID,
				Account:  p.AccountID,
				Name:     p.Name,
			})
		}
		delete(r.sessions, t.account)
		old.CloseWithCode(net.CloseNormal, "new connection from same player")
		r.log.Info("session superseded",
			zap.String("account", t.account),
			zap.Uint64("old", old.ID),
			zap.Uint64("new", sess.ID))
	}

	if other := r.world.GetPlayerByName(t.name); other != nil && other.AccountID != t.account {
		monitor.RecordRejectedConn("name_taken")
		sess.CloseWithCode(net.CloseNameTaken, "name already in use")
		return
	}

	var p *world.Player
	if row != nil {
		p = r.playerFromRow(row)
	} else {
		p = r.newPlayer(t.account, t.name, t.race)
		if err := r.players.CreatePlayer(r.ctx, r.rowFromPlayer(p)); err != nil {
			r.log.Error("player create failed", zap.String("account", t.account), zap.Error(err))
			r.mon.Log(monitor.LevelError, "player create failed", map[string]string{"account": t.account})
		}
	}
	p.Sess = sess
	sess.AccountID = t.account
	sess.Name = p.Name

	r.sessions[t.account] = sess
	r.world.AddPlayer(p)
	r.validator.SeedPosition(t.account, p.X, p.Y, p.Z, r.now)
	sess.SetState(message.StateInWorld)

	sess.Send(message.Encode(message.TypeJoined, message.Joined{
		Account:  t.account,
		EntityID: p.EntityID,
		Name:     p.Name,
	}))
	sess.Send(message.Encode(message.TypeSnapshot, replication.BuildSnapshot(r.world, r.bossActive)))
	r.broadcastExcept(sess, message.TypePlayerJoined, replication.PlayerWire(p, r.guildTag(p)))

	if r.world.EnemyCount() == 0 {
		r.spawnBurst()
	}

	event.Emit(r.bus, event.PlayerJoined{Account: t.account, EntityID: p.EntityID, Name: p.Name})
	r.pub.Publish(pubsub.KindPlayerJoin, r.name, t.account, nil)
	monitor.SetClients(r.world.PlayerCount())
	r.log.Info("player joined",
		zap.String("account", t.account),
		zap.String("name", p.Name),
		zap.Uint64("entity", p.EntityID))
}

// leave removes the player and queues the final save. reason lands in the
// PlayerLeft event and the logs; the session itself is not closed here.
func (r *Room) leave(account, reason string) {
	delete(r.sessions, account)
	p := r.world.RemovePlayer(account)
	if p == nil {
		return
	}
	if d := r.dungeons.DungeonOf(account); d != nil {
		r.dungeons.Exit(r.ctx, account)
		r.despawnIfEmpty(d.ID)
	}
	if err := r.players.SavePlayer(r.ctx, r.rowFromPlayer(p)); err != nil {
		r.log.Error("final save failed", zap.String("account", account), zap.Error(err))
	}
	if r.cfg.Auth.Mode == "local" {
		if err := r.store.SetOnline(r.ctx, account, false); err != nil {
			r.log.Debug("online flag update failed", zap.Error(err))
		}
	}
	r.trades.Release(account)
	r.validator.ClearSession(account)
	r.world.Combos.Remove(account)
	r.batcher.Drop("player", p.EntityID)
	r.broadcast(message.TypePlayerLeft, message.PlayerLeft{
		EntityID: p.EntityID,
		Account:  account,
		Name:     p.Name,
	})
	event.Emit(r.bus, event.PlayerLeft{Account: account, EntityID: p.EntityID, Reason: reason})
	r.pub.Publish(pubsub.KindPlayerLeave, r.name, account, map[string]string{"reason": reason})
	monitor.SetClients(r.world.PlayerCount())
	r.log.Info("player left", zap.String("account", account), zap.String("reason", reason))
}

// kick force-removes a player: save, close 1000, moderation trail.
func (r *Room) kick(account, reason string) {
	sess := r.sessions[account]
	r.leave(account, "kicked: "+reason)
	if sess != nil {
		sess.CloseWithCode(net.CloseNormal, reason)
	}
	monitor.RecordKick()
	event.Emit(r.bus, event.PlayerKicked{Account: account, Reason: reason})
	r.pub.Publish(pubsub.KindKick, r.name, account, map[string]string{"reason": reason})
}

func (r *Room) newPlayer(account, name, race string) *world.Player {
	if race == "" {
		race = "human"
	}
	return &world.Player{
		EntityID:    r.world.NextEntityID(),
		CharacterID: uuid.NewString(),
		AccountID:   account,
		Name:        name,
		Race:        race,
		X:           (r.rng.Float64() - 0.5) * 2 * spawnJitter,
		Y:           1,
		Z:           (r.rng.Float64() - 0.5) * 2 * spawnJitter,
		HP:          starterHP,
		MaxHP:       starterHP,
		Mana:        starterMana,
		MaxMana:     starterMana,
		Level:       1,
		Inventory:   make(map[string]int),
		Spells:      append([]string(nil), starterSpells...),
		Dirty:       true,
	}
}

func (r *Room) playerFromRow(row *persist.PlayerRow) *world.Player {
	row.Clamp()
	inv := make(map[string]int, len(row.Inventory))
	for k, v := range row.Inventory {
		inv[k] = v
	}
	return &world.Player{
		EntityID:    r.world.NextEntityID(),
		CharacterID: uuid.NewString(),
		AccountID:   row.AccountID,
		Name:        row.Name,
		Race:        row.Race,
		X:           row.X,
		Y:           row.Y,
		Z:           row.Z,
		Rotation:    row.Rotation,
		HP:          row.HP,
		MaxHP:       row.MaxHP,
		Mana:        row.Mana,
		MaxMana:     row.MaxMana,
		Level:       row.Level,
		XP:          int(row.XP),
		Credits:     int(row.Credits),
		Inventory:   inv,
		Spells:      append([]string(nil), row.Spells...),
	}
}

func (r *Room) rowFromPlayer(p *world.Player) *persist.PlayerRow {
	inv := make(map[string]int, len(p.Inventory))
	for k, v := range p.Inventory {
		inv[k] = v
	}
	row := &persist.PlayerRow{
		AccountID: p.AccountID,
		Name:      p.Name,
		Race:      p.Race,
		X:         p.X,
		Y:         p.Y,
		Z:         p.Z,
		Rotation:  p.Rotation,
		HP:        p.HP,
		MaxHP:     p.MaxHP,
		Mana:      p.Mana,
		MaxMana:   p.MaxMana,
		Level:     p.Level,
		XP:        int64(p.XP),
		Credits:   int64(p.Credits),
		Inventory: inv,
		Spells:    append([]string(nil), p.Spells...),
		UpdatedAt: r.now,
	}
	row.Clamp()
	return row
}

func (r *Room) guildTag(p *world.Player) string {
	if g := r.world.Guilds.GuildOf(p.AccountID); g != nil {
		return g.Tag
	}
	return ""
}

// awardXP applies xp with level-ups at level*100 thresholds.
func (r *Room) awardXP(p *world.Player, xp int) {
	if xp <= 0 {
		return
	}
	p.XP += xp
	for p.XP >= p.Level*100 && p.Level < persist.MaxLevel {
		p.XP -= p.Level * 100
		p.Level++
	}
	p.Dirty = true
	r.batcher.Queue("player", p.EntityID, map[string]any{"xp": p.XP, "level": p.Level})
}

// placePlayer teleports server-side: state, grid, validator seed and a
// correction frame so the client snaps along.
func (r *Room) placePlayer(p *world.Player, x, y, z float64) {
	r.world.MovePlayer(p, x, y, z, p.Rotation)
	r.validator.SeedPosition(p.AccountID, x, y, z, r.now)
	r.batcher.Queue("player", p.EntityID, map[string]any{"x": x, "y": y, "z": z})
	if p.Sess != nil {
		p.Sess.Send(message.Encode(message.TypePositionCorrection, message.PositionCorrection{
			X: x, Y: y, Z: z, Rotation: p.Rotation,
		}))
	}
}
