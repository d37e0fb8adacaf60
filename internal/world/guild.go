package world

import (
	"errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrGuildNameLength = errors.New("guild name must be 3-20 characters")
	ErrGuildTagLength  = errors.New("guild tag must be 2-4 characters")
	ErrGuildTagTaken   = errors.New("guild tag already taken")
	ErrGuildNotFound   = errors.New("guild not found")
	ErrAlreadyInGuild  = errors.New("already in a guild")
	ErrNotInGuild      = errors.New("not in a guild")
)

var tagCaser = cases.Upper(language.Und)

// FoldTag uppercases and NFC-normalizes a guild tag; folded tags are the
// uniqueness key, so comparison is case-insensitive.
func FoldTag(tag string) string {
	return tagCaser.String(norm.NFC.String(tag))
}

// Guild is the room-scoped guild view. Members keeps join order; the first
// member inherits leadership when the leader leaves.
type Guild struct {
	ID            string
	Name          string
	Tag           string // stored folded (uppercase)
	LeaderAccount string
	Members       []string
}

// GuildSet manages all guilds of one room.
// Single-goroutine access only (room loop).
type GuildSet struct {
	guilds  map[string]*Guild // guildID -> guild
	byTag   map[string]string // folded tag -> guildID
	byOwner map[string]string // accountID -> guildID
}

func NewGuildSet() *GuildSet {
	return &GuildSet{
		guilds:  make(map[string]*Guild),
		byTag:   make(map[string]string),
		byOwner: make(map[string]string),
	}
}

// Get returns a guild by id, or nil.
func (s *GuildSet) Get(id string) *Guild {
	return s.guilds[id]
}

// GuildOf returns the guild an account belongs to, or nil.
func (s *GuildSet) GuildOf(account string) *Guild {
	gid, ok := s.byOwner[account]
	if !ok {
		return nil
	}
	return s.guilds[gid]
}

// Count returns the number of guilds in the room.
func (s *GuildSet) Count() int {
	return len(s.guilds)
}

// Create registers a new guild with the caller as leader and sole member.
func (s *GuildSet) Create(id, name, tag, leader string) (*Guild, error) {
	name = NormalizeName(name)
	if n := len([]rune(name)); n < 3 || n > 20 {
		return nil, ErrGuildNameLength
	}
	folded := FoldTag(tag)
	if n := len([]rune(folded)); n < 2 || n > 4 {
		return nil, ErrGuildTagLength
	}
	if _, taken := s.byTag[folded]; taken {
		return nil, ErrGuildTagTaken
	}
	if _, in := s.byOwner[leader]; in {
		return nil, ErrAlreadyInGuild
	}
	g := &Guild{
		ID:            id,
		Name:          name,
		Tag:           folded,
		LeaderAccount: leader,
		Members:       []string{leader},
	}
	s.guilds[id] = g
	s.byTag[folded] = id
	s.byOwner[leader] = id
	return g, nil
}

// Join adds an account to a guild.
func (s *GuildSet) Join(guildID, account string) (*Guild, error) {
	g, ok := s.guilds[guildID]
	if !ok {
		return nil, ErrGuildNotFound
	}
	if _, in := s.byOwner[account]; in {
		return nil, ErrAlreadyInGuild
	}
	g.Members = append(g.Members, account)
	s.byOwner[account] = guildID
	return g, nil
}

// Leave removes an account from its guild. When the leader leaves,
// leadership passes to the oldest remaining member; an emptied guild is
// removed and returned with removed=true.
func (s *GuildSet) Leave(account string) (g *Guild, removed bool, err error) {
	gid, ok := s.byOwner[account]
	if !ok {
		return nil, false, ErrNotInGuild
	}
	g = s.guilds[gid]
	delete(s.byOwner, account)
	for i, m := range g.Members {
		if m == account {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			break
		}
	}
	if len(g.Members) == 0 {
		delete(s.byTag, g.Tag)
		delete(s.guilds, gid)
		return g, true, nil
	}
	if g.LeaderAccount == account {
		g.LeaderAccount = g.Members[0]
	}
	return g, false, nil
}

// All iterates the guilds map for snapshot building.
func (s *GuildSet) All() map[string]*Guild {
	return s.guilds
}
