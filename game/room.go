package game

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// Room-related errors.
var (
	ErrRoomFull            = errors.New("room is full")
	ErrRoomClosed          = errors.New("room is closed")
	ErrNotCreator          = errors.New("only the room creator can do this")
	ErrNotStarted          = errors.New("game has not started")
	ErrPlayerNotInRoom     = errors.New("player is not in the room")
	ErrSpectatorCannotPlay = errors.New("spectators cannot submit choices")
)

// Arena and room constants.
const (
	DefaultMaxPlayers = 30

	ArenaMin = -100.0 // lower bound of both coordinates
	ArenaMax = 100.0  // upper bound of both coordinates
)

// Spawner picks the initial position of a newly joined player.
type Spawner func() Vector2

// UniformSpawner draws positions uniformly from the arena square.
func UniformSpawner() Vector2 {
	return Vector2{
		X: ArenaMin + rand.Float64()*(ArenaMax-ArenaMin),
		Y: ArenaMin + rand.Float64()*(ArenaMax-ArenaMin),
	}
}

// GlobalBest is the best personal best among the room's non-spectator players.
type GlobalBest struct {
	BestPoint
	PlayerID string
}

// RoomConfig holds the parameters for creating a Room.
type RoomConfig struct {
	ID         string           // opaque room identity
	Code       string           // short join code
	MaxPlayers int              // capacity for non-spectator joins, DefaultMaxPlayers when <= 0
	Spawn      Spawner          // UniformSpawner when nil
	Clock      func() time.Time // time.Now when nil
}

// Room is one isolated match: an ordered set of members, the shared global
// best point, and the turn counter.
//
// Room methods never lock; callers hold Lock for mutations and RLock for reads.
type Room struct {
	id         string
	code       string
	creatorID  string
	createdAt  time.Time
	started    bool
	turn       int
	maxPlayers int

	players map[string]*Player // members indexed by connection id
	order   []string           // insertion order of players
	gbest   *GlobalBest
	closed  bool

	spawn Spawner
	clock func() time.Time

	sync.RWMutex
}

// NewRoom creates an empty room in the lobby state.
func NewRoom(c RoomConfig) *Room {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = DefaultMaxPlayers
	}
	if c.Spawn == nil {
		c.Spawn = UniformSpawner
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}

	return &Room{
		id:         c.ID,
		code:       c.Code,
		createdAt:  c.Clock(),
		maxPlayers: c.MaxPlayers,
		players:    make(map[string]*Player),
		spawn:      c.Spawn,
		clock:      c.Clock,
	}
}

// ID returns the room identity.
func (r *Room) ID() string { return r.id }

// Code returns the join code.
func (r *Room) Code() string { return r.code }

// CreatorID returns the connection id holding the creator role.
func (r *Room) CreatorID() string { return r.creatorID }

// CreatedAt returns the creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Started reports whether the game left the lobby.
func (r *Room) Started() bool { return r.started }

// Turn returns the turn counter; 0 while in the lobby.
func (r *Room) Turn() int { return r.turn }

// MaxPlayers returns the room capacity.
func (r *Room) MaxPlayers() int { return r.maxPlayers }

// Len returns the number of members, spectators included.
func (r *Room) Len() int { return len(r.order) }

// Closed reports whether the room was destroyed.
func (r *Room) Closed() bool { return r.closed }

// Close marks the room destroyed. Later intents holding a stale pointer fail.
func (r *Room) Close() { r.closed = true }

// Player returns the member with the given connection id.
func (r *Room) Player(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// Players returns the members in insertion order.
func (r *Room) Players() []*Player {
	players := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, r.players[id])
	}
	return players
}

// GlobalBest returns a copy of the global best, or nil when there is none.
func (r *Room) GlobalBest() *GlobalBest {
	if r.gbest == nil {
		return nil
	}
	gb := *r.gbest
	return &gb
}

// Join adds a member or, for a connection already in the room, updates its
// metadata in place. Once the game started nobody joins as a player.
func (r *Room) Join(id string, profile Profile) (*Player, error) {
	if r.closed {
		return nil, ErrRoomClosed
	}

	profile = profile.WithDefaults()
	if len(r.order) >= r.maxPlayers && profile.Role != RoleSpectator {
		return nil, ErrRoomFull
	}

	if r.started {
		profile.Role = RoleSpectator
	}

	now := r.clock()
	player, ok := r.players[id]
	if ok {
		player.applyProfile(profile)
		player.LastActiveAt = now
	} else {
		player = newPlayer(id, profile, r.spawn(), now)
		r.players[id] = player
		r.order = append(r.order, id)
	}

	if r.creatorID == "" {
		r.creatorID = id
	}

	r.recomputeGlobalBest()
	return player, nil
}

// Leave removes a member. The creator role moves to the earliest remaining
// member. The caller destroys the room once it is empty.
func (r *Room) Leave(id string) (*Player, error) {
	player, ok := r.players[id]
	if !ok {
		return nil, ErrPlayerNotInRoom
	}

	delete(r.players, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.creatorID == id {
		r.creatorID = ""
		if len(r.order) > 0 {
			r.creatorID = r.order[0]
		}
	}

	if len(r.order) > 0 && !player.IsSpectator() {
		r.recomputeGlobalBest()
	}
	return player, nil
}

// Start moves the room out of the lobby and sets the turn to 1.
// It returns false when the game was already running.
func (r *Room) Start(by string) (bool, error) {
	if r.closed {
		return false, ErrRoomClosed
	}
	if by != r.creatorID {
		return false, ErrNotCreator
	}
	if r.started {
		return false, nil
	}

	r.started = true
	r.turn = 1
	return true, nil
}

// Submit stores the player's choice for the current turn.
func (r *Room) Submit(id string, c Choice) error {
	if r.closed {
		return ErrRoomClosed
	}
	player, ok := r.players[id]
	if !ok {
		return ErrPlayerNotInRoom
	}
	if player.IsSpectator() {
		return ErrSpectatorCannotPlay
	}

	c = c.Clamped()
	player.Pending = &c
	player.LastActiveAt = r.clock()
	return nil
}

// Advance runs one turn on behalf of the creator.
func (r *Room) Advance(by string) error {
	if r.closed {
		return ErrRoomClosed
	}
	if by != r.creatorID {
		return ErrNotCreator
	}
	return Step(r)
}

// recomputeGlobalBest scans non-spectators in insertion order; on equal scores
// the earlier player keeps the spot.
func (r *Room) recomputeGlobalBest() {
	var best *GlobalBest
	for _, id := range r.order {
		p := r.players[id]
		if p.IsSpectator() {
			continue
		}
		if best == nil || p.PBest.Score < best.Score {
			best = &GlobalBest{BestPoint: p.PBest, PlayerID: p.ID}
		}
	}
	r.gbest = best
}
