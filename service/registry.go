package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-swarm/game"
	"github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/google/uuid"
)

const (
	codeMin = 100000
	codeMax = 999999

	defaultReleaseTimeout = 2 * time.Second
)

var ErrNilLogger = errors.New("logger is required")

// RegistryConfig holds the parameters of a RoomRegistry.
type RegistryConfig struct {
	MaxPlayers     int              // per-room capacity, game.DefaultMaxPlayers when <= 0
	Spawn          game.Spawner     // initial player positions, game.UniformSpawner when nil
	Reserver       i.CodeReserver   // optional cross-instance code guard
	Logger         i.Logger         // required
	NewCode        func() string    // code generator, random 6-digit codes when nil
	NewID          func() string    // room id generator, uuid when nil
	Clock          func() time.Time // time.Now when nil
	ReleaseTimeout time.Duration    // bound on releasing or refreshing reserved codes
}

// RoomRegistry is the table of live rooms keyed by join code.
//
// Lock order is room then registry: a caller holding a room lock may call
// DestroyIfEmpty, while the registry never waits on a room lock while holding
// its own.
type RoomRegistry struct {
	rooms          map[string]*game.Room
	maxPlayers     int
	spawn          game.Spawner
	reserver       i.CodeReserver
	logger         i.Logger
	newCode        func() string
	newID          func() string
	clock          func() time.Time
	releaseTimeout time.Duration
	sync.RWMutex
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry(c RegistryConfig) (*RoomRegistry, error) {
	if c.Logger == nil {
		return nil, ErrNilLogger
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = game.DefaultMaxPlayers
	}
	if c.NewCode == nil {
		c.NewCode = RandomCode
	}
	if c.NewID == nil {
		c.NewID = func() string { return uuid.NewString() }
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.ReleaseTimeout <= 0 {
		c.ReleaseTimeout = defaultReleaseTimeout
	}

	return &RoomRegistry{
		rooms:          make(map[string]*game.Room),
		maxPlayers:     c.MaxPlayers,
		spawn:          c.Spawn,
		reserver:       c.Reserver,
		logger:         c.Logger,
		newCode:        c.NewCode,
		newID:          c.NewID,
		clock:          c.Clock,
		releaseTimeout: c.ReleaseTimeout,
	}, nil
}

// RandomCode returns a uniformly drawn 6-digit numeric code.
func RandomCode() string {
	return strconv.Itoa(codeMin + rand.IntN(codeMax-codeMin+1))
}

// Create allocates a room under a fresh code with the creator as its only
// member. Codes are regenerated until one is free.
func (r *RoomRegistry) Create(ctx context.Context, creatorID string, profile game.Profile) (*game.Room, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code := r.newCode()
		if r.taken(code) {
			continue
		}

		if r.reserver != nil {
			ok, err := r.reserver.Reserve(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("reserving room code: %w", err)
			}
			if !ok {
				continue
			}
		}

		room := game.NewRoom(game.RoomConfig{
			ID:         r.newID(),
			Code:       code,
			MaxPlayers: r.maxPlayers,
			Spawn:      r.spawn,
			Clock:      r.clock,
		})
		if _, err := room.Join(creatorID, profile); err != nil {
			r.release(code)
			return nil, fmt.Errorf("joining creator: %w", err)
		}

		r.Lock()
		if _, ok := r.rooms[code]; ok {
			r.Unlock()
			continue
		}
		r.rooms[code] = room
		r.Unlock()

		r.logger.Info(fmt.Sprintf("room %s created by %s", code, creatorID))
		return room, nil
	}
}

func (r *RoomRegistry) taken(code string) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// Lookup returns the live room registered under code.
func (r *RoomRegistry) Lookup(code string) (*game.Room, bool) {
	r.RLock()
	defer r.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

// DestroyIfEmpty removes the room once it has no members and reports whether
// it did. The caller must hold the room's lock.
func (r *RoomRegistry) DestroyIfEmpty(code string) bool {
	r.Lock()
	room, ok := r.rooms[code]
	if !ok || room.Len() > 0 {
		r.Unlock()
		return false
	}
	delete(r.rooms, code)
	r.Unlock()

	room.Close()
	r.release(code)
	r.logger.Info(fmt.Sprintf("room %s destroyed", code))
	return true
}

func (r *RoomRegistry) release(code string) {
	if r.reserver == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.releaseTimeout)
		defer cancel()
		if err := r.reserver.Release(ctx, code); err != nil {
			r.logger.Warning(fmt.Sprintf("releasing room code %s: %s", code, err))
		}
	}()
}

// KeepReservations refreshes the reserved codes of every live room each
// interval until ctx ends. It returns at once without a reserver.
func (r *RoomRegistry) KeepReservations(ctx context.Context, interval time.Duration) {
	if r.reserver == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.refreshReservations(ctx); err != nil {
				r.logger.Warning(fmt.Sprintf("refreshing room codes: %s", err))
			}
		}
	}
}

func (r *RoomRegistry) refreshReservations(ctx context.Context) error {
	r.RLock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	r.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.releaseTimeout)
	defer cancel()
	return r.reserver.Refresh(ctx, codes...)
}

// Count returns the number of live rooms.
func (r *RoomRegistry) Count() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.rooms)
}

// List returns a summary of every live room, oldest first.
func (r *RoomRegistry) List() []game.RoomSummary {
	r.RLock()
	rooms := make([]*game.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.RUnlock()

	summaries := make([]game.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.RLock()
		if !room.Closed() {
			summaries = append(summaries, room.Summary())
		}
		room.RUnlock()
	}

	sort.Slice(summaries, func(a, b int) bool {
		if summaries[a].CreatedAt.Equal(summaries[b].CreatedAt) {
			return summaries[a].Code < summaries[b].Code
		}
		return summaries[a].CreatedAt.Before(summaries[b].CreatedAt)
	})
	return summaries
}

// Snapshot returns the current state of the room registered under code.
func (r *RoomRegistry) Snapshot(code string) (game.RoomSnapshot, bool) {
	room, ok := r.Lookup(code)
	if !ok {
		return game.RoomSnapshot{}, false
	}

	room.RLock()
	defer room.RUnlock()
	if room.Closed() {
		return game.RoomSnapshot{}, false
	}
	return room.Snapshot(), true
}
