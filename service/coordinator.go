package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-swarm/game"
	"github.com/beka-birhanu/vinom-swarm/service/i"
)

const defaultRecordTimeout = 3 * time.Second

var (
	ErrNilRegistry    = errors.New("room registry is required")
	ErrNilBroadcaster = errors.New("broadcaster is required")
)

// CoordinatorConfig holds the collaborators of a Coordinator.
type CoordinatorConfig struct {
	Registry      *RoomRegistry  // required
	Broadcaster   i.Broadcaster  // required
	Publishers    []i.Publisher  // optional event mirrors
	Recorder      i.TurnRecorder // optional turn history
	Logger        i.Logger       // required
	RecordTimeout time.Duration  // bound on one history write
}

// Coordinator runs the room intents of every connection. It resolves rooms
// through the registry, mutates them under their lock and broadcasts the
// resulting snapshots once the lock is released.
type Coordinator struct {
	registry      *RoomRegistry
	broadcaster   i.Broadcaster
	publishers    []i.Publisher
	recorder      i.TurnRecorder
	logger        i.Logger
	recordTimeout time.Duration

	members   map[string]string // connection id -> room code
	membersMu sync.Mutex
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(c CoordinatorConfig) (*Coordinator, error) {
	if c.Registry == nil {
		return nil, ErrNilRegistry
	}
	if c.Broadcaster == nil {
		return nil, ErrNilBroadcaster
	}
	if c.Logger == nil {
		return nil, ErrNilLogger
	}
	if c.RecordTimeout <= 0 {
		c.RecordTimeout = defaultRecordTimeout
	}

	return &Coordinator{
		registry:      c.Registry,
		broadcaster:   c.Broadcaster,
		publishers:    c.Publishers,
		recorder:      c.Recorder,
		logger:        c.Logger,
		recordTimeout: c.RecordTimeout,
		members:       make(map[string]string),
	}, nil
}

// RoomOf returns the code of the room the connection is in.
func (c *Coordinator) RoomOf(connID string) (string, bool) {
	c.membersMu.Lock()
	defer c.membersMu.Unlock()
	code, ok := c.members[connID]
	return code, ok
}

func (c *Coordinator) setMember(connID, code string) {
	c.membersMu.Lock()
	c.members[connID] = code
	c.membersMu.Unlock()
}

// dropMember forgets the membership only if it still points at code.
func (c *Coordinator) dropMember(connID, code string) {
	c.membersMu.Lock()
	if c.members[connID] == code {
		delete(c.members, connID)
	}
	c.membersMu.Unlock()
}

// CreateRoom opens a new room with the connection as creator. A connection
// already in another room leaves it once the new room exists.
func (c *Coordinator) CreateRoom(ctx context.Context, connID string, profile game.Profile) (game.RoomSnapshot, error) {
	room, err := c.registry.Create(ctx, connID, profile)
	if err != nil {
		return game.RoomSnapshot{}, err
	}

	snap := readSnapshot(room)

	c.switchRoom(connID, snap.Code)
	c.broadcast(snap.Code, EventRoomUpdate, snap)
	return snap, nil
}

// JoinRoom adds the connection to the room registered under code, or updates
// its profile when it is already a member.
func (c *Coordinator) JoinRoom(ctx context.Context, connID, code string, profile game.Profile) (game.RoomSnapshot, error) {
	room, ok := c.registry.Lookup(code)
	if !ok {
		return game.RoomSnapshot{}, ErrRoomNotFound
	}

	snap, err := join(room, connID, profile)
	if err != nil {
		return game.RoomSnapshot{}, err
	}

	c.switchRoom(connID, code)
	c.broadcast(code, EventRoomUpdate, snap)
	return snap, nil
}

// switchRoom records code as the connection's room, leaving the previous one.
func (c *Coordinator) switchRoom(connID, code string) {
	if prev, ok := c.RoomOf(connID); ok && prev != code {
		if err := c.leave(prev, connID); err != nil {
			c.logger.Warning(fmt.Sprintf("leaving room %s for %s: %s", prev, code, err))
		}
	}
	c.setMember(connID, code)
	c.broadcaster.Subscribe(code, connID)
}

// StartGame moves the caller's room out of the lobby. Starting a running game
// is a no-op.
func (c *Coordinator) StartGame(ctx context.Context, connID string) error {
	room, err := c.roomOf(connID)
	if err != nil {
		return err
	}

	started, snap, err := start(room, connID)
	if err != nil {
		return err
	}

	if started {
		c.logger.Info(fmt.Sprintf("room %s started", snap.Code))
		c.broadcast(snap.Code, EventGameStarted, snap)
	}
	return nil
}

// SubmitChoice stores the caller's choice for the current turn. An empty code
// falls back to the caller's room.
func (c *Coordinator) SubmitChoice(ctx context.Context, connID, code string, raw RawChoice) error {
	if code == "" {
		code, _ = c.RoomOf(connID)
	}
	room, ok := c.registry.Lookup(code)
	if !ok {
		return ErrRoomNotFound
	}

	room.Lock()
	defer room.Unlock()

	if room.Closed() {
		return ErrRoomNotFound
	}
	player, ok := room.Player(connID)
	if !ok {
		return game.ErrPlayerNotInRoom
	}
	if player.IsSpectator() {
		return game.ErrSpectatorCannotPlay
	}

	choice, err := raw.Parse()
	if err != nil {
		return err
	}
	return room.Submit(connID, choice)
}

// AdvanceTurn runs one turn of the caller's room.
func (c *Coordinator) AdvanceTurn(ctx context.Context, connID string) error {
	room, err := c.roomOf(connID)
	if err != nil {
		return err
	}

	moved, snap, err := advance(room, connID)
	if err != nil {
		return err
	}

	c.broadcast(snap.Code, EventTurnAdvanced, snap)
	if moved {
		c.broadcast(snap.Code, EventRoomUpdate, snap)
	}
	c.record(snap)
	return nil
}

// LeaveRoom removes the caller from its room.
func (c *Coordinator) LeaveRoom(ctx context.Context, connID string) error {
	code, ok := c.RoomOf(connID)
	if !ok {
		return ErrNotInRoom
	}
	return c.leave(code, connID)
}

// Disconnect is LeaveRoom for a connection that went away.
func (c *Coordinator) Disconnect(connID string) {
	code, ok := c.RoomOf(connID)
	if !ok {
		return
	}
	if err := c.leave(code, connID); err != nil {
		c.logger.Warning(fmt.Sprintf("disconnecting %s from room %s: %s", connID, code, err))
	}
}

func (c *Coordinator) leave(code, connID string) error {
	c.dropMember(connID, code)
	c.broadcaster.Unsubscribe(code, connID)

	room, ok := c.registry.Lookup(code)
	if !ok {
		return ErrNotInRoom
	}

	snap, destroyed, err := c.removeMember(room, code, connID)
	if err != nil {
		return err
	}
	if !destroyed {
		c.broadcast(code, EventRoomUpdate, snap)
	}
	return nil
}

// The helpers below hold the room lock for one mutation and release it
// through defer, so a fault inside the room never leaves it locked.

func join(room *game.Room, connID string, profile game.Profile) (game.RoomSnapshot, error) {
	room.Lock()
	defer room.Unlock()
	if _, err := room.Join(connID, profile); err != nil {
		return game.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

func start(room *game.Room, connID string) (bool, game.RoomSnapshot, error) {
	room.Lock()
	defer room.Unlock()
	started, err := room.Start(connID)
	if err != nil {
		return false, game.RoomSnapshot{}, err
	}
	return started, room.Snapshot(), nil
}

// advance runs one turn and reports whether the global best changed.
func advance(room *game.Room, connID string) (bool, game.RoomSnapshot, error) {
	room.Lock()
	defer room.Unlock()
	before := room.GlobalBest()
	if err := room.Advance(connID); err != nil {
		return false, game.RoomSnapshot{}, err
	}
	return !sameGlobalBest(before, room.GlobalBest()), room.Snapshot(), nil
}

func (c *Coordinator) removeMember(room *game.Room, code, connID string) (game.RoomSnapshot, bool, error) {
	room.Lock()
	defer room.Unlock()
	if _, err := room.Leave(connID); err != nil {
		return game.RoomSnapshot{}, false, ErrNotInRoom
	}
	if c.registry.DestroyIfEmpty(code) {
		return game.RoomSnapshot{}, true, nil
	}
	return room.Snapshot(), false, nil
}

// roomOf resolves the room of a connection for intents that carry no code.
func (c *Coordinator) roomOf(connID string) (*game.Room, error) {
	code, ok := c.RoomOf(connID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	room, ok := c.registry.Lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (c *Coordinator) broadcast(code string, kind EventType, snap game.RoomSnapshot) {
	msg, err := json.Marshal(Event{Type: kind, Data: snap})
	if err != nil {
		c.logger.Error(fmt.Sprintf("encoding %s for room %s: %s", kind, code, err))
		return
	}

	c.broadcaster.Broadcast(code, msg)
	for _, p := range c.publishers {
		p.Publish(code, msg)
	}
}

func (c *Coordinator) record(snap game.RoomSnapshot) {
	if c.recorder == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.recordTimeout)
		defer cancel()
		if err := c.recorder.Record(ctx, snap); err != nil {
			c.logger.Warning(fmt.Sprintf("recording turn %d of room %s: %s", snap.Turn, snap.Code, err))
		}
	}()
}

func readSnapshot(room *game.Room) game.RoomSnapshot {
	room.RLock()
	defer room.RUnlock()
	return room.Snapshot()
}

func sameGlobalBest(a, b *game.GlobalBest) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
