package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/beka-birhanu/vinom-swarm/game"
	"github.com/beka-birhanu/vinom-swarm/logger"
	"github.com/beka-birhanu/vinom-swarm/service/i"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	Code string
	Type EventType
	Room game.RoomSnapshot
}

type fakeBroadcaster struct {
	subs   map[string]map[string]bool
	events []sentEvent
	sync.Mutex
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{subs: make(map[string]map[string]bool)}
}

func (f *fakeBroadcaster) Subscribe(code, connID string) {
	f.Lock()
	defer f.Unlock()
	if f.subs[code] == nil {
		f.subs[code] = make(map[string]bool)
	}
	f.subs[code][connID] = true
}

func (f *fakeBroadcaster) Unsubscribe(code, connID string) {
	f.Lock()
	defer f.Unlock()
	delete(f.subs[code], connID)
}

func (f *fakeBroadcaster) Broadcast(code string, msg []byte) {
	var e struct {
		Type EventType         `json:"type"`
		Data game.RoomSnapshot `json:"data"`
	}
	if err := json.Unmarshal(msg, &e); err != nil {
		panic(err)
	}

	f.Lock()
	defer f.Unlock()
	f.events = append(f.events, sentEvent{Code: code, Type: e.Type, Room: e.Data})
}

func (f *fakeBroadcaster) subscribed(code, connID string) bool {
	f.Lock()
	defer f.Unlock()
	return f.subs[code][connID]
}

func (f *fakeBroadcaster) types() []EventType {
	f.Lock()
	defer f.Unlock()
	types := make([]EventType, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

func (f *fakeBroadcaster) last() sentEvent {
	f.Lock()
	defer f.Unlock()
	return f.events[len(f.events)-1]
}

func (f *fakeBroadcaster) reset() {
	f.Lock()
	defer f.Unlock()
	f.events = nil
}

type fakePublisher struct {
	codes []string
	sync.Mutex
}

func (f *fakePublisher) Publish(code string, msg []byte) {
	f.Lock()
	defer f.Unlock()
	f.codes = append(f.codes, code)
}

type fakeReserver struct {
	held      map[string]bool
	released  chan string
	refreshed [][]string
	err       error
	sync.Mutex
}

func newFakeReserver(held ...string) *fakeReserver {
	f := &fakeReserver{held: make(map[string]bool), released: make(chan string, 16)}
	for _, code := range held {
		f.held[code] = true
	}
	return f
}

func (f *fakeReserver) Reserve(ctx context.Context, code string) (bool, error) {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held[code] {
		return false, nil
	}
	f.held[code] = true
	return true, nil
}

func (f *fakeReserver) Release(ctx context.Context, code string) error {
	f.Lock()
	delete(f.held, code)
	f.Unlock()
	f.released <- code
	return nil
}

func (f *fakeReserver) Refresh(ctx context.Context, codes ...string) error {
	f.Lock()
	defer f.Unlock()
	if f.err != nil {
		return f.err
	}
	f.refreshed = append(f.refreshed, codes)
	return nil
}

func (f *fakeReserver) refreshes() [][]string {
	f.Lock()
	defer f.Unlock()
	return append([][]string(nil), f.refreshed...)
}

type fakeRecorder struct {
	turns chan game.RoomSnapshot
}

func (f *fakeRecorder) Record(ctx context.Context, snap game.RoomSnapshot) error {
	f.turns <- snap
	return nil
}

var errBoom = errors.New("boom")

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("TEST", "", io.Discard)
	require.NoError(t, err)
	return l
}

// sequentialCodes hands out the given codes in order, then numbered ones.
func sequentialCodes(codes ...string) func() string {
	n := 0
	return func() string {
		if len(codes) > 0 {
			c := codes[0]
			codes = codes[1:]
			return c
		}
		n++
		return fmt.Sprintf("%06d", 200000+n)
	}
}

// spawnAt hands out the given positions in order, then the origin.
func spawnAt(points ...game.Vector2) game.Spawner {
	var mu sync.Mutex
	return func() game.Vector2 {
		mu.Lock()
		defer mu.Unlock()
		if len(points) == 0 {
			return game.Vector2{}
		}
		p := points[0]
		points = points[1:]
		return p
	}
}

type fixture struct {
	registry    *RoomRegistry
	coordinator *Coordinator
	dispatcher  *Dispatcher
	broadcaster *fakeBroadcaster
	publisher   *fakePublisher
	recorder    *fakeRecorder
}

func newFixture(t *testing.T, points ...game.Vector2) *fixture {
	t.Helper()
	log := testLogger(t)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	registry, err := NewRoomRegistry(RegistryConfig{
		Spawn:   spawnAt(points...),
		Logger:  log,
		NewCode: sequentialCodes(),
		Clock:   func() time.Time { return clock },
	})
	require.NoError(t, err)

	f := &fixture{
		registry:    registry,
		broadcaster: newFakeBroadcaster(),
		publisher:   &fakePublisher{},
		recorder:    &fakeRecorder{turns: make(chan game.RoomSnapshot, 16)},
	}

	f.coordinator, err = NewCoordinator(CoordinatorConfig{
		Registry:    registry,
		Broadcaster: f.broadcaster,
		Publishers:  []i.Publisher{f.publisher},
		Recorder:    f.recorder,
		Logger:      log,
	})
	require.NoError(t, err)

	f.dispatcher, err = NewDispatcher(f.coordinator, log)
	require.NoError(t, err)
	return f
}
