package i

import "github.com/beka-birhanu/vinom-swarm/game"

// RoomDirectory is the read-only view of the live rooms.
type RoomDirectory interface {
	// List returns every live room, oldest first.
	List() []game.RoomSummary

	// Count returns the number of live rooms.
	Count() int

	// Snapshot returns the state of the room registered under code.
	Snapshot(code string) (game.RoomSnapshot, bool)
}
