package i

import (
	"context"

	"github.com/beka-birhanu/vinom-swarm/game"
)

// TurnRecorder appends the room state reached after a turn to an audit trail.
type TurnRecorder interface {
	Record(ctx context.Context, snap game.RoomSnapshot) error
}

// TurnHistory reads back the turns recorded for a room.
type TurnHistory interface {
	History(ctx context.Context, roomID string) ([]game.TurnEntry, error)
}
