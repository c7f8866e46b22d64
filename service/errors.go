package service

import (
	"errors"

	"github.com/beka-birhanu/vinom-swarm/game"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotInRoom    = errors.New("connection is not in a room")
	ErrBadInput     = errors.New("bad input")
)

// ErrorCode is the failure code carried by a negative Ack.
type ErrorCode string

const (
	CodeRoomNotFound        ErrorCode = "ROOM_NOT_FOUND"
	CodeRoomFull            ErrorCode = "ROOM_FULL"
	CodeNotCreator          ErrorCode = "NOT_CREATOR"
	CodeNotStarted          ErrorCode = "NOT_STARTED"
	CodePlayerNotInRoom     ErrorCode = "PLAYER_NOT_IN_ROOM"
	CodeSpectatorCannotPlay ErrorCode = "SPECTATOR_CANNOT_PLAY"
	CodeBadInput            ErrorCode = "BAD_INPUT"
	CodeNotInRoom           ErrorCode = "NOT_IN_ROOM"
	CodeCreateFailed        ErrorCode = "CREATE_FAILED"
	CodeJoinFailed          ErrorCode = "JOIN_FAILED"
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// CodeOf maps err to its wire code. Errors outside the domain map to fallback.
func CodeOf(err error, fallback ErrorCode) ErrorCode {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, game.ErrRoomClosed):
		return CodeRoomNotFound
	case errors.Is(err, game.ErrRoomFull):
		return CodeRoomFull
	case errors.Is(err, game.ErrNotCreator):
		return CodeNotCreator
	case errors.Is(err, game.ErrNotStarted):
		return CodeNotStarted
	case errors.Is(err, game.ErrPlayerNotInRoom):
		return CodePlayerNotInRoom
	case errors.Is(err, game.ErrSpectatorCannotPlay):
		return CodeSpectatorCannotPlay
	case errors.Is(err, ErrBadInput):
		return CodeBadInput
	case errors.Is(err, ErrNotInRoom):
		return CodeNotInRoom
	default:
		return fallback
	}
}
