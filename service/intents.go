package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beka-birhanu/vinom-swarm/game"
	"github.com/beka-birhanu/vinom-swarm/service/i"
)

// Intent names a client request.
type Intent string

const (
	IntentCreateRoom   Intent = "create_room"
	IntentJoinRoom     Intent = "join_room"
	IntentStartGame    Intent = "start_game"
	IntentSubmitChoice Intent = "submit_choice"
	IntentAdvanceTurn  Intent = "advance_turn"
	IntentLeaveRoom    Intent = "leave_room"
)

// Ack is the result of one intent.
type Ack struct {
	OK       bool               `json:"ok"`
	Error    ErrorCode          `json:"error,omitempty"`
	RoomCode string             `json:"roomCode,omitempty"`
	Room     *game.RoomSnapshot `json:"room,omitempty"`
}

func failure(code ErrorCode) Ack {
	return Ack{Error: code}
}

// fallbackCode is the code reported for faults outside the domain.
func fallbackCode(intent Intent) ErrorCode {
	switch intent {
	case IntentCreateRoom:
		return CodeCreateFailed
	case IntentJoinRoom:
		return CodeJoinFailed
	default:
		return CodeInternalError
	}
}

type profilePayload struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
	Role  string `json:"role"`
}

func (p profilePayload) profile() game.Profile {
	return game.Profile{
		Name:  p.Name,
		Emoji: p.Emoji,
		Color: p.Color,
		Role:  game.ParseRole(p.Role),
	}
}

// RoomCode accepts a join code sent either as a JSON string or a number.
type RoomCode string

func (c *RoomCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = RoomCode(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = RoomCode(n.String())
	return nil
}

type joinPayload struct {
	RoomCode RoomCode `json:"roomCode"`
	profilePayload
}

type submitPayload struct {
	RoomCode RoomCode `json:"roomCode"`
	RawChoice
}

// RawChoice is a choice as received from a client, before validation.
type RawChoice struct {
	C1 any `json:"c1"`
	C2 any `json:"c2"`
	W  any `json:"w"`
}

// Parse validates the coefficients. Numbers and numeric strings are accepted;
// anything else, including a missing field, is ErrBadInput.
func (r RawChoice) Parse() (game.Choice, error) {
	c1, err := coefficient("c1", r.C1)
	if err != nil {
		return game.Choice{}, err
	}
	c2, err := coefficient("c2", r.C2)
	if err != nil {
		return game.Choice{}, err
	}
	w, err := coefficient("w", r.W)
	if err != nil {
		return game.Choice{}, err
	}
	return game.NewChoice(c1, c2, w), nil
}

func coefficient(name string, v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", ErrBadInput, name)
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", ErrBadInput, name)
		}
		f = n
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrBadInput, name)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s is not finite", ErrBadInput, name)
	}
	return f, nil
}

// Dispatcher is the boundary between the transport and the Coordinator. It
// decodes payloads, maps errors to codes and never lets a panic escape.
type Dispatcher struct {
	coordinator *Coordinator
	logger      i.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(c *Coordinator, logger i.Logger) (*Dispatcher, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Dispatcher{coordinator: c, logger: logger}, nil
}

// Dispatch runs one intent for the connection and returns its Ack.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, intent Intent, payload json.RawMessage) (ack Ack) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Sprintf("panic handling %s for %s: %v", intent, connID, r))
			ack = failure(fallbackCode(intent))
		}
	}()

	switch intent {
	case IntentCreateRoom:
		var p profilePayload
		if err := decode(payload, &p); err != nil {
			return failure(CodeBadInput)
		}
		snap, err := d.coordinator.CreateRoom(ctx, connID, p.profile())
		if err != nil {
			return d.fail(intent, connID, err)
		}
		return Ack{OK: true, RoomCode: snap.Code, Room: &snap}

	case IntentJoinRoom:
		var p joinPayload
		if err := decode(payload, &p); err != nil {
			return failure(CodeBadInput)
		}
		snap, err := d.coordinator.JoinRoom(ctx, connID, string(p.RoomCode), p.profile())
		if err != nil {
			return d.fail(intent, connID, err)
		}
		return Ack{OK: true, Room: &snap}

	case IntentStartGame:
		return d.result(intent, connID, d.coordinator.StartGame(ctx, connID))

	case IntentSubmitChoice:
		var p submitPayload
		if err := decode(payload, &p); err != nil {
			return failure(CodeBadInput)
		}
		return d.result(intent, connID, d.coordinator.SubmitChoice(ctx, connID, string(p.RoomCode), p.RawChoice))

	case IntentAdvanceTurn:
		return d.result(intent, connID, d.coordinator.AdvanceTurn(ctx, connID))

	case IntentLeaveRoom:
		return d.result(intent, connID, d.coordinator.LeaveRoom(ctx, connID))

	default:
		return failure(CodeBadInput)
	}
}

// Disconnect releases everything the connection held.
func (d *Dispatcher) Disconnect(connID string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Sprintf("panic disconnecting %s: %v", connID, r))
		}
	}()
	d.coordinator.Disconnect(connID)
}

func (d *Dispatcher) result(intent Intent, connID string, err error) Ack {
	if err != nil {
		return d.fail(intent, connID, err)
	}
	return Ack{OK: true}
}

func (d *Dispatcher) fail(intent Intent, connID string, err error) Ack {
	fallback := fallbackCode(intent)
	code := CodeOf(err, fallback)
	if code == fallback {
		d.logger.Error(fmt.Sprintf("%s for %s: %s", intent, connID, err))
	}
	return failure(code)
}

func decode(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}
