package service

// EventType names a broadcast event.
type EventType string

const (
	EventRoomUpdate   EventType = "room_update"
	EventGameStarted  EventType = "game_started"
	EventTurnAdvanced EventType = "turn_advanced"
)

// Event is the envelope broadcast to room subscribers.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}
