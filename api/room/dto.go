package roomapi

import "github.com/beka-birhanu/vinom-swarm/game"

// ListRoomsResponse lists the live rooms.
type ListRoomsResponse struct {
	Rooms []game.RoomSummary `json:"rooms"`
	Total int                `json:"total"`
}

// CountResponse carries the number of live rooms.
type CountResponse struct {
	Total int `json:"total"`
}

// HealthResponse reports that the process serves requests.
type HealthResponse struct {
	Status string `json:"status"`
	Rooms  int    `json:"rooms"`
}

// HistoryResponse carries the recorded turns of one room.
type HistoryResponse struct {
	Code   string           `json:"code"`
	RoomID string           `json:"roomId"`
	Turns  []game.TurnEntry `json:"turns"`
}
