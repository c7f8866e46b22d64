package game

import "time"

// PointView is the wire form of a BestPoint.
type PointView struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// GlobalBestView is the wire form of a GlobalBest.
type GlobalBestView struct {
	PointView
	PlayerID string `json:"playerId"`
}

// PlayerSnapshot is an immutable view of a Player.
type PlayerSnapshot struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Emoji         string    `json:"emoji"`
	Color         string    `json:"color"`
	Role          Role      `json:"role"`
	Pos           Vector2   `json:"pos"`
	Vel           Vector2   `json:"vel"`
	PBest         PointView `json:"pbest"`
	PendingChoice *Choice   `json:"pendingChoice"`
	LastActiveAt  time.Time `json:"lastActiveAt"`
}

// RoomSnapshot is an immutable, transport-ready view of a Room.
type RoomSnapshot struct {
	ID         string           `json:"id"`
	Code       string           `json:"code"`
	CreatorID  string           `json:"creatorId"`
	CreatedAt  time.Time        `json:"createdAt"`
	Started    bool             `json:"started"`
	Turn       int              `json:"turn"`
	MaxPlayers int              `json:"maxPlayers"`
	GlobalBest *GlobalBestView  `json:"gbest"`
	Players    []PlayerSnapshot `json:"players"`
}

// RoomSummary is the listing entry of a room.
type RoomSummary struct {
	Code        string    `json:"code"`
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	PlayerCount int       `json:"playerCount"`
	Started     bool      `json:"started"`
}

func pointView(b BestPoint) PointView {
	return PointView{X: b.Pos.X, Y: b.Pos.Y, Score: b.Score}
}

// Snapshot projects the room into a RoomSnapshot. It shares no memory with
// the room, so it can be encoded after the lock is released.
func (r *Room) Snapshot() RoomSnapshot {
	s := RoomSnapshot{
		ID:         r.id,
		Code:       r.code,
		CreatorID:  r.creatorID,
		CreatedAt:  r.createdAt,
		Started:    r.started,
		Turn:       r.turn,
		MaxPlayers: r.maxPlayers,
		Players:    make([]PlayerSnapshot, 0, len(r.order)),
	}

	if r.gbest != nil {
		s.GlobalBest = &GlobalBestView{PointView: pointView(r.gbest.BestPoint), PlayerID: r.gbest.PlayerID}
	}

	for _, id := range r.order {
		p := r.players[id]
		ps := PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Emoji:        p.Emoji,
			Color:        p.Color,
			Role:         p.Role,
			Pos:          p.Pos,
			Vel:          p.Vel,
			PBest:        pointView(p.PBest),
			LastActiveAt: p.LastActiveAt,
		}
		if p.Pending != nil {
			c := *p.Pending
			ps.PendingChoice = &c
		}
		s.Players = append(s.Players, ps)
	}

	return s
}

// Summary returns the listing entry of the room.
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		Code:        r.code,
		ID:          r.id,
		CreatedAt:   r.createdAt,
		PlayerCount: len(r.order),
		Started:     r.started,
	}
}

// PlayerTrace is the recorded state of one member after a turn.
type PlayerTrace struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Role   Role      `json:"role"`
	Pos    Vector2   `json:"pos"`
	Vel    Vector2   `json:"vel"`
	PBest  PointView `json:"pbest"`
	Choice *Choice   `json:"choice,omitempty"` // coefficients used for the turn, if submitted
}

// TurnEntry is one finished turn as kept in the turn history.
type TurnEntry struct {
	Turn       int             `json:"turn"`
	GlobalBest *GlobalBestView `json:"gbest"`
	Players    []PlayerTrace   `json:"players"`
	RecordedAt time.Time       `json:"recordedAt"`
}
