package game

import (
	"strings"
	"time"
)

// Coefficient bounds applied to every submitted choice.
const (
	MinCoefficient = 0.0
	MaxCoefficient = 2.5
)

// Profile defaults applied at the boundary when a field is left empty.
const (
	DefaultName  = "Anonymous"
	DefaultEmoji = "🐝"
	DefaultColor = "#f59e0b"
)

// Role decides whether a member takes part in the simulation.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// ParseRole maps free-form input to a Role. Anything but "spectator" is a player.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleSpectator)) {
		return RoleSpectator
	}
	return RolePlayer
}

// Profile is the display metadata a member provides when creating or joining a room.
type Profile struct {
	Name  string
	Emoji string
	Color string
	Role  Role
}

// WithDefaults returns a copy of p with every empty field filled in.
func (p Profile) WithDefaults() Profile {
	if strings.TrimSpace(p.Name) == "" {
		p.Name = DefaultName
	}
	if strings.TrimSpace(p.Emoji) == "" {
		p.Emoji = DefaultEmoji
	}
	if strings.TrimSpace(p.Color) == "" {
		p.Color = DefaultColor
	}
	if p.Role != RoleSpectator {
		p.Role = RolePlayer
	}
	return p
}

// Choice holds the per-turn swarm coefficients of one player.
type Choice struct {
	C1 float64 `json:"c1"` // pull towards the personal best
	C2 float64 `json:"c2"` // pull towards the global best
	W  float64 `json:"w"`  // inertia
}

// DefaultChoice is used for players that did not submit anything for the turn.
var DefaultChoice = Choice{C1: 2, C2: 2, W: 0.7}

// NewChoice builds a clamped Choice.
func NewChoice(c1, c2, w float64) Choice {
	return Choice{C1: c1, C2: c2, W: w}.Clamped()
}

// Clamped returns c with every coefficient limited to [MinCoefficient, MaxCoefficient].
func (c Choice) Clamped() Choice {
	return Choice{
		C1: Clamp(c.C1, MinCoefficient, MaxCoefficient),
		C2: Clamp(c.C2, MinCoefficient, MaxCoefficient),
		W:  Clamp(c.W, MinCoefficient, MaxCoefficient),
	}
}

// BestPoint is a position together with its objective value.
type BestPoint struct {
	Pos   Vector2
	Score float64
}

// Player is the game state of one connection inside a room.
type Player struct {
	ID    string // transport connection id
	Name  string
	Emoji string
	Color string
	Role  Role

	Pos          Vector2
	Vel          Vector2
	PBest        BestPoint // best position this player ever occupied
	Pending      *Choice   // nil until submitted for the current turn
	LastActiveAt time.Time
}

func newPlayer(id string, p Profile, pos Vector2, now time.Time) *Player {
	player := &Player{
		ID:           id,
		Pos:          pos,
		PBest:        BestPoint{Pos: pos, Score: Objective(pos)},
		LastActiveAt: now,
	}
	player.applyProfile(p)
	return player
}

// IsSpectator reports whether the player is excluded from the simulation.
func (p *Player) IsSpectator() bool {
	return p.Role == RoleSpectator
}

func (p *Player) applyProfile(profile Profile) {
	p.Name = profile.Name
	p.Emoji = profile.Emoji
	p.Color = profile.Color
	p.Role = profile.Role
}

// improve replaces the personal best only on a strictly lower score.
func (p *Player) improve(pos Vector2, score float64) bool {
	if score < p.PBest.Score {
		p.PBest = BestPoint{Pos: pos, Score: score}
		return true
	}
	return false
}
