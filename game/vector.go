/*
Package game implements the swarm arena simulation.

A Room holds the players of one match together with the shared global best
point. Each turn every non-spectator player moves according to a
particle-swarm update driven by the coefficients it submitted (c1, c2, w),
and personal/global bests are tracked against a fixed multimodal objective.

Room values are not safe for concurrent use on their own; callers serialize
access through the embedded RWMutex.
*/
package game

// Vector2 is a position or displacement on the arena plane.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by k.
func (v Vector2) Scale(k float64) Vector2 {
	return Vector2{X: v.X * k, Y: v.Y * k}
}

// Clamp clamps both components into [lo, hi].
func (v Vector2) Clamp(lo, hi float64) Vector2 {
	return Vector2{X: Clamp(v.X, lo, hi), Y: Clamp(v.Y, lo, hi)}
}

// Clamp limits x to the closed interval [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
