package game

import "math"

// rastriginA is the amplitude of the cosine term.
const rastriginA = 10.0

// Objective scores a position on the arena. Lower is better.
//
// f(x, y) = 2A + (x² − A·cos(2πx)) + (y² − A·cos(2πy)), A = 10.
// The global minimum is 0 at the origin, surrounded by a grid of local minima.
func Objective(p Vector2) float64 {
	return 2*rastriginA +
		(p.X*p.X - rastriginA*math.Cos(2*math.Pi*p.X)) +
		(p.Y*p.Y - rastriginA*math.Cos(2*math.Pi*p.Y))
}
