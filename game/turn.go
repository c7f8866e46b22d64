package game

// dt is the simulated time elapsed per turn.
const dt = 1.0

// Step advances a started room by one turn.
//
// Every non-spectator moves with
//
//	vel' = w·vel + c1·(pbest − pos) + c2·(gbest − pos)
//	pos' = clamp(pos + vel'·dt)
//
// using its pending choice or DefaultChoice. All players steer towards the
// global best as it was before the turn; it is recomputed once afterwards.
func Step(r *Room) error {
	if !r.started {
		return ErrNotStarted
	}

	gbest := r.GlobalBest()
	now := r.clock()

	for _, id := range r.order {
		p := r.players[id]
		if p.IsSpectator() {
			continue
		}

		choice := DefaultChoice
		if p.Pending != nil {
			choice = *p.Pending
		}
		choice = choice.Clamped()

		target := p.Pos
		if gbest != nil {
			target = gbest.Pos
		}
		toPbest := p.PBest.Pos.Sub(p.Pos)
		toGbest := target.Sub(p.Pos)

		vel := p.Vel.Scale(choice.W).
			Add(toPbest.Scale(choice.C1)).
			Add(toGbest.Scale(choice.C2))
		pos := p.Pos.Add(vel.Scale(dt)).Clamp(ArenaMin, ArenaMax)

		p.Vel = vel
		p.Pos = pos
		p.improve(pos, Objective(pos))
		p.Pending = nil
		p.LastActiveAt = now
	}

	r.turn++
	r.recomputeGlobalBest()
	return nil
}
