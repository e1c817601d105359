package routing

type evaluation struct {
	cost      float64
	travel    int
	arrivals  []int
	fixedLate int
}

// betterThan orders evaluations by cost, then by fewer Fixed visits off
// their original times. Equal evaluations are not better, so the first one
// found wins.
func (e evaluation) betterThan(o evaluation) bool {
	if e.cost != o.cost {
		return e.cost < o.cost
	}
	return e.fixedLate < o.fixedLate
}

// evaluate walks the tour from the start depot. Each arc costs its travel
// time plus the service time of the node being left. Service starts no
// earlier than the window opens; starting after the latest start, ending
// past the day boundary and skipping Low visits add penalties.
func (s *AnnealingSolver) evaluate(p *Problem, t tour) evaluation {
	e := evaluation{arrivals: make([]int, 0, len(t.order)+2)}
	dayEnd := p.dayEnd()

	clock := p.DepartAt
	prevPlace, prevService := p.Start, 0
	e.arrivals = append(e.arrivals, clock)

	for _, node := range t.order {
		v := p.Visits[VisitIndex(node)]
		leg := p.Travel[prevPlace][v.Place]
		clock += prevService + leg
		e.travel += leg
		e.cost += float64(leg + prevService)

		if clock < v.Window.Start {
			clock = v.Window.Start
		}
		if late := clock - v.latestStart(); late > 0 {
			e.cost += s.cfg.LatePenalty * float64(late)
			if v.Fixed() {
				e.cost += s.cfg.FixedPenalty
				e.fixedLate++
			}
		}
		if over := clock + v.Duration - dayEnd; over > 0 {
			e.cost += s.cfg.OverflowPenalty * float64(over)
		}

		e.arrivals = append(e.arrivals, clock)
		prevPlace, prevService = v.Place, v.Duration
	}

	leg := p.Travel[prevPlace][p.End]
	clock += prevService + leg
	e.travel += leg
	e.cost += float64(leg + prevService)
	e.arrivals = append(e.arrivals, clock)

	e.cost += s.cfg.SkipPenalty * float64(len(t.skipped))
	return e
}
