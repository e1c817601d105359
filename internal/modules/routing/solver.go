// README: Route solver contract and the simulated-annealing implementation.
package routing

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"calroute/internal/obs"
)

// Solver orders visits into a single route. Implementations return the best
// route found within their budget, or an *InfeasibleError when Fixed
// visits cannot all be honored.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}

type AnnealingConfig struct {
	InitialTemp   float64
	Cooling       float64
	MinTemp       float64
	MaxIterations int
	TimeBudget    time.Duration
	Seed          int64

	// Penalties, in cost units where one unit is one minute of travel or service.
	LatePenalty     float64
	FixedPenalty    float64
	SkipPenalty     float64
	OverflowPenalty float64
}

func DefaultAnnealingConfig() AnnealingConfig {
	return AnnealingConfig{
		InitialTemp:     1000,
		Cooling:         0.995,
		MinTemp:         1e-3,
		MaxIterations:   20000,
		TimeBudget:      5 * time.Second,
		Seed:            1,
		LatePenalty:     1000,
		FixedPenalty:    10000,
		SkipPenalty:     1000,
		OverflowPenalty: 10,
	}
}

// AnnealingSolver searches pairwise swaps of visit positions, plus
// skip/restore moves for Flexible-Low visits, under geometric cooling.
// A fixed seed makes runs reproducible when the iteration cap is reached
// before the time budget.
type AnnealingSolver struct {
	cfg AnnealingConfig
}

func NewAnnealingSolver(cfg AnnealingConfig) *AnnealingSolver {
	def := DefaultAnnealingConfig()
	if cfg.InitialTemp <= 0 {
		cfg.InitialTemp = def.InitialTemp
	}
	if cfg.Cooling <= 0 || cfg.Cooling >= 1 {
		cfg.Cooling = def.Cooling
	}
	if cfg.MinTemp <= 0 {
		cfg.MinTemp = def.MinTemp
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = def.TimeBudget
	}
	if cfg.LatePenalty <= 0 {
		cfg.LatePenalty = def.LatePenalty
	}
	if cfg.FixedPenalty <= 0 {
		cfg.FixedPenalty = def.FixedPenalty
	}
	if cfg.SkipPenalty <= 0 {
		cfg.SkipPenalty = def.SkipPenalty
	}
	if cfg.OverflowPenalty <= 0 {
		cfg.OverflowPenalty = def.OverflowPenalty
	}
	return &AnnealingSolver{cfg: cfg}
}

// tour is the mutable search state: visit node ids in order plus the
// Flexible-Low nodes currently dropped.
type tour struct {
	order   []int
	skipped []int
}

func (t tour) clone() tour {
	return tour{
		order:   append([]int(nil), t.order...),
		skipped: append([]int(nil), t.skipped...),
	}
}

func (s *AnnealingSolver) Solve(ctx context.Context, p *Problem) (_ *Solution, err error) {
	defer obs.Time(ctx, "routing.Solve")(&err)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := CheckFixedConflicts(p); err != nil {
		return nil, err
	}

	initial := s.initialTour(p)
	initialEval := s.evaluate(p, initial)
	if len(p.Visits) <= 1 {
		return s.solution(p, initial, initialEval, Stats{}), nil
	}

	var low []int
	for i, v := range p.Visits {
		if v.Priority == PriorityFlexibleLow {
			low = append(low, i+1)
		}
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	deadline := time.Now().Add(s.cfg.TimeBudget)
	temp := s.cfg.InitialTemp

	cur, curEval := initial.clone(), initialEval
	best, bestEval := initial.clone(), initialEval
	var stats Stats

	for stats.Iterations < s.cfg.MaxIterations {
		if stats.Iterations%64 == 0 && (ctx.Err() != nil || time.Now().After(deadline)) {
			break
		}
		stats.Iterations++

		cand, ok := neighbor(rng, cur, low)
		if !ok {
			break
		}
		candEval := s.evaluate(p, cand)

		delta := candEval.cost - curEval.cost
		if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
			if delta > 0 {
				stats.AcceptedWorse++
			}
			cur, curEval = cand, candEval
		}
		if candEval.betterThan(bestEval) {
			best, bestEval = cand.clone(), candEval
			stats.Improvements++
		}
		temp = math.Max(temp*s.cfg.Cooling, s.cfg.MinTemp)
	}

	// The initial tour honors every Fixed visit that can be honored, so never
	// hand back something worse on that front.
	if bestEval.fixedLate > initialEval.fixedLate {
		best, bestEval = initial, initialEval
	}

	log.Printf("[SOLVER] visits=%d iterations=%d improvements=%d cost=%.0f skipped=%d",
		len(p.Visits), stats.Iterations, stats.Improvements, bestEval.cost, len(best.skipped))
	return s.solution(p, best, bestEval, stats), nil
}

// initialTour pins Fixed visits in start order, then inserts flexible
// visits (High before Low, earlier windows first) at their cheapest
// position. A Low visit whose cheapest insertion costs more than skipping
// it starts out skipped.
func (s *AnnealingSolver) initialTour(p *Problem) tour {
	var fixed, flex []int
	for i, v := range p.Visits {
		if v.Fixed() {
			fixed = append(fixed, i+1)
		} else {
			flex = append(flex, i+1)
		}
	}
	sort.SliceStable(fixed, func(a, b int) bool {
		return p.Visits[fixed[a]-1].Window.Start < p.Visits[fixed[b]-1].Window.Start
	})
	sort.SliceStable(flex, func(a, b int) bool {
		va, vb := p.Visits[flex[a]-1], p.Visits[flex[b]-1]
		if va.Priority != vb.Priority {
			return va.Priority < vb.Priority
		}
		return va.Window.Start < vb.Window.Start
	})

	t := tour{order: fixed}
	for _, node := range flex {
		bestPos, bestCost := 0, math.Inf(1)
		for pos := 0; pos <= len(t.order); pos++ {
			cand := tour{order: insertAt(t.order, pos, node), skipped: t.skipped}
			if c := s.evaluate(p, cand).cost; c < bestCost {
				bestPos, bestCost = pos, c
			}
		}
		if p.Visits[node-1].Priority == PriorityFlexibleLow {
			skip := tour{order: t.order, skipped: append(append([]int(nil), t.skipped...), node)}
			if s.evaluate(p, skip).cost < bestCost {
				t = skip
				continue
			}
		}
		t = tour{order: insertAt(t.order, bestPos, node), skipped: t.skipped}
	}
	return t
}

// neighbor proposes a swap of two visit positions or, for one move in
// five when Low visits exist, toggles a Low visit in or out of the route.
func neighbor(rng *rand.Rand, t tour, low []int) (tour, bool) {
	canSwap := len(t.order) >= 2
	if len(low) > 0 && (!canSwap || rng.Intn(5) == 0) {
		node := low[rng.Intn(len(low))]
		next := t.clone()
		if idx := indexOf(next.order, node); idx >= 0 {
			next.order = append(next.order[:idx], next.order[idx+1:]...)
			next.skipped = append(next.skipped, node)
		} else {
			next.order = insertAt(next.order, rng.Intn(len(next.order)+1), node)
			next.skipped = removeValue(next.skipped, node)
		}
		return next, true
	}
	if !canSwap {
		return t, false
	}
	i := rng.Intn(len(t.order))
	j := rng.Intn(len(t.order) - 1)
	if j >= i {
		j++
	}
	next := t.clone()
	next.order[i], next.order[j] = next.order[j], next.order[i]
	return next, true
}

func (s *AnnealingSolver) solution(p *Problem, t tour, e evaluation, stats Stats) *Solution {
	route := make([]int, 0, len(t.order)+2)
	route = append(route, 0)
	route = append(route, t.order...)
	route = append(route, p.EndNode())

	skipped := make([]int, len(t.skipped))
	for i, node := range t.skipped {
		skipped[i] = VisitIndex(node)
	}
	sort.Ints(skipped)

	return &Solution{
		Route:         route,
		Arrivals:      e.arrivals,
		Skipped:       skipped,
		TravelMinutes: e.travel,
		Cost:          e.cost,
		Stats:         stats,
	}
}

func insertAt(order []int, pos, node int) []int {
	out := make([]int, 0, len(order)+1)
	out = append(out, order[:pos]...)
	out = append(out, node)
	return append(out, order[pos:]...)
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

func removeValue(xs []int, v int) []int {
	if i := indexOf(xs, v); i >= 0 {
		return append(xs[:i], xs[i+1:]...)
	}
	return xs
}
