// README: Planner service runs the pipeline: matrix, solve, select modes, materialize.
package planner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"calroute/internal/modules/routing"
	"calroute/internal/modules/schedule"
	"calroute/internal/modules/travel"
	"calroute/internal/obs"
	"calroute/internal/types"
)

type Config struct {
	Location *time.Location
	// DayStart is the default departure, in minutes after midnight.
	DayStart     int
	DefaultModes []travel.Mode
}

type Deps struct {
	Builder      *travel.MatrixBuilder
	Solver       routing.Solver
	Selector     *travel.ModeSelector
	Materializer *schedule.Materializer
	// POI is optional; without it location-less tasks are dropped.
	POI POISearcher
}

type Service struct {
	builder      *travel.MatrixBuilder
	solver       routing.Solver
	selector     *travel.ModeSelector
	materializer *schedule.Materializer
	poi          POISearcher
	cfg          Config
	now          func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.DayStart <= 0 {
		cfg.DayStart = 8 * 60
	}
	if len(travel.NormalizeModes(cfg.DefaultModes)) == 0 {
		cfg.DefaultModes = []travel.Mode{travel.ModeCar}
	}
	if deps.Selector == nil {
		deps.Selector = travel.NewModeSelector(travel.DefaultSelectorConfig())
	}
	if deps.Materializer == nil {
		deps.Materializer = schedule.NewMaterializer(schedule.DefaultConfig())
	}
	return &Service{
		builder:      deps.Builder,
		solver:       deps.Solver,
		selector:     deps.Selector,
		materializer: deps.Materializer,
		poi:          deps.POI,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Plan builds the schedule for one day. Infeasible Fixed visits surface as
// an error matching routing.ErrInfeasible; everything softer is reported in
// the result.
func (s *Service) Plan(ctx context.Context, req Request) (_ *Result, err error) {
	runID := uuid.NewString()
	if obs.RequestID(ctx) == "" {
		ctx = obs.WithRequestID(ctx, runID)
	}
	defer obs.Time(ctx, "planner.Plan")(&err)

	if req.Depot.Key == "" {
		return nil, fmt.Errorf("%w: depot location is required", ErrBadRequest)
	}
	day := req.Day
	if day.IsZero() {
		day = s.now()
	}
	day = day.In(s.cfg.Location)
	anchor := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.cfg.Location)

	departAt := s.cfg.DayStart
	if req.DepartAt != nil {
		departAt = int(req.DepartAt.Sub(anchor) / time.Minute)
		if departAt < 0 || departAt >= routing.MinutesPerDay {
			return nil, fmt.Errorf("%w: departure %s is not on %s", ErrBadRequest, req.DepartAt.Format(time.RFC3339), anchor.Format(time.DateOnly))
		}
	}

	modes := travel.NormalizeModes(req.Modes)
	if len(modes) == 0 {
		modes = travel.NormalizeModes(s.cfg.DefaultModes)
	}

	tasks := s.resolveLocations(ctx, req)
	endDepot := req.Depot
	if req.EndDepot != nil && req.EndDepot.Key != "" {
		endDepot = *req.EndDepot
	}
	prep := prepare(anchor, departAt, req.Depot, endDepot, tasks)

	matrix, err := s.builder.Build(ctx, prep.places, modes)
	if err != nil {
		return nil, fmt.Errorf("plan: build matrix: %w", err)
	}

	problem := &routing.Problem{
		Travel:   matrix.Minutes,
		Start:    0,
		End:      len(prep.places) - 1,
		Visits:   prep.visits,
		DepartAt: departAt,
	}
	sol, err := s.solver.Solve(ctx, problem)
	if err != nil {
		return nil, fmt.Errorf("plan: solve route: %w", err)
	}

	legs := s.selector.Select(sol.PlaceRoute(problem), matrix, modes)
	sched, err := s.materializer.Materialize(schedule.Input{
		Anchor:   anchor,
		Problem:  problem,
		Solution: sol,
		Legs:     legs,
	})
	if err != nil {
		return nil, fmt.Errorf("plan: materialize: %w", err)
	}

	res := &Result{
		RunID:         runID,
		Day:           anchor.Format(time.DateOnly),
		Slots:         sched.Slots,
		Violations:    sched.Violations,
		Dropped:       append(prep.dropped, sched.Dropped...),
		ReturnAt:      sched.ReturnAt,
		Legs:          legs,
		Gaps:          matrix.Gaps,
		TravelMinutes: sol.TravelMinutes,
		Stats:         sol.Stats,
		Places:        prep.places,
	}
	if res.Gaps == nil {
		res.Gaps = []travel.DataGap{}
	}
	log.Printf("[PLANNER] run=%s user=%s day=%s slots=%d dropped=%d violations=%d gaps=%d",
		runID, req.UserID, res.Day, len(res.Slots), len(res.Dropped), len(res.Violations), len(res.Gaps))
	return res, nil
}

// resolveLocations fills in tasks that name a place type instead of a
// location, searching around the centroid of the located tasks (or the
// depot). Failures leave the task unresolved.
func (s *Service) resolveLocations(ctx context.Context, req Request) []Task {
	tasks := append([]Task(nil), req.Tasks...)
	if s.poi == nil {
		return tasks
	}

	var points []types.Point
	for _, t := range tasks {
		if t.Place != nil && t.Place.HasCoords() {
			points = append(points, *t.Place.Point)
		}
	}
	center, ok := travel.Centroid(points)
	if !ok && req.Depot.HasCoords() {
		center, ok = *req.Depot.Point, true
	}
	if !ok {
		return tasks
	}

	for i := range tasks {
		if tasks[i].Place != nil || tasks[i].PlaceType == "" {
			continue
		}
		place, err := s.poi.NearestPOI(ctx, tasks[i].PlaceType, center)
		if err != nil {
			log.Printf("[PLANNER] no %q near %s for task %s: %v", tasks[i].PlaceType, center, tasks[i].ID, err)
			continue
		}
		tasks[i].Place = &place
	}
	return tasks
}
