package planner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"calroute/internal/modules/planner"
	"calroute/internal/modules/routing"
	"calroute/internal/modules/schedule"
	"calroute/internal/modules/travel"
	"calroute/internal/testutil"
	"calroute/internal/types"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(minute int) time.Time {
	return day.Add(time.Duration(minute) * time.Minute)
}

func place(key string) *travel.Place {
	p := travel.NewPlace(key)
	return &p
}

func newService(p travel.Provider, poi planner.POISearcher) *planner.Service {
	return planner.NewService(planner.Deps{
		Builder: travel.NewMatrixBuilder(p, nil, travel.BuilderConfig{}),
		Solver:  routing.NewAnnealingSolver(routing.AnnealingConfig{MaxIterations: 500}),
		POI:     poi,
	}, planner.Config{Location: time.UTC, DayStart: 480})
}

func TestPlan_SingleFlexibleTask(t *testing.T) {
	p := testutil.NewMockProvider()
	p.SetSymmetric("home", "gym", travel.ModeCar, 10)

	res, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:   day.Add(12 * time.Hour),
		Depot: travel.NewPlace("home"),
		Tasks: []planner.Task{{
			ID: "gym", Place: place("gym"), Duration: 30,
			Window: routing.Window{Start: 0, End: 1440}, Priority: routing.PriorityFlexibleHigh,
		}},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(res.Slots) != 1 {
		t.Fatalf("slots = %+v, want 1", res.Slots)
	}
	s := res.Slots[0]
	if !s.Start.Equal(at(490)) || !s.End.Equal(at(520)) {
		t.Fatalf("slot = %s-%s, want 08:10-08:40", s.Start.Format("15:04"), s.End.Format("15:04"))
	}
	if s.Mode != travel.ModeCar {
		t.Errorf("mode = %s, want car", s.Mode)
	}
	if len(res.Legs) != 2 {
		t.Errorf("legs = %d, want 2", len(res.Legs))
	}
	if res.Day != "2026-03-02" {
		t.Errorf("day = %s", res.Day)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}
	if res.TravelMinutes != 20 {
		t.Errorf("travel = %d, want 20", res.TravelMinutes)
	}
}

func TestPlan_OverlappingFixedTasksAreInfeasible(t *testing.T) {
	p := testutil.NewMockProvider()
	p.DefaultMinutes = 5
	s1, e1, s2, e2 := at(540), at(600), at(560), at(620)

	_, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:   day,
		Depot: travel.NewPlace("home"),
		Tasks: []planner.Task{
			{ID: "standup", Place: place("office"), Priority: routing.PriorityFixed, Start: &s1, End: &e1},
			{ID: "review", Place: place("client"), Priority: routing.PriorityFixed, Start: &s2, End: &e2},
		},
	})
	if !errors.Is(err, routing.ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}
	var inf *routing.InfeasibleError
	if !errors.As(err, &inf) {
		t.Fatalf("err = %T, want *routing.InfeasibleError", err)
	}
}

func TestPlan_MissingDataFallsBackToCap(t *testing.T) {
	p := testutil.NewMockProvider()

	res, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:   day,
		Depot: travel.NewPlace("home"),
		Tasks: []planner.Task{{ID: "post", Place: place("post office"), Duration: 15}},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(res.Gaps) == 0 {
		t.Fatal("expected data gaps")
	}
	for _, g := range res.Gaps {
		if g.Reason != travel.GapFallback || g.Minutes != 60 {
			t.Errorf("gap = %+v, want fallback_cap of 60", g)
		}
	}
	if len(res.Slots) != 1 || !res.Slots[0].Start.Equal(at(540)) {
		t.Fatalf("slots = %+v, want one at 09:00", res.Slots)
	}
}

func TestPlan_LateLowTaskIsClamped(t *testing.T) {
	p := testutil.NewMockProvider()
	p.SetSymmetric("home", "late shop", travel.ModeCar, 10)
	depart := at(1370)

	res, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:      day,
		Depot:    travel.NewPlace("home"),
		DepartAt: &depart,
		Tasks: []planner.Task{{
			ID: "shop", Place: place("late shop"), Duration: 60,
			Window: routing.Window{Start: 1380, End: 1440}, Priority: routing.PriorityFlexibleLow,
		}},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(res.Slots) != 1 {
		t.Fatalf("slots = %+v, dropped = %+v", res.Slots, res.Dropped)
	}
	s := res.Slots[0]
	if !s.End.Equal(at(1439)) || s.Duration() != time.Hour {
		t.Fatalf("slot = %s-%s, want 22:59-23:59", s.Start.Format("15:04"), s.End.Format("15:04"))
	}
	if len(res.Violations) != 1 || res.Violations[0].Kind != schedule.ViolationClamped || res.Violations[0].Minutes != 1 {
		t.Fatalf("violations = %+v, want one clamp of 1 minute", res.Violations)
	}
}

func TestPlan_LongWalkUsesCar(t *testing.T) {
	p := testutil.NewMockProvider()
	p.SetSymmetric("home", "park", travel.ModeWalking, 40)

	res, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:   day,
		Depot: travel.NewPlace("home"),
		Modes: []travel.Mode{travel.ModeWalking, travel.ModeCar},
		Tasks: []planner.Task{{ID: "walk", Place: place("park"), Duration: 45}},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	for _, leg := range res.Legs {
		if leg.Mode != travel.ModeCar || leg.Reason != travel.ReasonLongDistance {
			t.Errorf("leg = %+v, want car for long distance", leg)
		}
	}
	if res.Slots[0].Mode != travel.ModeCar {
		t.Errorf("slot mode = %s, want car", res.Slots[0].Mode)
	}
}

func TestPlan_DropsUnplaceableTasks(t *testing.T) {
	p := testutil.NewMockProvider()
	p.DefaultMinutes = 10
	s1, e1 := at(420), at(450)
	s2, e2 := day.AddDate(0, 0, 1).Add(9*time.Hour), day.AddDate(0, 0, 1).Add(10*time.Hour)

	res, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:   day,
		Depot: travel.NewPlace("home"),
		Tasks: []planner.Task{
			{ID: "nowhere", Duration: 20},
			{ID: "breakfast", Place: place("cafe"), Priority: routing.PriorityFixed, Start: &s1, End: &e1},
			{ID: "tomorrow", Place: place("office"), Priority: routing.PriorityFixed, Start: &s2, End: &e2},
			{ID: "errand", Place: place("bank"), Duration: 20},
		},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	want := map[string]schedule.DropReason{
		"nowhere":   schedule.DropNoLocation,
		"breakfast": schedule.DropElapsed,
		"tomorrow":  schedule.DropOutsideDay,
	}
	if len(res.Dropped) != len(want) {
		t.Fatalf("dropped = %+v", res.Dropped)
	}
	for _, d := range res.Dropped {
		if want[d.VisitID] != d.Reason {
			t.Errorf("drop %s = %s, want %s", d.VisitID, d.Reason, want[d.VisitID])
		}
	}
	if len(res.Slots) != 1 || res.Slots[0].VisitID != "errand" {
		t.Fatalf("slots = %+v, want errand only", res.Slots)
	}
}

type stubPOI struct {
	found map[string]travel.Place
	near  []types.Point
}

func (s *stubPOI) NearestPOI(_ context.Context, placeType string, near types.Point) (travel.Place, error) {
	s.near = append(s.near, near)
	p, ok := s.found[placeType]
	if !ok {
		return travel.Place{}, planner.ErrNotFound
	}
	return p, nil
}

func TestPlan_ResolvesPlaceTypes(t *testing.T) {
	p := testutil.NewMockProvider()
	p.DefaultMinutes = 10
	pharmacy := travel.NewPointPlace("Corner Pharmacy", types.Point{Lat: 1, Lng: 1})
	poi := &stubPOI{found: map[string]travel.Place{"pharmacy": pharmacy}}
	home := travel.NewPointPlace("home", types.Point{Lat: 0, Lng: 0})
	office := travel.NewPointPlace("office", types.Point{Lat: 2, Lng: 4})

	res, err := newService(p, poi).Plan(context.Background(), planner.Request{
		Day:   day,
		Depot: home,
		Tasks: []planner.Task{
			{ID: "work", Place: &office, Duration: 60},
			{ID: "meds", PlaceType: "pharmacy", Duration: 10},
			{ID: "pet", PlaceType: "vet", Duration: 30},
		},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(poi.near) != 2 || poi.near[0] != (types.Point{Lat: 2, Lng: 4}) {
		t.Fatalf("searched near %v, want the located tasks' centroid", poi.near)
	}
	if len(res.Slots) != 2 {
		t.Fatalf("slots = %+v, want work and meds", res.Slots)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].VisitID != "pet" || res.Dropped[0].Reason != schedule.DropNoLocation {
		t.Fatalf("dropped = %+v, want pet without location", res.Dropped)
	}
	found := false
	for _, pl := range res.Places {
		if pl.Key == pharmacy.Key {
			found = true
		}
	}
	if !found {
		t.Errorf("places %+v do not include the resolved pharmacy", res.Places)
	}
}

func TestPlan_BlankIDNextToExplicitDefaultID(t *testing.T) {
	p := testutil.NewMockProvider()
	p.SetSymmetric("home", "gym", travel.ModeCar, 10)

	res, err := newService(p, nil).Plan(context.Background(), planner.Request{
		Day:   day,
		Depot: travel.NewPlace("home"),
		Tasks: []planner.Task{
			{ID: "task-2", Place: place("gym"), Duration: 20},
			{Place: place("gym"), Duration: 20},
		},
	})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(res.Slots) != 2 {
		t.Fatalf("slots = %+v, want 2", res.Slots)
	}
	if res.Slots[0].VisitID == res.Slots[1].VisitID {
		t.Fatalf("both slots share id %q", res.Slots[0].VisitID)
	}
}
