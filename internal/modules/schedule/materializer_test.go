package schedule

import (
	"errors"
	"testing"
	"time"

	"calroute/internal/modules/routing"
	"calroute/internal/modules/travel"
)

var anchor = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(minute int) time.Time {
	return anchor.Add(time.Duration(minute) * time.Minute)
}

// build wires visits into a route in the given order with the given arrivals.
func build(visits []routing.VisitRequest, arrivals []int, skipped ...int) Input {
	p := &routing.Problem{
		Travel: [][]int{{0}},
		Visits: visits,
	}
	route := []int{0}
	arr := []int{480}
	used := make(map[int]bool)
	for _, s := range skipped {
		used[s] = true
	}
	k := 0
	for i := range visits {
		if used[i] {
			continue
		}
		route = append(route, i+1)
		arr = append(arr, arrivals[k])
		k++
	}
	route = append(route, p.EndNode())
	arr = append(arr, arr[len(arr)-1]+30)
	return Input{
		Anchor:   anchor,
		Problem:  p,
		Solution: &routing.Solution{Route: route, Arrivals: arr, Skipped: skipped},
	}
}

func flexible(id string, duration int, w routing.Window, prio routing.Priority) routing.VisitRequest {
	return routing.VisitRequest{ID: id, Duration: duration, Window: w, Priority: prio}
}

func fixed(id string, start, end int) routing.VisitRequest {
	s, e := at(start), at(end)
	return routing.VisitRequest{
		ID: id, Duration: end - start, Priority: routing.PriorityFixed,
		Window:        routing.Window{Start: start, End: end},
		OriginalStart: &s, OriginalEnd: &e,
	}
}

func allDay() routing.Window { return routing.Window{Start: 0, End: 1440} }

func slotByID(t *testing.T, s *Schedule, id string) Slot {
	t.Helper()
	for _, sl := range s.Slots {
		if sl.VisitID == id {
			return sl
		}
	}
	t.Fatalf("no slot for %s", id)
	return Slot{}
}

func hasViolation(s *Schedule, id string, kind ViolationKind) (Violation, bool) {
	for _, v := range s.Violations {
		if v.VisitID == id && v.Kind == kind {
			return v, true
		}
	}
	return Violation{}, false
}

func assertNoOverlap(t *testing.T, s *Schedule) {
	t.Helper()
	for i := range s.Slots {
		for j := i + 1; j < len(s.Slots); j++ {
			a, b := s.Slots[i], s.Slots[j]
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				t.Fatalf("slots %s and %s overlap", a.VisitID, b.VisitID)
			}
		}
	}
}

func TestMaterialize_AnchorsFlexibleAndPinsFixed(t *testing.T) {
	in := build([]routing.VisitRequest{
		flexible("coffee", 20, allDay(), routing.PriorityFlexibleHigh),
		fixed("meeting", 600, 660),
	}, []int{495, 600})

	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	coffee := slotByID(t, s, "coffee")
	if !coffee.Start.Equal(at(495)) || !coffee.End.Equal(at(515)) {
		t.Fatalf("coffee slot = %v-%v", coffee.Start, coffee.End)
	}
	meeting := slotByID(t, s, "meeting")
	if !meeting.Start.Equal(at(600)) || !meeting.End.Equal(at(660)) {
		t.Fatalf("meeting slot = %v-%v", meeting.Start, meeting.End)
	}
	if len(s.Violations) != 0 || len(s.Dropped) != 0 {
		t.Fatalf("unexpected violations %v drops %v", s.Violations, s.Dropped)
	}
	if !s.ReturnAt.Equal(at(630)) {
		t.Fatalf("ReturnAt = %v", s.ReturnAt)
	}
}

func TestMaterialize_PushesOverlapWithBuffer(t *testing.T) {
	tests := []struct {
		name      string
		visits    []routing.VisitRequest
		arrivals  []int
		movedID   string
		wantStart int
		keptID    string
		keptStart int
	}{
		{
			name: "later flexible pushed past earlier",
			visits: []routing.VisitRequest{
				flexible("a", 60, allDay(), routing.PriorityFlexibleHigh),
				flexible("b", 30, allDay(), routing.PriorityFlexibleHigh),
			},
			arrivals: []int{540, 570},
			movedID:  "b", wantStart: 615,
			keptID: "a", keptStart: 540,
		},
		{
			name: "flexible before fixed moves past it",
			visits: []routing.VisitRequest{
				flexible("errand", 30, allDay(), routing.PriorityFlexibleLow),
				fixed("meeting", 600, 660),
			},
			arrivals: []int{590, 600},
			movedID:  "errand", wantStart: 675,
			keptID: "meeting", keptStart: 600,
		},
		{
			name: "equal start keeps the higher priority",
			visits: []routing.VisitRequest{
				flexible("low", 30, allDay(), routing.PriorityFlexibleLow),
				flexible("high", 30, allDay(), routing.PriorityFlexibleHigh),
			},
			arrivals: []int{600, 600},
			movedID:  "low", wantStart: 645,
			keptID: "high", keptStart: 600,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMaterializer(DefaultConfig()).Materialize(build(tt.visits, tt.arrivals))
			if err != nil {
				t.Fatal(err)
			}
			if got := slotByID(t, s, tt.movedID); !got.Start.Equal(at(tt.wantStart)) {
				t.Errorf("%s start = %v, want %v", tt.movedID, got.Start, at(tt.wantStart))
			}
			if got := slotByID(t, s, tt.keptID); !got.Start.Equal(at(tt.keptStart)) {
				t.Errorf("%s start = %v, want %v", tt.keptID, got.Start, at(tt.keptStart))
			}
			assertNoOverlap(t, s)
		})
	}
}

func TestMaterialize_ClampsAtDayEnd(t *testing.T) {
	in := build([]routing.VisitRequest{
		flexible("journal", 30, routing.Window{Start: 1420, End: 1440}, routing.PriorityFlexibleLow),
	}, []int{1420})

	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	sl := slotByID(t, s, "journal")
	if !sl.End.Equal(at(LastMinute)) || !sl.Start.Equal(at(LastMinute-30)) {
		t.Fatalf("slot = %v-%v, want 23:29-23:59", sl.Start, sl.End)
	}
	v, ok := hasViolation(s, "journal", ViolationClamped)
	if !ok || v.Minutes != 11 {
		t.Fatalf("violations = %+v", s.Violations)
	}
}

func TestMaterialize_PastMidnightArrivalIsClamped(t *testing.T) {
	in := build([]routing.VisitRequest{
		flexible("laundry", 45, allDay(), routing.PriorityFlexibleHigh),
	}, []int{1500})

	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	sl := slotByID(t, s, "laundry")
	if !sl.End.Equal(at(LastMinute)) || sl.Duration() != 45*time.Minute {
		t.Fatalf("slot = %v-%v", sl.Start, sl.End)
	}
	if _, ok := hasViolation(s, "laundry", ViolationClamped); !ok {
		t.Fatal("missing clamp violation")
	}
}

func TestMaterialize_ClampThatWouldOverlapDrops(t *testing.T) {
	in := build([]routing.VisitRequest{
		fixed("concert", 1380, 1425),
		flexible("walk", 30, allDay(), routing.PriorityFlexibleLow),
	}, []int{1380, 1430})

	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Slots) != 1 || s.Slots[0].VisitID != "concert" {
		t.Fatalf("slots = %+v", s.Slots)
	}
	if len(s.Dropped) != 1 || s.Dropped[0] != (Drop{VisitID: "walk", Reason: DropDayOverflow}) {
		t.Fatalf("dropped = %+v", s.Dropped)
	}
}

func TestMaterialize_FixedEndingAtMidnightIsCut(t *testing.T) {
	in := build([]routing.VisitRequest{
		fixed("night-shift", 1380, 1440),
		flexible("stretch", 15, allDay(), routing.PriorityFlexibleLow),
	}, []int{1380, 1450})

	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	sl := slotByID(t, s, "night-shift")
	if !sl.Start.Equal(at(1380)) || !sl.End.Equal(at(LastMinute)) {
		t.Fatalf("slot = %v-%v, want 23:00-23:59", sl.Start, sl.End)
	}
	v, ok := hasViolation(s, "night-shift", ViolationClamped)
	if !ok || v.Minutes != 1 {
		t.Fatalf("violations = %+v", s.Violations)
	}
	for _, sl := range s.Slots {
		if sl.End.After(at(LastMinute)) {
			t.Errorf("slot %s ends %v, after 23:59", sl.VisitID, sl.End)
		}
	}
	if len(s.Dropped) != 1 || s.Dropped[0] != (Drop{VisitID: "stretch", Reason: DropDayOverflow}) {
		t.Fatalf("dropped = %+v", s.Dropped)
	}
	assertNoOverlap(t, s)
}

func TestMaterialize_Violations(t *testing.T) {
	in := build([]routing.VisitRequest{
		fixed("standup", 600, 615),
		flexible("pharmacy", 15, routing.Window{Start: 600, End: 620}, routing.PriorityFlexibleHigh),
		flexible("bakery", 10, routing.Window{Start: 400, End: 410}, routing.PriorityFlexibleLow),
	}, []int{610, 650}, 2)

	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := hasViolation(s, "standup", ViolationLateArrival); !ok || v.Minutes != 10 {
		t.Fatalf("late arrival violation missing: %+v", s.Violations)
	}
	if v, ok := hasViolation(s, "pharmacy", ViolationWindowMissed); !ok || v.Minutes != 30 {
		t.Fatalf("window missed violation missing: %+v", s.Violations)
	}
	if len(s.Dropped) != 1 || s.Dropped[0] != (Drop{VisitID: "bakery", Reason: DropSkipped}) {
		t.Fatalf("dropped = %+v", s.Dropped)
	}
	standup := slotByID(t, s, "standup")
	if !standup.Start.Equal(at(600)) {
		t.Fatalf("fixed slot moved to %v", standup.Start)
	}
}

func TestMaterialize_ManyCollisionsStayOrdered(t *testing.T) {
	var visits []routing.VisitRequest
	var arrivals []int
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		visits = append(visits, flexible(id, 20, allDay(), routing.PriorityFlexibleHigh))
		arrivals = append(arrivals, 600)
	}
	s, err := NewMaterializer(DefaultConfig()).Materialize(build(visits, arrivals))
	if err != nil {
		t.Fatal(err)
	}
	assertNoOverlap(t, s)
	for i, sl := range s.Slots {
		want := at(600 + i*35)
		if !sl.Start.Equal(want) {
			t.Errorf("slot %d (%s) start = %v, want %v", i, sl.VisitID, sl.Start, want)
		}
	}
}

func TestMaterialize_CarriesLegModes(t *testing.T) {
	in := build([]routing.VisitRequest{
		flexible("gym", 60, allDay(), routing.PriorityFlexibleHigh),
	}, []int{500})
	in.Legs = []travel.LegAssignment{
		{From: 0, To: 1, Mode: travel.ModeBike, Minutes: 20},
		{From: 1, To: 0, Mode: travel.ModeWalking, Minutes: 20},
	}
	s, err := NewMaterializer(DefaultConfig()).Materialize(in)
	if err != nil {
		t.Fatal(err)
	}
	if sl := slotByID(t, s, "gym"); sl.Mode != travel.ModeBike || sl.TravelMinutes != 20 {
		t.Fatalf("slot leg = %s %d", sl.Mode, sl.TravelMinutes)
	}

	in.Legs = in.Legs[:1]
	if _, err := NewMaterializer(DefaultConfig()).Materialize(in); !errors.Is(err, ErrMismatchedInput) {
		t.Fatalf("err = %v, want ErrMismatchedInput", err)
	}
}

func TestMaterialize_RejectsMismatchedSolution(t *testing.T) {
	m := NewMaterializer(DefaultConfig())
	if _, err := m.Materialize(Input{}); !errors.Is(err, ErrMismatchedInput) {
		t.Fatalf("err = %v", err)
	}
	in := build([]routing.VisitRequest{flexible("a", 10, allDay(), routing.PriorityFlexibleHigh)}, []int{500})
	in.Solution.Route[1] = 9
	if _, err := m.Materialize(in); !errors.Is(err, ErrMismatchedInput) {
		t.Fatalf("err = %v", err)
	}
}
