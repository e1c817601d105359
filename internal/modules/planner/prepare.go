package planner

import (
	"fmt"
	"time"

	"calroute/internal/modules/routing"
	"calroute/internal/modules/schedule"
	"calroute/internal/modules/travel"
)

// prepared is the solver-ready form of a request. places[0] is the start
// depot and the last place is the end depot; task places sit in between,
// deduplicated by key.
type prepared struct {
	places  []travel.Place
	visits  []routing.VisitRequest
	dropped []schedule.Drop
}

func prepare(anchor time.Time, departAt int, depot, endDepot travel.Place, tasks []Task) prepared {
	p := prepared{places: []travel.Place{depot}, dropped: []schedule.Drop{}}
	index := map[string]int{depot.Key: 0}
	taken := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.ID != "" {
			taken[t.ID] = true
		}
	}
	seen := make(map[string]bool, len(tasks))

	for i, t := range tasks {
		if t.ID == "" || seen[t.ID] {
			t.ID = freeID(i+1, taken)
		}
		seen[t.ID] = true
		taken[t.ID] = true

		if t.Place == nil || t.Place.Key == "" {
			p.dropped = append(p.dropped, schedule.Drop{VisitID: t.ID, Reason: schedule.DropNoLocation})
			continue
		}
		v, reason, ok := toVisit(anchor, departAt, t)
		if !ok {
			p.dropped = append(p.dropped, schedule.Drop{VisitID: t.ID, Reason: reason})
			continue
		}

		idx, known := index[t.Place.Key]
		if !known {
			idx = len(p.places)
			index[t.Place.Key] = idx
			p.places = append(p.places, *t.Place)
		}
		v.Place = idx
		p.visits = append(p.visits, v)
	}

	p.places = append(p.places, endDepot)
	return p
}

// freeID returns the first "task-N" at or after n that no task uses.
func freeID(n int, taken map[string]bool) string {
	for ; ; n++ {
		if id := fmt.Sprintf("task-%d", n); !taken[id] {
			return id
		}
	}
}

// toVisit normalizes one task. Fixed tasks take their window and length
// from their calendar times; flexible windows are clipped to the day.
func toVisit(anchor time.Time, departAt int, t Task) (routing.VisitRequest, schedule.DropReason, bool) {
	v := routing.VisitRequest{
		ID:       t.ID,
		Duration: t.Duration,
		Window:   t.Window,
		Priority: t.Priority,
	}
	if !v.Priority.Valid() {
		v.Priority = routing.PriorityFlexibleLow
	}

	if v.Priority == routing.PriorityFixed {
		start, end, ok := fixedTimes(anchor, t)
		if !ok {
			return v, schedule.DropOutsideDay, false
		}
		startMin := int(start.Sub(anchor) / time.Minute)
		endMin := int(end.Sub(anchor) / time.Minute)
		if startMin < 0 || endMin > routing.MinutesPerDay || endMin < startMin {
			return v, schedule.DropOutsideDay, false
		}
		if endMin <= departAt {
			return v, schedule.DropElapsed, false
		}
		v.Window = routing.Window{Start: startMin, End: endMin}
		v.Duration = endMin - startMin
		v.OriginalStart, v.OriginalEnd = &start, &end
		return v, "", true
	}

	if v.Duration <= 0 {
		v.Duration = DefaultDuration
	}
	if v.Window == (routing.Window{}) {
		v.Window = routing.Window{Start: 0, End: routing.MinutesPerDay}
	}
	v.Window.Start = max(v.Window.Start, 0)
	v.Window.End = min(v.Window.End, routing.MinutesPerDay)
	if v.Window.End < v.Window.Start {
		return v, schedule.DropOutsideDay, false
	}
	if v.Window.End < departAt {
		return v, schedule.DropElapsed, false
	}
	return v, "", true
}

// fixedTimes prefers the calendar times and falls back to the window.
func fixedTimes(anchor time.Time, t Task) (time.Time, time.Time, bool) {
	switch {
	case t.Start != nil && t.End != nil:
		return *t.Start, *t.End, true
	case t.Start != nil:
		d := t.Duration
		if d <= 0 {
			d = DefaultDuration
		}
		return *t.Start, t.Start.Add(time.Duration(d) * time.Minute), true
	case t.Window.End > t.Window.Start:
		return anchor.Add(time.Duration(t.Window.Start) * time.Minute),
			anchor.Add(time.Duration(t.Window.End) * time.Minute), true
	default:
		return time.Time{}, time.Time{}, false
	}
}
