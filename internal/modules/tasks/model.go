// README: Task rows as stored, and their conversion into planner tasks.
package tasks

import (
	"errors"
	"strconv"
	"time"

	"calroute/internal/modules/planner"
	"calroute/internal/modules/routing"
	"calroute/internal/modules/travel"
	"calroute/internal/types"
)

var ErrNotFound = errors.New("not found")

const (
	SourceCalendar = "calendar"
	SourceNote     = "note"
	SourceManual   = "manual"
)

// Location is a saved place of a user.
type Location struct {
	ID      int64
	Name    string
	Address string
	Lat     *float64
	Lng     *float64
}

// Place turns a saved location into a matrix place keyed by its address.
func (l Location) Place() travel.Place {
	key := l.Address
	if key == "" {
		key = l.Name
	}
	p := travel.NewPlace(key)
	p.Label = l.Name
	if l.Lat != nil && l.Lng != nil {
		p.Point = &types.Point{Lat: *l.Lat, Lng: *l.Lng}
	}
	return p
}

// RawTask is one row of raw_tasks with its location, if any.
type RawTask struct {
	ID              int64
	UserID          string
	Title           string
	Source          string
	Location        *Location
	PlaceType       string
	Start           *time.Time
	End             *time.Time
	DurationMinutes int
	Priority        int
}

type Preferences struct {
	UserID string
	Home   Location
	Modes  []travel.Mode
}

// ToTask normalizes a row. Priority 1, or a calendar event with both
// times, is Fixed; priority 2 is Flexible-High; anything else is
// Flexible-Low. The window comes from the row times on the anchor's day.
func (r RawTask) ToTask(anchor time.Time) planner.Task {
	t := planner.Task{
		ID:        strconv.FormatInt(r.ID, 10),
		Title:     r.Title,
		PlaceType: r.PlaceType,
		Duration:  r.DurationMinutes,
		Window:    routing.Window{Start: 0, End: routing.MinutesPerDay},
		Start:     r.Start,
		End:       r.End,
	}
	if r.Location != nil {
		p := r.Location.Place()
		t.Place = &p
	}

	switch {
	case r.Priority == 1 || (r.Source == SourceCalendar && r.Start != nil && r.End != nil):
		t.Priority = routing.PriorityFixed
	case r.Priority == 2:
		t.Priority = routing.PriorityFlexibleHigh
	default:
		t.Priority = routing.PriorityFlexibleLow
	}

	if r.Start != nil && r.End != nil && r.End.After(*r.Start) {
		t.Duration = int(r.End.Sub(*r.Start) / time.Minute)
	}
	if t.Duration <= 0 {
		t.Duration = planner.DefaultDuration
	}
	if r.Start != nil {
		t.Window.Start = clampMinute(minuteOfDay(anchor, *r.Start))
	}
	if r.End != nil {
		t.Window.End = clampMinute(minuteOfDay(anchor, *r.End))
	}
	return t
}

func minuteOfDay(anchor, t time.Time) int {
	return int(t.Sub(anchor) / time.Minute)
}

func clampMinute(m int) int {
	return min(max(m, 0), routing.MinutesPerDay)
}

// dayBounds returns midnight of day and of the following day in day's zone.
func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
