// README: Planner inputs, outputs and the ports it depends on.
package planner

import (
	"context"
	"errors"
	"time"

	"calroute/internal/modules/routing"
	"calroute/internal/modules/schedule"
	"calroute/internal/modules/travel"
	"calroute/internal/types"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// DefaultDuration is used for tasks that carry no length of their own.
const DefaultDuration = 30

// Task is an item to place on the day, before it is turned into a visit.
type Task struct {
	ID    string
	Title string
	// Place is nil for tasks that still need a location.
	Place *travel.Place
	// PlaceType asks for the nearest point of interest of this kind when
	// Place is nil, e.g. "pharmacy".
	PlaceType string
	Duration  int
	Window    routing.Window
	Priority  routing.Priority
	// Start and End are the original calendar times, when known.
	Start *time.Time
	End   *time.Time
}

type Request struct {
	UserID string
	// Day is any instant on the planning day.
	Day      time.Time
	Depot    travel.Place
	EndDepot *travel.Place
	// DepartAt overrides the configured day start, e.g. "now" for a re-plan.
	DepartAt *time.Time
	Modes    []travel.Mode
	Tasks    []Task
}

type Result struct {
	RunID         string                 `json:"run_id"`
	Day           string                 `json:"day"`
	Slots         []schedule.Slot        `json:"slots"`
	Violations    []schedule.Violation   `json:"violations"`
	Dropped       []schedule.Drop        `json:"dropped"`
	ReturnAt      time.Time              `json:"return_at"`
	Legs          []travel.LegAssignment `json:"legs"`
	Gaps          []travel.DataGap       `json:"data_gaps"`
	TravelMinutes int                    `json:"travel_minutes"`
	Stats         routing.Stats          `json:"solver_stats"`
	Places        []travel.Place         `json:"places"`
}

// TaskSource supplies the tasks of a user's day.
type TaskSource interface {
	TasksForDay(ctx context.Context, userID string, day time.Time) ([]Task, error)
}

// POISearcher resolves a place type to the nearest matching location.
type POISearcher interface {
	NearestPOI(ctx context.Context, placeType string, near types.Point) (travel.Place, error)
}
