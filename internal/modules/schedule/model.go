// README: Schedule output types: slots, soft violations and dropped visits.
package schedule

import (
	"time"

	"calroute/internal/modules/routing"
	"calroute/internal/modules/travel"
)

type Slot struct {
	VisitID       string           `json:"visit_id"`
	Priority      routing.Priority `json:"priority"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	Mode          travel.Mode      `json:"travel_mode,omitempty"`
	TravelMinutes int              `json:"travel_minutes"`
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

type ViolationKind string

const (
	// ViolationClamped: the slot was moved back so it ends at 23:59.
	ViolationClamped ViolationKind = "clamped_to_day_end"
	// ViolationWindowMissed: a flexible slot starts after its window closed.
	ViolationWindowMissed ViolationKind = "window_missed"
	// ViolationLateArrival: travel reaches a Fixed visit after it starts.
	ViolationLateArrival ViolationKind = "late_arrival"
)

type Violation struct {
	VisitID string        `json:"visit_id"`
	Kind    ViolationKind `json:"kind"`
	Minutes int           `json:"minutes"`
}

type DropReason string

const (
	DropSkipped     DropReason = "skipped_low_priority"
	DropDayOverflow DropReason = "day_overflow"
	DropNoLocation  DropReason = "no_location"
	DropElapsed     DropReason = "elapsed"
	DropOutsideDay  DropReason = "outside_day"
)

type Drop struct {
	VisitID string     `json:"visit_id"`
	Reason  DropReason `json:"reason"`
}

type Schedule struct {
	Slots      []Slot      `json:"slots"`
	Violations []Violation `json:"violations"`
	Dropped    []Drop      `json:"dropped"`
	// ReturnAt is when the route reaches the end depot.
	ReturnAt time.Time `json:"return_at"`
}
