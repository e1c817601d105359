// README: Turns a solved route into wall-clock slots, resolving overlaps and clamping at day end.
package schedule

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"calroute/internal/modules/routing"
	"calroute/internal/modules/travel"
)

// LastMinute is 23:59 as minutes after midnight.
const LastMinute = 23*60 + 59

var ErrMismatchedInput = errors.New("solution does not match problem")

type Config struct {
	// Buffer is the gap inserted when a slot is pushed past another.
	Buffer time.Duration
}

func DefaultConfig() Config {
	return Config{Buffer: 15 * time.Minute}
}

type Materializer struct {
	cfg Config
}

func NewMaterializer(cfg Config) *Materializer {
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	return &Materializer{cfg: cfg}
}

type Input struct {
	// Anchor is midnight of the planning day in the user's time zone.
	Anchor   time.Time
	Problem  *routing.Problem
	Solution *routing.Solution
	// Legs[k] is the leg from route position k to k+1.
	Legs []travel.LegAssignment
}

// slotState carries a slot through conflict resolution. seq is the route
// position and breaks ties between equal starts of equal priority.
type slotState struct {
	Slot
	visit routing.VisitRequest
	seq   int
}

func (s *slotState) fixed() bool {
	return s.visit.Fixed()
}

func (m *Materializer) Materialize(in Input) (*Schedule, error) {
	p, sol := in.Problem, in.Solution
	if p == nil || sol == nil || len(sol.Route) != len(sol.Arrivals) || len(sol.Route) < 2 {
		return nil, ErrMismatchedInput
	}
	if len(in.Legs) != 0 && len(in.Legs) != len(sol.Route)-1 {
		return nil, fmt.Errorf("%w: %d legs for %d route positions", ErrMismatchedInput, len(in.Legs), len(sol.Route))
	}

	out := &Schedule{
		Slots:      []Slot{},
		Violations: []Violation{},
		Dropped:    []Drop{},
		ReturnAt:   in.Anchor.Add(minutes(sol.Arrivals[len(sol.Arrivals)-1])),
	}

	var states []*slotState
	for pos := 1; pos < len(sol.Route)-1; pos++ {
		idx := routing.VisitIndex(sol.Route[pos])
		if idx < 0 || idx >= len(p.Visits) {
			return nil, fmt.Errorf("%w: node %d", ErrMismatchedInput, sol.Route[pos])
		}
		v := p.Visits[idx]
		st := &slotState{visit: v, seq: pos}
		st.VisitID = v.ID
		st.Priority = v.Priority
		if len(in.Legs) > 0 {
			st.Mode = in.Legs[pos-1].Mode
			st.TravelMinutes = in.Legs[pos-1].Minutes
		}

		if v.Fixed() {
			st.Start, st.End = fixedTimes(in.Anchor, v)
			if late := sol.Arrivals[pos] - v.Window.Start; late > 0 {
				out.Violations = append(out.Violations, Violation{VisitID: v.ID, Kind: ViolationLateArrival, Minutes: late})
			}
		} else {
			st.Start = in.Anchor.Add(minutes(sol.Arrivals[pos]))
			st.End = st.Start.Add(minutes(v.Duration))
		}
		states = append(states, st)
	}
	for _, idx := range sol.Skipped {
		out.Dropped = append(out.Dropped, Drop{VisitID: p.Visits[idx].ID, Reason: DropSkipped})
	}

	m.resolveConflicts(states)
	states, clampViolations, drops := m.clampToDayEnd(in.Anchor, states)
	out.Violations = append(out.Violations, clampViolations...)
	out.Dropped = append(out.Dropped, drops...)

	sortStates(states)
	for _, st := range states {
		if !st.fixed() {
			startMin := int(st.Start.Sub(in.Anchor) / time.Minute)
			if missed := startMin - st.visit.Window.End; missed > 0 {
				out.Violations = append(out.Violations, Violation{VisitID: st.VisitID, Kind: ViolationWindowMissed, Minutes: missed})
			}
		}
		out.Slots = append(out.Slots, st.Slot)
	}
	return out, nil
}

func fixedTimes(anchor time.Time, v routing.VisitRequest) (time.Time, time.Time) {
	start := anchor.Add(minutes(v.Window.Start))
	if v.OriginalStart != nil {
		start = *v.OriginalStart
	}
	end := start.Add(minutes(v.Duration))
	if v.OriginalEnd != nil {
		end = *v.OriginalEnd
	}
	return start, end
}

// resolveConflicts repeatedly finds the first overlapping neighbours in
// start order and pushes the later one to the earlier one's end plus the
// buffer. Fixed slots never move: against a Fixed slot the flexible one is
// pushed past it instead. Each push moves a flexible start strictly later.
func (m *Materializer) resolveConflicts(states []*slotState) {
	maxPasses := len(states)*len(states)*4 + 16
	for pass := 0; pass < maxPasses; pass++ {
		sortStates(states)
		moved := false
		for k := 0; k+1 < len(states); k++ {
			a, b := states[k], states[k+1]
			if !b.Start.Before(a.End) {
				continue
			}
			mover, anchor := b, a
			if b.fixed() && !a.fixed() {
				mover, anchor = a, b
			}
			if mover.fixed() {
				continue
			}
			dur := mover.Duration()
			mover.Start = anchor.End.Add(m.cfg.Buffer)
			mover.End = mover.Start.Add(dur)
			moved = true
			break
		}
		if !moved {
			return
		}
	}
	log.Printf("[SCHEDULE] conflict resolution stopped after %d passes", maxPasses)
}

// clampToDayEnd moves flexible slots ending after 23:59 back so they end at
// 23:59 with their duration intact. A clamped slot that would overlap
// another slot, or cannot fit in the day at all, is dropped. Fixed slots
// running to midnight are cut at 23:59.
func (m *Materializer) clampToDayEnd(anchor time.Time, states []*slotState) ([]*slotState, []Violation, []Drop) {
	dayEnd := anchor.Add(minutes(LastMinute))
	var violations []Violation
	var drops []Drop

	sortStates(states)
	kept := make([]*slotState, 0, len(states))
	for _, st := range states {
		if st.fixed() && st.End.After(dayEnd) {
			// Fixed slots keep their start; only the tail past 23:59 is cut.
			trimmed := int(st.End.Sub(dayEnd) / time.Minute)
			st.End = dayEnd
			if st.Start.After(dayEnd) {
				st.Start = dayEnd
			}
			violations = append(violations, Violation{VisitID: st.VisitID, Kind: ViolationClamped, Minutes: trimmed})
		}
		if st.fixed() || !st.End.After(dayEnd) {
			kept = append(kept, st)
		}
	}
	for _, st := range states {
		if st.fixed() || !st.End.After(dayEnd) {
			continue
		}
		dur := st.Duration()
		start := dayEnd.Add(-dur)
		if start.Before(anchor) || overlapsAny(start, dayEnd, kept) {
			drops = append(drops, Drop{VisitID: st.VisitID, Reason: DropDayOverflow})
			continue
		}
		shift := int(st.Start.Sub(start) / time.Minute)
		st.Start, st.End = start, dayEnd
		kept = append(kept, st)
		violations = append(violations, Violation{VisitID: st.VisitID, Kind: ViolationClamped, Minutes: shift})
	}
	return kept, violations, drops
}

func overlapsAny(start, end time.Time, states []*slotState) bool {
	for _, st := range states {
		if start.Before(st.End) && st.Start.Before(end) {
			return true
		}
	}
	return false
}

// sortStates orders by start, then Fixed before Flexible-High before
// Flexible-Low, then route position.
func sortStates(states []*slotState) {
	sort.SliceStable(states, func(i, j int) bool {
		a, b := states[i], states[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.seq < b.seq
	})
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
