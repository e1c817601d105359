// README: Routing problem and solution types: visits, priorities, windows, node numbering.
package routing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidProblem = errors.New("invalid routing problem")
	ErrInfeasible     = errors.New("schedule infeasible")
)

// MinutesPerDay bounds windows and the default working day.
const MinutesPerDay = 24 * 60

type Priority int

const (
	// PriorityFixed visits keep their original times.
	PriorityFixed Priority = iota + 1
	PriorityFlexibleHigh
	// PriorityFlexibleLow visits may be skipped at a penalty.
	PriorityFlexibleLow
)

func (p Priority) String() string {
	switch p {
	case PriorityFixed:
		return "fixed"
	case PriorityFlexibleHigh:
		return "flexible_high"
	case PriorityFlexibleLow:
		return "flexible_low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func (p Priority) Valid() bool {
	return p >= PriorityFixed && p <= PriorityFlexibleLow
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParsePriority(v string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "fixed", "1":
		return PriorityFixed, nil
	case "flexible_high", "high", "2":
		return PriorityFlexibleHigh, nil
	case "flexible_low", "low", "3":
		return PriorityFlexibleLow, nil
	}
	return 0, fmt.Errorf("unknown priority %q", v)
}

// Window bounds the service start, in minutes after midnight.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (w Window) Valid() bool {
	return w.Start >= 0 && w.End >= w.Start
}

type VisitRequest struct {
	ID       string
	Place    int
	Duration int
	Window   Window
	Priority Priority
	// Original wall-clock times, kept for Fixed visits.
	OriginalStart *time.Time
	OriginalEnd   *time.Time
}

func (v VisitRequest) Fixed() bool {
	return v.Priority == PriorityFixed
}

// latestStart is the last acceptable service start. Fixed visits are
// pinned at their window start.
func (v VisitRequest) latestStart() int {
	if v.Fixed() {
		return v.Window.Start
	}
	return v.Window.End
}

// Problem is a single-vehicle routing instance over a travel matrix.
// Node 0 is the start depot, node k+1 is Visits[k] and node len(Visits)+1
// is the end depot. Start and End are place indices into Travel.
type Problem struct {
	Travel   [][]int
	Start    int
	End      int
	Visits   []VisitRequest
	DepartAt int
	// DayEnd is the working-day boundary for service end; 0 means midnight.
	DayEnd int
}

func (p *Problem) EndNode() int {
	return len(p.Visits) + 1
}

// VisitIndex maps a visit node id back to its index in Visits.
func VisitIndex(node int) int {
	return node - 1
}

func (p *Problem) dayEnd() int {
	if p.DayEnd <= 0 {
		return MinutesPerDay
	}
	return p.DayEnd
}

func (p *Problem) placeOf(node int) int {
	switch {
	case node == 0:
		return p.Start
	case node == p.EndNode():
		return p.End
	default:
		return p.Visits[VisitIndex(node)].Place
	}
}

func (p *Problem) Validate() error {
	n := len(p.Travel)
	if n == 0 {
		return fmt.Errorf("%w: empty travel matrix", ErrInvalidProblem)
	}
	for i, row := range p.Travel {
		if len(row) != n {
			return fmt.Errorf("%w: travel row %d has %d columns, want %d", ErrInvalidProblem, i, len(row), n)
		}
	}
	if p.Start < 0 || p.Start >= n || p.End < 0 || p.End >= n {
		return fmt.Errorf("%w: depot outside matrix", ErrInvalidProblem)
	}
	if p.DepartAt < 0 {
		return fmt.Errorf("%w: negative departure", ErrInvalidProblem)
	}
	seen := make(map[string]bool, len(p.Visits))
	for i, v := range p.Visits {
		switch {
		case v.Place < 0 || v.Place >= n:
			return fmt.Errorf("%w: visit %d place %d outside matrix", ErrInvalidProblem, i, v.Place)
		case v.Duration < 0:
			return fmt.Errorf("%w: visit %q has negative duration", ErrInvalidProblem, v.ID)
		case !v.Window.Valid():
			return fmt.Errorf("%w: visit %q has window [%d,%d]", ErrInvalidProblem, v.ID, v.Window.Start, v.Window.End)
		case !v.Priority.Valid():
			return fmt.Errorf("%w: visit %q has %s", ErrInvalidProblem, v.ID, v.Priority)
		case v.ID != "" && seen[v.ID]:
			return fmt.Errorf("%w: duplicate visit id %q", ErrInvalidProblem, v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}

// Stats counts search activity.
type Stats struct {
	Iterations    int `json:"iterations"`
	Improvements  int `json:"improvements"`
	AcceptedWorse int `json:"accepted_worse"`
}

// Solution is an ordered route of node ids, depot first and last, with the
// service start of every position. Arrivals may exceed MinutesPerDay when the
// route runs past midnight.
type Solution struct {
	Route         []int
	Arrivals      []int
	Skipped       []int
	TravelMinutes int
	Cost          float64
	Stats         Stats
}

// PlaceRoute maps the route onto place indices.
func (s *Solution) PlaceRoute(p *Problem) []int {
	out := make([]int, len(s.Route))
	for i, node := range s.Route {
		out[i] = p.placeOf(node)
	}
	return out
}

// VisitOrder lists visited visit indices in route order.
func (s *Solution) VisitOrder(p *Problem) []int {
	out := make([]int, 0, len(s.Route))
	for _, node := range s.Route {
		if node == 0 || node == p.EndNode() {
			continue
		}
		out = append(out, VisitIndex(node))
	}
	return out
}

// InfeasibleError names the two Fixed visits that cannot both be honored and
// by how many minutes the tighter ordering misses.
type InfeasibleError struct {
	First         string
	Second        string
	MarginMinutes int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("fixed visits %q and %q conflict by %d min", e.First, e.Second, e.MarginMinutes)
}

func (e *InfeasibleError) Is(target error) bool {
	return target == ErrInfeasible
}
