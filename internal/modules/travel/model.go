// README: Travel domain types: places, provider elements, matrices, gaps and leg assignments.
package travel

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"calroute/internal/types"
)

var (
	ErrNoPlaces = errors.New("no places to build a matrix for")
	ErrNoModes  = errors.New("no enabled travel modes")
)

var (
	spaceRun       = regexp.MustCompile(`\s+`)
	airportPattern = regexp.MustCompile(`(?i)\bairports?\b`)
)

// Place is a resolvable location. Key identifies it in the cache and in
// provider requests; it is either a normalized address or "lat,lng".
type Place struct {
	Key   string       `json:"key"`
	Label string       `json:"label,omitempty"`
	Point *types.Point `json:"point,omitempty"`
}

// NewPlace builds a place from free text, normalizing whitespace.
func NewPlace(address string) Place {
	label := strings.TrimSpace(address)
	return Place{Key: NormalizeKey(label), Label: label}
}

// NewPointPlace builds a place from coordinates. The key is the coordinate
// string so that it is usable by the provider as-is.
func NewPointPlace(label string, p types.Point) Place {
	pt := p
	return Place{Key: p.String(), Label: strings.TrimSpace(label), Point: &pt}
}

func NormalizeKey(v string) string {
	return strings.ToLower(spaceRun.ReplaceAllString(strings.TrimSpace(v), " "))
}

func (p Place) HasCoords() bool {
	return p.Point != nil
}

// LooksLikeAirport is the heuristic used for gap filling and mode overrides.
func (p Place) LooksLikeAirport() bool {
	return airportPattern.MatchString(p.Key) || airportPattern.MatchString(p.Label)
}

// Element statuses reported by providers.
const (
	StatusOK          = "OK"
	StatusNotFound    = "NOT_FOUND"
	StatusZeroResults = "ZERO_RESULTS"
)

// Element is one origin/destination cell of a provider response.
type Element struct {
	Status         string
	Duration       time.Duration
	DistanceMeters int
}

func (e Element) OK() bool {
	return e.Status == StatusOK
}

// GapReason says how a missing leg was estimated.
type GapReason string

const (
	GapAirport  GapReason = "airport_estimate"
	GapTriangle GapReason = "triangle_estimate"
	GapFallback GapReason = "fallback_cap"
)

// DataGap records a leg the provider could not supply. Gaps are recovered
// locally and reported, never returned as errors.
type DataGap struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Reason  GapReason `json:"reason"`
	Minutes int       `json:"minutes"`
}

// Matrix is the merged N x N travel-time matrix over a list of places.
// Minutes[i][j] is the best suitable duration across enabled modes and
// Modes[i][j] the mode that achieved it.
type Matrix struct {
	Places    []Place
	Minutes   [][]int
	Modes     [][]Mode
	Estimated [][]bool
	Gaps      []DataGap
	// ByMode keeps each provider mode's own durations, -1 where unknown.
	ByMode map[ProviderMode][][]int
}

func (m *Matrix) Size() int {
	return len(m.Minutes)
}

// MinutesFor is the provider duration of leg i->j in mode, if one was fetched.
func (m *Matrix) MinutesFor(i, j int, mode Mode) (int, bool) {
	d, ok := m.ByMode[mode.Provider()]
	if !ok || i >= len(d) || j >= len(d[i]) || d[i][j] == unresolved {
		return 0, false
	}
	return d[i][j], true
}

// OverrideReason explains why the selector changed the matrix mode.
type OverrideReason string

const (
	ReasonMatrix       OverrideReason = "matrix"
	ReasonAirport      OverrideReason = "airport"
	ReasonLongDistance OverrideReason = "long_distance"
	ReasonFallback     OverrideReason = "fallback"
)

// LegAssignment is the final mode choice for one consecutive pair of the route.
// Minutes is the chosen mode's duration when the provider supplied one, and
// the planning duration the solver used otherwise.
type LegAssignment struct {
	From    int            `json:"from"`
	To      int            `json:"to"`
	Mode    Mode           `json:"mode"`
	Minutes int            `json:"minutes"`
	Reason  OverrideReason `json:"reason"`
}
