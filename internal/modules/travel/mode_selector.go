package travel

type SelectorConfig struct {
	// Legs longer than either threshold prefer a vehicle over walking or cycling.
	LongDistanceMinutes int
	LongDistanceKm      float64
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{LongDistanceMinutes: 30, LongDistanceKm: 8}
}

// ModeSelector picks the final mode for each leg of a solved route.
type ModeSelector struct {
	cfg SelectorConfig
}

func NewModeSelector(cfg SelectorConfig) *ModeSelector {
	def := DefaultSelectorConfig()
	if cfg.LongDistanceMinutes <= 0 {
		cfg.LongDistanceMinutes = def.LongDistanceMinutes
	}
	if cfg.LongDistanceKm <= 0 {
		cfg.LongDistanceKm = def.LongDistanceKm
	}
	return &ModeSelector{cfg: cfg}
}

// Select assigns exactly one enabled mode to each consecutive pair of route,
// where route holds indices into m.Places. Rules, in order: airport legs
// take car or rideshare; long walking or cycling legs take a vehicle; a
// disabled choice falls back along car > rideshare > transit > bike > walking.
func (s *ModeSelector) Select(route []int, m *Matrix, enabled []Mode) []LegAssignment {
	enabled = NormalizeModes(enabled)
	if len(route) < 2 {
		return nil
	}
	legs := make([]LegAssignment, 0, len(route)-1)
	for k := 0; k+1 < len(route); k++ {
		from, to := route[k], route[k+1]
		leg := LegAssignment{
			From:    from,
			To:      to,
			Mode:    m.Modes[from][to],
			Minutes: m.Minutes[from][to],
			Reason:  ReasonMatrix,
		}

		switch {
		case m.Places[from].LooksLikeAirport() || m.Places[to].LooksLikeAirport():
			if pick, ok := firstEnabled(enabled, ModeCar, ModeRideshare); ok {
				leg.Mode, leg.Reason = pick, ReasonAirport
			}
		case leg.Mode.HumanPowered() && s.isLong(m.Places[from], m.Places[to], leg.Minutes):
			if pick, ok := firstEnabled(enabled, ModeCar, ModeRideshare, ModeTransit); ok {
				leg.Mode, leg.Reason = pick, ReasonLongDistance
			}
		}

		if !containsMode(enabled, leg.Mode) {
			leg.Mode, leg.Reason = fallbackMode(enabled), ReasonFallback
		}
		if leg.Reason != ReasonMatrix {
			if minutes, ok := m.MinutesFor(from, to, leg.Mode); ok {
				leg.Minutes = minutes
			}
		}
		legs = append(legs, leg)
	}
	return legs
}

func (s *ModeSelector) isLong(from, to Place, minutes int) bool {
	if minutes > s.cfg.LongDistanceMinutes {
		return true
	}
	if from.HasCoords() && to.HasCoords() {
		return DistanceKm(*from.Point, *to.Point) > s.cfg.LongDistanceKm
	}
	return false
}

func firstEnabled(enabled []Mode, candidates ...Mode) (Mode, bool) {
	for _, c := range candidates {
		if containsMode(enabled, c) {
			return c, true
		}
	}
	return "", false
}
