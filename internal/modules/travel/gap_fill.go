package travel

import "log"

// fillGaps estimates every unresolved off-diagonal leg: a fixed airport
// estimate, else the best two-leg path through a third place with direct
// data, else the fallback cap. Estimates only read direct data, so the
// result does not depend on fill order.
func (b *MatrixBuilder) fillGaps(m *Matrix, modes []Mode) {
	n := m.Size()
	direct := make([][]int, n)
	for i := range m.Minutes {
		direct[i] = append([]int(nil), m.Minutes[i]...)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || direct[i][j] != unresolved {
				continue
			}
			var minutes int
			var reason GapReason
			switch {
			case m.Places[i].LooksLikeAirport() || m.Places[j].LooksLikeAirport():
				minutes, reason = b.cfg.AirportMinutes, GapAirport
			default:
				if est, ok := triangleEstimate(direct, i, j); ok {
					minutes, reason = est, GapTriangle
				} else {
					minutes, reason = b.cfg.FallbackMinutes, GapFallback
				}
			}
			m.Minutes[i][j] = minutes
			m.Modes[i][j] = modes[0]
			m.Estimated[i][j] = true
			m.Gaps = append(m.Gaps, DataGap{
				From:    m.Places[i].Key,
				To:      m.Places[j].Key,
				Reason:  reason,
				Minutes: minutes,
			})
			log.Printf("[MATRIX] gap %s -> %s filled with %d min (%s)", m.Places[i].Key, m.Places[j].Key, minutes, reason)
		}
	}
}

func triangleEstimate(direct [][]int, i, j int) (int, bool) {
	best, found := 0, false
	for k := range direct {
		if k == i || k == j {
			continue
		}
		a, c := direct[i][k], direct[k][j]
		if a == unresolved || c == unresolved {
			continue
		}
		if !found || a+c < best {
			best, found = a+c, true
		}
	}
	return best, found
}
