package routing

import "sort"

// CheckFixedConflicts reports the first pair of Fixed visits, in start
// order, that cannot be sequenced in either direction given their pinned
// times and the travel between them.
func CheckFixedConflicts(p *Problem) error {
	var fixed []int
	for i, v := range p.Visits {
		if v.Fixed() {
			fixed = append(fixed, i)
		}
	}
	sort.SliceStable(fixed, func(a, b int) bool {
		return p.Visits[fixed[a]].Window.Start < p.Visits[fixed[b]].Window.Start
	})

	for k := 0; k+1 < len(fixed); k++ {
		a, b := p.Visits[fixed[k]], p.Visits[fixed[k+1]]
		forward := a.Window.Start + a.Duration + p.Travel[a.Place][b.Place] - b.Window.Start
		backward := b.Window.Start + b.Duration + p.Travel[b.Place][a.Place] - a.Window.Start
		if forward > 0 && backward > 0 {
			return &InfeasibleError{
				First:         a.ID,
				Second:        b.ID,
				MarginMinutes: min(forward, backward),
			}
		}
	}
	return nil
}
