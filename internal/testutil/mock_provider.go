package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"calroute/internal/modules/travel"
)

// BatchCall tracks a call to the provider.
type BatchCall struct {
	Mode         travel.Mode
	Origins      []string
	Destinations []string
}

// MockProvider is a scripted travel.Provider. Durations are looked up by
// (origin, destination, provider mode); a leg with no entry answers
// ZERO_RESULTS unless DefaultMinutes is positive.
type MockProvider struct {
	mu             sync.Mutex
	minutes        map[string]int
	failures       map[travel.ProviderMode]error
	DefaultMinutes int
	Calls          []BatchCall
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		minutes:  make(map[string]int),
		failures: make(map[travel.ProviderMode]error),
	}
}

func legKey(origin, dest string, mode travel.ProviderMode) string {
	return fmt.Sprintf("%s->%s|%s", origin, dest, mode)
}

// SetMinutes sets the duration of a leg for a mode's provider vocabulary.
func (m *MockProvider) SetMinutes(origin, dest string, mode travel.Mode, minutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minutes[legKey(origin, dest, mode.Provider())] = minutes
}

// SetSymmetric sets the same duration in both directions.
func (m *MockProvider) SetSymmetric(a, b string, mode travel.Mode, minutes int) {
	m.SetMinutes(a, b, mode, minutes)
	m.SetMinutes(b, a, mode, minutes)
}

// FailMode makes every batch for mode return err.
func (m *MockProvider) FailMode(mode travel.Mode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[mode.Provider()] = err
}

func (m *MockProvider) BatchDurations(ctx context.Context, origins, destinations []travel.Place, mode travel.Mode) ([][]travel.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	call := BatchCall{Mode: mode}
	for _, o := range origins {
		call.Origins = append(call.Origins, o.Key)
	}
	for _, d := range destinations {
		call.Destinations = append(call.Destinations, d.Key)
	}
	m.Calls = append(m.Calls, call)

	if err, ok := m.failures[mode.Provider()]; ok {
		return nil, err
	}

	rows := make([][]travel.Element, len(origins))
	for i, o := range origins {
		rows[i] = make([]travel.Element, len(destinations))
		for j, d := range destinations {
			minutes, ok := m.minutes[legKey(o.Key, d.Key, mode.Provider())]
			if !ok && m.DefaultMinutes > 0 {
				minutes, ok = m.DefaultMinutes, true
			}
			if !ok {
				rows[i][j] = travel.Element{Status: travel.StatusZeroResults}
				continue
			}
			rows[i][j] = travel.Element{
				Status:   travel.StatusOK,
				Duration: time.Duration(minutes)*time.Minute + 59*time.Second,
			}
		}
	}
	return rows, nil
}

// CallCount returns the number of batches served so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsFor returns the batches served for one provider mode.
func (m *MockProvider) CallsFor(mode travel.Mode) []BatchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BatchCall
	for _, c := range m.Calls {
		if c.Mode.Provider() == mode.Provider() {
			out = append(out, c)
		}
	}
	return out
}
