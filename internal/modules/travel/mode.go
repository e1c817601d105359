// README: Travel mode vocabulary and its mapping onto provider modes.
package travel

import (
	"fmt"
	"strings"
)

// Mode is a user-facing travel mode.
type Mode string

const (
	ModeCar       Mode = "car"
	ModeRideshare Mode = "rideshare"
	ModeTransit   Mode = "bus_train"
	ModeBike      Mode = "bike"
	ModeWalking   Mode = "walking"
)

// ProviderMode is the vocabulary a TravelCostProvider understands.
type ProviderMode string

const (
	ProviderDriving   ProviderMode = "driving"
	ProviderBicycling ProviderMode = "bicycling"
	ProviderTransit   ProviderMode = "transit"
	ProviderWalking   ProviderMode = "walking"
)

// preferenceOrder is the fallback order when a preferred mode is disabled.
var preferenceOrder = []Mode{ModeCar, ModeRideshare, ModeTransit, ModeBike, ModeWalking}

var providerModes = map[Mode]ProviderMode{
	ModeCar:       ProviderDriving,
	ModeRideshare: ProviderDriving,
	ModeTransit:   ProviderTransit,
	ModeBike:      ProviderBicycling,
	ModeWalking:   ProviderWalking,
}

func ParseMode(v string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(v)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown travel mode %q", v)
	}
	return m, nil
}

// ParseModes parses and deduplicates a list of modes. Unknown names fail.
func ParseModes(values []string) ([]Mode, error) {
	out := make([]Mode, 0, len(values))
	for _, v := range values {
		m, err := ParseMode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return NormalizeModes(out), nil
}

func (m Mode) Valid() bool {
	_, ok := providerModes[m]
	return ok
}

func (m Mode) Provider() ProviderMode {
	return providerModes[m]
}

// Motorized reports whether the mode is a private vehicle.
func (m Mode) Motorized() bool {
	return m == ModeCar || m == ModeRideshare
}

// Human-powered modes are subject to distance suitability limits.
func (m Mode) HumanPowered() bool {
	return m == ModeWalking || m == ModeBike
}

// NormalizeModes drops invalid and duplicate modes and orders the rest by
// fallback preference, so ties between modes resolve the same way every run.
func NormalizeModes(modes []Mode) []Mode {
	enabled := make(map[Mode]bool, len(modes))
	for _, m := range modes {
		if m.Valid() {
			enabled[m] = true
		}
	}
	out := make([]Mode, 0, len(enabled))
	for _, m := range preferenceOrder {
		if enabled[m] {
			out = append(out, m)
		}
	}
	return out
}

func containsMode(modes []Mode, m Mode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}

// fallbackMode returns the first enabled mode in preference order.
func fallbackMode(enabled []Mode) Mode {
	for _, m := range preferenceOrder {
		if containsMode(enabled, m) {
			return m
		}
	}
	return ModeCar
}
