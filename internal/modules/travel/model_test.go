package travel

import (
	"testing"

	"calroute/internal/types"
)

func TestNewPlaceNormalizesKey(t *testing.T) {
	p := NewPlace("  1 Market St,\n  San Francisco ")
	if p.Key != "1 market st, san francisco" {
		t.Errorf("Key = %q", p.Key)
	}
	if p.Label != "1 Market St,\n  San Francisco" {
		t.Errorf("Label = %q", p.Label)
	}
	if p.HasCoords() {
		t.Error("address place should have no coordinates")
	}
}

func TestNewPointPlace(t *testing.T) {
	p := NewPointPlace("current", types.Point{Lat: 37.5, Lng: -122.25})
	if p.Key != "37.500000,-122.250000" {
		t.Errorf("Key = %q", p.Key)
	}
	if !p.HasCoords() {
		t.Error("expected coordinates")
	}
}

func TestLooksLikeAirport(t *testing.T) {
	tests := []struct {
		place Place
		want  bool
	}{
		{place: NewPlace("San Francisco International Airport"), want: true},
		{place: Place{Key: "37.6,-122.3", Label: "SFO airport"}, want: true},
		{place: NewPlace("Airportway Diner"), want: false},
		{place: NewPlace("1 Market St"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.place.Key, func(t *testing.T) {
			if got := tt.place.LooksLikeAirport(); got != tt.want {
				t.Errorf("LooksLikeAirport() = %v, want %v", got, tt.want)
			}
		})
	}
}
