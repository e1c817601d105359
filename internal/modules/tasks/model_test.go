package tasks

import (
	"testing"
	"time"

	"calroute/internal/modules/routing"
)

func TestRawTask_ToTask(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	nine := anchor.Add(9 * time.Hour)
	ten := anchor.Add(10 * time.Hour)
	lat, lng := 40.7, -74.0
	office := &Location{ID: 7, Name: "Office", Address: "1 Main St", Lat: &lat, Lng: &lng}

	tests := []struct {
		name     string
		row      RawTask
		priority routing.Priority
		window   routing.Window
		duration int
	}{
		{
			name:     "calendar event is fixed",
			row:      RawTask{ID: 1, Source: SourceCalendar, Start: &nine, End: &ten, Location: office},
			priority: routing.PriorityFixed,
			window:   routing.Window{Start: 540, End: 600},
			duration: 60,
		},
		{
			name:     "priority one is fixed",
			row:      RawTask{ID: 2, Source: SourceNote, Priority: 1, Start: &nine, DurationMinutes: 20},
			priority: routing.PriorityFixed,
			window:   routing.Window{Start: 540, End: 1440},
			duration: 20,
		},
		{
			name:     "priority two is high",
			row:      RawTask{ID: 3, Source: SourceNote, Priority: 2},
			priority: routing.PriorityFlexibleHigh,
			window:   routing.Window{Start: 0, End: 1440},
			duration: 30,
		},
		{
			name:     "calendar without end is low",
			row:      RawTask{ID: 4, Source: SourceCalendar, Priority: 3, Start: &nine, DurationMinutes: 45},
			priority: routing.PriorityFlexibleLow,
			window:   routing.Window{Start: 540, End: 1440},
			duration: 45,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.row.ToTask(anchor)
			if got.Priority != tt.priority {
				t.Errorf("priority = %s, want %s", got.Priority, tt.priority)
			}
			if got.Window != tt.window {
				t.Errorf("window = %+v, want %+v", got.Window, tt.window)
			}
			if got.Duration != tt.duration {
				t.Errorf("duration = %d, want %d", got.Duration, tt.duration)
			}
		})
	}
}

func TestLocation_Place(t *testing.T) {
	lat, lng := 1.5, 2.5
	p := Location{Name: "Gym", Address: " 12  Oak Ave ", Lat: &lat, Lng: &lng}.Place()
	if p.Key != "12 oak ave" || p.Label != "Gym" {
		t.Fatalf("place = %+v", p)
	}
	if p.Point == nil || p.Point.Lat != 1.5 {
		t.Fatalf("point = %v", p.Point)
	}

	bare := Location{Name: "Corner Shop"}.Place()
	if bare.Key != "corner shop" || bare.HasCoords() {
		t.Fatalf("place = %+v", bare)
	}
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	from, to := dayBounds(time.Date(2026, 3, 2, 17, 30, 0, 0, loc))
	if !from.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, loc)) || to.Sub(from) != 24*time.Hour {
		t.Fatalf("bounds = %s..%s", from, to)
	}
}
