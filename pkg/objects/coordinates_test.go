package objects

import (
	"math"
	"testing"
)

func TestCoordinates_DistanceTo(t *testing.T) {
	tests := []struct {
		name      string
		from      Coordinates
		to        Coordinates
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "Central to Tsim Sha Tsui (~2.1 km)",
			from:      Coordinates{Lat: 22.2819, Lng: 114.1582},
			to:        Coordinates{Lat: 22.2976, Lng: 114.1722},
			wantKm:    2.25,
			tolerance: 0.1,
		},
		{
			name:      "same point returns zero",
			from:      Coordinates{Lat: 22.3193, Lng: 114.1694},
			to:        Coordinates{Lat: 22.3193, Lng: 114.1694},
			wantKm:    0,
			tolerance: 0.0001,
		},
		{
			name:      "equator quarter circumference",
			from:      Coordinates{Lat: 0, Lng: 0},
			to:        Coordinates{Lat: 0, Lng: 90},
			wantKm:    math.Pi / 2 * 6371,
			tolerance: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.from.DistanceTo(tt.to)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceTo() = %.3f km, want %.3f km (±%.3f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestCoordinates_DistanceSymmetry(t *testing.T) {
	a := Coordinates{Lat: 22.2819, Lng: 114.1582}
	b := Coordinates{Lat: 22.3700, Lng: 114.1140}
	if a.DistanceTo(b) != b.DistanceTo(a) {
		t.Error("distance is not symmetric")
	}
}
