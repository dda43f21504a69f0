package main

import (
	"math"
	"testing"
)

const coordTolerance = 1e-9

func TestConvertToDegrees(t *testing.T) {
	tests := []struct {
		name   string
		values []Rational
		want   float64
	}{
		{
			name:   "whole degrees",
			values: []Rational{{48, 1}, {0, 1}, {0, 1}},
			want:   48.0,
		},
		{
			name:   "degrees minutes seconds",
			values: []Rational{{48, 1}, {51, 1}, {2376, 100}},
			want:   48.8566,
		},
		{
			name:   "fractional rationals",
			values: []Rational{{2, 1}, {21, 1}, {792, 100}},
			want:   2.3522,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertToDegrees(tt.values)
			if err != nil {
				t.Fatalf("convertToDegrees() error = %v", err)
			}
			if math.Abs(got-tt.want) > coordTolerance {
				t.Errorf("convertToDegrees() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvertToDegreesMalformed(t *testing.T) {
	tests := []struct {
		name   string
		values []Rational
	}{
		{"empty", nil},
		{"two components", []Rational{{48, 1}, {51, 1}}},
		{"zero denominator", []Rational{{48, 1}, {51, 0}, {0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := convertToDegrees(tt.values)
			if err == nil {
				t.Fatal("convertToDegrees() expected error, got nil")
			}
			if !isMalformedCoordinate(err) {
				t.Errorf("expected MalformedCoordinateError, got %T", err)
			}
		})
	}
}

func TestApplyReferences(t *testing.T) {
	tests := []struct {
		name           string
		lat, lon       float64
		latRef, lonRef string
		wantLat        float64
		wantLon        float64
	}{
		{"north east unchanged", 48.8566, 2.3522, "N", "E", 48.8566, 2.3522},
		{"south negates latitude", 33.8688, 151.2093, "S", "E", -33.8688, 151.2093},
		{"west negates longitude", 40.7128, 74.0060, "N", "W", 40.7128, -74.0060},
		// A pre-negated source value with a W reference must stay negative,
		// not flip back positive
		{"west on already-negative longitude", 40.7128, -74.0060, "N", "W", 40.7128, -74.0060},
		{"lowercase refs", 33.8688, 151.2093, "s", "w", -33.8688, -151.2093},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLat, gotLon := applyReferences(tt.lat, tt.lon, tt.latRef, tt.lonRef)
			if math.Abs(gotLat-tt.wantLat) > coordTolerance {
				t.Errorf("lat = %v, want %v", gotLat, tt.wantLat)
			}
			if math.Abs(gotLon-tt.wantLon) > coordTolerance {
				t.Errorf("lon = %v, want %v", gotLon, tt.wantLon)
			}
		})
	}
}

func TestCoordinateFromMetadata(t *testing.T) {
	t.Run("photo rational triples", func(t *testing.T) {
		meta := RawMetadata{
			keyGPSLatitude:     []Rational{{48, 1}, {51, 1}, {2376, 100}},
			keyGPSLongitude:    []Rational{{2, 1}, {21, 1}, {792, 100}},
			keyGPSLatitudeRef:  "N",
			keyGPSLongitudeRef: "E",
		}

		coord, found, err := coordinateFromMetadata(meta)
		if err != nil {
			t.Fatalf("coordinateFromMetadata() error = %v", err)
		}
		if !found {
			t.Fatal("coordinateFromMetadata() found = false")
		}
		if math.Abs(coord.Lat-48.8566) > coordTolerance || math.Abs(coord.Lon-2.3522) > coordTolerance {
			t.Errorf("coordinate = %+v, want {48.8566 2.3522}", coord)
		}
	})

	t.Run("video decimal floats", func(t *testing.T) {
		meta := RawMetadata{
			keyGPSLatitude:     33.8688,
			keyGPSLongitude:    151.2093,
			keyGPSLatitudeRef:  "S",
			keyGPSLongitudeRef: "W",
		}

		coord, found, err := coordinateFromMetadata(meta)
		if err != nil || !found {
			t.Fatalf("coordinateFromMetadata() = %v, %v, %v", coord, found, err)
		}
		if coord.Lat >= 0 || coord.Lon >= 0 {
			t.Errorf("expected both negative, got %+v", coord)
		}
	})

	t.Run("missing references default to N/E", func(t *testing.T) {
		meta := RawMetadata{
			keyGPSLatitude:  []Rational{{48, 1}, {0, 1}, {0, 1}},
			keyGPSLongitude: []Rational{{2, 1}, {0, 1}, {0, 1}},
		}

		coord, found, err := coordinateFromMetadata(meta)
		if err != nil || !found {
			t.Fatalf("coordinateFromMetadata() = %v, %v, %v", coord, found, err)
		}
		if coord.Lat != 48.0 || coord.Lon != 2.0 {
			t.Errorf("coordinate = %+v, want {48 2}", coord)
		}
	})

	t.Run("no GPS fields", func(t *testing.T) {
		_, found, err := coordinateFromMetadata(RawMetadata{})
		if err != nil {
			t.Fatalf("coordinateFromMetadata() error = %v", err)
		}
		if found {
			t.Error("coordinateFromMetadata() found = true for empty metadata")
		}
	})

	t.Run("malformed rational propagates", func(t *testing.T) {
		meta := RawMetadata{
			keyGPSLatitude:  []Rational{{48, 1}},
			keyGPSLongitude: []Rational{{2, 1}, {0, 1}, {0, 1}},
		}

		_, _, err := coordinateFromMetadata(meta)
		if !isMalformedCoordinate(err) {
			t.Errorf("expected MalformedCoordinateError, got %v", err)
		}
	})

	t.Run("out of range latitude rejected", func(t *testing.T) {
		meta := RawMetadata{
			keyGPSLatitude:  []Rational{{91, 1}, {0, 1}, {0, 1}},
			keyGPSLongitude: []Rational{{2, 1}, {0, 1}, {0, 1}},
		}

		_, _, err := coordinateFromMetadata(meta)
		if !isMalformedCoordinate(err) {
			t.Errorf("expected MalformedCoordinateError, got %v", err)
		}
	})
}
