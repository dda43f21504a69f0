package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rational represents a single EXIF rational value (numerator/denominator)
type Rational struct {
	Num int64
	Den int64
}

// Coordinate represents a GPS position in signed decimal degrees
type Coordinate struct {
	Lat float64
	Lon float64
}

// MalformedCoordinateError represents GPS data that is absent, incomplete or non-numeric
type MalformedCoordinateError struct {
	Reason string
}

func (e *MalformedCoordinateError) Error() string {
	return fmt.Sprintf("malformed GPS coordinate: %s", e.Reason)
}

// isMalformedCoordinate checks if the error is due to unusable GPS data
func isMalformedCoordinate(err error) bool {
	_, ok := err.(*MalformedCoordinateError)
	return ok
}

// Metadata keys produced by the extractors for GPS fields
const (
	keyGPSLatitude     = "GPSLatitude"
	keyGPSLongitude    = "GPSLongitude"
	keyGPSLatitudeRef  = "GPSLatitudeRef"
	keyGPSLongitudeRef = "GPSLongitudeRef"
)

// convertToDegrees converts a degrees/minutes/seconds rational triple to decimal degrees
func convertToDegrees(values []Rational) (float64, error) {
	if len(values) < 3 {
		return 0, &MalformedCoordinateError{
			Reason: fmt.Sprintf("expected 3 rational components, got %d", len(values)),
		}
	}

	parts := make([]float64, 3)
	for i := 0; i < 3; i++ {
		if values[i].Den == 0 {
			return 0, &MalformedCoordinateError{Reason: "zero denominator in rational value"}
		}
		parts[i] = float64(values[i].Num) / float64(values[i].Den)
	}

	return parts[0] + parts[1]/60.0 + parts[2]/3600.0, nil
}

// applyReferences applies hemisphere reference characters to raw decimal coordinates.
// "S" negates latitude. "W" forces longitude negative via -abs(lon), so a source
// value that was already signed still comes out negative rather than double-negated.
func applyReferences(lat, lon float64, latRef, lonRef string) (float64, float64) {
	if strings.ToUpper(strings.TrimSpace(latRef)) == "S" {
		lat = -lat
	}
	if strings.ToUpper(strings.TrimSpace(lonRef)) == "W" {
		lon = -math.Abs(lon)
	}
	return lat, lon
}

// coordinateFromMetadata extracts a signed decimal coordinate from raw metadata.
// Photo extractors provide DMS rational triples; video extractors provide
// pre-computed decimal floats. Returns found=false when no GPS fields exist.
func coordinateFromMetadata(meta RawMetadata) (coord Coordinate, found bool, err error) {
	latVal, hasLat := meta[keyGPSLatitude]
	lonVal, hasLon := meta[keyGPSLongitude]
	if !hasLat || !hasLon {
		return Coordinate{}, false, nil
	}

	lat, err := decodeCoordinateValue(latVal)
	if err != nil {
		return Coordinate{}, false, err
	}
	lon, err := decodeCoordinateValue(lonVal)
	if err != nil {
		return Coordinate{}, false, err
	}

	// Missing references default to the northern/eastern hemisphere
	latRef := stringValue(meta[keyGPSLatitudeRef], "N")
	lonRef := stringValue(meta[keyGPSLongitudeRef], "E")

	lat, lon = applyReferences(lat, lon, latRef, lonRef)

	if lat < -90.0 || lat > 90.0 {
		return Coordinate{}, false, &MalformedCoordinateError{
			Reason: fmt.Sprintf("latitude %f out of valid range [-90, 90]", lat),
		}
	}
	if lon < -180.0 || lon > 180.0 {
		return Coordinate{}, false, &MalformedCoordinateError{
			Reason: fmt.Sprintf("longitude %f out of valid range [-180, 180]", lon),
		}
	}

	return Coordinate{Lat: lat, Lon: lon}, true, nil
}

// decodeCoordinateValue converts one metadata GPS value into raw decimal degrees
func decodeCoordinateValue(value any) (float64, error) {
	switch v := value.(type) {
	case []Rational:
		return convertToDegrees(v)
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &MalformedCoordinateError{Reason: fmt.Sprintf("non-numeric value %q", v)}
		}
		return f, nil
	default:
		return 0, &MalformedCoordinateError{Reason: fmt.Sprintf("unsupported value type %T", value)}
	}
}

// stringValue coerces a metadata value to a string with a fallback default
func stringValue(value any, def string) string {
	if value == nil {
		return def
	}
	s := fmt.Sprintf("%v", value)
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
