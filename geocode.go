package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// geocodeTimeout is the fixed per-attempt timeout for reverse geocoding calls
const geocodeTimeout = 10 * time.Second

// Address holds the hierarchical address components returned by a
// reverse-geocoding backend, most specific first.
type Address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	Suburb  string `json:"suburb"`
	State   string `json:"state"`
	County  string `json:"county"`
	Country string `json:"country"`
}

// IsEmpty reports whether the backend returned no usable address components
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// Geocoder converts coordinates to place details
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
}

// GeocodeTimeoutError represents a reverse-geocoding attempt that exceeded
// its per-attempt timeout. Eligible for retry; other failures are not.
type GeocodeTimeoutError struct {
	Err error
}

func (e *GeocodeTimeoutError) Error() string {
	return fmt.Sprintf("geocoding timed out: %v", e.Err)
}

func (e *GeocodeTimeoutError) Unwrap() error {
	return e.Err
}

// isGeocodeTimeout checks if the error is a retryable timeout
func isGeocodeTimeout(err error) bool {
	var te *GeocodeTimeoutError
	return errors.As(err, &te)
}

// classifyGeocodeError wraps timeout-shaped transport failures in
// GeocodeTimeoutError and passes everything else through unchanged
func classifyGeocodeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &GeocodeTimeoutError{Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &GeocodeTimeoutError{Err: err}
	}
	return err
}

// reverseResponse is the Nominatim-format reverse geocoding payload, shared
// by the open backend and the LocationIQ-compatible commercial backend.
// A response with the top-level error field set is an empty result, not a failure.
type reverseResponse struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	ErrorMsg    string  `json:"error"`
}

// nominatimGeocoder resolves coordinates against the OpenStreetMap Nominatim API
type nominatimGeocoder struct {
	baseURL string
	email   string // contact address, per the Nominatim usage policy
	client  *http.Client
}

// newNominatimGeocoder creates a geocoder backed by nominatim.openstreetmap.org
func newNominatimGeocoder(email string) *nominatimGeocoder {
	return &nominatimGeocoder{
		baseURL: "https://nominatim.openstreetmap.org/reverse",
		email:   email,
		client:  &http.Client{Timeout: geocodeTimeout},
	}
}

// ReverseGeocode converts GPS coordinates to address components
func (g *nominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "en")
	if g.email != "" {
		params.Set("email", g.email)
	}

	return fetchReverse(ctx, g.client, g.baseURL+"?"+params.Encode())
}

// locationIQGeocoder resolves coordinates against the LocationIQ commercial
// API, which speaks the same reverse-geocoding dialect with a key parameter
type locationIQGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// newLocationIQGeocoder creates a geocoder backed by the LocationIQ API
func newLocationIQGeocoder(apiKey string) *locationIQGeocoder {
	return &locationIQGeocoder{
		baseURL: "https://us1.locationiq.com/v1/reverse",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: geocodeTimeout},
	}
}

// ReverseGeocode converts GPS coordinates to address components
func (g *locationIQGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "en")

	return fetchReverse(ctx, g.client, g.baseURL+"?"+params.Encode())
}

// fetchReverse performs one reverse-geocoding HTTP round trip
func fetchReverse(ctx context.Context, client *http.Client, reqURL string) (Address, error) {
	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Address{}, fmt.Errorf("building geocoding request: %v", err)
	}
	req.Header.Set("User-Agent", "photo-organizer")

	resp, err := client.Do(req)
	if err != nil {
		return Address{}, classifyGeocodeError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("geocoding API returned status: %d", resp.StatusCode)
	}

	var result reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Address{}, fmt.Errorf("failed to parse geocoding response: %v", err)
	}

	if result.ErrorMsg != "" {
		// "Unable to geocode" and friends: an empty result, not a failure
		return Address{}, nil
	}

	return result.Address, nil
}
