package services

import (
	"errors"
	"fmt"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

var (
	ErrNotConfigured      = errors.New("provider not configured")
	ErrEmptyResponse      = errors.New("provider returned an empty response")
	ErrIPProvider         = errors.New("ip-api failed")
	ErrGeocodingProvider  = errors.New("geocoding failed")
	ErrWeatherProvider    = errors.New("weather fetch failed")
	ErrIPLookupUnresolved = errors.New("ip location lookup failed")
)

// UpstreamError carries a non-2xx answer from a third-party API.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.Provider, e.Status)
}

// IPLookupError is returned when ip-api answered but could not resolve the
// address (private ranges, malformed input).
type IPLookupError struct {
	Location *models.IPLocation
}

func (e *IPLookupError) Error() string {
	return fmt.Sprintf("%v: %s", ErrIPLookupUnresolved, e.Location.Message)
}

func (e *IPLookupError) Unwrap() error { return ErrIPLookupUnresolved }
