package geocode

import (
	"errors"
	"fmt"
)

// ErrNotFound means the geocoder answered but had no match for the address
var ErrNotFound = errors.New("address not found")

// GeocodingError is returned when the geocoding service could not be used:
// network failures, error statuses and unreadable answers.
type GeocodingError struct {
	Address string
	Message string
	Err     error
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocoding %q: %s: %v", e.Address, e.Message, e.Err)
	}
	return fmt.Sprintf("geocoding %q: %s", e.Address, e.Message)
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// NewGeocodingError creates a new geocoding error
func NewGeocodingError(address, message string, err error) *GeocodingError {
	return &GeocodingError{
		Address: address,
		Message: message,
		Err:     err,
	}
}
