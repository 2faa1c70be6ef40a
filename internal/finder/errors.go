package finder

import "fmt"

// ValidationError reports a request that names no location or an invalid one
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ResolutionError reports an address the geocoder could not place
type ResolutionError struct {
	Address string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("Could not geocode address: %s", e.Address)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// NewResolutionError creates a new resolution error
func NewResolutionError(address string, err error) *ResolutionError {
	return &ResolutionError{
		Address: address,
		Err:     err,
	}
}
