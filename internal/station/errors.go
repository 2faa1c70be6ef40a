package station

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned by queries made before a dataset is loaded or after
// it was unloaded.
var ErrNotLoaded = errors.New("station index not loaded")

// DataLoadError is returned when the station dataset is missing, malformed or empty
type DataLoadError struct {
	Source  string
	Message string
	Err     error
}

func (e *DataLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loading stations from %s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("loading stations from %s: %s", e.Source, e.Message)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// NewDataLoadError creates a new data load error
func NewDataLoadError(source, message string, err error) *DataLoadError {
	return &DataLoadError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}
