package models

import "math"

// Location is a resolved latitude/longitude pair in degrees
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return InvalidCoordinatesError{Latitude: l.Latitude, Longitude: l.Longitude}
	}
	return nil
}

type InvalidCoordinatesError struct {
	Latitude  float64
	Longitude float64
}

func (e InvalidCoordinatesError) Error() string {
	return "Invalid coordinates: latitude must be within [-90, 90] and longitude within [-180, 180]"
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
