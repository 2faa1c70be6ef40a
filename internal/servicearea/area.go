package servicearea

import (
	"fmt"

	"github.com/septafinder/backend-go/internal/config"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/septafinder/backend-go/internal/station"
)

// Center is the anchor point of the service area
type Center struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// Area is a fixed circle around Center. Points exactly MaxRadiusKm away are inside.
type Area struct {
	Center      Center
	MaxRadiusKm float64
}

// OutOfServiceAreaError reports a location farther than the maximum radius
type OutOfServiceAreaError struct {
	DistanceKm  float64
	MaxRadiusKm float64
	Center      Center
}

func (e *OutOfServiceAreaError) Error() string {
	return fmt.Sprintf("Location is outside the %s service area: %.2f km from center, maximum %.0f km",
		e.Center.Name, e.DistanceKm, e.MaxRadiusKm)
}

// NewOutOfServiceAreaError creates a new out of service area error
func NewOutOfServiceAreaError(distanceKm float64, area Area) *OutOfServiceAreaError {
	return &OutOfServiceAreaError{
		DistanceKm:  distanceKm,
		MaxRadiusKm: area.MaxRadiusKm,
		Center:      area.Center,
	}
}

func New(cfg config.ServiceAreaConfig) Area {
	return Area{
		Center: Center{
			Latitude:  cfg.CenterLat,
			Longitude: cfg.CenterLon,
			Name:      cfg.CenterName,
		},
		MaxRadiusKm: cfg.MaxRadiusKm,
	}
}

// Check returns the great-circle distance from the center in kilometers, and an
// *OutOfServiceAreaError when it exceeds the maximum radius.
func (a Area) Check(lat, lon float64) (float64, error) {
	if err := (models.Location{Latitude: lat, Longitude: lon}).Validate(); err != nil {
		return 0, err
	}
	d := station.DistanceKm(a.Center.Latitude, a.Center.Longitude, lat, lon)
	if d > a.MaxRadiusKm {
		return d, NewOutOfServiceAreaError(d, a)
	}
	return d, nil
}

func (a Area) Within(lat, lon float64) bool {
	_, err := a.Check(lat, lon)
	return err == nil
}
