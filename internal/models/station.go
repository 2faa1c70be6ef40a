package models

import (
	"fmt"
)

// Station is one fixed-rail stop from the loaded dataset. Properties holds every
// non-geometry attribute of the source record, including the name column.
type Station struct {
	Name       string                 `json:"name"`
	Latitude   float64                `json:"latitude"`
	Longitude  float64                `json:"longitude"`
	Properties map[string]interface{} `json:"properties"`
}

const (
	FeatureType = "Feature"
	PointType   = "Point"
)

// Feature is a GeoJSON point feature
type Feature struct {
	Type       string                 `json:"type" dynamodbav:"type"`
	Geometry   Geometry               `json:"geometry" dynamodbav:"geometry"`
	Properties map[string]interface{} `json:"properties" dynamodbav:"properties"`
}

// Geometry holds a GeoJSON position, always [lon, lat]
type Geometry struct {
	Type        string    `json:"type" dynamodbav:"type"`
	Coordinates []float64 `json:"coordinates" dynamodbav:"coordinates"`
}

// StationName picks the display name the way the dataset is usually labelled:
// a "Name" column, then "name", then a positional fallback.
func StationName(props map[string]interface{}, idx int) string {
	for _, key := range []string{"Name", "name"} {
		if v, ok := props[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("Station %d", idx)
}

// ToFeature converts the station to a GeoJSON feature. The geometry column never
// appears in the properties.
func (s Station) ToFeature() Feature {
	props := make(map[string]interface{}, len(s.Properties))
	for k, v := range s.Properties {
		if k == "geometry" {
			continue
		}
		props[k] = v
	}
	return Feature{
		Type: FeatureType,
		Geometry: Geometry{
			Type:        PointType,
			Coordinates: []float64{s.Longitude, s.Latitude},
		},
		Properties: props,
	}
}

// StationFromFeature reads a point feature back into a Station.
func StationFromFeature(f Feature, idx int) (Station, error) {
	if f.Geometry.Type != PointType {
		return Station{}, fmt.Errorf("feature %d: unsupported geometry type %q", idx, f.Geometry.Type)
	}
	if len(f.Geometry.Coordinates) < 2 {
		return Station{}, fmt.Errorf("feature %d: point has %d coordinates", idx, len(f.Geometry.Coordinates))
	}
	loc := Location{Latitude: f.Geometry.Coordinates[1], Longitude: f.Geometry.Coordinates[0]}
	if err := loc.Validate(); err != nil {
		return Station{}, fmt.Errorf("feature %d: %w", idx, err)
	}

	props := make(map[string]interface{}, len(f.Properties))
	for k, v := range f.Properties {
		if k == "geometry" {
			continue
		}
		props[k] = v
	}
	return Station{
		Name:       StationName(props, idx),
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Properties: props,
	}, nil
}
