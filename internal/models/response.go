package models

// LocationInput is the body of a find-nearest-station request. Coordinates are
// pointers so that an omitted value can be told apart from zero.
type LocationInput struct {
	Address   string   `json:"address" form:"address"`
	Latitude  *float64 `json:"latitude" form:"latitude"`
	Longitude *float64 `json:"longitude" form:"longitude"`
}

// StationResponse is the nearest-station result, also the cached value.
type StationResponse struct {
	StationName       string             `json:"station_name" dynamodbav:"stationName"`
	DistanceKm        float64            `json:"distance_km" dynamodbav:"distanceKm"`
	GeoJSON           Feature            `json:"geojson" dynamodbav:"geojson"`
	WalkingDirections *WalkingDirections `json:"walking_directions" dynamodbav:"walkingDirections"`
}

// WalkingDirections is the normalized routing answer. Distance is in kilometers,
// Duration in minutes.
type WalkingDirections struct {
	Distance float64         `json:"distance" dynamodbav:"distance"`
	Duration float64         `json:"duration" dynamodbav:"duration"`
	Steps    []DirectionStep `json:"steps" dynamodbav:"steps"`
}

type DirectionStep struct {
	Instruction    string  `json:"instruction" dynamodbav:"instruction"`
	DistanceMeters float64 `json:"distance_meters" dynamodbav:"distanceMeters"`
}
