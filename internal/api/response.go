package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/auth"
	"github.com/septafinder/backend-go/internal/cache"
	"github.com/septafinder/backend-go/internal/finder"
	"github.com/septafinder/backend-go/internal/geocode"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/septafinder/backend-go/internal/servicearea"
	"github.com/septafinder/backend-go/internal/station"
)

const (
	MessageInternal          = "Internal Server Error"
	MessageInvalidCreds      = "Could not validate credentials"
	MessageIncorrectLogin    = "Incorrect username or password"
	MessageUnresolvable      = "Could not geocode the provided address"
	MessageGeocoderDown      = "Geocoding service unavailable"
	MessageOutOfServiceArea  = "Location is outside of SEPTA's service area"
	MessageUserAlreadyExists = "Username or email already registered"
)

// ErrorResponse is the body of every failed call. Detail is a string, except
// for out-of-area rejections where it carries the measured distance.
type ErrorResponse struct {
	Detail interface{} `json:"detail"`
}

type ServiceAreaDetail struct {
	Message            string             `json:"message"`
	DistanceKm         float64            `json:"distance_km"`
	MaxServiceRadiusKm float64            `json:"max_service_radius_km"`
	ServiceCenter      servicearea.Center `json:"service_center"`
}

type RootResponse struct {
	Version string `json:"version"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status       string            `json:"status"`
	StationsOK   bool              `json:"stations_loaded"`
	StationCount int               `json:"station_count"`
	Cache        map[string]uint64 `json:"cache"`
}

func NewErrorResponse(detail interface{}) *ErrorResponse {
	return &ErrorResponse{Detail: detail}
}

// FromError maps an error to the status and body returned to the caller.
// Infrastructure failures are logged in full and rendered generically.
func FromError(err error) (int, *ErrorResponse) {
	var (
		validationErr *finder.ValidationError
		resolutionErr *finder.ResolutionError
		outOfAreaErr  *servicearea.OutOfServiceAreaError
		geocodingErr  *geocode.GeocodingError
		registerErr   *auth.RegistrationError
		storeErr      *cache.StoreUnavailableError
		coordErr      models.InvalidCoordinatesError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, NewErrorResponse(validationErr.Message)
	case errors.As(err, &coordErr):
		return http.StatusBadRequest, NewErrorResponse(coordErr.Error())
	case errors.As(err, &resolutionErr):
		return http.StatusBadRequest, NewErrorResponse(MessageUnresolvable)
	case errors.As(err, &outOfAreaErr):
		return http.StatusUnprocessableEntity, NewErrorResponse(ServiceAreaDetail{
			Message:            MessageOutOfServiceArea,
			DistanceKm:         models.Round(outOfAreaErr.DistanceKm, 2),
			MaxServiceRadiusKm: outOfAreaErr.MaxRadiusKm,
			ServiceCenter:      outOfAreaErr.Center,
		})
	case errors.As(err, &geocodingErr):
		log.Error().Err(err).Msg("Geocoding failed")
		return http.StatusBadGateway, NewErrorResponse(MessageGeocoderDown)
	case errors.As(err, &registerErr):
		return http.StatusBadRequest, NewErrorResponse(registerErr.Problems)
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, NewErrorResponse(MessageUserAlreadyExists)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusBadRequest, NewErrorResponse(MessageIncorrectLogin)
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, NewErrorResponse(MessageInvalidCreds)
	case errors.As(err, &storeErr):
		log.Error().Err(err).Msg("Cache store unavailable")
	case errors.Is(err, station.ErrNotLoaded):
		log.Error().Err(err).Msg("Station index not loaded")
	default:
		log.Error().Err(err).Msg("Unhandled error")
	}
	return http.StatusInternalServerError, NewErrorResponse(MessageInternal)
}

// LambdaError builds an API Gateway response for failures that happen before
// a request reaches the router.
func LambdaError(message string, statusCode int) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(NewErrorResponse(message))

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}
