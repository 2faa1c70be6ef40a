package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/septafinder/backend-go/pkg/http/client"
)

// ErrDirectionsUnavailable wraps every routing failure. Callers treat it as
// "no directions" rather than a failed request.
var ErrDirectionsUnavailable = errors.New("walking directions unavailable")

const unnamedStep = "continue"

// Provider returns walking directions between two points
type Provider interface {
	Walking(ctx context.Context, from, to models.Location) (*models.WalkingDirections, error)
}

// OSRM talks to an OSRM routing server using the foot profile
type OSRM struct {
	httpClient client.Interface
}

func NewOSRM(httpClient client.Interface) *OSRM {
	return &OSRM{httpClient: httpClient}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Steps []struct {
				Name     string  `json:"name"`
				Distance float64 `json:"distance"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func (o *OSRM) Walking(ctx context.Context, from, to models.Location) (*models.WalkingDirections, error) {
	path := fmt.Sprintf("/route/v1/foot/%s,%s;%s,%s?steps=true",
		coord(from.Longitude), coord(from.Latitude), coord(to.Longitude), coord(to.Latitude))

	resp, err := o.httpClient.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectionsUnavailable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: routing service returned status %d", ErrDirectionsUnavailable, resp.StatusCode)
	}

	var data osrmResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("%w: decoding route: %v", ErrDirectionsUnavailable, err)
	}
	if data.Code != "Ok" {
		return nil, fmt.Errorf("%w: routing service answered %q %s", ErrDirectionsUnavailable, data.Code, data.Message)
	}
	if len(data.Routes) == 0 {
		return nil, fmt.Errorf("%w: no route found", ErrDirectionsUnavailable)
	}

	route := data.Routes[0]
	steps := make([]models.DirectionStep, 0)
	for _, leg := range route.Legs {
		for _, step := range leg.Steps {
			instruction := step.Name
			if instruction == "" {
				instruction = unnamedStep
			}
			steps = append(steps, models.DirectionStep{
				Instruction:    instruction,
				DistanceMeters: step.Distance,
			})
		}
	}

	log.Debug().
		Float64("distance_m", route.Distance).
		Float64("duration_s", route.Duration).
		Int("steps", len(steps)).
		Msg("Fetched walking route")

	return &models.WalkingDirections{
		Distance: models.Round(route.Distance/1000, 2),
		Duration: models.Round(route.Duration/60, 1),
		Steps:    steps,
	}, nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
