package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/septafinder/backend-go/pkg/http/client"
)

// Geocoder resolves a free-text address to a location
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Location, error)
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint
type Nominatim struct {
	httpClient client.Interface
}

func NewNominatim(httpClient client.Interface) *Nominatim {
	return &Nominatim{httpClient: httpClient}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n *Nominatim) Geocode(ctx context.Context, address string) (models.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.Location{}, ErrNotFound
	}

	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")

	resp, err := n.httpClient.Get(ctx, "/search?"+query.Encode())
	if err != nil {
		return models.Location{}, NewGeocodingError(address, "request failed", err)
	}
	if !resp.OK() {
		return models.Location{}, NewGeocodingError(address, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(resp.Body, &places); err != nil {
		return models.Location{}, NewGeocodingError(address, "decoding response", err)
	}
	if len(places) == 0 {
		log.Debug().Str("address", address).Msg("No geocoding match")
		return models.Location{}, ErrNotFound
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return models.Location{}, NewGeocodingError(address, "parsing latitude", err)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return models.Location{}, NewGeocodingError(address, "parsing longitude", err)
	}

	loc := models.Location{Latitude: lat, Longitude: lon}
	if err := loc.Validate(); err != nil {
		return models.Location{}, NewGeocodingError(address, "geocoder returned invalid coordinates", err)
	}

	log.Debug().
		Str("address", address).
		Str("match", place.DisplayName).
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("Geocoded address")
	return loc, nil
}
