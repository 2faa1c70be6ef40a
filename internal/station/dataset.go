package station

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
)

type Format string

const (
	FormatKML     Format = "kml"
	FormatGeoJSON Format = "geojson"
)

// DetectFormat picks the dataset format from the file name, falling back to the
// first significant byte of the content.
func DetectFormat(name string, head []byte) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".kml":
		return FormatKML, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '<':
			return FormatKML, nil
		case '{':
			return FormatGeoJSON, nil
		}
	}
	return "", fmt.Errorf("unrecognized dataset format for %q", name)
}

// Parse reads every point record of the dataset. Non-point records are skipped.
// An empty result is an error.
func Parse(r io.Reader, name string) ([]models.Station, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(512)

	format, err := DetectFormat(name, head)
	if err != nil {
		return nil, NewDataLoadError(name, "detecting format", err)
	}

	var stations []models.Station
	switch format {
	case FormatKML:
		stations, err = parseKML(br)
	case FormatGeoJSON:
		stations, err = parseGeoJSON(br)
	}
	if err != nil {
		return nil, NewDataLoadError(name, "parsing "+string(format), err)
	}
	if len(stations) == 0 {
		return nil, NewDataLoadError(name, "dataset contains no points", nil)
	}
	return stations, nil
}

type kmlPlacemark struct {
	Name         string `xml:"name"`
	Description  string `xml:"description"`
	ExtendedData struct {
		Data []struct {
			Name  string `xml:"name,attr"`
			Value string `xml:"value"`
		} `xml:"Data"`
		SchemaData []struct {
			SimpleData []struct {
				Name  string `xml:"name,attr"`
				Value string `xml:",chardata"`
			} `xml:"SimpleData"`
		} `xml:"SchemaData"`
	} `xml:"ExtendedData"`
	Point *struct {
		Coordinates string `xml:"coordinates"`
	} `xml:"Point"`
}

func parseKML(r io.Reader) ([]models.Station, error) {
	dec := xml.NewDecoder(r)
	var stations []models.Station
	sawDocument := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "kml" {
			sawDocument = true
			continue
		}
		if start.Name.Local != "Placemark" {
			continue
		}

		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, err
		}
		if pm.Point == nil {
			log.Debug().Str("placemark", pm.Name).Msg("Skipping placemark without point geometry")
			continue
		}

		lat, lon, err := parseKMLCoordinates(pm.Point.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("placemark %q: %w", pm.Name, err)
		}

		props := map[string]interface{}{
			"Name":        strings.TrimSpace(pm.Name),
			"Description": strings.TrimSpace(pm.Description),
		}
		for _, d := range pm.ExtendedData.Data {
			props[d.Name] = scalar(d.Value)
		}
		for _, sd := range pm.ExtendedData.SchemaData {
			for _, d := range sd.SimpleData {
				props[d.Name] = scalar(d.Value)
			}
		}

		stations = append(stations, models.Station{
			Name:       models.StationName(props, len(stations)),
			Latitude:   lat,
			Longitude:  lon,
			Properties: props,
		})
	}

	if !sawDocument {
		return nil, errors.New("missing <kml> root element")
	}
	return stations, nil
}

// parseKMLCoordinates reads a "lon,lat[,alt]" tuple
func parseKMLCoordinates(raw string) (float64, float64, error) {
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("malformed coordinates %q", raw)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing latitude: %w", err)
	}
	if err := (models.Location{Latitude: lat, Longitude: lon}).Validate(); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// scalar trims an attribute value. KML carries untyped text, so values stay
// strings: "007" keeps its leading zeros and "NaN" stays JSON-encodable.
func scalar(v string) interface{} {
	return strings.TrimSpace(v)
}

type geoJSONCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry *struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

func parseGeoJSON(r io.Reader) ([]models.Station, error) {
	var fc geoJSONCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	var stations []models.Station
	for i, f := range fc.Features {
		if f.Geometry == nil || f.Geometry.Type != models.PointType {
			continue
		}
		var coords []float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		st, err := models.StationFromFeature(models.Feature{
			Type:       models.FeatureType,
			Geometry:   models.Geometry{Type: models.PointType, Coordinates: coords},
			Properties: f.Properties,
		}, len(stations))
		if err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, nil
}
