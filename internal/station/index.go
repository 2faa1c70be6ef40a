package station

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/models"
	"github.com/umahmood/haversine"
)

const (
	// half-width of the box each station occupies in the tree, in unit-sphere
	// units (about 6 mm on the ground)
	pointTolerance = 1e-9

	treeMinChildren = 8
	treeMaxChildren = 32
)

// Match is the answer to a nearest-station query
type Match struct {
	Index      int
	Station    models.Station
	DistanceKm float64
}

// Index answers nearest-station queries over the loaded dataset.
//
// Stations are stored in an R-tree as 3-D unit vectors. Chord length on the unit
// sphere grows strictly with great-circle distance, so the Euclidean nearest
// neighbour in the tree is also the great-circle nearest neighbour. Reported
// distances are haversine distances in kilometers.
//
// Readers never block: every load builds a complete snapshot and swaps it in.
type Index struct {
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	tree     *rtreego.Rtree
	stations []models.Station
	version  string
}

type stationItem struct {
	idx  int
	rect rtreego.Rect
}

func (s *stationItem) Bounds() rtreego.Rect {
	return s.rect
}

func NewIndex() *Index {
	return &Index{}
}

// Load reads the dataset from src, builds a new index over it and swaps it in.
// On failure the previously loaded index, if any, stays in place.
func (ix *Index) Load(ctx context.Context, src Source) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return NewDataLoadError(src.Name(), "opening dataset", err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("Error closing dataset")
		}
	}()

	stations, err := Parse(rc, src.Name())
	if err != nil {
		return err
	}
	if err := ix.LoadStations(stations); err != nil {
		return NewDataLoadError(src.Name(), "building index", err)
	}

	log.Info().Str("source", src.Name()).Int("station_count", len(stations)).Msg("Station index loaded")
	return nil
}

// LoadStations builds an index over a copy of stations and swaps it in
func (ix *Index) LoadStations(stations []models.Station) error {
	snap, err := buildSnapshot(stations)
	if err != nil {
		return err
	}
	ix.current.Store(snap)
	return nil
}

func buildSnapshot(stations []models.Station) (*snapshot, error) {
	if len(stations) == 0 {
		return nil, fmt.Errorf("no stations to index")
	}

	owned := make([]models.Station, len(stations))
	copy(owned, stations)

	tree := rtreego.NewTree(3, treeMinChildren, treeMaxChildren)
	for i, st := range owned {
		loc := models.Location{Latitude: st.Latitude, Longitude: st.Longitude}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Name, err)
		}
		p := unitVector(st.Latitude, st.Longitude)
		rect, err := rtreego.NewRect(p, []float64{pointTolerance, pointTolerance, pointTolerance})
		if err != nil {
			return nil, fmt.Errorf("station %d (%s): %w", i, st.Name, err)
		}
		tree.Insert(&stationItem{idx: i, rect: rect})
	}

	if tree.Size() != len(owned) {
		return nil, fmt.Errorf("index holds %d entries for %d stations", tree.Size(), len(owned))
	}
	version, err := datasetVersion(owned)
	if err != nil {
		return nil, err
	}
	return &snapshot{tree: tree, stations: owned, version: version}, nil
}

// datasetVersion fingerprints the stations in order. Identical datasets get
// the same version however they were loaded.
func datasetVersion(stations []models.Station) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i, st := range stations {
		if err := enc.Encode(st); err != nil {
			return "", fmt.Errorf("station %d (%s): %w", i, st.Name, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Nearest returns the closest station to (lat, lon). The station and its index
// always come from the same loaded dataset.
func (ix *Index) Nearest(lat, lon float64) (*Match, error) {
	snap := ix.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	if err := (models.Location{Latitude: lat, Longitude: lon}).Validate(); err != nil {
		return nil, err
	}

	found := snap.tree.NearestNeighbor(unitVector(lat, lon))
	if found == nil {
		return nil, ErrNotLoaded
	}
	item := found.(*stationItem)
	st := snap.stations[item.idx]

	return &Match{
		Index:      item.idx,
		Station:    st,
		DistanceKm: DistanceKm(lat, lon, st.Latitude, st.Longitude),
	}, nil
}

// QueryNearest returns the position of the closest station in the loaded
// dataset and its distance in kilometers.
func (ix *Index) QueryNearest(lat, lon float64) (int, float64, error) {
	m, err := ix.Nearest(lat, lon)
	if err != nil {
		return 0, 0, err
	}
	return m.Index, m.DistanceKm, nil
}

func (ix *Index) Station(i int) (models.Station, error) {
	snap := ix.current.Load()
	if snap == nil {
		return models.Station{}, ErrNotLoaded
	}
	if i < 0 || i >= len(snap.stations) {
		return models.Station{}, fmt.Errorf("station index %d out of range [0, %d)", i, len(snap.stations))
	}
	return snap.stations[i], nil
}

// Len is the number of loaded stations, zero when nothing is loaded
func (ix *Index) Len() int {
	snap := ix.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.stations)
}

// Version identifies the loaded dataset, empty when nothing is loaded
func (ix *Index) Version() string {
	snap := ix.current.Load()
	if snap == nil {
		return ""
	}
	return snap.version
}

func (ix *Index) Loaded() bool {
	return ix.current.Load() != nil
}

// Unload drops the loaded dataset. Queries already holding the old snapshot
// finish against it.
func (ix *Index) Unload() {
	ix.current.Store(nil)
	log.Info().Msg("Station index unloaded")
}

// DistanceKm is the great-circle distance between two points on a sphere of
// the Earth's mean radius.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: lat1, Lon: lon1},
		haversine.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}

func unitVector(lat, lon float64) rtreego.Point {
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180
	return rtreego.Point{
		math.Cos(phi) * math.Cos(lambda),
		math.Cos(phi) * math.Sin(lambda),
		math.Sin(phi),
	}
}
