package cache

import (
	"fmt"
	"math"
)

const keyPrefix = "septa_nearest_station"

// Key derives the cache key for a resolved location. Coordinates are rounded to
// precision decimal places so repeated geocodes of one address share an entry.
func Key(lat, lon float64, precision int) string {
	return fmt.Sprintf("%s_%.*f_%.*f", keyPrefix, precision, round(lat, precision), precision, round(lon, precision))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	// keep -0.0000 and 0.0000 on the same key
	if r == 0 {
		return 0
	}
	return r
}
