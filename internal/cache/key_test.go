package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		lon       float64
		precision int
		want      string
	}{
		{
			name:      "city hall",
			lat:       39.9526,
			lon:       -75.1652,
			precision: 4,
			want:      "septa_nearest_station_39.9526_-75.1652",
		},
		{
			name:      "rounds extra digits",
			lat:       39.95264999,
			lon:       -75.16521234,
			precision: 4,
			want:      "septa_nearest_station_39.9526_-75.1652",
		},
		{
			name:      "pads short values",
			lat:       40,
			lon:       -75.5,
			precision: 4,
			want:      "septa_nearest_station_40.0000_-75.5000",
		},
		{
			name:      "negative zero",
			lat:       -0.00001,
			lon:       0.00001,
			precision: 4,
			want:      "septa_nearest_station_0.0000_0.0000",
		},
		{
			name:      "coarse precision",
			lat:       39.9526,
			lon:       -75.1652,
			precision: 2,
			want:      "septa_nearest_station_39.95_-75.17",
		},
		{
			name:      "zero precision",
			lat:       39.9526,
			lon:       -75.1652,
			precision: 0,
			want:      "septa_nearest_station_40_-75",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.lat, tt.lon, tt.precision))
		})
	}
}

func TestKeyStableAcrossGeocodeNoise(t *testing.T) {
	a := Key(39.952583, -75.165222, 4)
	b := Key(39.9525831000001, -75.1652219999999, 4)
	assert.Equal(t, a, b)
}
