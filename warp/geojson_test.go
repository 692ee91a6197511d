package warp

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlPointsFeatureCollection(t *testing.T) {
	pairs := []ControlPointPair{
		{From: Point{Row: 0, Col: 0}, To: Point{Row: 3, Col: 4}},
		{From: Point{Row: 10, Col: 2}, To: Point{Row: 10, Col: 2}},
	}

	fc := ControlPointsFeatureCollection(pairs)
	require.Len(t, fc.Features, 2)

	ls, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	// orb points are (x, y) = (col, row)
	assert.Equal(t, orb.LineString{{0, 0}, {4, 3}}, ls)
	assert.Equal(t, 0, fc.Features[0].Properties["index"])
	assert.InDelta(t, 5.0, fc.Features[0].Properties["displacement"], 1e-12)
	assert.InDelta(t, 0.0, fc.Features[1].Properties["displacement"], 1e-12)
}

func TestParseControlPointsGeoJSON(t *testing.T) {
	data := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[1, 2], [3, 4]]}}
		]
	}`)

	pairs, err := ParseControlPointsGeoJSON(data)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, Point{Row: 2, Col: 1}, pairs[0].From)
	assert.Equal(t, Point{Row: 4, Col: 3}, pairs[0].To)
}

func TestParseControlPointsGeoJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not JSON", `{`, "parsing GeoJSON"},
		{"point geometry", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}]}`, "expected LineString"},
		{"three points", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1],[2,2]]}}]}`, "expected 2 points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseControlPointsGeoJSON([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveLoadControlPointsGeoJSON(t *testing.T) {
	pairs := []ControlPointPair{
		{From: Point{Row: 1.5, Col: 2.25}, To: Point{Row: 7, Col: -3}},
		{From: Point{Row: 100, Col: 200}, To: Point{Row: 110, Col: 190}},
	}
	path := filepath.Join(t.TempDir(), "points.geojson")

	require.NoError(t, SaveControlPointsGeoJSON(path, pairs))
	loaded, err := LoadControlPointsGeoJSON(path)
	require.NoError(t, err)
	assert.Equal(t, pairs, loaded)

	_, err = LoadControlPointsGeoJSON(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}

func TestControlPointsGeoJSON_ValidFeatureCollection(t *testing.T) {
	data, err := ControlPointsFeatureCollection([]ControlPointPair{{From: Point{1, 1}, To: Point{2, 2}}}).MarshalJSON()
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.GeoJSONType())
}
