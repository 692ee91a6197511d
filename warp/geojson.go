package warp

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Control points are exchanged as a GeoJSON FeatureCollection of two-point
// LineStrings [from, to]. Coordinates are in image space as (x, y) = (col, row).

// ParseControlPointsGeoJSON decodes control point pairs from GeoJSON
func ParseControlPointsGeoJSON(data []byte) ([]ControlPointPair, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing GeoJSON: %w", err)
	}

	pairs := make([]ControlPointPair, 0, len(fc.Features))
	for i, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected LineString, got %T", i, f.Geometry)
		}
		if len(ls) != 2 {
			return nil, fmt.Errorf("feature %d: expected 2 points, got %d", i, len(ls))
		}
		pairs = append(pairs, ControlPointPair{
			From: fromOrb(ls[0]),
			To:   fromOrb(ls[1]),
		})
	}
	return pairs, nil
}

// LoadControlPointsGeoJSON reads control point pairs from a GeoJSON file
func LoadControlPointsGeoJSON(path string) ([]ControlPointPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading control points file: %w", err)
	}
	return ParseControlPointsGeoJSON(data)
}

// ControlPointsFeatureCollection encodes pairs as LineString features.
// Each feature carries its index and displacement length as properties.
func ControlPointsFeatureCollection(pairs []ControlPointPair) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, pair := range pairs {
		ls := orb.LineString{toOrb(pair.From), toOrb(pair.To)}
		f := geojson.NewFeature(ls)
		f.Properties["index"] = i
		f.Properties["displacement"] = planar.Length(ls)
		fc.Append(f)
	}
	return fc
}

// SaveControlPointsGeoJSON writes pairs to a GeoJSON file
func SaveControlPointsGeoJSON(path string, pairs []ControlPointPair) error {
	data, err := ControlPointsFeatureCollection(pairs).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing control points file: %w", err)
	}
	return nil
}
