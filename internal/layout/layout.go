// Package layout validates a proposed turbine layout against exclusion zones
// and a minimum inter-turbine spacing.
package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// MetersPerDegree is the length of one degree of latitude used by the
// equirectangular spacing approximation.
const MetersPerDegree = 111320.0

// Turbine is one proposed turbine position in WGS84.
type Turbine struct {
	ID         string         `json:"id"`
	Longitude  float64        `json:"longitude"`
	Latitude   float64        `json:"latitude"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Layout is an ordered set of turbines. Order is significant: pairs and
// violations are reported in input order.
type Layout struct {
	Turbines []Turbine `json:"turbines"`
}

// Distance is the equirectangular ground distance in meters, anchored at the
// pair's mean latitude. It is symmetric and adequate at wind-farm scale.
func Distance(a, b Turbine) float64 {
	meanLat := (a.Latitude + b.Latitude) / 2
	dx := (b.Longitude - a.Longitude) * MetersPerDegree * math.Cos(meanLat*math.Pi/180)
	dy := (b.Latitude - a.Latitude) * MetersPerDegree
	return math.Hypot(dx, dy)
}

// DecodeGeoJSON reads a FeatureCollection of Point features. The turbine id
// comes from the turbine_id property, then the feature id, then T<n>.
func DecodeGeoJSON(r io.Reader) (*Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "layout: read")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "layout: parse geojson")
	}

	l := &Layout{Turbines: make([]Turbine, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if f == nil {
			return nil, eris.Errorf("layout: feature %d is null", i)
		}
		p, ok := f.Geometry.(*geom.Point)
		if !ok || p.Empty() {
			return nil, eris.Errorf("layout: feature %d: expected a Point, got %T", i, f.Geometry)
		}
		l.Turbines = append(l.Turbines, Turbine{
			ID:         turbineID(f, i),
			Longitude:  p.X(),
			Latitude:   p.Y(),
			Properties: f.Properties,
		})
	}
	return l, nil
}

func turbineID(f *geojson.Feature, i int) string {
	switch v := f.Properties["turbine_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if f.ID != "" {
		return f.ID
	}
	return fmt.Sprintf("T%d", i+1)
}

// FeatureCollection converts the layout back into GeoJSON Point features.
func (l *Layout) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(l.Turbines))}
	for _, t := range l.Turbines {
		props := make(map[string]any, len(t.Properties)+1)
		for k, v := range t.Properties {
			props[k] = v
		}
		props["turbine_id"] = t.ID
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         t.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{t.Longitude, t.Latitude}),
			Properties: props,
		})
	}
	return fc
}
