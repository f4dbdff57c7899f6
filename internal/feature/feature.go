// Package feature turns heterogeneous geographic records (GeoJSON, Overpass
// elements, shapefile shapes) into a uniform set of tagged WGS84 geometries.
package feature

import (
	"github.com/twpayne/go-geom"
)

// Tags is the free-form key/value dictionary attached to a feature.
type Tags map[string]string

// Get returns the value for key, or "" when absent.
func (t Tags) Get(key string) string {
	return t[key]
}

// Has reports whether key is present with a non-empty value.
func (t Tags) Has(key string) bool {
	return t[key] != ""
}

// In reports whether the value of key is one of values.
func (t Tags) In(key string, values ...string) bool {
	v, ok := t[key]
	if !ok || v == "" {
		return false
	}
	for _, want := range values {
		if v == want {
			return true
		}
	}
	return false
}

// GeoFeature is a normalized feature in WGS84 longitude/latitude.
type GeoFeature struct {
	Geometry geom.T
	Tags     Tags
	Source   string
}

// RawRecord is an input record before normalization. Coords holds a plain
// coordinate sequence (an OSM way, a GeoJSON LineString); Geometry holds an
// already typed geometry and takes precedence when set. Reject is set by a
// decoder for an element it read but cannot turn into a geometry; Normalize
// reports it as a skip with that reason.
type RawRecord struct {
	Source   string
	Coords   []geom.Coord
	Geometry geom.T
	Tags     Tags
	Reject   string
}

// Skip records a feature dropped by one pipeline stage.
type Skip struct {
	Index  int    `json:"index"`
	Source string `json:"source,omitempty"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Stage names used in Skip records.
const (
	StageNormalize = "normalize"
	StageRadius    = "radius"
	StageBuffer    = "buffer"
	StageReduce    = "reduce"
)
