package feature

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/windsite/internal/planar"
)

// overpassResponse is the subset of an Overpass API `[out:json]; out geom;`
// response used here.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Geometry []overpassLatLon  `json:"geometry,omitempty"`
	Members  []overpassMember  `json:"members,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type overpassMember struct {
	Type     string           `json:"type"`
	Ref      int64            `json:"ref"`
	Role     string           `json:"role"`
	Geometry []overpassLatLon `json:"geometry,omitempty"`
}

type overpassLatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Reasons attached to Overpass elements that cannot become features.
const (
	RejectUntaggedNode     = "untagged node"
	RejectRelationType     = "relation is not a multipolygon"
	RejectRelationNoOuter  = "multipolygon relation has no outer ring"
	RejectRelationUnclosed = "multipolygon relation members do not close into rings"
)

// DecodeOverpass reads an Overpass `out geom` JSON document. Ways become
// coordinate sequences (closed ways are promoted to polygons by Normalize);
// tagged nodes become points; multipolygon relations are assembled from
// their outer and inner way members. Every other element is kept as a
// rejected record so that Normalize reports it.
func DecodeOverpass(r io.Reader) ([]RawRecord, error) {
	var resp overpassResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, eris.Wrap(err, "feature: parse overpass")
	}

	var eng *planar.Engine
	records := make([]RawRecord, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		rec := RawRecord{Source: fmt.Sprintf("%s/%d", el.Type, el.ID), Tags: Tags(el.Tags)}
		switch el.Type {
		case "way":
			coords := make([]geom.Coord, 0, len(el.Geometry))
			for _, p := range el.Geometry {
				coords = append(coords, geom.Coord{p.Lon, p.Lat})
			}
			rec.Coords = coords

		case "node":
			if len(el.Tags) == 0 {
				rec.Reject = RejectUntaggedNode
				break
			}
			if el.Lat != nil && el.Lon != nil {
				rec.Geometry = geom.NewPointFlat(geom.XY, []float64{*el.Lon, *el.Lat})
			}

		case "relation":
			if eng == nil {
				eng = planar.NewEngine()
			}
			rec.Geometry, rec.Reject = relationGeometry(eng, el)

		default:
			rec.Reject = fmt.Sprintf("unsupported element type %q", el.Type)
		}
		records = append(records, rec)
	}
	return records, nil
}

// relationGeometry assembles a multipolygon relation. Members with role
// "outer" or no role are shells; "inner" members are holes.
func relationGeometry(eng *planar.Engine, el overpassElement) (geom.T, string) {
	if el.Tags["type"] != "multipolygon" {
		return nil, RejectRelationType
	}

	var outer, inner [][]float64
	for _, m := range el.Members {
		if m.Type != "way" || len(m.Geometry) == 0 {
			continue
		}
		flat := make([]float64, 0, len(m.Geometry)*2)
		for _, p := range m.Geometry {
			flat = append(flat, p.Lon, p.Lat)
		}
		switch m.Role {
		case "outer", "":
			outer = append(outer, flat)
		case "inner":
			inner = append(inner, flat)
		}
	}
	if len(outer) == 0 {
		return nil, RejectRelationNoOuter
	}

	shells, ok := stitchRings(eng, outer)
	if !ok {
		return nil, RejectRelationUnclosed
	}
	holes, ok := stitchRings(eng, inner)
	if !ok {
		return nil, RejectRelationUnclosed
	}

	g := assemblePolygons(shells, holes)
	if g == nil {
		return nil, RejectRelationNoOuter
	}
	return g, ""
}
