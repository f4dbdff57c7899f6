package feature

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ReadShapefile reads a WGS84 shapefile. DBF attributes become tags with
// lower-cased keys; empty attribute values are dropped.
func ReadShapefile(path string) ([]RawRecord, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feature: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	var records []RawRecord
	for reader.Next() {
		n, shape := reader.Shape()

		tags := make(Tags, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				tags[name] = val
			}
		}

		records = append(records, RawRecord{
			Source:   strconv.Itoa(n),
			Geometry: ShapeGeometry(shape),
			Tags:     tags,
		})
	}
	return records, nil
}

// ShapeGeometry converts a go-shp shape to a go-geom geometry. Single-part
// shapes map to Point, LineString or Polygon; multi-part shapes to
// MultiLineString or MultiPolygon. Polygon holes are kept as interior rings
// of the shell that contains them. Returns nil for unsupported or empty
// shapes.
func ShapeGeometry(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PolyLine:
		return polyLineGeometry(s)
	case *shp.Polygon:
		return polygonGeometry(s)
	default:
		return nil
	}
}

func polyLineGeometry(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}
	parts := splitParts(pl.Parts, pl.Points)
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return geom.NewLineStringFlat(geom.XY, parts[0])
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i, flat := range parts {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("feature: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonGeometry groups shapefile rings into polygons. Outer rings are
// clockwise and holes counter-clockwise; each hole goes to the first shell
// that contains it. A hole outside every shell becomes a shell of its own.
func polygonGeometry(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var shells, holes [][]float64
	for i, ring := range splitParts(p.Parts, p.Points) {
		switch area := xy.SignedArea(geom.XY, ring); {
		case area == 0:
			zap.L().Debug("feature: skipping degenerate polygon ring", zap.Int("part", i))
		case area > 0:
			shells = append(shells, ring)
		default:
			holes = append(holes, ring)
		}
	}

	return assemblePolygons(shells, holes)
}

// splitParts cuts a shapefile point array into flat XY slices, one per part.
func splitParts(starts []int32, points []shp.Point) [][]float64 {
	out := make([][]float64, 0, len(starts))
	for i, start := range starts {
		end := int32(len(points))
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		flat := make([]float64, 0, (end-start)*2)
		for _, pt := range points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		out = append(out, flat)
	}
	return out
}
