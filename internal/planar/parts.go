package planar

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Polygons flattens a polygonal geometry into its polygon parts. Non-polygonal
// members of a collection (points, lines left over from degenerate buffers)
// are ignored.
func Polygons(g geom.T) ([]*geom.Polygon, error) {
	switch g := g.(type) {
	case *geom.Polygon:
		if g.Empty() {
			return nil, nil
		}
		return []*geom.Polygon{g}, nil
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			if p := g.Polygon(i); !p.Empty() {
				out = append(out, p)
			}
		}
		return out, nil
	case *geom.GeometryCollection:
		var out []*geom.Polygon
		for _, child := range g.Geoms() {
			ps, err := Polygons(child)
			if err != nil {
				return nil, err
			}
			out = append(out, ps...)
		}
		return out, nil
	case *geom.Point, *geom.LineString, *geom.MultiPoint, *geom.MultiLineString:
		return nil, nil
	default:
		return nil, eris.Errorf("planar: unsupported geometry %T", g)
	}
}

// MultiPolygon collects polygon parts into a single XY multipolygon.
func MultiPolygon(parts []*geom.Polygon) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range parts {
		if p.Layout() != geom.XY {
			p = geom.NewPolygonFlat(geom.XY, dropExtra(p.FlatCoords(), p.Stride()), scaleEnds(p.Ends(), p.Stride()))
		}
		if err := mp.Push(p); err != nil {
			return nil, eris.Wrapf(err, "planar: push polygon %d", i)
		}
	}
	return mp, nil
}

// AsMultiPolygon normalizes a polygonal geometry to a multipolygon.
func AsMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	parts, err := Polygons(g)
	if err != nil {
		return nil, err
	}
	return MultiPolygon(parts)
}

func dropExtra(flat []float64, stride int) []float64 {
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

func scaleEnds(ends []int, stride int) []int {
	out := make([]int, len(ends))
	for i, e := range ends {
		out[i] = e / stride * 2
	}
	return out
}
