package projection

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Project returns a copy of g with every WGS84 coordinate mapped into the zone.
func (u *UTM) Project(g geom.T) (geom.T, error) {
	return Transform(g, u.Forward)
}

// Unproject returns a copy of g with every zone coordinate mapped back to WGS84.
func (u *UTM) Unproject(g geom.T) (geom.T, error) {
	return Transform(g, u.Inverse)
}

// Transform applies fn to the XY part of every coordinate of g and returns a
// new geometry of the same kind. Extra ordinates (Z, M) are copied unchanged.
// The input is never modified.
func Transform(g geom.T, fn func(x, y float64) (float64, float64, error)) (geom.T, error) {
	if g == nil {
		return nil, eris.New("projection: nil geometry")
	}

	switch g := g.(type) {
	case *geom.Point:
		flat, err := transformFlat(g.FlatCoords(), g.Stride(), fn)
		if err != nil {
			return nil, err
		}
		return geom.NewPointFlat(g.Layout(), flat), nil

	case *geom.LineString:
		flat, err := transformFlat(g.FlatCoords(), g.Stride(), fn)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(g.Layout(), flat), nil

	case *geom.Polygon:
		flat, err := transformFlat(g.FlatCoords(), g.Stride(), fn)
		if err != nil {
			return nil, err
		}
		return geom.NewPolygonFlat(g.Layout(), flat, copyEnds(g.Ends())), nil

	case *geom.MultiPoint:
		flat, err := transformFlat(g.FlatCoords(), g.Stride(), fn)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiPointFlat(g.Layout(), flat), nil

	case *geom.MultiLineString:
		flat, err := transformFlat(g.FlatCoords(), g.Stride(), fn)
		if err != nil {
			return nil, err
		}
		return geom.NewMultiLineStringFlat(g.Layout(), flat, copyEnds(g.Ends())), nil

	case *geom.MultiPolygon:
		flat, err := transformFlat(g.FlatCoords(), g.Stride(), fn)
		if err != nil {
			return nil, err
		}
		endss := make([][]int, len(g.Endss()))
		for i, ends := range g.Endss() {
			endss[i] = copyEnds(ends)
		}
		return geom.NewMultiPolygonFlat(g.Layout(), flat, endss), nil

	case *geom.GeometryCollection:
		out := geom.NewGeometryCollection()
		for _, child := range g.Geoms() {
			tc, err := Transform(child, fn)
			if err != nil {
				return nil, err
			}
			if err := out.Push(tc); err != nil {
				return nil, eris.Wrap(err, "projection: push collection member")
			}
		}
		return out, nil

	default:
		return nil, eris.Errorf("projection: unsupported geometry %T", g)
	}
}

func transformFlat(src []float64, stride int, fn func(x, y float64) (float64, float64, error)) ([]float64, error) {
	if stride < 2 {
		return nil, eris.Errorf("projection: invalid stride %d", stride)
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	for i := 0; i+1 < len(dst); i += stride {
		x, y, err := fn(dst[i], dst[i+1])
		if err != nil {
			return nil, err
		}
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return nil, eris.Errorf("projection: non-finite result for (%g, %g)", dst[i], dst[i+1])
		}
		dst[i], dst[i+1] = x, y
	}
	return dst, nil
}

func copyEnds(ends []int) []int {
	out := make([]int, len(ends))
	copy(out, ends)
	return out
}
