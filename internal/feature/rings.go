package feature

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/planar"
)

// assemblePolygons builds a Polygon or MultiPolygon from outer rings and
// holes given as closed flat XY rings. Each hole goes to the first shell
// that contains its first vertex; a hole outside every shell becomes a
// shell of its own. Returns nil when there is nothing to build.
func assemblePolygons(shells, holes [][]float64) geom.T {
	polys := make([][][]float64, 0, len(shells))
	for _, s := range shells {
		polys = append(polys, [][]float64{s})
	}

	for _, hole := range holes {
		attached := false
		for i, rings := range polys {
			if xy.IsPointInRing(geom.XY, geom.Coord{hole[0], hole[1]}, rings[0]) {
				polys[i] = append(polys[i], hole)
				attached = true
				break
			}
		}
		if !attached {
			polys = append(polys, [][]float64{hole})
		}
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polygonFromRings(polys[0])
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, rings := range polys {
		if err := mp.Push(polygonFromRings(rings)); err != nil {
			zap.L().Debug("feature: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func polygonFromRings(rings [][]float64) *geom.Polygon {
	var flat []float64
	ends := make([]int, 0, len(rings))
	for _, ring := range rings {
		flat = append(flat, ring...)
		ends = append(ends, len(flat))
	}
	return geom.NewPolygonFlat(geom.XY, flat, ends)
}

// stitchRings joins way segments end to end into closed rings. Segments may
// run in either direction. ok is false when any merged line is not a ring.
func stitchRings(eng *planar.Engine, segments [][]float64) (rings [][]float64, ok bool) {
	if len(segments) == 0 {
		return nil, true
	}
	mls := geom.NewMultiLineString(geom.XY)
	for _, s := range segments {
		if len(s) < 4 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, s)); err != nil {
			return nil, false
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil, false
	}

	merged, err := eng.LineMerge(mls)
	if err != nil {
		zap.L().Debug("feature: line merge failed", zap.Error(err))
		return nil, false
	}
	g, err := merged.Geom()
	if err != nil {
		return nil, false
	}

	var lines []*geom.LineString
	switch g := g.(type) {
	case *geom.LineString:
		lines = []*geom.LineString{g}
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			lines = append(lines, g.LineString(i))
		}
	default:
		return nil, false
	}

	for _, l := range lines {
		flat := l.FlatCoords()
		n := len(flat)
		if l.Stride() != 2 || n < 8 || flat[0] != flat[n-2] || flat[1] != flat[n-1] {
			return nil, false
		}
		rings = append(rings, flat)
	}
	return rings, true
}
