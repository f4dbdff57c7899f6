package feature

import (
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ErrDegenerate marks records whose geometry cannot describe a place.
var ErrDegenerate = eris.New("feature: degenerate geometry")

// Normalize converts raw records into GeoFeatures. A closed coordinate
// sequence with more than three vertices becomes a polygon, any other
// sequence a line string. Records with fewer than two coordinates, non-finite
// coordinates or unsupported geometry are skipped and reported; nothing is
// deduplicated.
func Normalize(records []RawRecord) ([]GeoFeature, []Skip) {
	log := zap.L().With(zap.String("component", "feature.normalize"))

	features := make([]GeoFeature, 0, len(records))
	var skips []Skip

	for i, r := range records {
		src := r.Source
		if src == "" {
			src = strconv.Itoa(i)
		}

		if r.Reject != "" {
			log.Debug("skipping rejected record", zap.String("source", src), zap.String("reason", r.Reject))
			skips = append(skips, Skip{Index: i, Source: src, Stage: StageNormalize, Reason: r.Reject})
			continue
		}

		g, err := normalizeGeometry(r)
		if err != nil {
			log.Warn("skipping record", zap.String("source", src), zap.Error(err))
			skips = append(skips, Skip{Index: i, Source: src, Stage: StageNormalize, Reason: err.Error()})
			continue
		}

		tags := r.Tags
		if tags == nil {
			tags = Tags{}
		}
		features = append(features, GeoFeature{Geometry: g, Tags: tags, Source: src})
	}

	if len(skips) > 0 {
		log.Info("normalized records",
			zap.Int("input", len(records)),
			zap.Int("features", len(features)),
			zap.Int("skipped", len(skips)),
		)
	}
	return features, skips
}

func normalizeGeometry(r RawRecord) (geom.T, error) {
	if r.Geometry == nil {
		return fromCoords(r.Coords)
	}
	if ls, ok := r.Geometry.(*geom.LineString); ok {
		return fromCoords(ls.Coords())
	}
	if err := checkGeometry(r.Geometry); err != nil {
		return nil, err
	}
	return r.Geometry, nil
}

// fromCoords builds a polygon or line string from a coordinate sequence.
func fromCoords(coords []geom.Coord) (geom.T, error) {
	if len(coords) < 2 {
		return nil, eris.Wrapf(ErrDegenerate, "%d coordinate(s), need at least 2", len(coords))
	}

	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		if len(c) < 2 {
			return nil, eris.Wrap(ErrDegenerate, "coordinate missing longitude or latitude")
		}
		if !finite(c[0]) || !finite(c[1]) {
			return nil, eris.Wrap(ErrDegenerate, "non-finite coordinate")
		}
		flat = append(flat, c[0], c[1])
	}

	first, last := coords[0], coords[len(coords)-1]
	if len(coords) > 3 && first[0] == last[0] && first[1] == last[1] {
		return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}), nil
	}
	return geom.NewLineStringFlat(geom.XY, flat), nil
}

// checkGeometry rejects typed geometries too small to be meaningful.
func checkGeometry(g geom.T) error {
	for _, v := range g.FlatCoords() {
		if !finite(v) {
			return eris.Wrap(ErrDegenerate, "non-finite coordinate")
		}
	}

	switch g := g.(type) {
	case *geom.Point:
		if g.Empty() {
			return eris.Wrap(ErrDegenerate, "empty point")
		}
	case *geom.MultiPoint:
		if g.NumPoints() == 0 {
			return eris.Wrap(ErrDegenerate, "empty multipoint")
		}
	case *geom.MultiLineString:
		if g.NumLineStrings() == 0 {
			return eris.Wrap(ErrDegenerate, "empty multilinestring")
		}
		for i := 0; i < g.NumLineStrings(); i++ {
			if g.LineString(i).NumCoords() < 2 {
				return eris.Wrapf(ErrDegenerate, "line %d has fewer than 2 coordinates", i)
			}
		}
	case *geom.Polygon:
		return checkPolygon(g)
	case *geom.MultiPolygon:
		if g.NumPolygons() == 0 {
			return eris.Wrap(ErrDegenerate, "empty multipolygon")
		}
		for i := 0; i < g.NumPolygons(); i++ {
			if err := checkPolygon(g.Polygon(i)); err != nil {
				return err
			}
		}
	default:
		return eris.Wrapf(ErrDegenerate, "unsupported geometry %T", g)
	}
	return nil
}

func checkPolygon(p *geom.Polygon) error {
	if p.NumLinearRings() == 0 {
		return eris.Wrap(ErrDegenerate, "polygon without rings")
	}
	for i := 0; i < p.NumLinearRings(); i++ {
		if p.LinearRing(i).NumCoords() < 4 {
			return eris.Wrapf(ErrDegenerate, "ring %d has fewer than 4 coordinates", i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
