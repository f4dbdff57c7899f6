package exclusion

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/projection"
)

// FilterByRadius keeps the features whose minimum ground distance to the
// center is at most radiusKM. Distances are measured in the UTM zone of the
// center. Features that cannot be projected or measured are reported as
// skips. The result preserves input order and does not depend on it.
func FilterByRadius(features []feature.GeoFeature, centerLon, centerLat, radiusKM float64) ([]feature.GeoFeature, []feature.Skip, error) {
	if err := checkRadius(radiusKM); err != nil {
		return nil, nil, err
	}
	proj := projection.ForLonLat(centerLon, centerLat)
	return filterByRadius(planar.NewEngine(), proj, features, centerLon, centerLat, radiusKM)
}

func filterByRadius(eng *planar.Engine, proj *projection.UTM, features []feature.GeoFeature, centerLon, centerLat, radiusKM float64) ([]feature.GeoFeature, []feature.Skip, error) {
	log := zap.L().With(zap.String("component", "exclusion.radius"), zap.String("crs", proj.String()))

	if len(features) == 0 {
		return []feature.GeoFeature{}, nil, nil
	}

	cx, cy, err := proj.Forward(centerLon, centerLat)
	if err != nil {
		return nil, nil, eris.Wrap(err, "exclusion: project center")
	}
	center, err := eng.Shape(geom.NewPointFlat(geom.XY, []float64{cx, cy}))
	if err != nil {
		return nil, nil, eris.Wrap(err, "exclusion: center")
	}

	radiusM := radiusKM * 1000
	kept := make([]feature.GeoFeature, 0, len(features))
	var skips []feature.Skip

	for i, f := range features {
		d, err := distanceTo(eng, proj, center, f.Geometry)
		if err != nil {
			log.Warn("skipping feature", zap.Int("index", i), zap.String("source", f.Source), zap.Error(err))
			skips = append(skips, feature.Skip{Index: i, Source: f.Source, Stage: feature.StageRadius, Reason: err.Error()})
			continue
		}
		if d <= radiusM {
			kept = append(kept, f)
		}
	}

	log.Info("radius filter complete",
		zap.Float64("radius_km", radiusKM),
		zap.Int("input", len(features)),
		zap.Int("kept", len(kept)),
		zap.Int("skipped", len(skips)),
	)
	return kept, skips, nil
}

func distanceTo(eng *planar.Engine, proj *projection.UTM, center *planar.Shape, g geom.T) (float64, error) {
	projected, err := proj.Project(g)
	if err != nil {
		return 0, err
	}
	s, err := eng.Shape(projected)
	if err != nil {
		return 0, err
	}
	return s.Distance(center)
}
