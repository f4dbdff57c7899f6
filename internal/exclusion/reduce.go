package exclusion

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/projection"
	"github.com/sells-group/windsite/internal/setback"
)

// coverageSlackM2 is how much of the unsimplified union a simplified zone may
// leave uncovered before the simplification is rejected.
const coverageSlackM2 = 1.0

// Zone is the merged exclusion area of one class, in WGS84.
type Zone struct {
	Class       setback.ZoneClass
	Geometry    *geom.MultiPolygon
	SourceCount int
	// Merged is false for zones emitted by the per-feature fallback.
	Merged bool
	// AreaM2 is the planar area in the analysis projection.
	AreaM2 float64
}

// DroppedParts is what the minimum part area filter removed from one class.
type DroppedParts struct {
	Parts  int     `json:"parts"`
	AreaM2 float64 `json:"area_m2"`
	// Vanished is set when nothing of the class survived the filter.
	Vanished bool `json:"vanished,omitempty"`
}

// ReduceOutcome carries the zones and what the reducer had to give up on.
type ReduceOutcome struct {
	Zones []Zone
	// Fallbacks lists the classes whose union failed and were emitted unmerged.
	Fallbacks []setback.ZoneClass
	// Dropped holds, per class, the merged parts smaller than MinPartAreaM2.
	Dropped map[setback.ZoneClass]DroppedParts
	Skips   []feature.Skip
}

// Reduce merges the buffered polygons of each class into one zone. Classes
// come out in priority order. When a class cannot be merged its buffers are
// emitted one zone each, so no covered area is lost.
func Reduce(eng *planar.Engine, proj *projection.UTM, buffered []Buffered, opts Options) ReduceOutcome {
	log := zap.L().With(zap.String("component", "exclusion.reduce"))
	opts = opts.normalized()

	byClass := make(map[setback.ZoneClass][]Buffered)
	for _, b := range buffered {
		byClass[b.Class] = append(byClass[b.Class], b)
	}

	var out ReduceOutcome
	for _, class := range setback.Classes {
		items := byClass[class]
		if len(items) == 0 {
			continue
		}
		cLog := log.With(zap.String("class", class.String()), zap.Int("sources", len(items)))

		zone, dropped, err := reduceClass(eng, proj, class, items, opts)
		if err != nil {
			cLog.Warn("union failed, emitting unmerged zones", zap.Error(err))
			zones, skips := fallbackZones(proj, class, items)
			out.Zones = append(out.Zones, zones...)
			out.Skips = append(out.Skips, skips...)
			out.Fallbacks = append(out.Fallbacks, class)
			continue
		}
		if dropped.Parts > 0 {
			if out.Dropped == nil {
				out.Dropped = make(map[setback.ZoneClass]DroppedParts)
			}
			out.Dropped[class] = dropped
		}
		if zone == nil {
			cLog.Warn("no area left after part filter",
				zap.Int("dropped_parts", dropped.Parts),
				zap.Float64("dropped_area_m2", dropped.AreaM2),
				zap.Float64("min_part_area_m2", opts.MinPartAreaM2),
			)
			continue
		}
		cLog.Debug("class merged", zap.Float64("area_m2", zone.AreaM2), zap.Int("parts", zone.Geometry.NumPolygons()))
		out.Zones = append(out.Zones, *zone)
	}

	log.Info("reduce complete",
		zap.Int("zones", len(out.Zones)),
		zap.Int("fallbacks", len(out.Fallbacks)),
	)
	return out
}

// reduceClass returns a nil zone when every part falls under the area
// threshold; dropped then has Vanished set.
func reduceClass(eng *planar.Engine, proj *projection.UTM, class setback.ZoneClass, items []Buffered, opts Options) (*Zone, DroppedParts, error) {
	var dropped DroppedParts
	geoms := make([]geom.T, 0, len(items))
	for _, b := range items {
		if !b.Empty() {
			geoms = append(geoms, b.Geometry)
		}
	}
	if len(geoms) == 0 {
		return nil, dropped, nil
	}

	union, err := eng.Union(geoms)
	if err != nil {
		return nil, dropped, err
	}
	if err := union.CheckValid(); err != nil {
		return nil, dropped, err
	}
	ug, err := union.Geom()
	if err != nil {
		return nil, dropped, err
	}
	parts, err := planar.Polygons(ug)
	if err != nil {
		return nil, dropped, err
	}

	kept := parts[:0]
	for _, p := range parts {
		a := p.Area()
		if a >= opts.MinPartAreaM2 {
			kept = append(kept, p)
			continue
		}
		dropped.Parts++
		dropped.AreaM2 += a
	}
	if len(kept) == 0 {
		dropped.Vanished = dropped.Parts > 0
		return nil, dropped, nil
	}

	filtered, err := planar.MultiPolygon(kept)
	if err != nil {
		return nil, dropped, err
	}
	result, err := simplifyCovering(eng, filtered, opts.SimplifyToleranceM)
	if err != nil {
		return nil, dropped, err
	}

	wgs, err := proj.Unproject(result)
	if err != nil {
		return nil, dropped, eris.Wrap(err, "exclusion: unproject zone")
	}
	mp, ok := wgs.(*geom.MultiPolygon)
	if !ok {
		return nil, dropped, eris.Errorf("exclusion: unexpected %T after unproject", wgs)
	}
	return &Zone{
		Class:       class,
		Geometry:    mp,
		SourceCount: len(items),
		Merged:      true,
		AreaM2:      result.Area(),
	}, dropped, nil
}

// simplifyCovering dilates the merged geometry by tolerance and simplifies it
// with the same tolerance. If the simplified outline does not cover the input
// the input is returned unchanged.
func simplifyCovering(eng *planar.Engine, mp *geom.MultiPolygon, tolerance float64) (*geom.MultiPolygon, error) {
	if tolerance <= 0 {
		return mp, nil
	}
	base, err := eng.Shape(mp)
	if err != nil {
		return nil, err
	}

	simplified, err := dilateSimplify(base, tolerance)
	if err != nil {
		zap.L().Debug("simplify failed, keeping union", zap.Error(err))
		return mp, nil
	}
	lost, err := base.Difference(simplified)
	if err != nil {
		zap.L().Debug("coverage check failed, keeping union", zap.Error(err))
		return mp, nil
	}
	if a := lost.Area(); a > coverageSlackM2 {
		zap.L().Debug("simplified outline drops area, keeping union", zap.Float64("lost_m2", a))
		return mp, nil
	}

	g, err := simplified.Geom()
	if err != nil {
		return nil, err
	}
	out, err := planar.AsMultiPolygon(g)
	if err != nil {
		return nil, err
	}
	if len(out.Endss()) == 0 {
		return mp, nil
	}
	return out, nil
}

func dilateSimplify(base *planar.Shape, tolerance float64) (*planar.Shape, error) {
	grown, err := base.Buffer(tolerance)
	if err != nil {
		return nil, err
	}
	simplified, err := grown.Simplify(tolerance)
	if err != nil {
		return nil, err
	}
	if err := simplified.CheckValid(); err != nil {
		return nil, err
	}
	return simplified, nil
}

// fallbackZones emits one unmerged zone per buffered source polygon.
func fallbackZones(proj *projection.UTM, class setback.ZoneClass, items []Buffered) ([]Zone, []feature.Skip) {
	var zones []Zone
	var skips []feature.Skip
	for _, b := range items {
		if b.Empty() {
			continue
		}
		zone, err := fallbackZone(proj, class, b)
		if err != nil {
			zap.L().Warn("dropping unmergeable buffer",
				zap.String("class", class.String()),
				zap.String("source", b.Source),
				zap.Error(err),
			)
			skips = append(skips, feature.Skip{Index: b.Index, Source: b.Source, Stage: feature.StageReduce, Reason: err.Error()})
			continue
		}
		zones = append(zones, zone)
	}
	return zones, skips
}

func fallbackZone(proj *projection.UTM, class setback.ZoneClass, b Buffered) (Zone, error) {
	mp, err := planar.AsMultiPolygon(b.Geometry)
	if err != nil {
		return Zone{}, err
	}
	wgs, err := proj.Unproject(mp)
	if err != nil {
		return Zone{}, eris.Wrap(err, "exclusion: unproject buffer")
	}
	return Zone{
		Class:       class,
		Geometry:    wgs.(*geom.MultiPolygon),
		SourceCount: 1,
		Merged:      false,
		AreaM2:      mp.Area(),
	}, nil
}
