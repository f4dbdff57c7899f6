package layout

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/projection"
)

// DefaultMinSpacingM is the spacing used when none is configured.
const DefaultMinSpacingM = 300.0

// Options controls validation.
type Options struct {
	MinSpacingM float64
	// Workers bounds the goroutines used for the pairwise spacing check.
	Workers int
}

// Validate checks every turbine against the exclusion zones and every
// unordered turbine pair against the minimum spacing. A nil layout, an empty
// layout or bad options produce a failed Result, not an error. Zones are
// optional; without them BoundaryChecked is false. The returned error is
// only set when ctx is cancelled.
func Validate(ctx context.Context, l *Layout, zones []exclusion.Zone, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "layout.validate"))
	res := newResult(opts.MinSpacingM)

	if l == nil {
		return failed(res, ReasonMissingLayout, "No turbine layout provided. Create a layout first."), nil
	}
	res.TotalTurbines = len(l.Turbines)
	if len(l.Turbines) == 0 {
		return failed(res, ReasonEmptyLayout, "No turbines found in layout"), nil
	}
	if math.IsNaN(opts.MinSpacingM) || math.IsInf(opts.MinSpacingM, 0) || opts.MinSpacingM <= 0 {
		return failed(res, ReasonInvalidSpacing, fmt.Sprintf("minimum spacing must be positive, got %v", opts.MinSpacingM)), nil
	}
	if reason, msg := checkTurbines(l.Turbines); reason != "" {
		return failed(res, reason, msg), nil
	}

	if len(zones) > 0 {
		if err := checkBoundaries(ctx, res, l.Turbines, zones); err != nil {
			return nil, eris.Wrap(err, "layout: boundary check")
		}
	}

	if err := checkSpacing(ctx, res, l.Turbines, opts); err != nil {
		return nil, eris.Wrap(err, "layout: spacing check")
	}

	res.TotalViolations = len(res.BoundaryViolations) + len(res.SpacingViolations)
	res.ValidationPassed = res.TotalViolations == 0

	log.Info("layout validated",
		zap.Int("turbines", res.TotalTurbines),
		zap.Bool("boundary_checked", res.BoundaryChecked),
		zap.Int("boundary_violations", len(res.BoundaryViolations)),
		zap.Int("spacing_violations", len(res.SpacingViolations)),
		zap.Bool("passed", res.ValidationPassed),
	)
	return res, nil
}

func checkTurbines(ts []Turbine) (string, string) {
	seen := make(map[string]int, len(ts))
	for i, t := range ts {
		if prev, ok := seen[t.ID]; ok {
			return ReasonDuplicateTurbineID, fmt.Sprintf("turbine id %q used by turbines %d and %d", t.ID, prev+1, i+1)
		}
		seen[t.ID] = i
		if !validPosition(t.Longitude, t.Latitude) {
			return ReasonInvalidPosition, fmt.Sprintf("turbine %q has invalid position (%v, %v)", t.ID, t.Longitude, t.Latitude)
		}
	}
	return "", ""
}

func validPosition(lon, lat float64) bool {
	return !math.IsNaN(lon) && !math.IsNaN(lat) && math.Abs(lon) <= 180 && lat >= -80 && lat <= 84
}

// checkBoundaries projects zones and turbines into the UTM zone of the
// layout's mean position and records one violation per turbine and zone
// class it intersects.
func checkBoundaries(ctx context.Context, res *Result, ts []Turbine, zones []exclusion.Zone) error {
	var sumLon, sumLat float64
	for _, t := range ts {
		sumLon += t.Longitude
		sumLat += t.Latitude
	}
	proj := projection.ForLonLat(sumLon/float64(len(ts)), sumLat/float64(len(ts)))
	res.CRS = proj.String()

	eng := planar.NewEngine()
	type zoneShape struct {
		class string
		shape *planar.Shape
	}
	shapes := make([]zoneShape, 0, len(zones))
	for i, z := range zones {
		if z.Geometry == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("zone %d (%s) has no geometry", i, z.Class))
			continue
		}
		s, err := projectedShape(eng, proj, z.Geometry)
		if err != nil {
			zap.L().Warn("layout: skipping unusable zone", zap.Int("zone", i), zap.String("class", z.Class.String()), zap.Error(err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("zone %d (%s) skipped: %v", i, z.Class, err))
			continue
		}
		shapes = append(shapes, zoneShape{class: z.Class.String(), shape: s})
	}

	for _, t := range ts {
		if err := ctx.Err(); err != nil {
			return err
		}
		pt, err := projectedShape(eng, proj, geom.NewPointFlat(geom.XY, []float64{t.Longitude, t.Latitude}))
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("turbine %s not checked: %v", t.ID, err))
			continue
		}
		hit := make(map[string]bool)
		for _, zs := range shapes {
			if hit[zs.class] {
				continue
			}
			in, err := pt.Intersects(zs.shape)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("turbine %s vs %s: %v", t.ID, zs.class, err))
				continue
			}
			if in {
				hit[zs.class] = true
				res.BoundaryViolations = append(res.BoundaryViolations, BoundaryViolation{
					TurbineID:   t.ID,
					Coordinates: [2]float64{t.Latitude, t.Longitude},
					ZoneClass:   zs.class,
					Issue:       fmt.Sprintf("%s (%s exclusion zone)", boundaryIssue, zs.class),
				})
			}
		}
	}
	res.BoundaryChecked = true
	return nil
}

func projectedShape(eng *planar.Engine, proj *projection.UTM, g geom.T) (*planar.Shape, error) {
	projected, err := proj.Project(g)
	if err != nil {
		return nil, err
	}
	return eng.Shape(projected)
}

// PairCount is the number of unordered pairs among n turbines.
func PairCount(n int) int {
	return n * (n - 1) / 2
}

// pairOffset is the slot of pair (i, i+1) when pairs are laid out row by row.
func pairOffset(i, n int) int {
	return i*n - i*(i+1)/2
}

// checkSpacing computes every pairwise distance. Rows are sharded across
// workers by stride and each pair is written to its own slot, so the output
// order is the same as a sequential i<j scan.
func checkSpacing(ctx context.Context, res *Result, ts []Turbine, opts Options) error {
	n := len(ts)
	pairs := PairCount(n)
	dist := make([]float64, pairs)

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < n-1; i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				base := pairOffset(i, n)
				for j := i + 1; j < n; j++ {
					dist[base+j-i-1] = Distance(ts[i], ts[j])
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	res.TurbineDistances = make([]PairDistance, 0, pairs)
	for i := 0; i < n-1; i++ {
		base := pairOffset(i, n)
		for j := i + 1; j < n; j++ {
			d := dist[base+j-i-1]
			res.TurbineDistances = append(res.TurbineDistances, PairDistance{
				Turbine1:  ts[i].ID,
				Turbine2:  ts[j].ID,
				DistanceM: round1(d),
			})
			if d < opts.MinSpacingM {
				res.SpacingViolations = append(res.SpacingViolations, SpacingViolation{
					Turbine1:          ts[i].ID,
					Turbine2:          ts[j].ID,
					ActualDistanceM:   round1(d),
					RequiredDistanceM: opts.MinSpacingM,
					ShortfallM:        round1(opts.MinSpacingM - d),
				})
			}
		}
	}
	res.SpacingValidationApplied = true
	return nil
}
