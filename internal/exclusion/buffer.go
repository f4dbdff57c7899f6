package exclusion

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/projection"
	"github.com/sells-group/windsite/internal/setback"
)

// Buffered is one feature grown by its class setback, in projected meters.
type Buffered struct {
	Index     int
	Source    string
	Class     setback.ZoneClass
	DistanceM float64
	Geometry  geom.T
}

// Empty reports whether buffering produced no area (zero setback on a point
// or line).
func (b Buffered) Empty() bool {
	return b.Geometry == nil || b.Geometry.Empty()
}

// BufferFeature projects f and buffers it by distanceM. Invalid input
// geometries are rejected with planar.ErrInvalidGeometry.
func BufferFeature(eng *planar.Engine, proj *projection.UTM, f feature.GeoFeature, distanceM float64) (geom.T, error) {
	if !finite(distanceM) || distanceM < 0 {
		return nil, eris.Wrapf(setback.ErrNegativeSetback, "buffer: %v", distanceM)
	}
	projected, err := proj.Project(f.Geometry)
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: project feature")
	}
	s, err := eng.Shape(projected)
	if err != nil {
		return nil, err
	}
	if err := s.CheckValid(); err != nil {
		return nil, err
	}
	out, err := s.Buffer(distanceM)
	if err != nil {
		return nil, err
	}
	g, err := out.Geom()
	if err != nil {
		return nil, err
	}
	return g, nil
}

// BufferAll classifies and buffers every feature. Work is split into
// contiguous chunks, one per worker, and each worker owns its own GEOS
// engine. Output keeps input order. Features that fail are returned as
// skips; only context cancellation aborts the batch.
func BufferAll(ctx context.Context, proj *projection.UTM, features []feature.GeoFeature, cfg setback.Config, workers int) ([]Buffered, []feature.Skip, error) {
	log := zap.L().With(zap.String("component", "exclusion.buffer"))

	if len(features) == 0 {
		return nil, nil, nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(features) {
		workers = len(features)
	}

	results := make([]Buffered, len(features))
	failures := make([]error, len(features))
	var buffered, failed atomic.Int64

	chunk := (len(features) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(features); start += chunk {
		end := min(start+chunk, len(features))
		g.Go(func() error {
			eng := planar.NewEngine()
			for i := start; i < end; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				f := features[i]
				class := setback.Classify(f)
				d := cfg.For(class)
				out, err := BufferFeature(eng, proj, f, d)
				if err != nil {
					failures[i] = err
					failed.Add(1)
					continue
				}
				results[i] = Buffered{Index: i, Source: f.Source, Class: class, DistanceM: d, Geometry: out}
				buffered.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "exclusion: buffer")
	}

	out := make([]Buffered, 0, buffered.Load())
	var skips []feature.Skip
	for i, err := range failures {
		if err != nil {
			log.Warn("skipping feature",
				zap.Int("index", i),
				zap.String("source", features[i].Source),
				zap.Error(err),
			)
			skips = append(skips, feature.Skip{Index: i, Source: features[i].Source, Stage: feature.StageBuffer, Reason: err.Error()})
			continue
		}
		out = append(out, results[i])
	}

	log.Info("buffering complete",
		zap.Int("workers", workers),
		zap.Int64("buffered", buffered.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return out, skips, nil
}
