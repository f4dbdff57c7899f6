package exclusion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/projection"
	"github.com/sells-group/windsite/internal/setback"
)

// Report counts what each stage did and lists every dropped feature.
type Report struct {
	Records    int            `json:"records"`
	Normalized int            `json:"normalized"`
	InRadius   int            `json:"in_radius"`
	Buffered   int            `json:"buffered"`
	Zones      int            `json:"zones"`
	ByClass    map[string]int `json:"by_class"`
	Fallbacks  []string       `json:"fallbacks,omitempty"`
	// Dropped is keyed by class name; see ReduceOutcome.Dropped.
	Dropped  map[string]DroppedParts `json:"dropped_parts,omitempty"`
	Skips    []feature.Skip          `json:"skips,omitempty"`
	CRS      string                  `json:"crs"`
	Setbacks map[string]float64      `json:"setbacks_m"`
	Elapsed  time.Duration           `json:"elapsed_ns"`
}

// Analysis is the outcome of one run. Success is false only when the request
// itself was rejected; Reason then says why.
type Analysis struct {
	RunID   string  `json:"run_id"`
	Success bool    `json:"success"`
	Reason  string  `json:"reason,omitempty"`
	Request Request `json:"request"`
	Zones   []Zone  `json:"-"`
	Report  Report  `json:"report"`
}

// Analyze runs the full pipeline over already materialized records:
// normalize, radius filter, classify and buffer, then reduce per class.
// Invalid requests produce an unsuccessful Analysis rather than an error;
// the error return is reserved for cancellation.
func Analyze(ctx context.Context, req Request, records []feature.RawRecord, opts Options) (*Analysis, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := zap.L().With(zap.String("component", "exclusion.pipeline"), zap.String("run_id", runID))

	a := &Analysis{RunID: runID, Request: req, Zones: []Zone{}}
	a.Report.Records = len(records)
	a.Report.ByClass = map[string]int{}

	if err := req.Validate(); err != nil {
		log.Warn("request rejected", zap.Error(err))
		a.Reason = err.Error()
		return a, nil
	}
	opts = opts.normalized()
	cfg := req.SetbackConfig()
	proj := projection.ForLonLat(req.CenterLon, req.CenterLat)

	a.Report.CRS = proj.String()
	a.Report.Setbacks = make(map[string]float64, len(setback.Classes))
	for _, c := range setback.Classes {
		a.Report.Setbacks[c.String()] = cfg.For(c)
	}

	features, skips := feature.Normalize(records)
	a.Report.Normalized = len(features)
	a.Report.Skips = append(a.Report.Skips, skips...)

	eng := planar.NewEngine()
	inRadius, skips, err := filterByRadius(eng, proj, features, req.CenterLon, req.CenterLat, req.RadiusKM)
	if err != nil {
		return nil, err
	}
	a.Report.InRadius = len(inRadius)
	a.Report.Skips = append(a.Report.Skips, skips...)

	buffered, skips, err := BufferAll(ctx, proj, inRadius, cfg, opts.Workers)
	if err != nil {
		return nil, err
	}
	a.Report.Buffered = len(buffered)
	a.Report.Skips = append(a.Report.Skips, skips...)
	for _, b := range buffered {
		a.Report.ByClass[b.Class.String()]++
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "exclusion: analyze")
	}

	out := Reduce(eng, proj, buffered, opts)
	a.Zones = append(a.Zones, out.Zones...)
	a.Report.Zones = len(out.Zones)
	a.Report.Skips = append(a.Report.Skips, out.Skips...)
	for _, c := range out.Fallbacks {
		a.Report.Fallbacks = append(a.Report.Fallbacks, c.String())
	}
	for c, d := range out.Dropped {
		if a.Report.Dropped == nil {
			a.Report.Dropped = make(map[string]DroppedParts, len(out.Dropped))
		}
		a.Report.Dropped[c.String()] = d
	}

	a.Success = true
	a.Report.Elapsed = time.Since(start)
	log.Info("analysis complete",
		zap.Int("records", a.Report.Records),
		zap.Int("in_radius", a.Report.InRadius),
		zap.Int("zones", a.Report.Zones),
		zap.Int("skips", len(a.Report.Skips)),
		zap.Duration("elapsed", a.Report.Elapsed),
	)
	return a, nil
}
