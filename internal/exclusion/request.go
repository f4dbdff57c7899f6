// Package exclusion turns normalized constraint features into per-class
// exclusion zones: radius filtering, setback buffering, and the per-class
// union and simplification that produce the zone artifact.
package exclusion

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/windsite/internal/setback"
)

// Reducer and worker defaults.
const (
	DefaultSimplifyToleranceM = 10.0
	DefaultMinPartAreaM2      = 500.0
	DefaultWorkers            = 8
)

var (
	// ErrInvalidRadius is returned for a zero, negative or non-finite radius.
	ErrInvalidRadius = eris.New("exclusion: radius must be a positive number of kilometers")
	// ErrInvalidCenter is returned when the analysis center lies outside the
	// UTM latitude band or is not a valid WGS84 position.
	ErrInvalidCenter = eris.New("exclusion: center must be a valid longitude/latitude")
)

// Request describes one analysis run. A nil Setbacks triggers the
// turbine-derived fallback distances.
type Request struct {
	CenterLon float64             `json:"center_lon"`
	CenterLat float64             `json:"center_lat"`
	RadiusKM  float64             `json:"radius_km"`
	Setbacks  *setback.Config     `json:"setbacks,omitempty"`
	Turbine   setback.TurbineSpec `json:"turbine"`
}

// Validate rejects configuration that no geometric step can recover from.
func (r Request) Validate() error {
	if err := checkRadius(r.RadiusKM); err != nil {
		return err
	}
	if !finite(r.CenterLon) || !finite(r.CenterLat) || math.Abs(r.CenterLon) > 180 || r.CenterLat < -80 || r.CenterLat > 84 {
		return eris.Wrapf(ErrInvalidCenter, "lon=%v lat=%v", r.CenterLon, r.CenterLat)
	}
	return r.SetbackConfig().Validate()
}

// SetbackConfig returns the explicit setbacks or the turbine-derived fallback.
func (r Request) SetbackConfig() setback.Config {
	if r.Setbacks != nil {
		return *r.Setbacks
	}
	return setback.FromTurbine(r.Turbine, setback.DefaultM)
}

// Options tunes the buffer and reduce stages.
type Options struct {
	SimplifyToleranceM float64 `json:"simplify_tolerance_m"`
	MinPartAreaM2      float64 `json:"min_part_area_m2"`
	Workers            int     `json:"workers"`
}

// DefaultOptions returns the stock reducer settings.
func DefaultOptions() Options {
	return Options{
		SimplifyToleranceM: DefaultSimplifyToleranceM,
		MinPartAreaM2:      DefaultMinPartAreaM2,
		Workers:            DefaultWorkers,
	}
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if !finite(o.SimplifyToleranceM) || o.SimplifyToleranceM < 0 {
		o.SimplifyToleranceM = 0
	}
	if !finite(o.MinPartAreaM2) || o.MinPartAreaM2 < 0 {
		o.MinPartAreaM2 = 0
	}
	return o
}

func checkRadius(km float64) error {
	if !finite(km) || km <= 0 {
		return eris.Wrapf(ErrInvalidRadius, "got %v", km)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
