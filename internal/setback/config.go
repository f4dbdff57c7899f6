package setback

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Fallback distances in meters.
const (
	// WaterM is 100 ft, the common stream/wetland setback.
	WaterM = 30.48
	// DefaultM applies when nothing more specific is known.
	DefaultM = 100.0
)

// ErrNegativeSetback is returned for negative or non-finite distances.
var ErrNegativeSetback = eris.New("setback: distance must be a finite, non-negative number")

// Config maps each zone class to a setback distance in meters. Classes
// without an entry use DefaultM. A Config is read-only once an analysis
// starts.
type Config struct {
	Distances map[ZoneClass]float64 `json:"distances"`
	DefaultM  float64               `json:"default_m"`
}

// For returns the setback distance of a class.
func (c Config) For(class ZoneClass) float64 {
	if d, ok := c.Distances[class]; ok {
		return d
	}
	return c.DefaultM
}

// Validate rejects negative or non-finite distances.
func (c Config) Validate() error {
	if bad(c.DefaultM) {
		return eris.Wrapf(ErrNegativeSetback, "default: %v", c.DefaultM)
	}
	for _, class := range Classes {
		if d, ok := c.Distances[class]; ok && bad(d) {
			return eris.Wrapf(ErrNegativeSetback, "%s: %v", class, d)
		}
	}
	return nil
}

func bad(d float64) bool {
	return d < 0 || math.IsNaN(d) || math.IsInf(d, 0)
}

// TurbineSpec is the turbine geometry used to derive default setbacks.
type TurbineSpec struct {
	TipHeightM   float64 `json:"tip_height_m" yaml:"tip_height_m"`
	RotorRadiusM float64 `json:"rotor_radius_m" yaml:"rotor_radius_m"`
}

// FromTurbine derives setbacks from turbine dimensions:
//   - residence: 3 x tip height
//   - infrastructure: 1.1 x tip height
//   - utility: 1.1 x rotor radius
//   - water: 30.48 m
//
// Distances that depend on an unknown (zero) dimension fall back to defaultM.
func FromTurbine(t TurbineSpec, defaultM float64) Config {
	c := Config{
		Distances: map[ZoneClass]float64{
			Residence:          defaultM,
			InfrastructureLine: defaultM,
			UtilityLine:        defaultM,
			Water:              WaterM,
		},
		DefaultM: defaultM,
	}
	if t.TipHeightM > 0 {
		c.Distances[Residence] = 3 * t.TipHeightM
		c.Distances[InfrastructureLine] = 1.1 * t.TipHeightM
	}
	if t.RotorRadiusM > 0 {
		c.Distances[UtilityLine] = 1.1 * t.RotorRadiusM
	}
	return c
}

// Overrides holds explicitly configured distances. Nil fields are resolved
// from the turbine spec.
type Overrides struct {
	ResidenceM      *float64 `yaml:"residence_m" json:"residence_m,omitempty"`
	InfrastructureM *float64 `yaml:"infrastructure_m" json:"infrastructure_m,omitempty"`
	UtilityM        *float64 `yaml:"utility_m" json:"utility_m,omitempty"`
	WaterM          *float64 `yaml:"water_m" json:"water_m,omitempty"`
	DefaultM        *float64 `yaml:"default_m" json:"default_m,omitempty"`
}

// Empty reports whether no distance is set.
func (o Overrides) Empty() bool {
	return o.ResidenceM == nil && o.InfrastructureM == nil && o.UtilityM == nil && o.WaterM == nil && o.DefaultM == nil
}

// Resolve combines explicit overrides with turbine-derived fallbacks.
func Resolve(o Overrides, t TurbineSpec) Config {
	def := DefaultM
	if o.DefaultM != nil {
		def = *o.DefaultM
	}
	c := FromTurbine(t, def)

	set := func(class ZoneClass, v *float64) {
		if v != nil {
			c.Distances[class] = *v
		}
	}
	set(Residence, o.ResidenceM)
	set(InfrastructureLine, o.InfrastructureM)
	set(UtilityLine, o.UtilityM)
	set(Water, o.WaterM)
	return c
}

// File is the on-disk setback configuration.
type File struct {
	Turbine  TurbineSpec `yaml:"turbine"`
	Setbacks Overrides   `yaml:"setbacks"`
}

// LoadFile reads a YAML setback file:
//
//	turbine:
//	  tip_height_m: 150
//	  rotor_radius_m: 65
//	setbacks:
//	  residence_m: 450
//	  water_m: 30.48
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "setback: read %s", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "setback: parse file")
	}
	return &f, nil
}
