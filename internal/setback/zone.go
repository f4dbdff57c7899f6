// Package setback assigns constraint features to zone classes and resolves
// the clearance distance each class requires.
package setback

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ZoneClass determines which setback rule applies to a feature.
type ZoneClass int

const (
	// Residence covers dwellings and sensitive receptors (schools, hospitals).
	Residence ZoneClass = iota + 1
	// InfrastructureLine covers roads, railways, transmission and existing structures.
	InfrastructureLine
	// UtilityLine covers pipelines, wells and distribution lines.
	UtilityLine
	// Water covers water bodies, waterways and wetlands.
	Water
	// Other is everything else.
	Other
)

// Classes lists every zone class in classification priority order.
var Classes = []ZoneClass{Residence, InfrastructureLine, UtilityLine, Water, Other}

// String returns the serialized class name.
func (c ZoneClass) String() string {
	switch c {
	case Residence:
		return "residence"
	case InfrastructureLine:
		return "infrastructure"
	case UtilityLine:
		return "utility"
	case Water:
		return "water"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// ParseZoneClass converts a class name into a ZoneClass. Older artifacts used
// buildings/roads/pipeline; those names are accepted too.
func ParseZoneClass(s string) (ZoneClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "residence", "buildings":
		return Residence, nil
	case "infrastructure", "infrastructure_line", "roads":
		return InfrastructureLine, nil
	case "utility", "utility_line", "pipeline":
		return UtilityLine, nil
	case "water":
		return Water, nil
	case "other":
		return Other, nil
	default:
		return 0, eris.Errorf("unknown zone class: %q (valid: residence, infrastructure, utility, water, other)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ZoneClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ZoneClass) UnmarshalText(b []byte) error {
	parsed, err := ParseZoneClass(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
