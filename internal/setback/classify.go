package setback

import (
	"github.com/sells-group/windsite/internal/feature"
)

// Classify returns the zone class of a feature. Rules are checked in
// priority order and the first match wins, so a school building is a
// Residence even though it is also a building.
//   - residence: dwellings, schools, hospitals, clinics, nursing homes, kindergartens, residential land use
//   - infrastructure: roads, railways, power lines/towers/poles/substations, masts, non-residential buildings
//   - utility: pipelines, wells, minor power lines and cables
//   - water: water bodies, wetlands, coastline, rivers/streams/canals, lakes/ponds/reservoirs
//   - other: anything else
func Classify(f feature.GeoFeature) ZoneClass {
	return ClassifyTags(f.Tags)
}

// ClassifyTags applies the classification rules to a bare tag set.
func ClassifyTags(t feature.Tags) ZoneClass {
	switch {
	case IsResidence(t):
		return Residence
	case IsInfrastructure(t):
		return InfrastructureLine
	case IsUtility(t):
		return UtilityLine
	case IsWater(t):
		return Water
	default:
		return Other
	}
}

var receptorKinds = []string{"school", "hospital", "clinic", "nursing_home", "kindergarten"}

// IsResidence matches residential or institutional receptor tags.
func IsResidence(t feature.Tags) bool {
	return t.In("building", "residential", "house", "apartments", "detached", "terrace", "semidetached_house", "bungalow") ||
		t.In("building", receptorKinds...) ||
		t.In("amenity", receptorKinds...) ||
		t.In("landuse", "residential")
}

// IsInfrastructure matches roads, railways, transmission assets, tall
// structures and non-residential buildings.
func IsInfrastructure(t feature.Tags) bool {
	return t.Has("highway") ||
		t.Has("railway") ||
		t.In("power", "line", "tower", "pole", "substation") ||
		t.In("man_made", "tower", "mast", "antenna") ||
		t.In("building", "commercial", "industrial", "retail", "warehouse", "church", "mosque", "temple", "public", "civic", "government")
}

// IsUtility matches pipelines, wells and distribution lines.
func IsUtility(t feature.Tags) bool {
	return t.In("man_made", "pipeline", "petroleum_well", "gas_well", "water_well") ||
		t.In("power", "minor_line", "cable") ||
		t.Has("pipeline")
}

// IsWater matches water bodies, waterways and wetlands.
func IsWater(t feature.Tags) bool {
	return t.In("natural", "water", "wetland", "coastline", "spring") ||
		t.In("waterway", "river", "stream", "canal") ||
		t.In("water", "lake", "pond", "reservoir")
}
