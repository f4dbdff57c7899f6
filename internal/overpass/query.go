// Package overpass fetches constraint features around a site from an
// Overpass API endpoint.
package overpass

import (
	"fmt"
	"strings"
)

// KMPerDegree approximates kilometers per degree for bounding boxes.
const KMPerDegree = 111.32

// BBox is a south, west, north, east bounding box in degrees.
type BBox struct {
	South, West, North, East float64
}

// BBoxAround returns the square box of half-width radiusKM around a center.
// The box over-covers at high latitudes; the radius filter trims it.
func BBoxAround(lon, lat, radiusKM float64) BBox {
	d := radiusKM / KMPerDegree
	return BBox{South: lat - d, West: lon - d, North: lat + d, East: lon + d}
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.South, b.West, b.North, b.East)
}

// selectors are the element filters queried around a site.
var selectors = []string{
	// water
	`way["natural"="water"]`,
	`relation["type"="multipolygon"]["natural"="water"]`,
	`way["waterway"~"^(river|stream|canal)$"]`,
	`way["water"~"^(lake|pond|reservoir)$"]`,
	`way["natural"~"^(wetland|coastline)$"]`,
	`node["natural"="spring"]`,
	// buildings and structures
	`way["building"]`,
	`relation["type"="multipolygon"]["building"]`,
	`way["man_made"]`,
	`node["man_made"]`,
	`way["landuse"="residential"]`,
	`node["amenity"~"^(school|hospital|clinic|nursing_home|kindergarten)$"]`,
	// infrastructure
	`way["highway"]`,
	`way["railway"]`,
	`way["power"]`,
	`node["power"~"^(tower|pole|substation)$"]`,
	`way["pipeline"]`,
}

// Query builds an Overpass QL query returning every selector within b with
// inline geometry.
func Query(b BBox, timeoutSecs int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];\n(\n", timeoutSecs)
	box := b.String()
	for _, s := range selectors {
		fmt.Fprintf(&sb, "  %s(%s);\n", s, box)
	}
	sb.WriteString(");\nout geom;\n")
	return sb.String()
}
