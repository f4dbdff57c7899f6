// Package projection converts WGS84 longitude/latitude geometries to and from
// a Universal Transverse Mercator plane so that distances and buffers can be
// expressed in meters. Transformations are done by PROJ through go-proj.
package projection

import (
	"fmt"
	"math"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-proj/v10"
)

// pjs caches one PROJ transformation per EPSG code.
var (
	pjMu sync.Mutex
	pjs  = map[int]*zonePJ{}
)

// zonePJ serializes calls into a PROJ transformation object, which must not
// be used from two goroutines at once.
type zonePJ struct {
	mu sync.Mutex
	pj *proj.PJ
}

func pjFor(epsg int) (*zonePJ, error) {
	pjMu.Lock()
	defer pjMu.Unlock()
	if z, ok := pjs[epsg]; ok {
		return z, nil
	}
	pj, err := proj.NewCRSToCRS("EPSG:4326", fmt.Sprintf("EPSG:%d", epsg), nil)
	if err != nil {
		return nil, eris.Wrapf(err, "projection: create EPSG:4326 -> EPSG:%d", epsg)
	}
	// Longitude first on the geographic side.
	norm, err := pj.NormalizeForVisualization()
	pj.Destroy()
	if err != nil {
		return nil, eris.Wrapf(err, "projection: normalize EPSG:%d axis order", epsg)
	}
	z := &zonePJ{pj: norm}
	pjs[epsg] = z
	return z, nil
}

// UTM is a single UTM zone. The zone is fixed at construction, so every
// geometry projected through the same UTM value shares one planar frame.
type UTM struct {
	Zone  int
	North bool
}

// NewUTM returns the projection for a zone number (1-60) and hemisphere.
func NewUTM(zone int, north bool) (*UTM, error) {
	if zone < 1 || zone > 60 {
		return nil, eris.Errorf("projection: invalid UTM zone %d", zone)
	}
	return &UTM{Zone: zone, North: north}, nil
}

// ForLonLat picks the UTM zone containing the given WGS84 position.
func ForLonLat(lon, lat float64) *UTM {
	zone := int(math.Floor((normalizeLon(lon)+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	u, _ := NewUTM(zone, lat >= 0)
	return u
}

// EPSG returns the EPSG code of the zone (326xx north, 327xx south).
func (u *UTM) EPSG() int {
	if u.North {
		return 32600 + u.Zone
	}
	return 32700 + u.Zone
}

func (u *UTM) String() string {
	hemi := "N"
	if !u.North {
		hemi = "S"
	}
	return fmt.Sprintf("UTM %d%s (EPSG:%d)", u.Zone, hemi, u.EPSG())
}

// Forward projects a WGS84 longitude/latitude to UTM easting/northing in meters.
func (u *UTM) Forward(lon, lat float64) (x, y float64, err error) {
	z, err := pjFor(u.EPSG())
	if err != nil {
		return 0, 0, err
	}
	z.mu.Lock()
	c, err := z.pj.Forward(proj.NewCoord(normalizeLon(lon), lat, 0, 0))
	z.mu.Unlock()
	if err != nil {
		return 0, 0, eris.Wrapf(err, "projection: forward (%g, %g)", lon, lat)
	}
	return c.X(), c.Y(), nil
}

// Inverse converts UTM easting/northing back to WGS84 longitude/latitude.
func (u *UTM) Inverse(x, y float64) (lon, lat float64, err error) {
	z, err := pjFor(u.EPSG())
	if err != nil {
		return 0, 0, err
	}
	z.mu.Lock()
	c, err := z.pj.Inverse(proj.NewCoord(x, y, 0, 0))
	z.mu.Unlock()
	if err != nil {
		return 0, 0, eris.Wrapf(err, "projection: inverse (%g, %g)", x, y)
	}
	return normalizeLon(c.X()), c.Y(), nil
}

func normalizeLon(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
