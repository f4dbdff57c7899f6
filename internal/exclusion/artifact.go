package exclusion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/setback"
)

// Artifact property keys.
const (
	PropFeatureType   = "feature_type"
	PropOriginalCount = "original_count"
	PropMerged        = "merged"
	PropAreaM2        = "area_m2"
)

// SRID is the spatial reference of zone geometries (WGS84).
const SRID = 4326

// FeatureCollection converts zones into a GeoJSON feature collection, one
// feature per zone.
func FeatureCollection(zones []Zone) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	for i, z := range zones {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("%s-%d", z.Class, i),
			Geometry: z.Geometry,
			Properties: map[string]any{
				PropFeatureType:   z.Class.String(),
				PropOriginalCount: z.SourceCount,
				PropMerged:        z.Merged,
				PropAreaM2:        z.AreaM2,
			},
		})
	}
	return fc
}

// MarshalZones encodes zones as a GeoJSON FeatureCollection.
func MarshalZones(zones []Zone) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection(zones))
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: encode zones")
	}
	return data, nil
}

// EncodeZones writes zones to w as a GeoJSON FeatureCollection.
func EncodeZones(w io.Writer, zones []Zone) error {
	data, err := MarshalZones(zones)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "exclusion: write zones")
	}
	return nil
}

// DecodeZones reads a zones artifact. Features without a recognised
// feature_type are rejected; a missing merged flag means merged.
func DecodeZones(r io.Reader) ([]Zone, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: read zones")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "exclusion: parse zones")
	}

	zones := make([]Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		z, err := zoneFromFeature(f)
		if err != nil {
			return nil, eris.Wrapf(err, "exclusion: zone %d", i)
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func zoneFromFeature(f *geojson.Feature) (Zone, error) {
	if f == nil || f.Geometry == nil {
		return Zone{}, eris.New("missing geometry")
	}
	name, _ := f.Properties[PropFeatureType].(string)
	class, err := setback.ParseZoneClass(name)
	if err != nil {
		return Zone{}, err
	}
	mp, err := planar.AsMultiPolygon(f.Geometry)
	if err != nil {
		return Zone{}, err
	}

	z := Zone{Class: class, Geometry: mp, SourceCount: 1, Merged: true}
	if n, ok := f.Properties[PropOriginalCount].(float64); ok {
		z.SourceCount = int(n)
	}
	if m, ok := f.Properties[PropMerged].(bool); ok {
		z.Merged = m
	}
	if a, ok := f.Properties[PropAreaM2].(float64); ok {
		z.AreaM2 = a
	}
	return z, nil
}

// Features re-ingests zones as tagged features so they can be filtered and
// buffered again. Zones without geometry are left out.
func Features(zones []Zone) []feature.GeoFeature {
	out := make([]feature.GeoFeature, 0, len(zones))
	for i, z := range zones {
		if z.Geometry == nil {
			continue
		}
		out = append(out, feature.GeoFeature{
			Geometry: z.Geometry,
			Tags:     feature.Tags{PropFeatureType: z.Class.String()},
			Source:   fmt.Sprintf("%s-%d", z.Class, i),
		})
	}
	return out
}

// EWKB encodes the zone geometry as little-endian EWKB with SRID 4326.
func (z Zone) EWKB() ([]byte, error) {
	if z.Geometry == nil {
		return nil, eris.New("exclusion: zone has no geometry")
	}
	g := z.Geometry.Clone().SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "exclusion: encode EWKB")
	}
	return data, nil
}

// EWKBHex is EWKB as a hex string, the form PostGIS accepts in text input.
func (z Zone) EWKBHex() (string, error) {
	data, err := z.EWKB()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(data), nil
}

// Bounds returns the WGS84 bounding box of all zones, or nil when there are none.
func Bounds(zones []Zone) *geom.Bounds {
	var b *geom.Bounds
	for _, z := range zones {
		if z.Geometry == nil || z.Geometry.Empty() {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(z.Geometry)
	}
	return b
}
