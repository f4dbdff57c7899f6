package exclusion

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/planar"
	"github.com/sells-group/windsite/internal/projection"
	"github.com/sells-group/windsite/internal/setback"
)

func houseRecord(source string, lon, lat float64) feature.RawRecord {
	return feature.RawRecord{
		Source:   source,
		Geometry: square(lon, lat, 0.0002),
		Tags:     feature.Tags{"building": "house"},
	}
}

func TestAnalyze_ResidenceScenario(t *testing.T) {
	req := Request{CenterLon: 0, CenterLat: 0, RadiusKM: 5, Setbacks: residenceConfig(300)}
	records := []feature.RawRecord{
		houseRecord("near", 0.018, 0),
		houseRecord("far", 0.054, 0),
	}

	a, err := Analyze(context.Background(), req, records, DefaultOptions())
	require.NoError(t, err)
	require.True(t, a.Success)
	assert.NotEmpty(t, a.RunID)
	assert.Empty(t, a.Reason)

	assert.Equal(t, 2, a.Report.Records)
	assert.Equal(t, 2, a.Report.Normalized)
	assert.Equal(t, 1, a.Report.InRadius)
	assert.Equal(t, 1, a.Report.Buffered)
	assert.Equal(t, map[string]int{"residence": 1}, a.Report.ByClass)
	assert.Equal(t, "UTM 31N (EPSG:32631)", a.Report.CRS)
	assert.Equal(t, 300.0, a.Report.Setbacks["residence"])

	require.Len(t, a.Zones, 1)
	z := a.Zones[0]
	assert.Equal(t, setback.Residence, z.Class)
	assert.Equal(t, 1, z.SourceCount)
	assert.True(t, z.Merged)
	assert.Greater(t, z.AreaM2, 300000.0)
	assert.Less(t, z.AreaM2, 350000.0)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	req := Request{CenterLon: -99.5, CenterLat: 31.2, RadiusKM: 5}
	a, err := Analyze(context.Background(), req, nil, DefaultOptions())
	require.NoError(t, err)
	require.True(t, a.Success)
	assert.NotNil(t, a.Zones)
	assert.Empty(t, a.Zones)

	var buf bytes.Buffer
	require.NoError(t, EncodeZones(&buf, a.Zones))
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, buf.String())
}

func TestAnalyze_RejectsConfiguration(t *testing.T) {
	neg := residenceConfig(-10)

	tests := []struct {
		name   string
		req    Request
		reason string
	}{
		{"zero radius", Request{RadiusKM: 0}, "radius"},
		{"negative setback", Request{RadiusKM: 5, Setbacks: neg}, "non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Analyze(context.Background(), tt.req, []feature.RawRecord{houseRecord("h", 0, 0)}, DefaultOptions())
			require.NoError(t, err)
			assert.False(t, a.Success)
			assert.Contains(t, a.Reason, tt.reason)
			assert.Empty(t, a.Zones)
			assert.Zero(t, a.Report.Normalized)
		})
	}
}

func TestAnalyze_RecordsSkips(t *testing.T) {
	req := Request{CenterLon: 0, CenterLat: 0, RadiusKM: 5, Setbacks: residenceConfig(100)}
	records := []feature.RawRecord{
		{Source: "degenerate", Coords: []geom.Coord{{0, 0}}, Tags: feature.Tags{"highway": "track"}},
		houseRecord("ok", 0.01, 0.01),
	}

	a, err := Analyze(context.Background(), req, records, DefaultOptions())
	require.NoError(t, err)
	require.True(t, a.Success)
	require.Len(t, a.Report.Skips, 1)
	assert.Equal(t, feature.StageNormalize, a.Report.Skips[0].Stage)
	assert.Equal(t, "degenerate", a.Report.Skips[0].Source)
	assert.Len(t, a.Zones, 1)
}

func TestAnalyze_ReportsDroppedParts(t *testing.T) {
	req := Request{CenterLon: 0, CenterLat: 0, RadiusKM: 5, Setbacks: residenceConfig(5)}
	records := []feature.RawRecord{
		{Source: "shed", Geometry: geom.NewPointFlat(geom.XY, []float64{0.01, 0.01}), Tags: feature.Tags{"building": "house"}},
	}

	a, err := Analyze(context.Background(), req, records, DefaultOptions())
	require.NoError(t, err)
	require.True(t, a.Success)
	assert.Equal(t, 1, a.Report.Buffered)
	assert.Empty(t, a.Zones)

	d, ok := a.Report.Dropped["residence"]
	require.True(t, ok)
	assert.Equal(t, 1, d.Parts)
	assert.True(t, d.Vanished)
	assert.Less(t, d.AreaM2, DefaultMinPartAreaM2)
}

func TestZonesRoundTrip(t *testing.T) {
	req := Request{CenterLon: 0, CenterLat: 0, RadiusKM: 5, Setbacks: residenceConfig(250)}
	records := []feature.RawRecord{
		houseRecord("a", 0.01, 0.01),
		houseRecord("b", 0.02, -0.01),
		{Source: "river", Coords: []geom.Coord{{-0.02, -0.02}, {-0.01, 0.02}}, Tags: feature.Tags{"waterway": "river"}},
	}
	a, err := Analyze(context.Background(), req, records, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, a.Zones, 2)

	data, err := MarshalZones(a.Zones)
	require.NoError(t, err)
	decoded, err := DecodeZones(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, decoded, len(a.Zones))

	for i := range decoded {
		assert.Equal(t, a.Zones[i].Class, decoded[i].Class)
		assert.Equal(t, a.Zones[i].SourceCount, decoded[i].SourceCount)
		assert.Equal(t, a.Zones[i].Merged, decoded[i].Merged)
		assert.InDelta(t, a.Zones[i].AreaM2, decoded[i].AreaM2, 1e-6)
	}

	// Re-ingest the artifact: every zone stays in range and buffering it by
	// zero reproduces its area.
	features := Features(decoded)
	kept, skips, err := FilterByRadius(features, 0, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, skips)
	assert.Len(t, kept, len(features))

	eng := planar.NewEngine()
	proj := projection.ForLonLat(0, 0)
	for i, f := range kept {
		g, err := BufferFeature(eng, proj, f, 0)
		require.NoError(t, err)
		mp, err := planar.AsMultiPolygon(g)
		require.NoError(t, err)
		assert.InEpsilon(t, a.Zones[i].AreaM2, mp.Area(), 1e-3)
	}
}

func TestDecodeZones_Errors(t *testing.T) {
	_, err := DecodeZones(strings.NewReader("nope"))
	require.Error(t, err)

	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"feature_type":"lava"}}
	]}`
	_, err = DecodeZones(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown zone class")
}

func TestDecodeZones_LegacyNames(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"feature_type":"buildings"}}
	]}`
	zones, err := DecodeZones(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, setback.Residence, zones[0].Class)
	assert.Equal(t, 1, zones[0].SourceCount)
	assert.True(t, zones[0].Merged)
	assert.Equal(t, 1, zones[0].Geometry.NumPolygons())
}

func TestZoneEWKB(t *testing.T) {
	mp, err := planar.MultiPolygon([]*geom.Polygon{square(-99, 31, 0.01)})
	require.NoError(t, err)
	z := Zone{Class: setback.Water, Geometry: mp, SourceCount: 3, Merged: true}

	data, err := z.EWKB()
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[0])

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, SRID, g.SRID())
	assert.IsType(t, &geom.MultiPolygon{}, g)
	assert.Zero(t, mp.SRID())

	h, err := z.EWKBHex()
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(data), h)

	_, err = Zone{}.EWKB()
	require.Error(t, err)
}

func TestBounds(t *testing.T) {
	assert.Nil(t, Bounds(nil))

	a, err := planar.MultiPolygon([]*geom.Polygon{square(0, 0, 1)})
	require.NoError(t, err)
	b, err := planar.MultiPolygon([]*geom.Polygon{square(2, -1, 1)})
	require.NoError(t, err)

	bounds := Bounds([]Zone{{Geometry: a}, {Geometry: b}})
	require.NotNil(t, bounds)
	assert.Equal(t, []float64{0, -1}, []float64{bounds.Min(0), bounds.Min(1)})
	assert.Equal(t, []float64{3, 1}, []float64{bounds.Max(0), bounds.Max(1)})
}
