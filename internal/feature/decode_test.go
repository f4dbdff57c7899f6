package feature

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/windsite/internal/planar"
)

func TestDecodeGeoJSON(t *testing.T) {
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "id": "w1",
	     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[0.001,0],[0.001,0.001],[0,0]]]},
	     "properties": {"building": "house", "levels": 2, "ruins": false, "note": null}},
	    {"type": "Feature",
	     "geometry": {"type": "LineString", "coordinates": [[0,0],[0.01,0.01]]},
	     "properties": {"highway": "primary", "ref": ["US", 87]}}
	  ]
	}`

	records, err := DecodeGeoJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "w1", records[0].Source)
	assert.IsType(t, &geom.Polygon{}, records[0].Geometry)
	assert.Equal(t, Tags{"building": "house", "levels": "2", "ruins": "false"}, records[0].Tags)

	assert.Equal(t, "1", records[1].Source)
	assert.Equal(t, "primary", records[1].Tags["highway"])
	assert.Equal(t, `["US",87]`, records[1].Tags["ref"])
}

func TestDecodeGeoJSON_Invalid(t *testing.T) {
	_, err := DecodeGeoJSON(strings.NewReader("{not json"))
	require.Error(t, err)
}

func TestDecodeGeoJSON_EmptyCollection(t *testing.T) {
	records, err := DecodeGeoJSON(strings.NewReader(`{"type":"FeatureCollection","features":[]}`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeOverpass(t *testing.T) {
	doc := `{
	  "version": 0.6,
	  "elements": [
	    {"type": "way", "id": 10, "tags": {"natural": "water"},
	     "geometry": [{"lat": 0, "lon": 0}, {"lat": 0, "lon": 0.01}, {"lat": 0.01, "lon": 0.01}, {"lat": 0, "lon": 0}]},
	    {"type": "way", "id": 11, "tags": {"highway": "residential"},
	     "geometry": [{"lat": 0, "lon": 0}, {"lat": 0.02, "lon": 0.02}]},
	    {"type": "node", "id": 12, "lat": 0.5, "lon": 0.6, "tags": {"natural": "spring"}},
	    {"type": "node", "id": 13, "lat": 0.5, "lon": 0.6},
	    {"type": "relation", "id": 14, "tags": {"natural": "water"}}
	  ]
	}`

	records, err := DecodeOverpass(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, "way/10", records[0].Source)
	assert.Len(t, records[0].Coords, 4)
	assert.Equal(t, geom.Coord{0.01, 0}, records[0].Coords[1])

	assert.Equal(t, "node/12", records[2].Source)
	require.NotNil(t, records[2].Geometry)
	assert.Equal(t, []float64{0.6, 0.5}, records[2].Geometry.FlatCoords())

	assert.Equal(t, RejectUntaggedNode, records[3].Reject)
	assert.Equal(t, RejectRelationType, records[4].Reject)

	feats, skips := Normalize(records)
	require.Len(t, feats, 3)
	assert.IsType(t, &geom.Polygon{}, feats[0].Geometry)
	assert.IsType(t, &geom.LineString{}, feats[1].Geometry)
	assert.IsType(t, &geom.Point{}, feats[2].Geometry)
	assert.Equal(t, []Skip{
		{Index: 3, Source: "node/13", Stage: StageNormalize, Reason: RejectUntaggedNode},
		{Index: 4, Source: "relation/14", Stage: StageNormalize, Reason: RejectRelationType},
	}, skips)
}

func TestDecodeOverpass_Relations(t *testing.T) {
	// A lake whose shore is split over two ways (the second drawn backwards)
	// with an island.
	const lake = `{"type": "relation", "id": 1, "tags": {"type": "multipolygon", "natural": "water"},
	  "members": [
	    {"type": "way", "ref": 1, "role": "outer", "geometry": [{"lat": 0, "lon": 0}, {"lat": 0, "lon": 0.01}, {"lat": 0.01, "lon": 0.01}]},
	    {"type": "way", "ref": 2, "role": "outer", "geometry": [{"lat": 0, "lon": 0}, {"lat": 0.01, "lon": 0}, {"lat": 0.01, "lon": 0.01}]},
	    {"type": "way", "ref": 3, "role": "inner", "geometry": [{"lat": 0.004, "lon": 0.004}, {"lat": 0.004, "lon": 0.006}, {"lat": 0.006, "lon": 0.006}, {"lat": 0.004, "lon": 0.004}]},
	    {"type": "node", "ref": 4, "role": "label"}
	  ]}`

	tests := []struct {
		name   string
		el     string
		rings  []int
		reject string
	}{
		{"lake with island", lake, []int{2}, ""},
		{"two outers", `{"type": "relation", "id": 2, "tags": {"type": "multipolygon", "building": "yes"},
		  "members": [
		    {"type": "way", "ref": 1, "role": "outer", "geometry": [{"lat": 0, "lon": 0}, {"lat": 0, "lon": 0.001}, {"lat": 0.001, "lon": 0.001}, {"lat": 0, "lon": 0}]},
		    {"type": "way", "ref": 2, "role": "outer", "geometry": [{"lat": 1, "lon": 1}, {"lat": 1, "lon": 1.001}, {"lat": 1.001, "lon": 1.001}, {"lat": 1, "lon": 1}]}
		  ]}`, []int{1, 1}, ""},
		{"unclosed", `{"type": "relation", "id": 3, "tags": {"type": "multipolygon", "natural": "water"},
		  "members": [{"type": "way", "ref": 1, "role": "outer", "geometry": [{"lat": 0, "lon": 0}, {"lat": 0, "lon": 0.01}, {"lat": 0.01, "lon": 0.01}]}]}`,
			nil, RejectRelationUnclosed},
		{"no outer", `{"type": "relation", "id": 4, "tags": {"type": "multipolygon", "natural": "water"},
		  "members": [{"type": "way", "ref": 1, "role": "inner", "geometry": [{"lat": 0, "lon": 0}, {"lat": 0, "lon": 0.01}, {"lat": 0.01, "lon": 0.01}, {"lat": 0, "lon": 0}]}]}`,
			nil, RejectRelationNoOuter},
		{"building parts", `{"type": "relation", "id": 5, "tags": {"type": "building", "building": "yes"}, "members": []}`,
			nil, RejectRelationType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := DecodeOverpass(strings.NewReader(`{"elements": [` + tt.el + `]}`))
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.reject, records[0].Reject)

			feats, skips := Normalize(records)
			if tt.reject != "" {
				assert.Empty(t, feats)
				require.Len(t, skips, 1)
				assert.Equal(t, tt.reject, skips[0].Reason)
				return
			}
			require.Empty(t, skips)
			require.Len(t, feats, 1)

			var polys []*geom.Polygon
			switch g := feats[0].Geometry.(type) {
			case *geom.Polygon:
				polys = []*geom.Polygon{g}
			case *geom.MultiPolygon:
				for i := 0; i < g.NumPolygons(); i++ {
					polys = append(polys, g.Polygon(i))
				}
			}
			require.Len(t, polys, len(tt.rings))
			for i, p := range polys {
				assert.Equal(t, tt.rings[i], p.NumLinearRings())
			}

			shape, err := planar.NewEngine().Shape(feats[0].Geometry)
			require.NoError(t, err)
			assert.NoError(t, shape.CheckValid())
		})
	}
}

func TestShapeGeometry(t *testing.T) {
	single := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points:   []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}},
	}
	multi := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 4},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0},
			{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 5, Y: 5},
		},
	}
	line := &shp.PolyLine{
		NumParts: 1,
		Parts:    []int32{0},
		Points:   []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}
	multiLine := &shp.PolyLine{
		NumParts: 2,
		Parts:    []int32{0, 2},
		Points:   []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
	}

	assert.IsType(t, &geom.Point{}, ShapeGeometry(&shp.Point{X: 1, Y: 2}))
	assert.IsType(t, &geom.Polygon{}, ShapeGeometry(single))
	assert.IsType(t, &geom.MultiPolygon{}, ShapeGeometry(multi))
	assert.IsType(t, &geom.LineString{}, ShapeGeometry(line))
	assert.IsType(t, &geom.MultiLineString{}, ShapeGeometry(multiLine))
	assert.Nil(t, ShapeGeometry(nil))
	assert.Nil(t, ShapeGeometry(&shp.Polygon{}))
	assert.Nil(t, ShapeGeometry(&shp.PolyLine{}))
}

func TestShapeGeometry_Holes(t *testing.T) {
	cw := func(x, y, size float64) []shp.Point {
		return []shp.Point{{X: x, Y: y}, {X: x, Y: y + size}, {X: x + size, Y: y + size}, {X: x + size, Y: y}, {X: x, Y: y}}
	}
	ccw := func(x, y, size float64) []shp.Point {
		return []shp.Point{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}, {X: x, Y: y}}
	}
	polygon := func(rings ...[]shp.Point) *shp.Polygon {
		p := &shp.Polygon{NumParts: int32(len(rings))}
		for _, r := range rings {
			p.Parts = append(p.Parts, int32(len(p.Points)))
			p.Points = append(p.Points, r...)
		}
		return p
	}

	tests := []struct {
		name     string
		shape    *shp.Polygon
		polygons int
		rings    []int
	}{
		{"shell with hole", polygon(cw(0, 0, 10), ccw(2, 2, 2)), 1, []int{2}},
		{"shell with two holes", polygon(cw(0, 0, 10), ccw(2, 2, 2), ccw(6, 6, 2)), 1, []int{3}},
		{"holes follow their shells", polygon(cw(0, 0, 10), cw(20, 0, 10), ccw(22, 2, 2), ccw(2, 2, 2)), 2, []int{2, 2}},
		{"counter-clockwise only ring", polygon(ccw(0, 0, 10)), 1, []int{1}},
		{"hole outside every shell", polygon(cw(0, 0, 10), ccw(30, 30, 2)), 2, []int{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := ShapeGeometry(tt.shape)
			require.NotNil(t, g)

			var polys []*geom.Polygon
			switch g := g.(type) {
			case *geom.Polygon:
				polys = []*geom.Polygon{g}
			case *geom.MultiPolygon:
				for i := 0; i < g.NumPolygons(); i++ {
					polys = append(polys, g.Polygon(i))
				}
			default:
				t.Fatalf("unexpected geometry %T", g)
			}
			require.Len(t, polys, tt.polygons)
			for i, p := range polys {
				assert.Equal(t, tt.rings[i], p.NumLinearRings())
			}

			shape, err := planar.NewEngine().Shape(g)
			require.NoError(t, err)
			assert.NoError(t, shape.CheckValid())
		})
	}
}

func TestReadShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.shp")

	w, err := shp.Create(path, shp.POLYLINE)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("HIGHWAY", 20),
		shp.StringField("NAME", 20),
	}))

	n := w.Write(shp.NewPolyLine([][]shp.Point{{{X: -99, Y: 31}, {X: -98.99, Y: 31.01}}}))
	require.NoError(t, w.WriteAttribute(int(n), 0, "primary"))
	require.NoError(t, w.WriteAttribute(int(n), 1, ""))
	w.Close()

	records, err := ReadShapefile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "primary", records[0].Tags["highway"])
	_, hasName := records[0].Tags["name"]
	assert.False(t, hasName)
	assert.IsType(t, &geom.LineString{}, records[0].Geometry)
}

func TestReadShapefile_Missing(t *testing.T) {
	_, err := ReadShapefile(filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)
}
