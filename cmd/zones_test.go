package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/setback"
)

func TestReadRecords_Formats(t *testing.T) {
	geo := writeFile(t, "constraints.geojson", constraints)
	op := writeFile(t, "overpass.json", overpassDoc)

	tests := []struct {
		name   string
		path   string
		format string
		want   int
	}{
		{"geojson sniffed", geo, formatAuto, 4},
		{"geojson explicit", geo, formatGeoJSON, 4},
		{"overpass sniffed", op, formatAuto, 2},
		{"overpass explicit", op, "OVERPASS", 2},
		{"empty format is auto", op, "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := readRecords(tt.path, tt.format, nil)
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestReadRecords_Stdin(t *testing.T) {
	records, err := readRecords("-", formatAuto, strings.NewReader(overpassDoc))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadRecords_Errors(t *testing.T) {
	_, err := readRecords("", formatAuto, nil)
	assert.Error(t, err)

	_, err = readRecords(filepath.Join(t.TempDir(), "missing.geojson"), formatAuto, nil)
	assert.Error(t, err)

	_, err = readRecords(writeFile(t, "a.geojson", constraints), "kml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")

	_, err = readRecords(filepath.Join(t.TempDir(), "missing.shp"), formatAuto, nil)
	assert.Error(t, err)
}

func TestRunZones_GeoJSON(t *testing.T) {
	c := testConfig(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "zones.geojson")
	report := filepath.Join(dir, "report.json")

	a, err := runZones(context.Background(), c, zonesParams{
		input:    writeFile(t, "constraints.geojson", constraints),
		lat:      0,
		lon:      0,
		radiusKM: 5,
		out:      out,
		format:   "geojson",
		report:   report,
	}, nil, nil)
	require.NoError(t, err)
	require.True(t, a.Success)

	assert.Equal(t, 4, a.Report.Records)
	assert.Equal(t, 3, a.Report.Normalized)
	assert.Equal(t, 2, a.Report.InRadius)
	assert.Len(t, a.Report.Skips, 1)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	zones, err := exclusion.DecodeZones(f)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, setback.Residence, zones[0].Class)
	assert.Equal(t, setback.InfrastructureLine, zones[1].Class)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, a.RunID, rep["run_id"])
	assert.Equal(t, true, rep["success"])
}

func TestRunZones_DefaultRadiusFromConfig(t *testing.T) {
	c := testConfig(t)
	c.Analysis.RadiusKM = 10

	var buf bytes.Buffer
	a, err := runZones(context.Background(), c, zonesParams{
		input:  writeFile(t, "constraints.geojson", constraints),
		format: "geojson",
	}, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 10.0, a.Request.RadiusKM)
	assert.Equal(t, 3, a.Report.InRadius)
	assert.True(t, strings.HasPrefix(buf.String(), `{"type":"FeatureCollection"`))
}

func TestRunZones_EWKB(t *testing.T) {
	c := testConfig(t)

	var buf bytes.Buffer
	_, err := runZones(context.Background(), c, zonesParams{
		input:    writeFile(t, "overpass.json", overpassDoc),
		radiusKM: 5,
		format:   "ewkb",
	}, nil, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 3)
	assert.Equal(t, "residence", fields[0])
	assert.Equal(t, "1", fields[1])
	// Little-endian MultiPolygon with SRID 4326.
	assert.True(t, strings.HasPrefix(fields[2], "0106000020e6100000"), fields[2])
	assert.True(t, strings.HasPrefix(lines[1], "water\t1\t"))
}

func TestRunZones_SetbackFile(t *testing.T) {
	c := testConfig(t)
	sb := writeFile(t, "setbacks.yaml", `
setbacks:
  residence_m: 250
  infrastructure_m: 120
`)

	a, err := runZones(context.Background(), c, zonesParams{
		input:    writeFile(t, "constraints.geojson", constraints),
		radiusKM: 5,
		format:   "geojson",
		setbacks: sb,
	}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 250.0, a.Report.Setbacks["residence"])
	assert.Equal(t, 120.0, a.Report.Setbacks["infrastructure"])
	assert.Equal(t, 30.48, a.Report.Setbacks["water"])
}

func TestRunZones_Failures(t *testing.T) {
	c := testConfig(t)
	input := writeFile(t, "constraints.geojson", constraints)

	_, err := runZones(context.Background(), c, zonesParams{input: input, radiusKM: 5, format: "kml"}, nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")

	report := filepath.Join(t.TempDir(), "report.json")
	a, err := runZones(context.Background(), c, zonesParams{input: input, lat: 89, format: "geojson", report: report}, nil, &bytes.Buffer{})
	require.Error(t, err)
	require.NotNil(t, a)
	assert.False(t, a.Success)
	assert.FileExists(t, report)

	_, err = runZones(context.Background(), c, zonesParams{input: input, radiusKM: 5, format: "geojson", setbacks: "/nonexistent/setbacks.yaml"}, nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunZones_FetchesFromOverpass(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		query = r.PostForm.Get("data")
		w.Write([]byte(overpassDoc))
	}))
	defer srv.Close()

	c := testConfig(t)
	c.Overpass.URL = srv.URL

	a, err := runZones(context.Background(), c, zonesParams{radiusKM: 5, format: "geojson"}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Report.Records)
	assert.Equal(t, 2, a.Report.Zones)
	assert.Contains(t, query, `way["highway"]`)
}
