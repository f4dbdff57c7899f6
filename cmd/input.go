package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/windsite/internal/feature"
)

// Input formats accepted by --input-format.
const (
	formatAuto      = "auto"
	formatGeoJSON   = "geojson"
	formatOverpass  = "overpass"
	formatShapefile = "shapefile"
)

// readRecords loads raw feature records from path. "-" reads stdin. With
// format auto, .shp selects the shapefile reader and JSON documents carrying
// an "elements" array are read as Overpass output.
func readRecords(path, format string, stdin io.Reader) ([]feature.RawRecord, error) {
	if path == "" {
		return nil, eris.New("input: --input is required")
	}

	format = strings.ToLower(format)
	if format == "" {
		format = formatAuto
	}
	if format == formatAuto && strings.EqualFold(filepath.Ext(path), ".shp") {
		format = formatShapefile
	}
	if format == formatShapefile {
		return feature.ReadShapefile(path)
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "input: read %s", path)
	}

	if format == formatAuto {
		format = sniffFormat(data)
	}
	switch format {
	case formatGeoJSON:
		return feature.ParseGeoJSON(data)
	case formatOverpass:
		return feature.DecodeOverpass(bytes.NewReader(data))
	default:
		return nil, eris.Errorf("input: unknown format %q", format)
	}
}

func sniffFormat(data []byte) string {
	if bytes.Contains(data, []byte(`"elements"`)) && !bytes.Contains(data, []byte(`"FeatureCollection"`)) {
		return formatOverpass
	}
	return formatGeoJSON
}

// createOutput opens path for writing, or returns stdout for "" and "-".
func createOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "output: create %s", path)
	}
	return f, f.Close, nil
}
