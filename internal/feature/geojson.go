package feature

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DecodeGeoJSON reads a GeoJSON FeatureCollection in WGS84. Feature
// properties become tags; non-string values are rendered as text.
func DecodeGeoJSON(r io.Reader) ([]RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "feature: read geojson")
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON is DecodeGeoJSON over an in-memory document.
func ParseGeoJSON(data []byte) ([]RawRecord, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "feature: parse geojson")
	}

	records := make([]RawRecord, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			records = append(records, RawRecord{Source: strconv.Itoa(i)})
			continue
		}
		src := f.ID
		if src == "" {
			src = strconv.Itoa(i)
		}
		records = append(records, RawRecord{
			Source:   src,
			Geometry: f.Geometry,
			Tags:     TagsFromProperties(f.Properties),
		})
	}
	return records, nil
}

// TagsFromProperties flattens GeoJSON properties into string tags. Null
// values are dropped.
func TagsFromProperties(props map[string]any) Tags {
	tags := make(Tags, len(props))
	for k, v := range props {
		switch v := v.(type) {
		case nil:
			continue
		case string:
			tags[k] = v
		case bool:
			tags[k] = strconv.FormatBool(v)
		case float64:
			tags[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			tags[k] = v.String()
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			tags[k] = string(b)
		}
	}
	return tags
}
