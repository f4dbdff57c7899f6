package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/layout"
	"github.com/sells-group/windsite/internal/setback"
)

var errBothSources = eris.New("api: send either features or overpass, not both")

type handlers struct {
	opts Options
}

// zonesRequest carries the analysis request and exactly one feature source.
type zonesRequest struct {
	Request  exclusion.Request `json:"request"`
	Features json.RawMessage   `json:"features,omitempty"`
	Overpass json.RawMessage   `json:"overpass,omitempty"`
}

type zonesResponse struct {
	RunID   string                     `json:"run_id"`
	Success bool                       `json:"success"`
	Reason  string                     `json:"reason,omitempty"`
	Report  exclusion.Report           `json:"report"`
	Zones   *geojson.FeatureCollection `json:"zones"`
}

type validateRequest struct {
	Layout      json.RawMessage `json:"layout,omitempty"`
	Zones       json.RawMessage `json:"zones,omitempty"`
	MinSpacingM *float64        `json:"min_spacing_m,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) zones(w http.ResponseWriter, r *http.Request) {
	var req zonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	records, err := decodeFeatures(req.Features, req.Overpass)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ar := req.Request
	if ar.Setbacks == nil && ar.Turbine == (setback.TurbineSpec{}) {
		sb := h.opts.Setbacks
		ar.Setbacks = &sb
	}

	a, err := exclusion.Analyze(r.Context(), ar, records, h.opts.Analysis)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := http.StatusOK
	if !a.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, zonesResponse{
		RunID:   a.RunID,
		Success: a.Success,
		Reason:  a.Reason,
		Report:  a.Report,
		Zones:   exclusion.FeatureCollection(a.Zones),
	})
}

func (h *handlers) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var l *layout.Layout
	if present(req.Layout) {
		decoded, err := layout.DecodeGeoJSON(bytes.NewReader(req.Layout))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		l = decoded
	}

	var zones []exclusion.Zone
	if present(req.Zones) {
		decoded, err := exclusion.DecodeZones(bytes.NewReader(req.Zones))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zones = decoded
	}

	opts := h.opts.Layout
	if req.MinSpacingM != nil {
		opts.MinSpacingM = *req.MinSpacingM
	}

	res, err := layout.Validate(r.Context(), l, zones, opts)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) classify(w http.ResponseWriter, r *http.Request) {
	var req zonesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	records, err := decodeFeatures(req.Features, req.Overpass)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	features, skips := feature.Normalize(records)
	counts := make(map[string]int, len(setback.Classes))
	for _, f := range features {
		counts[setback.Classify(f).String()]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"features": len(features),
		"classes":  counts,
		"skips":    append([]feature.Skip{}, skips...),
	})
}

func decodeFeatures(fc, overpass json.RawMessage) ([]feature.RawRecord, error) {
	switch {
	case present(fc) && present(overpass):
		return nil, errBothSources
	case present(fc):
		return feature.ParseGeoJSON(fc)
	case present(overpass):
		return feature.DecodeOverpass(bytes.NewReader(overpass))
	default:
		return []feature.RawRecord{}, nil
	}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
