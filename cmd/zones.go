package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/config"
	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/feature"
)

// zonesParams holds the zones command flags.
type zonesParams struct {
	input       string
	inputFormat string
	lat         float64
	lon         float64
	radiusKM    float64
	out         string
	format      string
	report      string
	setbacks    string
}

var zonesFlags zonesParams

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Build per-class exclusion zones around a site",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("zones"); err != nil {
			return err
		}
		_, err := runZones(cmd.Context(), cfg, zonesFlags, cmd.InOrStdin(), cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := zonesCmd.Flags()
	f.StringVar(&zonesFlags.input, "input", "", "constraint features: GeoJSON, Overpass JSON or .shp (\"-\" for stdin; default queries overpass.url)")
	f.StringVar(&zonesFlags.inputFormat, "input-format", formatAuto, "auto, geojson, overpass or shapefile")
	f.Float64Var(&zonesFlags.lat, "lat", 0, "site center latitude")
	f.Float64Var(&zonesFlags.lon, "lon", 0, "site center longitude")
	f.Float64Var(&zonesFlags.radiusKM, "radius-km", 0, "analysis radius in km (default from config)")
	f.StringVar(&zonesFlags.out, "out", "", "zone output path (default stdout)")
	f.StringVar(&zonesFlags.format, "format", "geojson", "geojson or ewkb")
	f.StringVar(&zonesFlags.report, "report", "", "write the run report as JSON to this path")
	f.StringVar(&zonesFlags.setbacks, "setbacks", "", "YAML setback file (overrides setback.file)")
	_ = zonesCmd.MarkFlagRequired("lat")
	_ = zonesCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(zonesCmd)
}

func runZones(ctx context.Context, c *config.Config, p zonesParams, stdin io.Reader, stdout io.Writer) (*exclusion.Analysis, error) {
	log := zap.L().With(zap.String("component", "cmd.zones"))

	if p.format != "geojson" && p.format != "ewkb" {
		return nil, eris.Errorf("zones: unknown output format %q", p.format)
	}

	runCfg := *c
	if p.setbacks != "" {
		runCfg.Setback.File = p.setbacks
	}
	sb, err := runCfg.ResolveSetbacks()
	if err != nil {
		return nil, eris.Wrap(err, "zones: resolve setbacks")
	}

	radius := p.radiusKM
	if radius == 0 {
		radius = c.Analysis.RadiusKM
	}

	var records []feature.RawRecord
	if p.input == "" {
		log.Info("no --input given, querying overpass", zap.String("url", c.Overpass.URL))
		records, err = c.Overpass.Client().Fetch(ctx, p.lon, p.lat, radius)
	} else {
		records, err = readRecords(p.input, p.inputFormat, stdin)
	}
	if err != nil {
		return nil, err
	}
	req := exclusion.Request{
		CenterLon: p.lon,
		CenterLat: p.lat,
		RadiusKM:  radius,
		Setbacks:  &sb,
		Turbine:   runCfg.TurbineSpec(),
	}

	a, err := exclusion.Analyze(ctx, req, records, c.Analysis.Options())
	if err != nil {
		return nil, err
	}

	if p.report != "" {
		if err := writeReport(p.report, a); err != nil {
			return a, err
		}
	}
	if !a.Success {
		return a, eris.Errorf("zones: %s", a.Reason)
	}

	w, closeOut, err := createOutput(p.out, stdout)
	if err != nil {
		return a, err
	}
	if p.format == "ewkb" {
		err = writeEWKB(w, a.Zones)
	} else {
		err = exclusion.EncodeZones(w, a.Zones)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return a, eris.Wrap(err, "zones: write output")
	}

	log.Info("zones written",
		zap.String("run_id", a.RunID),
		zap.Int("zones", a.Report.Zones),
		zap.Int("skipped", len(a.Report.Skips)),
		zap.Duration("elapsed", a.Report.Elapsed),
	)
	return a, nil
}

// writeEWKB writes one "class<TAB>count<TAB>hex" line per zone.
func writeEWKB(w io.Writer, zones []exclusion.Zone) error {
	for _, z := range zones {
		hex, err := z.EWKBHex()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\n", z.Class, z.SourceCount, hex); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(path string, a *exclusion.Analysis) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return eris.Wrap(err, "zones: marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "zones: write report %s", path)
	}
	return nil
}
