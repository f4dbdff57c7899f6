package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/windsite/internal/config"
	"github.com/sells-group/windsite/internal/exclusion"
	"github.com/sells-group/windsite/internal/layout"
)

type validateParams struct {
	layoutPath string
	zonesPath  string
	minSpacing float64
}

var validateFlags validateParams

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a turbine layout against exclusion zones and minimum spacing",
	Long:  "Prints the validation result as JSON. A failed validation still exits 0; only unreadable inputs are errors.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("validate"); err != nil {
			return err
		}
		_, err := runValidate(cmd.Context(), cfg, validateFlags, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.layoutPath, "layout", "", "turbine layout GeoJSON (Point features)")
	f.StringVar(&validateFlags.zonesPath, "zones", "", "exclusion zones GeoJSON from the zones command")
	f.Float64Var(&validateFlags.minSpacing, "min-spacing", 0, "minimum turbine spacing in meters (default from config)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(ctx context.Context, c *config.Config, p validateParams, stdout io.Writer) (*layout.Result, error) {
	var l *layout.Layout
	if p.layoutPath != "" {
		f, err := os.Open(p.layoutPath)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: open layout %s", p.layoutPath)
		}
		l, err = layout.DecodeGeoJSON(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	var zones []exclusion.Zone
	if p.zonesPath != "" {
		f, err := os.Open(p.zonesPath)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: open zones %s", p.zonesPath)
		}
		zones, err = exclusion.DecodeZones(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	opts := c.Layout.Options()
	if p.minSpacing != 0 {
		opts.MinSpacingM = p.minSpacing
	}

	res, err := layout.Validate(ctx, l, zones, opts)
	if err != nil {
		return nil, err
	}

	zap.L().Info("layout validated",
		zap.String("component", "cmd.validate"),
		zap.String("status", res.Status),
		zap.Bool("passed", res.ValidationPassed),
		zap.Int("violations", res.TotalViolations),
	)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return res, eris.Wrap(err, "validate: write result")
	}
	return res, nil
}
