package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/windsite/internal/feature"
	"github.com/sells-group/windsite/internal/setback"
)

var (
	classifyInput  string
	classifyFormat string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Count input features per setback class",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("classify"); err != nil {
			return err
		}
		return runClassify(classifyInput, classifyFormat, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyInput, "input", "", "constraint features: GeoJSON, Overpass JSON or .shp (\"-\" for stdin)")
	classifyCmd.Flags().StringVar(&classifyFormat, "input-format", formatAuto, "auto, geojson, overpass or shapefile")
	_ = classifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(classifyCmd)
}

// classCounts is the classify command output.
type classCounts struct {
	Records  int            `json:"records"`
	Features int            `json:"features"`
	Classes  map[string]int `json:"classes"`
	Skips    []feature.Skip `json:"skips"`
}

func runClassify(path, format string, stdin io.Reader, stdout io.Writer) error {
	records, err := readRecords(path, format, stdin)
	if err != nil {
		return err
	}

	features, skips := feature.Normalize(records)
	out := classCounts{
		Records:  len(records),
		Features: len(features),
		Classes:  make(map[string]int, len(setback.Classes)),
		Skips:    append([]feature.Skip{}, skips...),
	}
	for _, c := range setback.Classes {
		out.Classes[c.String()] = 0
	}
	for _, f := range features {
		out.Classes[setback.Classify(f).String()]++
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "classify: write counts")
	}
	return nil
}
