package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plantmon-sim/internal/telemetry"
)

var (
	scalarCount int
	scalarSeed  int64
	scalarJSON  bool
)

var scalarCmd = &cobra.Command{
	Use:   "scalar",
	Short: "Print a series from the scalar generator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig.Scalar
		if cmd.Flags().Changed("seed") {
			cfg.Seed = scalarSeed
		}
		return writeScalarSeries(cmd.OutOrStdout(), cfg, scalarCount, scalarJSON)
	},
}

// writeScalarSeries draws n values and writes one per line, or a JSON array
// when asJSON is set.
func writeScalarSeries(w io.Writer, cfg telemetry.ScalarConfig, n int, asJSON bool) error {
	if n < 0 {
		return fmt.Errorf("count must not be negative, got %d", n)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	series := telemetry.Take[float64](telemetry.NewScalarGenerator(cfg), n)
	if asJSON {
		if series == nil {
			series = []float64{}
		}
		return json.NewEncoder(w).Encode(series)
	}
	for _, v := range series {
		if _, err := fmt.Fprintf(w, "%.4f\n", v); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	scalarCmd.Flags().IntVar(&scalarCount, "count", 500, "Number of values to draw")
	scalarCmd.Flags().Int64Var(&scalarSeed, "seed", 0, "Override the configured seed")
	scalarCmd.Flags().BoolVar(&scalarJSON, "json", false, "Print the series as a JSON array")
}
