package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andreiashu/citydb"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the gazetteer CSV into the city database",
	Long: `Reads the gazetteer (optionally .gz, .zst, .lz4, .bz2 or .zip), drops
non-capital cities of 20,000 people or fewer, estimates each city's radius,
indexes regions and countries, and writes cities.json, countries.json and
regions.json into the output directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := zap.L().With(zap.String("command", "convert"))

		input := stringFlagOr(cmd, "input", cfg.Input)
		output := stringFlagOr(cmd, "output", cfg.OutputDir)
		indent := intFlagOr(cmd, "indent", cfg.Indent)
		dedupe := boolFlagOr(cmd, "dedupe-regions", cfg.Regions.Dedupe)

		log.Info("converting gazetteer",
			zap.String("input", input),
			zap.String("output", output),
			zap.Int("indent", indent),
			zap.Bool("dedupe_regions", dedupe),
		)

		d, stats, err := citydb.ConvertFile(input,
			citydb.WithLogger(log),
			citydb.WithRegionDedupe(dedupe),
		)
		if err != nil {
			return eris.Wrap(err, "convert")
		}
		if err := d.WriteDir(output, indent); err != nil {
			return eris.Wrap(err, "convert")
		}

		log.Info("database written",
			zap.Int("rows", stats.Rows),
			zap.Int("cities", stats.Kept),
			zap.Int("unparsable_population", stats.UnparsablePopulation),
			zap.Int("below_threshold", stats.BelowThreshold),
			zap.Int("region_collisions", stats.RegionCollisions),
			zap.Int("regions", len(d.Regions)),
			zap.Int("countries", len(d.Countries)),
		)

		fmt.Fprintln(cmd.OutOrStdout(), "Database preparation complete.")
		return nil
	},
}

func init() {
	convertCmd.Flags().String("input", "", "gazetteer CSV path (default: from config)")
	convertCmd.Flags().String("output", "", "output directory (default: from config)")
	convertCmd.Flags().Int("indent", 0, "JSON indent width, 0 for compact (default: from config)")
	convertCmd.Flags().Bool("dedupe-regions", false, "merge regions that collide after slash cleanup")
	rootCmd.AddCommand(convertCmd)
}
