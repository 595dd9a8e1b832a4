package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andreiashu/citydb"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a generated city database",
	Long: `Loads cities.json, countries.json and regions.json from a database
directory and checks that every index resolves, radii are sorted and sane,
and coordinates are valid. Reports regions that collide after cleanup and
cities sharing a geohash cell. With --spot-check, well-known cities must
resolve to themselves by coordinate (full world databases only).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := zap.L().With(zap.String("command", "verify"))

		dir := stringFlagOr(cmd, "dir", cfg.OutputDir)
		spotCheck, _ := cmd.Flags().GetBool("spot-check")

		d, err := citydb.LoadDir(dir)
		if err != nil {
			return eris.Wrap(err, "verify")
		}
		if err := d.Validate(); err != nil {
			return eris.Wrap(err, "verify")
		}

		dups := d.DuplicateRegions()
		for _, region := range slices.Sorted(maps.Keys(dups)) {
			log.Warn("duplicate region entry",
				zap.String("region", region),
				zap.Ints("positions", dups[region]),
			)
		}

		groups := d.Colocated(cfg.Verify.GeohashPrecision)
		for _, g := range groups {
			names := make([]string, len(g))
			for i, idx := range g {
				names[i] = d.Cities[idx].Name
			}
			log.Debug("colocated cities", zap.Strings("cities", names))
		}
		log.Info("database checked",
			zap.String("dir", dir),
			zap.Int("cities", len(d.Cities)),
			zap.Int("regions", len(d.Regions)),
			zap.Int("countries", len(d.Countries)),
			zap.Int("duplicate_regions", len(dups)),
			zap.Int("colocated_groups", len(groups)),
		)

		if spotCheck {
			if err := d.SpotCheck(); err != nil {
				return eris.Wrap(err, "verify")
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database OK: %d cities, %d regions, %d countries\n",
			len(d.Cities), len(d.Regions), len(d.Countries))
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("dir", "", "database directory (default: output_dir from config)")
	verifyCmd.Flags().Bool("spot-check", false, "resolve well-known cities by coordinate")
	rootCmd.AddCommand(verifyCmd)
}
