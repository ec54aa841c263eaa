package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/geo"
)

var (
	flagGeoView       string
	flagGeoBoundaries string
)

var geojsonCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Write a view as GeoJSON",
	Long: "Without a boundary file, writes one point per municipality that carries coordinates. " +
		"With --boundaries (or dataset.boundaries), joins the view's rows to municipality polygons.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		spec, err := filterSpec(cmd)
		if err != nil {
			return err
		}
		env, err := initViews()
		if err != nil {
			return err
		}

		boundaries := flagGeoBoundaries
		if boundaries == "" {
			boundaries = cfg.Dataset.Boundaries
		}

		var fc any
		if boundaries == "" {
			v, err := env.Service.Map(ctx, spec)
			if err != nil {
				return renderView(cmd.OutOrStdout(), nil, err)
			}
			fc = geo.Points(v.Rows)
		} else {
			b, err := geo.LoadBoundaries(ctx, env.Opener, boundaries)
			if err != nil {
				return err
			}
			n := flagLimit
			if n == 0 {
				n = -1
			}
			v, err := env.Service.ByName(ctx, flagGeoView, spec, n)
			if err != nil {
				return renderView(cmd.OutOrStdout(), nil, err)
			}
			choropleth, unmatched := geo.Choropleth(v.Rows, b)
			if len(unmatched) > 0 {
				zap.L().Warn("rows without a boundary polygon",
					zap.Int("unmatched", len(unmatched)),
					zap.Strings("sample", unmatched[:min(5, len(unmatched))]),
				)
			}
			fc = choropleth
		}

		out, err := openOutput(cmd.OutOrStdout(), flagOutput)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(out).Encode(fc); err != nil {
			_ = out.Close()
			return eris.Wrap(err, "encode geojson")
		}
		return out.Close()
	},
}

func init() {
	addFilterFlags(geojsonCmd)
	geojsonCmd.Flags().StringVar(&flagGeoView, "view", "composite", "view joined to boundary polygons")
	geojsonCmd.Flags().StringVar(&flagGeoBoundaries, "boundaries", "", "municipality shapefile or zip (default from config)")
	geojsonCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(geojsonCmd)
}
