package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/silver-economy/internal/dashboard"
	"github.com/sells-group/silver-economy/internal/region"
)

var viewCommands = []struct {
	view  string
	use   string
	short string
}{
	{"overview", "overview", "Headline indicators and every filtered municipality"},
	{"ranking", "rank", "Top municipalities by aging index"},
	{"hotspots", "hotspots", "Municipalities above the aging and childless-couple quantiles"},
	{"emerging", "emerging", "Younger municipalities ranked by 60+ income"},
	{"composite", "composite", "Top municipalities by composite silver-economy score"},
	{"map", "map", "Filtered municipalities that carry coordinates"},
}

func newViewCmd(view, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := filterSpec(cmd)
			if err != nil {
				return err
			}
			env, err := initViews()
			if err != nil {
				return err
			}
			v, err := env.Service.ByName(cmd.Context(), view, spec, flagLimit)
			return renderView(cmd.OutOrStdout(), v, err)
		},
	}
	addFilterFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// renderView writes v, or the empty-selection notice when err reports one.
func renderView(stdout io.Writer, v *dashboard.View, err error) error {
	if err != nil {
		if notice, ok := emptyNotice(err); ok {
			_, _ = fmt.Fprintln(stdout, notice)
			return nil
		}
		return err
	}

	out, err := openOutput(stdout, flagOutput)
	if err != nil {
		return err
	}
	if err := writeView(out, v, flagFormat); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

var flagRegionCounts bool

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the UF labels accepted by --region",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if !flagRegionCounts {
			for _, label := range region.Labels() {
				_, _ = fmt.Fprintln(out, label)
			}
			return nil
		}

		env, err := initViews()
		if err != nil {
			return err
		}
		snap, err := env.Cache.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		counts := make(map[string]int)
		for _, rec := range snap.Records {
			counts[rec.RegionLabel]++
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "UF\tMUNICIPALITIES")
		for _, label := range region.Labels() {
			_, _ = fmt.Fprintf(tw, "%s\t%d\n", label, counts[label])
		}
		_, _ = fmt.Fprintf(tw, "Dropped (non-numeric code):\t%d\n", snap.Stats.DroppedNonNumeric)
		_, _ = fmt.Fprintf(tw, "Dropped (unknown code):\t%d\n", snap.Stats.DroppedUnmapped)
		return tw.Flush()
	},
}

func init() {
	for _, vc := range viewCommands {
		rootCmd.AddCommand(newViewCmd(vc.view, vc.use, vc.short))
	}
	regionsCmd.Flags().BoolVar(&flagRegionCounts, "counts", false, "load the dataset and count municipalities per UF")
	rootCmd.AddCommand(regionsCmd)
}
