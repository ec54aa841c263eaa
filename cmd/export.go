package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <view>",
	Short: "Save a view's table to the export store",
	Long:  "Computes the named view (overview, ranking, hotspots, emerging, composite, map) and stores its rows with the filter and snapshot they came from.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		view := args[0]

		spec, err := filterSpec(cmd)
		if err != nil {
			return err
		}
		env, err := initViews()
		if err != nil {
			return err
		}
		v, err := env.Service.ByName(ctx, view, spec, flagLimit)
		if err != nil {
			if notice, ok := emptyNotice(err); ok {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), notice)
				return nil
			}
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		exp, err := st.SaveTable(ctx, store.ExportMeta{
			SnapshotID: v.SnapshotID,
			Source:     env.Cache.Source(),
			View:       view,
			Filter:     v.Filter,
		}, v.Table)
		if err != nil {
			return err
		}

		zap.L().Info("export saved",
			zap.String("id", exp.ID),
			zap.String("view", view),
			zap.Int("rows", exp.RowCount),
		)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), exp.ID)
		return nil
	},
}

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Inspect saved exports",
}

var flagExportsLimit int

var exportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		exports, err := st.ListExports(ctx, flagExportsLimit)
		if err != nil {
			return err
		}
		if len(exports) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No exports found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tVIEW\tREGION\tMIN_INCOME\tROWS\tCREATED")
		_, _ = fmt.Fprintln(tw, "--\t----\t------\t----------\t----\t-------")
		for _, e := range exports {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%d\t%s\n",
				e.ID, e.View, e.Filter.Region, e.Filter.MinIncome, e.RowCount,
				e.CreatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

var exportsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the rows of a saved export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.ExportRows(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := openOutput(cmd.OutOrStdout(), flagOutput)
		if err != nil {
			return err
		}
		if flagFormat == formatCSV {
			err = writeRowsCSV(out, rows)
		} else {
			err = writeRowsTable(out, rows)
		}
		if err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	},
}

func init() {
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)

	exportsListCmd.Flags().IntVar(&flagExportsLimit, "limit", store.DefaultListLimit, "maximum exports to list")
	exportsShowCmd.Flags().StringVar(&flagFormat, "format", formatTable, "output format: table or csv")
	exportsShowCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write to file instead of stdout")
	exportsCmd.AddCommand(exportsListCmd, exportsShowCmd)
	rootCmd.AddCommand(exportsCmd)
}
