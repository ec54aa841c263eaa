package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/silver-economy/internal/composite"
	"github.com/sells-group/silver-economy/internal/dashboard"
	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/model"
	"github.com/sells-group/silver-economy/internal/ranking"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

// emptyNotice returns the "no results" message for errors that mean the
// filtered selection is empty, and false for real failures.
func emptyNotice(err error) (string, bool) {
	switch {
	case eris.Is(err, filter.ErrEmptyResult):
		return "No municipality matches the selected filters.", true
	case eris.Is(err, composite.ErrNoScorableRecords):
		return "No municipality in the selection has all three indicators.", true
	}
	return "", false
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openOutput returns stdout when path is empty or "-".
func openOutput(stdout io.Writer, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, nil
}

// writeView renders v in the given format.
func writeView(w io.Writer, v *dashboard.View, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode view")
	case formatCSV:
		return writeRowsCSV(w, v.Rows)
	case formatTable, "":
		return writeViewTable(w, v)
	default:
		return eris.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

func writeViewTable(w io.Writer, v *dashboard.View) error {
	_, _ = fmt.Fprintf(w, "%s\n", v.Title)
	_, _ = fmt.Fprintf(w, "Filter: region=%s min_income=%s  matched=%d\n", v.Filter.Region, strconv.FormatFloat(v.Filter.MinIncome, 'f', -1, 64), v.Matched)
	if v.Summary != nil {
		writeSummary(w, *v.Summary)
	}
	if v.Featured != nil {
		_, _ = fmt.Fprintf(w, "Featured: %s (%s)\n", v.Featured.DisplayName, v.Featured.Region)
	}
	if len(v.Thresholds) > 0 {
		for _, col := range model.IndicatorColumns {
			if t, ok := v.Thresholds[col]; ok {
				_, _ = fmt.Fprintf(w, "Threshold %s: %s\n", col, formatFloat(&t))
			}
		}
	}
	if v.Excluded > 0 {
		_, _ = fmt.Fprintf(w, "Excluded (missing indicators): %d\n", v.Excluded)
	}
	_, _ = fmt.Fprintln(w)
	return writeRowsTable(w, v.Rows)
}

func writeSummary(w io.Writer, s ranking.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Municipalities:\t%d\n", s.Municipalities)
	_, _ = fmt.Fprintf(tw, "Mean aging index:\t%.2f\t(%d samples)\n", s.MeanAgingIndex, s.AgingSamples)
	_, _ = fmt.Fprintf(tw, "Mean 60+ income:\t%.2f\t(%d samples)\n", s.MeanIncome60, s.IncomeSamples)
	_ = tw.Flush()
}

func writeRowsTable(w io.Writer, rows []model.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tMUNICIPALITY\tUF\tAGING\tINCOME_60+\tCHILDLESS\tSCORE\tSEGMENT")
	_, _ = fmt.Fprintln(tw, "-\t------------\t--\t-----\t----------\t---------\t-----\t-------")
	for i, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			r.DisplayName,
			r.Region,
			formatFloat(r.AgingIndex),
			formatFloat(r.Income60Plus),
			formatFloat(r.ChildlessCoupleRatio),
			formatFloat(r.CompositeScore),
			r.Segment,
		)
	}
	return eris.Wrap(tw.Flush(), "flush table")
}

var csvHeader = []string{
	dashboard.FieldDisplayName,
	dashboard.FieldRegion,
	dashboard.FieldAgingIndex,
	dashboard.FieldIncome60Plus,
	dashboard.FieldChildlessCoupleRatio,
	"latitude",
	"longitude",
	dashboard.FieldCompositeScore,
	dashboard.FieldSegment,
}

func writeRowsCSV(w io.Writer, rows []model.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		rec := []string{
			r.DisplayName,
			r.Region,
			formatRaw(r.AgingIndex),
			formatRaw(r.Income60Plus),
			formatRaw(r.ChildlessCoupleRatio),
			formatRaw(r.Latitude),
			formatRaw(r.Longitude),
			formatRaw(r.CompositeScore),
			r.Segment,
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush csv")
}

// formatFloat renders a value with two decimals, or "-" when missing.
func formatFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// formatRaw renders a value at full precision, or "" when missing.
func formatRaw(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
