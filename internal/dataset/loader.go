// Package dataset loads census-derived municipal datasets and keeps the
// normalized snapshot shared by the views.
package dataset

import (
	"bufio"
	"bytes"
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/fetcher"
	"github.com/sells-group/silver-economy/internal/model"
)

// Loader reads a dataset source into raw records.
type Loader struct {
	opener *fetcher.Opener
	schema *Schema
	sheet  string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSchema replaces the default column schema.
func WithSchema(s *Schema) LoaderOption {
	return func(l *Loader) {
		if s != nil {
			l.schema = s
		}
	}
}

// WithSheet selects the worksheet read from xlsx sources.
func WithSheet(name string) LoaderOption {
	return func(l *Loader) { l.sheet = name }
}

// NewLoader creates a Loader that resolves sources through opener.
func NewLoader(opener *fetcher.Opener, opts ...LoaderOption) *Loader {
	if opener == nil {
		opener = fetcher.NewOpener(nil, nil)
	}
	l := &Loader{opener: opener, schema: DefaultSchema()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads source and returns its records with numeric columns coerced.
// Unparsable numbers become missing values. Any failure to read the source,
// an empty source or a missing required column returns a *LoadError.
func (l *Loader) Load(ctx context.Context, source string) (*model.Dataset, error) {
	log := zap.L().With(zap.String("component", "dataset"), zap.String("source", source))

	rows, err := l.readRows(ctx, source)
	if err != nil {
		return nil, loadErr(source, err)
	}
	if len(rows) == 0 {
		return nil, loadErr(source, eris.New("empty source"))
	}

	header := make([]string, len(rows[0]))
	for i := range rows[0] {
		header[i] = cell(rows[0], i)
	}

	mapping, err := l.schema.Resolve(header)
	if err != nil {
		return nil, loadErr(source, err)
	}

	ds := &model.Dataset{
		Source:  source,
		Header:  header,
		Records: make([]model.MunicipalRecord, 0, len(rows)-1),
		HasGeo:  mapping.Has(FieldLatitude) && mapping.Has(FieldLongitude),
	}

	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := model.MunicipalRecord{
			Name:                 cell(row, mapping[FieldName]),
			RegionCodeRaw:        cell(row, mapping[FieldRegionCode]),
			AgingIndex:           parseIndicator(cell(row, mapping[FieldAgingIndex])),
			Income60Plus:         parseIndicator(cell(row, mapping[FieldIncome60Plus])),
			ChildlessCoupleRatio: parseIndicator(cell(row, mapping[FieldChildlessCoupleRatio])),
		}
		if ds.HasGeo {
			rec.Latitude = parseIndicator(cell(row, mapping[FieldLatitude]))
			rec.Longitude = parseIndicator(cell(row, mapping[FieldLongitude]))
		}
		ds.Records = append(ds.Records, rec)
	}

	log.Info("dataset loaded",
		zap.Int("records", len(ds.Records)),
		zap.Bool("has_geo", ds.HasGeo),
	)
	return ds, nil
}

func (l *Loader) readRows(ctx context.Context, source string) ([][]string, error) {
	rc, err := l.opener.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	if fetcher.DetectFormat(source) == fetcher.FormatXLSX {
		return fetcher.ReadXLSXFrom(rc, fetcher.XLSXOptions{SheetName: l.sheet})
	}

	br := bufio.NewReader(rc)
	return fetcher.ReadCSV(ctx, br, fetcher.CSVOptions{
		Delimiter:  sniffDelimiter(br),
		LazyQuotes: true,
	})
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, as in spreadsheet exports with a decimal comma locale.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.Count(peek, []byte{';'}) > bytes.Count(peek, []byte{','}) {
		return ';'
	}
	return ','
}

func isBlank(row []string) bool {
	for i := range row {
		if cell(row, i) != "" {
			return false
		}
	}
	return true
}
