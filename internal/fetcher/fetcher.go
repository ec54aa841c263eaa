// Package fetcher opens dataset sources (local files, HTTP and FTP URLs) and
// parses their CSV and XLSX contents into rows.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Format is the tabular encoding of a source.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat infers the format from the source's file extension. Anything
// that is not .xlsx is treated as CSV.
func DetectFormat(source string) Format {
	p := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	}
	if strings.EqualFold(path.Ext(p), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Opener resolves a source string to a reader. Sources may be local paths,
// file://, http(s):// or ftp:// URLs.
type Opener struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewOpener creates an Opener with the given remote fetchers.
func NewOpener(httpFetcher, ftpFetcher Fetcher) *Opener {
	return &Opener{HTTP: httpFetcher, FTP: ftpFetcher}
}

// Open returns a reader over the source. The caller must close it.
func (o *Opener) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, eris.New("fetcher: empty source")
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a one-letter scheme is a Windows drive letter).
		return openFile(source)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		if o.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher configured for %s", source)
		}
		return o.HTTP.Download(ctx, source)
	case "ftp":
		if o.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher configured for %s", source)
		}
		return o.FTP.Download(ctx, source)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

func openFile(p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", p)
	}
	return f, nil
}
