package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sells-group/silver-economy/internal/dashboard"
	"github.com/sells-group/silver-economy/internal/dataset"
	"github.com/sells-group/silver-economy/internal/fetcher"
	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/store"
)

// viewEnv holds the dataset cache and dashboard service shared by the view
// commands and the server.
type viewEnv struct {
	Opener  *fetcher.Opener
	Cache   *dataset.Cache
	Service *dashboard.Service
}

// newOpener builds a source opener with remote fetchers configured from cfg.Fetch.
func newOpener() *fetcher.Opener {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	return fetcher.NewOpener(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
			RateLimit:  rate.Limit(cfg.Fetch.RateLimit),
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout:  timeout,
			User:     cfg.Fetch.FTPUser,
			Password: cfg.Fetch.FTPPassword,
		}),
	)
}

// initViews validates the dataset settings and wires the loader, cache and
// dashboard service. Nothing is read until the first view asks for it.
func initViews() (*viewEnv, error) {
	if err := cfg.Validate("dataset", "views"); err != nil {
		return nil, err
	}

	opts := []dataset.LoaderOption{dataset.WithSheet(cfg.Dataset.Sheet)}
	if cfg.Dataset.SchemaFile != "" {
		schema, err := dataset.LoadSchema(cfg.Dataset.SchemaFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dataset.WithSchema(schema))
	}

	opener := newOpener()
	cache := dataset.NewCache(dataset.NewLoader(opener, opts...), cfg.Dataset.Source)
	return &viewEnv{
		Opener:  opener,
		Cache:   cache,
		Service: dashboard.New(cache, dashboard.OptionsFromConfig(cfg.Ranking)),
	}, nil
}

// initStore opens and migrates the export store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

var (
	flagRegion    string
	flagMinIncome float64
	flagLimit     int
	flagFormat    string
	flagOutput    string
)

// addFilterFlags registers the filter flags shared by every view command.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagRegion, "region", "", `UF label such as "SP", or "ALL" (default from config)`)
	cmd.Flags().Float64Var(&flagMinIncome, "min-income", 0, "minimum 60+ income (default from config)")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "rows in ranked views; 0 uses ranking.top_n, negative keeps all")
}

// addOutputFlags registers --format and --output.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFormat, "format", formatTable, "output format: table, csv or json")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write to file instead of stdout")
}

// filterSpec merges explicitly set filter flags over the configured defaults.
func filterSpec(cmd *cobra.Command) (filter.Spec, error) {
	spec := filter.Spec{Region: cfg.Filter.Region, MinIncome: cfg.Filter.MinIncome}
	if cmd.Flags().Changed("region") {
		spec.Region = flagRegion
	}
	if cmd.Flags().Changed("min-income") {
		spec.MinIncome = flagMinIncome
	}
	spec = spec.Normalized()
	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}
