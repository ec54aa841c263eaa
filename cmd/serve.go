package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/geo"
	"github.com/sells-group/silver-economy/internal/server"
)

var (
	servePort    int
	serveNoStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard views over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		defaults := filter.Spec{Region: cfg.Filter.Region, MinIncome: cfg.Filter.MinIncome}.Normalized()
		if err := defaults.Validate(); err != nil {
			return err
		}

		env, err := initViews()
		if err != nil {
			return err
		}

		// Warm the snapshot and read boundaries concurrently.
		var boundaries *geo.Boundaries
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			_, err := env.Cache.Snapshot(gctx)
			return err
		})
		if cfg.Dataset.Boundaries != "" {
			g.Go(func() error {
				b, err := geo.LoadBoundaries(gctx, env.Opener, cfg.Dataset.Boundaries)
				if err != nil {
					return err
				}
				boundaries = b
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		opts := []server.Option{server.WithDefaults(defaults)}
		if boundaries != nil {
			opts = append(opts, server.WithBoundaries(boundaries))
		}
		if !serveNoStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts = append(opts, server.WithStore(st))
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(env.Cache, env.Service, cfg.Server, opts...).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("source", cfg.Dataset.Source),
			zap.Bool("choropleth", boundaries != nil),
			zap.Bool("exports", !serveNoStore),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "disable the export endpoints")
	rootCmd.AddCommand(serveCmd)
}
