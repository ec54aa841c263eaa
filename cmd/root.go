package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/config"
)

var (
	cfg        *config.Config
	flagSource string
)

var rootCmd = &cobra.Command{
	Use:   "silver-cli",
	Short: "Silver economy indicators for Brazilian municipalities",
	Long:  "Loads the census-derived municipal dataset, filters it by UF and 60+ income, and renders aging rankings, hotspots, emerging markets and a composite silver-economy score.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		if flagSource != "" {
			cfg.Dataset.Source = flagSource
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "dataset path or URL (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
