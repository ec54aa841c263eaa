package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Filter  FilterConfig  `yaml:"filter" mapstructure:"filter"`
	Ranking RankingConfig `yaml:"ranking" mapstructure:"ranking"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DatasetConfig points at the census dataset and optional companions.
type DatasetConfig struct {
	Source     string `yaml:"source" mapstructure:"source"`           // path, http(s):// or ftp:// URL
	SchemaFile string `yaml:"schema_file" mapstructure:"schema_file"` // optional YAML column aliases
	Boundaries string `yaml:"boundaries" mapstructure:"boundaries"`   // optional municipality shapefile
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`             // xlsx sheet name
}

// FilterConfig holds the filter state applied when a request sets none.
type FilterConfig struct {
	Region    string  `yaml:"region" mapstructure:"region"`
	MinIncome float64 `yaml:"min_income" mapstructure:"min_income"`
}

// RankingConfig configures the derived views.
type RankingConfig struct {
	TopN            int     `yaml:"top_n" mapstructure:"top_n"`
	HotspotQuantile float64 `yaml:"hotspot_quantile" mapstructure:"hotspot_quantile"`
	EmergingCutoff  float64 `yaml:"emerging_cutoff" mapstructure:"emerging_cutoff"`
	HistogramBins   int     `yaml:"histogram_bins" mapstructure:"histogram_bins"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	FTPUser     string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string  `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// StoreConfig configures the export database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SILVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.source", "dados_final_com_uf.csv")
	v.SetDefault("dataset.schema_file", "")
	v.SetDefault("dataset.boundaries", "")
	v.SetDefault("dataset.sheet", "")
	v.SetDefault("filter.region", "ALL")
	v.SetDefault("filter.min_income", 0)
	v.SetDefault("ranking.top_n", 20)
	v.SetDefault("ranking.hotspot_quantile", 0.75)
	v.SetDefault("ranking.emerging_cutoff", 30)
	v.SetDefault("ranking.histogram_bins", 30)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_limit", 5)
	v.SetDefault("fetch.user_agent", "silver-cli/1.0")
	v.SetDefault("fetch.ftp_user", "")
	v.SetDefault("fetch.ftp_password", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "silver.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Sections: "dataset",
// "views", "store", "serve".
func (c *Config) Validate(sections ...string) error {
	var errs []string

	for _, section := range sections {
		switch section {
		case "dataset":
			if strings.TrimSpace(c.Dataset.Source) == "" {
				errs = append(errs, "dataset.source is required")
			}
		case "views":
			if c.Ranking.TopN < 0 {
				errs = append(errs, "ranking.top_n must be >= 0")
			}
			if c.Ranking.HotspotQuantile < 0 || c.Ranking.HotspotQuantile > 1 {
				errs = append(errs, fmt.Sprintf("ranking.hotspot_quantile must be between 0 and 1, got %g", c.Ranking.HotspotQuantile))
			}
			if c.Ranking.HistogramBins < 0 {
				errs = append(errs, "ranking.histogram_bins must be >= 0")
			}
			if c.Filter.MinIncome < 0 {
				errs = append(errs, "filter.min_income must be >= 0")
			}
		case "store":
			switch c.Store.Driver {
			case "sqlite", "postgres":
			default:
				errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
			}
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		case "serve":
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", c.Server.Port))
			}
			if c.Server.RateLimit < 0 {
				errs = append(errs, "server.rate_limit must be >= 0")
			}
		default:
			return eris.Errorf("config: unknown section %q", section)
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
