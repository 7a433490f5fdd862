// Package config loads server and settings-client configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file named by
// -config, OPENT1D_* environment variables, command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "OPENT1D_"

const (
	dbDir      = "OpenT1D"
	dbFilename = "opent1d.sqlite"
)

// Config is the server configuration.
type Config struct {
	Addr              string        `yaml:"addr" env:"ADDR"`
	DBPath            string        `yaml:"db_path" env:"DB_PATH"`
	DatabaseURL       string        `yaml:"database_url" env:"DATABASE_URL"`
	ScrapeInterval    time.Duration `yaml:"scrape_interval" env:"SCRAPE_INTERVAL"`
	VerifyCredentials bool          `yaml:"verify_credentials" env:"VERIFY_CREDENTIALS"`
	EncryptionKey     string        `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	UseKeyring        bool          `yaml:"use_keyring" env:"USE_KEYRING"`
	RateLimitRPS      float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	MetricsEnabled    bool          `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
	// TrustedProxies is a comma-separated CIDR list whose X-Forwarded-For
	// header is used to key the rate limiter.
	TrustedProxies string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`
	// LibreLinkUpURL replaces the regional LibreLinkUp hosts, e.g. for a proxy.
	LibreLinkUpURL string `yaml:"librelinkup_url" env:"LIBRELINKUP_URL"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		DBPath:            DefaultDBPath(),
		ScrapeInterval:    6 * time.Hour,
		VerifyCredentials: true,
		RateLimitRPS:      10,
		RateLimitBurst:    20,
		MetricsEnabled:    true,
	}
}

// DefaultDBPath returns <UserConfigDir>/OpenT1D/opent1d.sqlite, or a file in
// the working directory when no config dir is known.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return dbFilename
	}
	return filepath.Join(dir, dbDir, dbFilename)
}

// Load builds a Config from args (without the program name).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("opent1d", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", "", "HTTP listen address")
	dbPath := fs.String("db-path", "", "SQLite database path")
	databaseURL := fs.String("database-url", "", "PostgreSQL connection string")
	interval := fs.Duration("scrape-interval", 0, "LibreLinkUp scrape interval")
	verify := fs.Bool("verify-credentials", true, "sign in to LibreLinkUp when settings are saved")
	useKeyring := fs.Bool("use-keyring", false, "keep the encryption key in the OS keyring")
	metrics := fs.Bool("metrics", true, "serve /metrics")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	// OPENT1D_DBPATH is the older name of OPENT1D_DB_PATH.
	if v := os.Getenv(EnvPrefix + "DBPATH"); v != "" && os.Getenv(EnvPrefix+"DB_PATH") == "" {
		cfg.DBPath = v
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db-path":
			cfg.DBPath = *dbPath
		case "database-url":
			cfg.DatabaseURL = *databaseURL
		case "scrape-interval":
			cfg.ScrapeInterval = *interval
		case "verify-credentials":
			cfg.VerifyCredentials = *verify
		case "use-keyring":
			cfg.UseKeyring = *useKeyring
		case "metrics":
			cfg.MetricsEnabled = *metrics
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.ScrapeInterval < time.Minute {
		return errors.New("scrape_interval must be at least 1 minute")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}

// ClientConfig configures the terminal settings client.
type ClientConfig struct {
	URL        string `env:"URL"`
	AdoptSaved bool   `env:"ADOPT_SAVED"`
}

// LoadClient builds a ClientConfig from the environment and args.
func LoadClient(args []string, defaultURL string) (*ClientConfig, error) {
	cfg := ClientConfig{URL: defaultURL}
	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	fs := flag.NewFlagSet("opent1d-settings", flag.ContinueOnError)
	fs.StringVar(&cfg.URL, "url", cfg.URL, "GraphQL endpoint")
	fs.BoolVar(&cfg.AdoptSaved, "adopt-saved", cfg.AdoptSaved, "replace the form values with the saved response")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	return &cfg, nil
}
