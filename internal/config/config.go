package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for OptiCore
type Config struct {
	// Server configuration
	Listen        string `mapstructure:"listen"`
	ConsoleListen string `mapstructure:"console_listen"`
	DataDir       string `mapstructure:"data_dir"`
	LogLevel      string `mapstructure:"log_level"`

	// Public URL of the site listener, used to build cache file links
	PublicURL string `mapstructure:"public_url"`

	// TLS configuration
	EnableTLS bool   `mapstructure:"enable_tls"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`

	Cache    CacheConfig    `mapstructure:"cache"`
	Settings SettingsConfig `mapstructure:"settings"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Site     SiteConfig     `mapstructure:"site"`
}

// CacheConfig defines where minified files are written
type CacheConfig struct {
	Root        string `mapstructure:"root"`
	Precompress bool   `mapstructure:"precompress"`
}

// SettingsConfig selects the settings store backend
type SettingsConfig struct {
	Backend string `mapstructure:"backend"` // sqlite, badger
}

// FetchConfig controls stylesheet downloads
type FetchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SecurityConfig defines anti-forgery token settings
type SecurityConfig struct {
	NonceSecret string        `mapstructure:"nonce_secret"`
	NonceTTL    time.Duration `mapstructure:"nonce_ttl"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// SiteConfig describes the page the site listener renders
type SiteConfig struct {
	Title       string             `mapstructure:"title"`
	Body        string             `mapstructure:"body"`
	Stylesheets []StylesheetConfig `mapstructure:"stylesheets"`
}

// StylesheetConfig is one stylesheet enqueued on every page
type StylesheetConfig struct {
	Handle string   `mapstructure:"handle"`
	Src    string   `mapstructure:"src"`
	Deps   []string `mapstructure:"deps"`
	Ver    string   `mapstructure:"ver"`
	Media  string   `mapstructure:"media"`
}

// Load loads configuration from various sources
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("OPTICORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate and setup defaults
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")         // Site
	v.SetDefault("console_listen", ":8081") // Settings console
	// NO default for data_dir - must be explicitly configured
	v.SetDefault("log_level", "info")

	v.SetDefault("public_url", "http://localhost:8080")

	// TLS defaults
	v.SetDefault("enable_tls", false)

	// Cache defaults
	v.SetDefault("cache.root", "") // Empty by default, will be set based on data_dir
	v.SetDefault("cache.precompress", false)

	v.SetDefault("settings.backend", "sqlite")
	v.SetDefault("fetch.timeout", 5*time.Second)

	v.SetDefault("security.nonce_ttl", 12*time.Hour)

	// Metrics defaults
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("site.title", "OptiCore")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":         "listen",
		"console-listen": "console_listen",
		"data-dir":       "data_dir",
		"log-level":      "log_level",
		"public-url":     "public_url",
		"cache-root":     "cache.root",
		"enable-tls":     "enable_tls",
		"tls-cert":       "cert_file",
		"tls-key":        "key_file",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	// Validate that data_dir is configured (either via flag, config file, or env var)
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required: specify via --data-dir flag, config file, or OPTICORE_DATA_DIR environment variable")
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Setup cache root from data_dir when not set
	if cfg.Cache.Root == "" {
		cfg.Cache.Root = filepath.Join(cfg.DataDir, "content", "cache")
	}

	// Make cache root absolute if it's not already
	if !filepath.IsAbs(cfg.Cache.Root) {
		absRoot, err := filepath.Abs(cfg.Cache.Root)
		if err == nil {
			cfg.Cache.Root = absRoot
		}
	}

	if _, err := os.Stat(cfg.Cache.Root); os.IsNotExist(err) {
		logrus.Debugf("Creating cache root: %s", cfg.Cache.Root)
		if err := os.MkdirAll(cfg.Cache.Root, 0755); err != nil {
			return fmt.Errorf("failed to create cache root: %w", err)
		}
	}

	switch cfg.Settings.Backend {
	case "sqlite", "badger":
	case "":
		cfg.Settings.Backend = "sqlite"
	default:
		return fmt.Errorf("unsupported settings backend: %s", cfg.Settings.Backend)
	}

	u, err := url.Parse(cfg.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("public_url must be an absolute http(s) URL: %q", cfg.PublicURL)
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")

	if cfg.Fetch.Timeout <= 0 {
		cfg.Fetch.Timeout = 5 * time.Second
	}
	if cfg.Security.NonceTTL <= 0 {
		cfg.Security.NonceTTL = 12 * time.Hour
	}

	// Validate TLS configuration
	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not specified")
		}
	}

	for i, s := range cfg.Site.Stylesheets {
		if s.Handle == "" {
			return fmt.Errorf("site.stylesheets[%d]: handle is required", i)
		}
	}

	// Generate nonce secret if not provided
	if cfg.Security.NonceSecret == "" {
		secret, err := generateSecret(32)
		if err != nil {
			return fmt.Errorf("failed to generate nonce secret: %w", err)
		}
		cfg.Security.NonceSecret = secret
		logrus.Warn("security.nonce_secret not set; using a random secret, console tokens will not survive restarts")
	}

	return nil
}

func generateSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
