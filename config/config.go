package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/daribar/best-options-service/internal/quotes"
	"github.com/daribar/best-options-service/internal/selection"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Clients   ClientsConfig    `mapstructure:"clients"`
	Selection selection.Config `mapstructure:"selection"`
	Quotes    quotes.Config    `mapstructure:"quotes"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ClientsConfig holds the collaborator endpoints and client tuning
type ClientsConfig struct {
	SearchURL     string        `mapstructure:"search_url"`
	PriceURL      string        `mapstructure:"price_url"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	PriceTimeout  time.Duration `mapstructure:"price_timeout"`
	// Outbound request rate toward the pricing service; 0 disables limiting
	PricingRPS   float64 `mapstructure:"pricing_rps"`
	PricingBurst int     `mapstructure:"pricing_burst"`
}

// StorageConfig holds stage snapshot storage configuration
type StorageConfig struct {
	Type             string `mapstructure:"type"`
	BasePath         string `mapstructure:"base_path"`
	SnapshotsEnabled bool   `mapstructure:"snapshots_enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Load .env file
	if err := loadEnvFile(); err != nil {
		// .env is optional, log but don't fail
		log.Warn().Err(err).Msg("Warning: .env file not loaded")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvPrefix("BEST_OPTIONS")

	// Bind env keys for nested config
	bindEnvVars(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Selection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// loadEnvFile loads a .env file by parsing KEY=VALUE lines and setting them as environment variables
func loadEnvFile() error {
	envPaths := []string{
		".",
		"./config",
	}

	for _, path := range envPaths {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadDotEnvFile(envFile); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads a .env file and sets environment variables
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			value = strings.Trim(value, "\"'")
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Collaborators (legacy env names kept for deployment compatibility)
	v.BindEnv("clients.search_url", "URL_SEARCH")
	v.BindEnv("clients.price_url", "URL_PRICE")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")

	// Storage
	v.BindEnv("storage.base_path", "STORAGE_PATH")
	v.BindEnv("storage.snapshots_enabled", "SNAPSHOTS_ENABLED")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Client defaults
	v.SetDefault("clients.search_timeout", 15*time.Second)
	v.SetDefault("clients.price_timeout", 10*time.Second)
	v.SetDefault("clients.pricing_rps", 0)
	v.SetDefault("clients.pricing_burst", 5)

	// Selection policy defaults
	policy := selection.Defaults()
	v.SetDefault("selection.top_cheapest", policy.TopCheapest)
	v.SetDefault("selection.top_closest", policy.TopClosest)
	v.SetDefault("selection.closing_soon_window", policy.ClosingSoonWindow)
	v.SetDefault("selection.closed_override_ratio", policy.ClosedOverrideRatio)
	v.SetDefault("selection.timezone", policy.Timezone)
	v.SetDefault("selection.always_open_sentinel", policy.AlwaysOpenSentinel)

	// Quote collection defaults
	collector := quotes.Defaults()
	v.SetDefault("quotes.timeout", collector.Timeout)
	v.SetDefault("quotes.concurrency", collector.Concurrency)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/snapshots")
	v.SetDefault("storage.snapshots_enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}
