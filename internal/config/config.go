// Package config loads bot configuration from a YAML file and RAILBOT_*
// environment variables, with compiled-in defaults matching the bot's
// historical behavior.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// WikiConfig holds wiki connection configuration
type WikiConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// ConfigPage is the wiki page holding source and leaderboard definitions
	ConfigPage string `mapstructure:"config_page"`
}

// ImportConfig holds reconciliation-run configuration
type ImportConfig struct {
	// BurnAddress marks tokens as destroyed; compared case-insensitively
	BurnAddress string `mapstructure:"burn_address"`
	// MaxSubmissionID bounds the submission page scan
	MaxSubmissionID int `mapstructure:"max_submission_id"`
	// Thumbnails enables thumbnail generation and upload
	Thumbnails bool `mapstructure:"thumbnails"`
}

// IPFSConfig holds IPFS gateway configuration
type IPFSConfig struct {
	Gateways []string `mapstructure:"gateways"`
}

// Config holds the complete bot configuration
type Config struct {
	BaseConfig `mapstructure:",squash"`
	Wiki       WikiConfig   `mapstructure:"wiki"`
	Import     ImportConfig `mapstructure:"import"`
	IPFS       IPFSConfig   `mapstructure:"ipfs"`
}

// Load loads the bot configuration.
func Load(configFile string, envPath string) (*Config, error) {
	v := configureViper(configFile, envPath)

	// Set defaults
	v.SetDefault("wiki.url", "https://pickipedia.xyz")
	v.SetDefault("wiki.config_page", "PickiPedia:BlueRailroadConfig")
	v.SetDefault("import.burn_address", "0x000000000000000000000000000000000000dead")
	v.SetDefault("import.max_submission_id", 100)
	v.SetDefault("import.thumbnails", true)
	v.SetDefault("ipfs.gateways", []string{
		"https://ipfs.maybelle.cryptograss.live",
		"https://gateway.pinata.cloud",
	})

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; env vars and defaults suffice.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func configureViper(configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("RAILBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		"wiki.url",
		"wiki.username",
		"wiki.password",
		"wiki.config_page",
		"import.burn_address",
		"import.max_submission_id",
		"import.thumbnails",
		"ipfs.gateways",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func loadEnv(envPath string) {
	if envPath == "" {
		envPath = "config/"
	}
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(envPath, envFile)) // Overload lets later files override earlier ones
	}
}
