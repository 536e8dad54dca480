package config

import (
	"fmt"
	"strings"

	internal "github.com/ZanzyTHEbar/dirsnap/dsnap"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scan ScanConfig `mapstructure:"scan"`
	Diff DiffConfig `mapstructure:"diff"`
}

// ScanConfig stores directory scanning configurations.
type ScanConfig struct {
	OmitFingerprints bool     `mapstructure:"omitFingerprints"`
	Workers          int      `mapstructure:"workers"`
	SkipPatterns     []string `mapstructure:"skipPatterns"`
}

// DiffConfig stores snapshot comparison configurations.
type DiffConfig struct {
	// IgnoreFields is a comma-separated list of metadata fields excluded
	// from comparison, e.g. "mtime,owner".
	IgnoreFields string `mapstructure:"ignoreFields"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
// Environment variables use the DIRSNAP_ prefix, e.g. DIRSNAP_SCAN_WORKERS.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("scan.omitFingerprints", false)
	viper.SetDefault("scan.workers", 0) // 0 means one per CPU
	viper.SetDefault("scan.skipPatterns", []string{})
	viper.SetDefault("diff.ignoreFields", "")

	viper.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment apply.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
