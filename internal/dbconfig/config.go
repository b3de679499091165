// Package dbconfig loads the console's configuration file: a small
// viper-backed settings struct holding just what dbufdb's console needs.
package dbconfig

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the console's configuration.
type Config struct {
	AppName string `mapstructure:"app_name"`

	Console struct {
		Prompt         string `mapstructure:"prompt"`
		HistoryPath    string `mapstructure:"history_path"`
		SchemaSearchDir string `mapstructure:"schema_search_dir"`
	} `mapstructure:"console"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{AppName: "dbufdb"}
	cfg.Console.Prompt = "dbufdb> "
	cfg.Console.HistoryPath = ""
	cfg.Console.SchemaSearchDir = "."
	return cfg
}

// Load reads a YAML configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("dbconfig: read config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("dbconfig: unmarshal config: %w", err)
	}
	return cfg, nil
}
