// Package config loads the lineplan configuration from TOML files and
// LINEPLAN_ environment variables, with file precedence system < user
// < project < env.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/tecpap/lineplan/engine"
	"github.com/tecpap/lineplan/errors"
)

// FileName is the config file searched for in the project tree.
const FileName = "lineplan.toml"

// Config is the full lineplan configuration.
type Config struct {
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Engine   engine.Config  `mapstructure:"engine"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatasetConfig locates the CSV dataset directory.
type DatasetConfig struct {
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig configures the SQLite history store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP/WS server.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RealtimeConfig sets the compression used when a run is started
// without explicit values.
type RealtimeConfig struct {
	CompressToSeconds int     `mapstructure:"compress_to_seconds"`
	TickSeconds       float64 `mapstructure:"tick_seconds"`
}

// LogConfig selects the log output format.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the lineplan configuration, caching the result.
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access.
func GetViper() *viper.Viper {
	return initViper()
}

// LoadFromFile loads configuration from a specific file path, with
// defaults applied but no environment binding.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &config, nil
}

// Default returns the configuration with every value at its default.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return &Config{}
	}
	return &config
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix("LINEPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Merge config files in precedence order, lowest first.
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset.dir", "data")

	v.SetDefault("database.path", "lineplan.db")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost:5173",
		"http://localhost:3000",
	})

	defaults := engine.DefaultConfig()
	v.SetDefault("engine.late_policy", string(defaults.LatePolicy))
	v.SetDefault("engine.max_event_lateness_min", defaults.MaxEventLatenessMin)
	v.SetDefault("engine.replan_threshold_total_late_min", defaults.ReplanThresholdTotalLateMin)
	v.SetDefault("engine.breakdown_replan_threshold_min", defaults.BreakdownReplanThresholdMin)

	v.SetDefault("realtime.compress_to_seconds", 600)
	v.SetDefault("realtime.tick_seconds", 0.5)

	v.SetDefault("log.json", false)
}

// UserConfigPath returns ~/.lineplan/lineplan.toml, or "" when the
// home directory cannot be determined.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lineplan", FileName)
}

// FindConfigPath returns the config file an edit or a watcher should
// target: the project lineplan.toml when one is in scope, else the
// user config when it exists on disk.
func FindConfigPath() string {
	if p := findProjectConfig(); p != "" {
		return p
	}
	if p := UserConfigPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findProjectConfig walks up from the working directory looking for
// lineplan.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func mergeConfigFiles(v *viper.Viper) {
	configPaths := []string{
		filepath.Join("/etc", "lineplan", FileName),
	}
	if userPath := UserConfigPath(); userPath != "" {
		configPaths = append(configPaths, userPath)
	}
	if projectPath := findProjectConfig(); projectPath != "" {
		configPaths = append(configPaths, projectPath)
	}

	for _, configPath := range configPaths {
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		fileViper := viper.New()
		fileViper.SetConfigFile(configPath)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err != nil {
			continue
		}

		for key, value := range fileViper.AllSettings() {
			v.Set(key, value)
		}
	}
}
