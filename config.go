package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Socket  SocketConfig  `mapstructure:"socket"`
	Export  ExportConfig  `mapstructure:"export"`
	Import  ImportConfig  `mapstructure:"import"`
	Logging LoggingConfig `mapstructure:"logging"`
	REPL    REPLConfig    `mapstructure:"repl"`
}

// StorageConfig selects where input, output and rules are persisted.
// An empty path keeps state in memory only.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type SocketConfig struct {
	Path string `mapstructure:"path"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type ImportConfig struct {
	StripHTML bool `mapstructure:"strip_html"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type REPLConfig struct {
	Color       bool   `mapstructure:"color"`
	HistoryFile string `mapstructure:"history_file"`
}

// DefaultConfig returns the configuration used when nothing else is set
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".textsword")

	return &Config{
		Storage: StorageConfig{Path: filepath.Join(dataDir, "state.db")},
		Socket:  SocketConfig{Path: filepath.Join(os.TempDir(), "textsword.sock")},
		Export:  ExportConfig{Dir: "."},
		Import:  ImportConfig{StripHTML: false},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		REPL:    REPLConfig{Color: true, HistoryFile: filepath.Join(dataDir, "history")},
	}
}

// newViper prepares a viper instance with defaults, search paths and env overrides
func newViper(configPath string) *viper.Viper {
	defaults := DefaultConfig()

	v := viper.New()
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("socket.path", defaults.Socket.Path)
	v.SetDefault("export.dir", defaults.Export.Dir)
	v.SetDefault("import.strip_html", defaults.Import.StripHTML)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("repl.color", defaults.REPL.Color)
	v.SetDefault("repl.history_file", defaults.REPL.HistoryFile)

	v.SetConfigName("textsword")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.textsword/")

	v.SetEnvPrefix("TEXTSWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := newViper(configPath)
	if err := readConfig(v); err != nil {
		return nil, err
	}
	return decodeConfig(v)
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - defaults apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if strings.TrimSpace(config.Socket.Path) == "" {
		return fmt.Errorf("socket path must not be empty")
	}

	return nil
}

// WatchConfig calls callback with the new configuration whenever the config
// file changes. Invalid updates are reported to onError and otherwise ignored.
func WatchConfig(configPath string, callback func(*Config), onError func(error)) error {
	v := newViper(configPath)
	if err := readConfig(v); err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no config file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		config, err := decodeConfig(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		callback(config)
	})
	v.WatchConfig()

	return nil
}
