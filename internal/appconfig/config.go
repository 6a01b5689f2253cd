// Package appconfig loads and writes the fleetwatch YAML configuration.
package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int          `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string       `mapstructure:"state_dir" yaml:"state_dir"`
	Server        ServerConfig `mapstructure:"server" yaml:"server"`
	Events        EventsConfig `mapstructure:"events" yaml:"events"`
	Tabs          TabsConfig   `mapstructure:"tabs" yaml:"tabs"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServerConfig locates the fleet monitoring server.
type ServerConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// EventsConfig controls the event stream service.
type EventsConfig struct {
	BufferDepth     int `mapstructure:"buffer_depth" yaml:"buffer_depth"`
	FeedbackHistory int `mapstructure:"feedback_history" yaml:"feedback_history"`
}

// TabsConfig controls the tab session.
type TabsConfig struct {
	ListTitle   string `mapstructure:"list_title" yaml:"list_title"`
	NewTitle    string `mapstructure:"new_title" yaml:"new_title"`
	NonClosable bool   `mapstructure:"non_closable" yaml:"non_closable"`
	PageLimit   int    `mapstructure:"page_limit" yaml:"page_limit"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".fleetwatch", "state"),
		Server: ServerConfig{
			URL:            "http://localhost:8080/api",
			TimeoutSeconds: 10,
		},
		Events: EventsConfig{
			BufferDepth:     256,
			FeedbackHistory: 100,
		},
		Tabs: TabsConfig{
			ListTitle: "Machines",
			NewTitle:  "New Machine",
			PageLimit: 10,
		},
	}, nil
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".fleetwatch", "config.yaml"), nil
}
