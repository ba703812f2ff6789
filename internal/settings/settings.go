// Package settings binds the daemon's ambient runtime configuration
// (socket paths, XDG overrides, reconnect tuning, log level) via viper.
// This is distinct from internal/configstore, which owns the hand-rolled,
// schema-validated domain config (projects, app-classes, window-rules).
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the daemon's ambient runtime configuration.
type Settings struct {
	ControlSocketPath string        `mapstructure:"control_socket_path"`
	WMSocketPath      string        `mapstructure:"wm_socket_path"`
	ConfigDir         string        `mapstructure:"config_dir"`
	DataDir           string        `mapstructure:"data_dir"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout"`
	ReconnectMinDelay time.Duration `mapstructure:"reconnect_min_delay"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay"`
	MaxReconnectTries int           `mapstructure:"max_reconnect_tries"`
	LogLevel          string        `mapstructure:"log_level"`
	OTLPEndpoint      string        `mapstructure:"otlp_endpoint"`
}

// Defaults returns the daemon's built-in settings, used before any config
// file or environment override is applied.
func Defaults() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		ControlSocketPath: "/tmp/i3-project-daemon.sock",
		WMSocketPath:      "",
		ConfigDir:         filepath.Join(home, ".config", "i3"),
		DataDir:           filepath.Join(home, ".local", "share", "i3pm"),
		LaunchTimeout:     5 * time.Second,
		ReconnectMinDelay: 250 * time.Millisecond,
		ReconnectMaxDelay: 10 * time.Second,
		MaxReconnectTries: 0, // 0 = unbounded
		LogLevel:          "info",
		OTLPEndpoint:      "",
	}
}

// Load binds defaults, an optional config file, and I3PM_-prefixed
// environment variables into a Settings value using v (a viper instance
// supplied by the caller so cmd/ can own the key delimiter and flag
// bindings).
func Load(v *viper.Viper, cfgFile string) (Settings, error) {
	defaults := Defaults()
	v.SetDefault("control_socket_path", defaults.ControlSocketPath)
	v.SetDefault("wm_socket_path", defaults.WMSocketPath)
	v.SetDefault("config_dir", defaults.ConfigDir)
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("launch_timeout", defaults.LaunchTimeout)
	v.SetDefault("reconnect_min_delay", defaults.ReconnectMinDelay)
	v.SetDefault("reconnect_max_delay", defaults.ReconnectMaxDelay)
	v.SetDefault("max_reconnect_tries", defaults.MaxReconnectTries)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("otlp_endpoint", defaults.OTLPEndpoint)

	v.SetEnvPrefix("I3PM")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".config", "i3pm-daemon"))
		v.SetConfigName("daemon")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Settings{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return s, nil
}
