// Package settings loads the optional application settings that live
// outside the allocation file: logging and market data HTTP behavior.
package settings

import (
	"fmt"

	"github.com/iwvelando/allocator/pkg/constants"
	"github.com/spf13/viper"
)

// Settings holds all application-level settings for allocator.
type Settings struct {
	Logging LoggingConfig `yaml:"logging,omitempty"`
	HTTP    HTTPConfig    `yaml:"http,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// HTTPConfig holds settings for outgoing market data requests.
type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds,omitempty"`
}

// Load reads the YAML-formatted settings file at path. An empty path yields
// the defaults.
func Load(path string) (*Settings, error) {
	settings := &Settings{
		HTTP: HTTPConfig{TimeoutSeconds: constants.DefaultHTTPTimeoutSeconds},
	}
	if path == "" {
		return settings, nil
	}

	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading settings file, %s", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	if settings.HTTP.TimeoutSeconds <= 0 {
		settings.HTTP.TimeoutSeconds = constants.DefaultHTTPTimeoutSeconds
	}
	return settings, nil
}
