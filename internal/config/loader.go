// Package config provides configuration management for buildstamp.
//
// Values are resolved in order: built-in defaults, the YAML config file,
// BUILDSTAMP_* environment variables, then command-line flags (applied by
// the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by MergeWithEnvironment
const (
	EnvCounterFile = "BUILDSTAMP_COUNTER"
	EnvHeaderFile  = "BUILDSTAMP_HEADER"
	EnvAtomic      = "BUILDSTAMP_ATOMIC"
	EnvLogLevel    = "BUILDSTAMP_LOG_LEVEL"
	EnvLogFile     = "BUILDSTAMP_LOG_FILE"
)

// Load reads configuration from path.
//
// An empty path means DefaultConfigFile in the working directory, which is
// optional: when it does not exist the defaults are returned. An explicit
// path must exist.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultConfigFile
	}

	// Path is from a command-line argument or the fixed default
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(config)
	return config, nil
}

// Marshal encodes the configuration as YAML
func Marshal(config *Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to path
func Save(path string, config *Config) error {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := Marshal(config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeWithEnvironment merges environment variables into configuration.
// Malformed values are reported and leave the field unchanged.
func MergeWithEnvironment(config *Config) error {
	var errs ValidationErrors

	if v := os.Getenv(EnvCounterFile); v != "" {
		config.CounterFile = v
	}
	if v := os.Getenv(EnvHeaderFile); v != "" {
		config.HeaderFile = v
	}
	if v := os.Getenv(EnvAtomic); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   EnvAtomic,
				Message: fmt.Sprintf("invalid boolean: %s", v),
			})
		} else {
			config.Atomic = b
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		config.Logging.File = v
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// applyDefaults fills values left empty by the config file
func applyDefaults(config *Config) {
	if config.CounterFile == "" {
		config.CounterFile = DefaultCounterFile
	}
	if config.HeaderFile == "" {
		config.HeaderFile = DefaultHeaderFile
	}
	if config.Markers.BuildNumber == "" {
		config.Markers.BuildNumber = DefaultNumberMacro
	}
	if config.Markers.BuildDate == "" {
		config.Markers.BuildDate = DefaultDateMacro
	}
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.Format == "" {
		config.Logging.Format = DefaultLogFormat
	}
}
