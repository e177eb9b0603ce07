package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

var macroName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate validates the configuration
func Validate(config *Config) error {
	var errors ValidationErrors

	if strings.TrimSpace(config.CounterFile) == "" {
		errors = append(errors, ValidationError{
			Field:   "counter_file",
			Message: "counter file cannot be empty",
		})
	}
	if strings.TrimSpace(config.HeaderFile) == "" {
		errors = append(errors, ValidationError{
			Field:   "header_file",
			Message: "header file cannot be empty",
		})
	}
	if config.CounterFile != "" && config.CounterFile == config.HeaderFile {
		errors = append(errors, ValidationError{
			Field:   "header_file",
			Message: "header file and counter file must differ",
		})
	}

	if !macroName.MatchString(config.Markers.BuildNumber) {
		errors = append(errors, ValidationError{
			Field:   "markers.build_number",
			Message: fmt.Sprintf("invalid macro name: %q", config.Markers.BuildNumber),
		})
	}
	if !macroName.MatchString(config.Markers.BuildDate) {
		errors = append(errors, ValidationError{
			Field:   "markers.build_date",
			Message: fmt.Sprintf("invalid macro name: %q", config.Markers.BuildDate),
		})
	}
	if config.Markers.BuildNumber != "" && config.Markers.BuildNumber == config.Markers.BuildDate {
		errors = append(errors, ValidationError{
			Field:   "markers",
			Message: "build_number and build_date must name different macros",
		})
	}

	errors = append(errors, validateLogConfig(&config.Logging)...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// validateLogConfig validates logging configuration
func validateLogConfig(config *LogConfig) ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(config.Level)] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", config.Level),
		})
	}

	if config.Format != "text" && config.Format != "json" {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (must be text or json)", config.Format),
		})
	}

	return errors
}
