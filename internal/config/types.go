package config

// MarkerConfig names the macros rewritten in the header
type MarkerConfig struct {
	BuildNumber string `yaml:"build_number" json:"build_number"` // Macro holding the counter
	BuildDate   string `yaml:"build_date" json:"build_date"`     // Macro holding the quoted timestamp
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`     // Log level (debug, info, warn, error)
	Format  string `yaml:"format" json:"format"`   // text or json
	File    string `yaml:"file" json:"file"`       // Optional append-only log file
	Console bool   `yaml:"console" json:"console"` // Whether to log to stderr
}

// Config represents the complete configuration
type Config struct {
	CounterFile string       `yaml:"counter_file" json:"counter_file"` // Counter store path
	HeaderFile  string       `yaml:"header_file" json:"header_file"`   // Header artifact path
	Markers     MarkerConfig `yaml:"markers" json:"markers"`           // Marker macro names
	Atomic      bool         `yaml:"atomic" json:"atomic"`             // Stage both writes and commit together
	Logging     LogConfig    `yaml:"logging" json:"logging"`           // Logging configuration
}

// Default configuration values
const (
	DefaultConfigFile  = ".buildstamp.yaml"
	DefaultCounterFile = "build_number"
	DefaultHeaderFile  = "rendertoy_internal.h"
	DefaultNumberMacro = "BUILD_NUMBER"
	DefaultDateMacro   = "BUILD_DATE"
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		CounterFile: DefaultCounterFile,
		HeaderFile:  DefaultHeaderFile,
		Markers: MarkerConfig{
			BuildNumber: DefaultNumberMacro,
			BuildDate:   DefaultDateMacro,
		},
		Logging: LogConfig{
			Level:   DefaultLogLevel,
			Format:  DefaultLogFormat,
			Console: true,
		},
	}
}
