package common

import (
	"flag"
	"fmt"
	"strings"
)

// CommonFlags contains flags shared across engine commands
type CommonFlags struct {
	// Environment and configuration
	EnvFile *string
	Broker  *string

	// Logging and output
	Verbose  *bool
	Silent   *bool
	NoEmojis *bool

	// Help and version
	Version *bool
	Help    *bool
}

// RegisterCommonFlags registers common flags with the default flag set
func RegisterCommonFlags() *CommonFlags {
	return &CommonFlags{
		EnvFile: flag.String("env", ".env", "Environment file path"),
		Broker:  flag.String("broker", "", "Broker gateway override (paper, bybit)"),

		Verbose:  flag.Bool("verbose", false, "Enable verbose output"),
		Silent:   flag.Bool("silent", false, "Enable silent mode (minimal output)"),
		NoEmojis: flag.Bool("no-emojis", false, "Disable emoji output"),

		Version: flag.Bool("version", false, "Show version information"),
		Help:    flag.Bool("help", false, "Show help information"),
	}
}

// Apply wires the parsed flag values into the default logger
func (f *CommonFlags) Apply() {
	if *f.Verbose {
		DefaultLogger.Level = LogLevelDebug
	}
	if *f.Silent {
		DefaultLogger.SetSilentMode(true)
	}
	if *f.NoEmojis {
		DefaultLogger.ShowEmojis = false
	}
}

// FlagValidator provides flag validation utilities
type FlagValidator struct {
	errors []string
}

// NewFlagValidator creates a new flag validator
func NewFlagValidator() *FlagValidator {
	return &FlagValidator{
		errors: make([]string, 0),
	}
}

// ValidateFloat validates a float flag value
func (v *FlagValidator) ValidateFloat(name string, value, min, max float64) *FlagValidator {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %g and %g, got %g", name, min, max, value))
	}
	return v
}

// ValidateChoice validates a string flag against allowed values
func (v *FlagValidator) ValidateChoice(name, value string, choices []string) *FlagValidator {
	for _, c := range choices {
		if value == c {
			return v
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of [%s], got %q", name, strings.Join(choices, ", "), value))
	return v
}

// Err returns the collected validation errors, or nil
func (v *FlagValidator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("invalid flags:\n  %s", strings.Join(v.errors, "\n  "))
}
