package config

import (
	"fmt"
	"io/fs"
	"slices"

	"github.com/thoreinstein/cfgmerge/internal/errors"
)

// SupportedVersion is the only config schema version understood.
const SupportedVersion = 1

// Accepted values for enumerated keys.
var (
	OutputFormats = []string{"text", "json", "yaml", "toml"}
	LogFormats    = []string{"text", "json"}
)

// Validation errors for configuration fields.
var (
	// ErrUnsupportedVersion indicates a version other than SupportedVersion.
	ErrUnsupportedVersion = errors.New("unsupported config version")

	// ErrInvalidValue indicates a key holds a value outside its accepted set.
	ErrInvalidValue = errors.New("invalid value")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version != SupportedVersion {
		errs = append(errs, &FieldError{Key: KeyVersion, Value: cfg.Version, Err: ErrUnsupportedVersion})
	}

	if !slices.Contains(OutputFormats, cfg.Output) {
		errs = append(errs, &FieldError{Key: KeyOutput, Value: cfg.Output, Err: ErrInvalidValue})
	}

	if !slices.Contains(LogFormats, cfg.LogFormat) {
		errs = append(errs, &FieldError{Key: KeyLogFormat, Value: cfg.LogFormat, Err: ErrInvalidValue})
	}

	if cfg.Backup.Retention < 0 {
		errs = append(errs, &FieldError{Key: KeyBackupRetention, Value: cfg.Backup.Retention, Err: ErrInvalidValue})
	}

	return errs
}

// FieldError represents an invalid value for a specific key.
type FieldError struct {
	Key   string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s = %v", e.Err, e.Key, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
