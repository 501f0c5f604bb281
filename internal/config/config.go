package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/paths"
)

// Configuration keys.
const (
	KeyVersion         = "version"
	KeyOutput          = "output"
	KeyLogFormat       = "log_format"
	KeyBackupRetention = "backup.retention"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "CFGMERGE"

// Config represents the top-level configuration structure.
type Config struct {
	Version   int          `mapstructure:"version" yaml:"version"`
	Output    string       `mapstructure:"output" yaml:"output"`
	LogFormat string       `mapstructure:"log_format" yaml:"log_format"`
	Backup    BackupConfig `mapstructure:"backup" yaml:"backup"`
}

// BackupConfig controls the sibling backups written before each merge.
type BackupConfig struct {
	// Retention is how many backups to keep per file. Zero keeps all.
	Retention int `mapstructure:"retention" yaml:"retention"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.Reset()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(paths.ConfigDir())

	// CFGMERGE_BACKUP_RETENTION sets backup.retention
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeyVersion, 1)
	viper.SetDefault(KeyOutput, "text")
	viper.SetDefault(KeyLogFormat, "text")
	viper.SetDefault(KeyBackupRetention, 0)
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations and falls back to
// defaults when no file is found.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(filepath.Clean(path))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// Implicit load without a file uses defaults
		case errors.As(err, &notFound), isNotExist(err):
			return nil, errors.Mark(errors.Wrapf(err, "config file not found at %s", path), errors.ErrNotFound)
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Mark(errors.Wrap(errs[0], "validating config"), errors.ErrInvalidConfig)
	}

	return &cfg, nil
}

// Used returns the path of the config file that was read, if any.
func Used() string {
	return viper.ConfigFileUsed()
}
