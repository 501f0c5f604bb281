// Package config provides configuration management for the cfgmerge CLI.
//
// Configuration is optional. When present it lives in config.yaml in the
// current directory or in $XDG_CONFIG_HOME/cfgmerge, and any key may be set
// through a CFGMERGE_ environment variable instead:
//
//	version: 1
//	output: text        # text, json, yaml or toml
//	log_format: text    # text or json
//	backup:
//	  retention: 0      # newest backups kept per file; 0 keeps all
//
// Command-line flags override both.
package config
