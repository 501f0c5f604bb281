// Package main is the entry point for the cfgmerge CLI.
package main

import (
	"os"

	"github.com/thoreinstein/cfgmerge/cmd/cfgmerge/commands"
	"github.com/thoreinstein/cfgmerge/internal/errors"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}
