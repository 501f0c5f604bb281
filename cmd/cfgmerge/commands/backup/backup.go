// Package backup provides CLI commands for managing the sibling backups
// cfgmerge writes before changing a file.
package backup

import (
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgmerge/internal/backup"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
	"github.com/thoreinstein/cfgmerge/internal/paths"
)

// newManager is swapped in tests to pin the backup clock.
var newManager = func() *backup.Manager {
	return backup.NewManager()
}

// Cmd is the root backups command.
var Cmd = &cobra.Command{
	Use:     "backups",
	Aliases: []string{"backup"},
	Short:   "Manage backups of merged files",
	Long: `Manage the backups cfgmerge writes before modifying a file.

Every backup sits next to the file it protects and is named
<file>.bak.<YYYYMMDDHHMMSS>, with a -N suffix when several were taken within
the same second. This command group lists, prunes and restores them.`,
	Example: `  # List backups of your settings, newest first
  cfgmerge backups list ~/.claude/settings.json

  # Keep only the 3 most recent
  cfgmerge backups prune ~/.claude/settings.json --keep 3

  # Pick a backup interactively and restore it
  cfgmerge backups restore ~/.claude/settings.json

  See Also:
    cfgmerge backups list    - List backups of a file
    cfgmerge backups prune   - Remove old backups
    cfgmerge backups restore - Restore a backup`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// targetPath expands the file argument shared by every subcommand.
func targetPath(arg string) (string, error) {
	p, err := paths.ExpandHome(arg)
	if err != nil {
		return "", errors.NewSystemError(err, "")
	}
	return p, nil
}

// palette returns colors that are disabled unless w is a color terminal.
func palette(w io.Writer) (ok, header, muted *color.Color) {
	ok = color.New(color.FgGreen)
	header = color.New(color.FgCyan, color.Bold)
	muted = color.New(color.FgHiBlack)
	if !logging.SupportsColor(w) {
		ok.DisableColor()
		header.DisableColor()
		muted.DisableColor()
	}
	return ok, header, muted
}

// listOrNone lists backups, mapping "none found" to an empty slice.
func listOrNone(mgr *backup.Manager, target string) ([]backup.Backup, error) {
	backups, err := mgr.List(target)
	if err != nil {
		if errors.Is(err, backup.ErrNoBackupsFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "listing backups of %s", target)
	}
	return backups, nil
}
