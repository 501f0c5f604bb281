package backup

import (
	"fmt"
	"os"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgmerge/internal/backup"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
	"github.com/thoreinstein/cfgmerge/pkg/fileutil"
)

// Bounds of the file excerpt shown next to the picker.
const (
	previewLines = 40
	previewBytes = 64 * 1024
)

// Seams for tests; the picker needs a real terminal.
var (
	isInteractive = func() bool { return logging.IsTTY(os.Stdin) }
	pickBackup    = findBackup
)

func init() {
	Cmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file> [backup-id]",
	Short: "Restore a file from one of its backups",
	Long: `Restore a file from a backup.

Without a backup ID, an interactive fuzzy finder lists the backups with a
preview of their content. The current file is backed up before it is
overwritten, so a restore can itself be undone.`,
	Example: `  # Choose a backup interactively
  cfgmerge backups restore ~/.claude/settings.json

  # Restore a specific backup
  cfgmerge backups restore ~/.claude/settings.json 20260123100712

  See Also:
    cfgmerge backups list - List backups of a file`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	target, err := targetPath(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	mgr := newManager()

	var id string
	if len(args) > 1 {
		id = args[1]
	} else {
		backups, err := mgr.List(target)
		if err != nil {
			if errors.Is(err, backup.ErrNoBackupsFound) {
				return errors.NewUserError(errors.Newf("no backups found for %s", target), "")
			}
			return errors.Wrap(err, "listing backups")
		}
		if !isInteractive() {
			return errors.NewUserError(errors.New("backup ID is required when not running in a terminal"),
				"Run 'cfgmerge backups list "+args[0]+"' to see available IDs")
		}

		idx, err := pickBackup(backups)
		if err != nil {
			if errors.Is(err, fuzzyfinder.ErrAbort) {
				fmt.Fprintln(w, "Restore cancelled")
				return nil
			}
			return errors.Wrap(err, "selecting backup")
		}
		id = backups[idx].ID
	}

	safety, err := mgr.Restore(target, id)
	if err != nil {
		if errors.Is(err, backup.ErrNoBackupsFound) {
			return errors.NewUserError(err, "Run 'cfgmerge backups list "+args[0]+"' to see available IDs")
		}
		return errors.Wrap(err, "restoring backup")
	}

	ok, _, muted := palette(w)
	fmt.Fprintln(w, ok.Sprintf("✓ Restored %s from backup %s", target, id))
	if safety != nil {
		fmt.Fprintln(w, muted.Sprintf("  Previous content saved to %s", safety.Path))
	}
	return nil
}

func findBackup(backups []backup.Backup) (int, error) {
	return fuzzyfinder.Find(
		backups,
		func(i int) string {
			return fmt.Sprintf("%s  %s", backups[i].ID, backups[i].CreatedAt.Format("2006-01-02 15:04:05"))
		},
		fuzzyfinder.WithPromptString("backup> "),
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return preview(backups[i])
		}),
	)
}

func preview(b backup.Backup) string {
	data, err := fileutil.ReadFileLimit(b.Path, previewBytes)
	if err != nil {
		return fmt.Sprintf("cannot read %s: %v", b.Name(), err)
	}
	lines := strings.SplitN(string(data), "\n", previewLines+1)
	if len(lines) > previewLines {
		lines = append(lines[:previewLines], "...")
	}
	return fmt.Sprintf("%s (%d bytes)\n\n%s", b.Name(), b.Size, strings.Join(lines, "\n"))
}
