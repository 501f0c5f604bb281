package backup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
)

// DefaultKeep is the retention used when --keep is not given.
const DefaultKeep = 5

var pruneKeep int

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", DefaultKeep,
		"Number of most recent backups to retain")
	Cmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune <file>",
	Short: "Remove old backups of a file",
	Long: `Remove backups of a file beyond the retention count.

By default, keeps the 5 most recent backups and removes older ones.
Use --keep 0 to remove every backup.`,
	Example: `  # Keep the default 5 backups
  cfgmerge backups prune ~/.claude/settings.json

  # Keep only the 3 most recent backups
  cfgmerge backups prune ~/.claude/settings.json --keep 3

  See Also:
    cfgmerge backups list - List backups of a file`,
	Args: cobra.ExactArgs(1),
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneKeep < 0 {
		return errors.NewUserError(errors.New("--keep must be non-negative"), "")
	}

	target, err := targetPath(args[0])
	if err != nil {
		return err
	}

	removed, err := newManager().Prune(target, pruneKeep)
	for _, b := range removed {
		logging.FromContext(cmd.Context()).Debug("removed backup", "path", b.Path)
	}
	if err != nil {
		return errors.Wrapf(err, "pruning backups of %s", target)
	}

	w := cmd.OutOrStdout()
	ok, _, _ := palette(w)
	if len(removed) == 0 {
		fmt.Fprintln(w, "No backups to prune")
		return nil
	}
	fmt.Fprintln(w, ok.Sprintf("✓ Removed %d old backup(s) of %s", len(removed), target))
	return nil
}
