package backup

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/cfgmerge/internal/backup"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/pkg/fileutil"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list <file>",
	Short: "List backups of a file",
	Long: `List all backups of a file, most recent first.

Only files named <file>.bak.<YYYYMMDDHHMMSS>[-N] next to the file are
considered.`,
	Example: `  # List backups
  cfgmerge backups list ~/.claude/settings.json

  # Output as JSON
  cfgmerge backups list .mcp.json --json

  See Also:
    cfgmerge backups restore - Restore a backup
    cfgmerge backups prune   - Remove old backups`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

// listEntry represents a single backup in JSON output.
type listEntry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

func runList(cmd *cobra.Command, args []string) error {
	target, err := targetPath(args[0])
	if err != nil {
		return err
	}

	backups, err := listOrNone(newManager(), target)
	if err != nil {
		return err
	}

	if listJSON {
		return outputListJSON(cmd.OutOrStdout(), backups)
	}
	outputListTabular(cmd.OutOrStdout(), target, backups)
	return nil
}

func outputListJSON(w io.Writer, backups []backup.Backup) error {
	out := make([]listEntry, len(backups))
	for i, b := range backups {
		out[i] = listEntry{ID: b.ID, Path: b.Path, CreatedAt: b.CreatedAt, Size: b.Size}
	}

	data, err := fileutil.MarshalIndentJSON(out)
	if err != nil {
		return errors.Wrap(err, "encoding backup list")
	}
	_, err = w.Write(data)
	return err
}

func outputListTabular(w io.Writer, target string, backups []backup.Backup) {
	ok, header, muted := palette(w)

	fmt.Fprintln(w, header.Sprintf("Backups of %s", target))
	if len(backups) == 0 {
		fmt.Fprintln(w, muted.Sprint("  (no backups available)"))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Backups are created automatically before cfgmerge modifies a file.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tCREATED\tSIZE")
	for _, b := range backups {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n",
			ok.Sprint(b.ID),
			b.CreatedAt.Format("2006-01-02 15:04:05"),
			b.Size)
	}
	tw.Flush()
}
