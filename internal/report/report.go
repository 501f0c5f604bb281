package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/logging"
	"github.com/thoreinstein/cfgmerge/internal/reconcile"
	"github.com/thoreinstein/cfgmerge/pkg/fileutil"
)

// Format specifies the output format for reports.
type Format string

const (
	// FormatText produces human-readable text output.
	FormatText Format = "text"
	// FormatJSON produces machine-readable JSON output.
	FormatJSON Format = "json"
	// FormatYAML produces YAML output.
	FormatYAML Format = "yaml"
	// FormatTOML produces TOML output.
	FormatTOML Format = "toml"
)

// ErrUnknownFormat indicates an unsupported --output value.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported formats.
func Formats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML), string(FormatTOML)}
}

// ParseFormat validates s as a Format. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q (valid: %s)", s, strings.Join(Formats(), ", "))
	}
}

// Reporter formats and writes reconcile results.
type Reporter struct {
	out    io.Writer
	errOut io.Writer
	format Format

	ok     *color.Color
	accent *color.Color
	warn   *color.Color

	noticed bool
}

// NewReporter creates a Reporter writing results to out and notices to errOut.
func NewReporter(out, errOut io.Writer, format Format) *Reporter {
	r := &Reporter{
		out:    out,
		errOut: errOut,
		format: format,
		ok:     color.New(color.FgGreen),
		accent: color.New(color.FgCyan),
		warn:   color.New(color.FgYellow),
	}
	if !logging.SupportsColor(out) {
		r.ok.DisableColor()
		r.accent.DisableColor()
	}
	if !logging.SupportsColor(errOut) {
		r.warn.DisableColor()
	}
	return r
}

// Report writes res in the reporter's format.
func (r *Reporter) Report(res *reconcile.Result) error {
	if res == nil {
		return nil
	}

	if res.Outcome == reconcile.OutcomeReplaced && !r.noticed {
		r.ReplaceNotice(res)
	}

	switch r.format {
	case FormatJSON:
		data, err := fileutil.MarshalIndentJSON(res)
		if err != nil {
			return errors.Wrap(err, "encoding JSON report")
		}
		_, err = r.out.Write(data)
		return errors.Wrap(err, "writing JSON report")
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return errors.Wrap(err, "encoding YAML report")
		}
		return errors.Wrap(enc.Close(), "encoding YAML report")
	case FormatTOML:
		return errors.Wrap(toml.NewEncoder(r.out).Encode(res), "encoding TOML report")
	default:
		r.reportText(res)
		return nil
	}
}

// ReplaceNotice tells the user that a malformed user file is being replaced.
// It is meant to run before the replacement happens (see
// reconcile.WithReplaceHook); Report then does not repeat it.
func (r *Reporter) ReplaceNotice(res *reconcile.Result) {
	r.noticed = true
	fmt.Fprintf(r.errOut, "Invalid JSON in %s: %s\n", res.UserPath, res.UserError)
	if res.DryRun {
		fmt.Fprintln(r.errOut, r.warn.Sprint("  Would back up and replace with template"))
		return
	}
	fmt.Fprintln(r.errOut, r.warn.Sprint("  Backing up and replacing with template"))
}

func (r *Reporter) reportText(res *reconcile.Result) {
	name := filepath.Base(res.UserPath)

	switch res.Outcome {
	case reconcile.OutcomeCreated:
		verb := "Created"
		if res.DryRun {
			verb = "Would create"
		}
		fmt.Fprintf(r.out, "  %s %s (new)\n", r.ok.Sprint(verb), res.UserPath)

	case reconcile.OutcomeReplaced:
		if res.Backup != nil {
			fmt.Fprintf(r.out, "  Backup: %s\n", res.Backup.Path)
		}

	case reconcile.OutcomeUpToDate:
		fmt.Fprintf(r.out, "  %s: already up to date\n", name)

	case reconcile.OutcomeUpgraded:
		if res.DryRun || res.Backup == nil {
			fmt.Fprintf(r.out, "  %s %s:\n", r.ok.Sprint("Would upgrade"), name)
		} else {
			fmt.Fprintf(r.out, "  %s %s (backup: %s):\n", r.ok.Sprint("Upgraded"), name, r.accent.Sprint(res.Backup.Name()))
		}
		for _, c := range res.Changes {
			fmt.Fprintf(r.out, "  %s\n", c)
		}
	}

	for _, b := range res.Pruned {
		fmt.Fprintf(r.out, "  Pruned backup: %s\n", b.Name())
	}
}
