package commands

import (
	"fmt"
	"io"

	"github.com/thoreinstein/cfgmerge/internal/document"
	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/internal/reconcile"
)

// mergeError maps a reconcile failure to the message and exit code the
// user sees. Template problems are usage errors; everything else is I/O.
func mergeError(err error, templatePath string) error {
	switch {
	case errors.Is(err, reconcile.ErrTemplateNotFound):
		return errors.NewUserError(errors.Newf("Template not found: %s", templatePath), "")

	case errors.Is(err, reconcile.ErrInvalidTemplate):
		detail := err.Error()
		var se *document.SyntaxError
		if errors.As(err, &se) {
			detail = se.Error()
		}
		return errors.NewUserError(errors.Newf("Invalid JSON in template %s: %s", templatePath, detail), "")

	default:
		return errors.NewSystemError(err, "")
	}
}

// PrintError writes err to w the way the CLI reports failures: the bare
// message for expected errors, with the suggestion on a second line.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}

	var exitErr *errors.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	if exitErr.Code == errors.ExitSystem {
		fmt.Fprintf(w, "Error: %v\n", exitErr)
	} else {
		fmt.Fprintln(w, exitErr.Error())
	}
	if exitErr.Suggestion != "" {
		fmt.Fprintf(w, "  %s\n", exitErr.Suggestion)
	}
}
