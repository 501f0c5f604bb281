// Package report renders reconcile results for people and for scripts.
//
// Text output is the line-oriented log a user sees in a terminal: one line
// per event, two-space indented, colorized when the writer is a TTY. The
// json, yaml and toml formats encode the [reconcile.Result] itself.
//
// Diagnostics about a malformed user file always go to the error writer,
// regardless of format, so structured stdout stays parseable.
package report
