// Package errors provides error handling conventions for the cfgmerge CLI.
//
// It re-exports the wrapping helpers from github.com/cockroachdb/errors so
// that callers only import a single errors package, and defines an
// ExitError type carrying the process exit code.
//
// # Exit Codes
//
//   - ExitSuccess (0): the merge completed, including no-op and recovery paths
//   - ExitUser (1): usage error, missing or malformed template, bad config
//   - ExitSystem (2): I/O failure (permissions, disk full, ...)
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. It supports [errors.Is] and [errors.As]:
//
//	err := cfgerrors.NewUserError(cause, "Run: cfgmerge --help")
//	var exitErr *cfgerrors.ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
package errors
