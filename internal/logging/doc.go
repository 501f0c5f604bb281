// Package logging provides structured logging for the cfgmerge CLI using slog.
//
// Log records always go to stderr so that stdout carries only the merge
// report. Two formats are supported: a compact, optionally colorized text
// format for terminals and slog's JSON format for machines. Attribute values
// that look like credentials are masked by the text handler; MCP server
// definitions routinely carry tokens in env blocks.
//
// The active logger travels in the context:
//
//	ctx = logging.NewContext(ctx, logger)
//	logging.FromContext(ctx).Debug("merging", "kind", kind)
//
// For tests, use [ForTest] to capture log output via the testing framework.
package logging
