// Package paths provides path resolution utilities for cfgmerge.
//
// # XDG Base Directory Compliance
//
// The package wraps github.com/adrg/xdg for cross-platform XDG Base Directory
// Specification compliance. The tool's own configuration lives in
// <ConfigHome>/cfgmerge/config.yaml:
//
//	| OS      | Config file                                       |
//	|---------|---------------------------------------------------|
//	| Linux   | ~/.config/cfgmerge/config.yaml                    |
//	| macOS   | ~/Library/Application Support/cfgmerge/config.yaml |
//	| Windows | %LOCALAPPDATA%\cfgmerge\config.yaml               |
//
// # Home Expansion
//
// Installers frequently pass quoted paths such as "~/.claude/settings.json"
// that the shell never expanded. [ExpandHome] resolves a leading "~".
package paths
