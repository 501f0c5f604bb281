// Package backup creates and manages the timestamped sibling backups that
// cfgmerge writes before it modifies a configuration file.
//
// A backup of /home/u/.claude/settings.json taken at 2026-01-23 10:07:12
// local time is stored next to the original:
//
//	/home/u/.claude/settings.json.bak.20260123100712
//
// The copy is byte-identical, keeps the original permission bits and
// modification time, is fsynced, and is re-read and checked against the
// SHA256 of the copied bytes before [Manager.Create] returns. Callers must
// not modify the original until Create has returned successfully.
//
// # Collisions
//
// The timestamp has second resolution. When a backup with the same
// timestamp already exists, a counter is appended instead of overwriting it:
//
//	settings.json.bak.20260123100712
//	settings.json.bak.20260123100712-1
//
// # Listing, Pruning and Restoring
//
// [Manager.List] returns a file's backups newest first. [Manager.Prune]
// keeps the newest N and removes the rest. [Manager.Restore] copies a backup
// over the original, after first backing up the current content.
//
// # Error Handling
//
//   - [ErrNoBackupsFound]: the file has no backups
//   - [ErrBackupCorrupted]: a backup does not match the bytes it was copied from
//   - [ErrModified]: the original changed between reading and backing it up
package backup
