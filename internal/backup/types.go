package backup

import (
	"time"

	"github.com/thoreinstein/cfgmerge/internal/errors"
)

// TimestampFormat is the layout of the timestamp in a backup file name.
const TimestampFormat = "20060102150405"

// Infix separates the original file name from the backup timestamp.
const Infix = ".bak."

// maxCollisions bounds the counter appended to same-second backups.
const maxCollisions = 1000

// Sentinel errors for backup operations.
var (
	// ErrNoBackupsFound indicates no backups exist for the specified file.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrBackupCorrupted indicates backup file integrity verification failed.
	ErrBackupCorrupted = errors.New("backup corrupted")

	// ErrModified indicates the original file changed after it was read.
	ErrModified = errors.New("file modified since it was read")
)

// Backup describes a single backup file.
type Backup struct {
	// ID is the timestamp portion of the name, with an optional "-N" counter.
	ID string `json:"id" yaml:"id" toml:"id"`

	// Path is the absolute or caller-relative path of the backup file.
	Path string `json:"path" yaml:"path" toml:"path"`

	// CreatedAt is parsed from the ID, in local time.
	CreatedAt time.Time `json:"created_at" yaml:"created_at" toml:"created_at"`

	// Size is the backup's size in bytes.
	Size int64 `json:"size" yaml:"size" toml:"size"`

	// SHA256Hash is the hex-encoded hash of the contents. Only set by Create.
	SHA256Hash string `json:"sha256_hash,omitempty" yaml:"sha256_hash,omitempty" toml:"sha256_hash,omitempty"`

	seq int
}

// Name returns the base name of the backup file.
func (b Backup) Name() string {
	return baseName(b.Path)
}
