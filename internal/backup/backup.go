package backup

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/thoreinstein/cfgmerge/internal/errors"
	"github.com/thoreinstein/cfgmerge/pkg/fileutil"
)

// Manager handles backup creation, restoration, and management.
type Manager struct {
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used to name new backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a new backup Manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PathFor returns the backup path for target taken at t.
func PathFor(target string, t time.Time) string {
	return target + Infix + t.Format(TimestampFormat)
}

// Create copies target to a new sibling backup and verifies it.
//
// If expectedHash is non-empty, the copied bytes must hash to it; otherwise
// the backup is removed and ErrModified is returned. This lets a caller that
// already read target confirm the backup holds exactly what it read.
func (m *Manager) Create(target, expectedHash string) (*Backup, error) {
	if target == "" {
		return nil, errors.New("target path is required")
	}

	now := m.now()
	base := PathFor(target, now)
	id := now.Format(TimestampFormat)

	var (
		path string
		hash string
		seq  int
		err  error
	)
	for seq = 0; seq < maxCollisions; seq++ {
		path = base
		if seq > 0 {
			path = base + "-" + strconv.Itoa(seq)
		}
		hash, err = fileutil.CopyFile(target, path, true)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			// Never leave a truncated backup behind
			os.Remove(path)
			return nil, errors.Wrapf(err, "backing up %s", target)
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "backing up %s: too many backups within one second", target)
	}
	if seq > 0 {
		id += "-" + strconv.Itoa(seq)
	}

	if expectedHash != "" && hash != expectedHash {
		os.Remove(path)
		return nil, errors.Wrapf(ErrModified, "backing up %s", target)
	}

	// Re-read what reached the disk before anyone is allowed to overwrite the original
	onDisk, err := fileutil.HashFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "verifying backup %s", path)
	}
	if onDisk != hash {
		os.Remove(path)
		return nil, errors.Wrapf(ErrBackupCorrupted, "verifying backup %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat backup %s", path)
	}

	return &Backup{
		ID:         id,
		Path:       path,
		CreatedAt:  now.Truncate(time.Second),
		Size:       info.Size(),
		SHA256Hash: hash,
		seq:        seq,
	}, nil
}

// List returns all backups of target, sorted newest first.
func (m *Manager) List(target string) ([]Backup, error) {
	if target == "" {
		return nil, errors.New("target path is required")
	}

	dir := filepath.Dir(target)
	prefix := baseName(target) + Infix

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoBackupsFound
		}
		return nil, errors.Wrap(err, "reading backup directory")
	}

	var backups []Backup
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		id := strings.TrimPrefix(entry.Name(), prefix)
		createdAt, seq, ok := ParseID(id)
		if !ok {
			// Skip foreign files that merely share the prefix
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, Backup{
			ID:        id,
			Path:      filepath.Join(dir, entry.Name()),
			CreatedAt: createdAt,
			Size:      info.Size(),
			seq:       seq,
		})
	}

	if len(backups) == 0 {
		return nil, ErrNoBackupsFound
	}

	// Sort by date, newest first; same-second backups by counter
	slices.SortFunc(backups, func(a, b Backup) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.seq - a.seq
	})

	return backups, nil
}

// Get returns the backup of target with the given ID.
func (m *Manager) Get(target, id string) (*Backup, error) {
	if id == "" {
		return nil, errors.New("backup ID is required")
	}

	backups, err := m.List(target)
	if err != nil {
		return nil, err
	}
	for i := range backups {
		if backups[i].ID == id {
			return &backups[i], nil
		}
	}
	return nil, errors.Wrapf(ErrNoBackupsFound, "backup %s not found", id)
}

// Prune removes backups of target beyond the newest keep.
// It returns the removed backups.
func (m *Manager) Prune(target string, keep int) ([]Backup, error) {
	if keep < 0 {
		return nil, errors.New("keep must be non-negative")
	}

	backups, err := m.List(target)
	if err != nil {
		if errors.Is(err, ErrNoBackupsFound) {
			return nil, nil // Nothing to prune
		}
		return nil, err
	}

	var removed []Backup
	// Already sorted newest first, delete everything beyond 'keep'
	for i := keep; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return removed, errors.Wrapf(err, "removing backup %s", backups[i].ID)
		}
		removed = append(removed, backups[i])
	}

	return removed, nil
}

// Restore copies the backup id over target.
// The current content of target, if any, is backed up first; that safety
// backup is returned (nil when target did not exist).
func (m *Manager) Restore(target, id string) (*Backup, error) {
	b, err := m.Get(target, id)
	if err != nil {
		return nil, err
	}

	data, err := fileutil.ReadFileWithLimit(b.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading backup %s", b.ID)
	}
	info, err := os.Stat(b.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat backup %s", b.ID)
	}

	var safety *Backup
	if _, err := os.Stat(target); err == nil {
		safety, err = m.Create(target, "")
		if err != nil {
			return nil, errors.Wrap(err, "backing up current file before restore")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(err, "stat %s", target)
	}

	dest := target
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		dest = resolved
	}
	if err := fileutil.AtomicWriteFile(dest, data, info.Mode().Perm()); err != nil {
		return safety, errors.Wrapf(err, "restoring %s", target)
	}

	return safety, nil
}

// ParseID parses a backup ID of the form YYYYMMDDHHMMSS or YYYYMMDDHHMMSS-N.
func ParseID(id string) (createdAt time.Time, seq int, ok bool) {
	ts, counter, hasCounter := strings.Cut(id, "-")
	if len(ts) != len(TimestampFormat) {
		return time.Time{}, 0, false
	}
	createdAt, err := time.ParseInLocation(TimestampFormat, ts, time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	if hasCounter {
		seq, err = strconv.Atoi(counter)
		if err != nil || seq < 1 {
			return time.Time{}, 0, false
		}
	}
	return createdAt, seq, true
}

func baseName(path string) string {
	return filepath.Base(path)
}
