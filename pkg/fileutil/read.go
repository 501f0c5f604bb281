package fileutil

import (
	"io"
	"os"

	"github.com/thoreinstein/cfgmerge/internal/errors"
)

// MaxFileSize is the maximum file size ReadFileWithLimit reads (10MB).
// Settings and MCP files are tiny; anything larger is almost certainly not one.
const MaxFileSize = 10 * 1024 * 1024

// ErrFileTooLarge indicates that a file exceeded the read limit.
var ErrFileTooLarge = errors.New("file too large")

// ReadFileWithLimit reads a file up to MaxFileSize.
// Use errors.Is(err, fs.ErrNotExist) to detect a missing file.
func ReadFileWithLimit(path string) ([]byte, error) {
	return ReadFileLimit(path, MaxFileSize)
}

// ReadFileLimit reads path, failing with ErrFileTooLarge if it holds more
// than limit bytes. The size is checked before and while reading, so a file
// that grows mid-read is still caught.
func ReadFileLimit(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s is %d bytes, limit %d", path, info.Size(), limit)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s exceeds limit %d", path, limit)
	}

	return data, nil
}
