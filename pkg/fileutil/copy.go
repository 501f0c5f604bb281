package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/thoreinstein/cfgmerge/internal/errors"
)

// CopyFile copies src to dst byte-for-byte and carries over the permission bits
// and modification time of src. The destination is fsynced before returning.
// It returns the hex-encoded SHA256 hash of the copied bytes.
//
// When exclusive is true the copy fails with an fs.ErrExist error if dst already exists.
func CopyFile(src, dst string, exclusive bool) (string, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return "", errors.Wrap(err, "opening source file")
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat source file")
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if exclusive {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	dstFile, err := os.OpenFile(dst, flags, 0o600)
	if err != nil {
		return "", errors.Wrap(err, "creating destination file")
	}

	// Compute hash while copying
	h := sha256.New()
	w := io.MultiWriter(dstFile, h)

	if _, err := io.Copy(w, srcFile); err != nil {
		dstFile.Close()
		return "", errors.Wrap(err, "copying file")
	}

	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		return "", errors.Wrap(err, "syncing destination file")
	}

	if err := dstFile.Close(); err != nil {
		return "", errors.Wrap(err, "closing destination file")
	}

	if err := os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return "", errors.Wrap(err, "setting permissions")
	}

	mtime := srcInfo.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return "", errors.Wrap(err, "setting modification time")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile computes the hex-encoded SHA256 hash of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA256 hash of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
