// Package installdir decides whether an install directory can receive a
// download: it must exist (or be creatable) and be writable.
package installdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrCreate      = errors.New("cannot create install directory")
	ErrNotWritable = errors.New("install directory not writable")
	ErrNotDir      = errors.New("install path is not a directory")
)

type fsOps interface {
	Stat(string) (os.FileInfo, error)
	MkdirAll(string, os.FileMode) error
	CreateTemp(dir, pattern string) (*os.File, error)
	Remove(string) error
}

type osFS struct{}

func (osFS) Stat(p string) (os.FileInfo, error)       { return os.Stat(p) }
func (osFS) MkdirAll(p string, m os.FileMode) error   { return os.MkdirAll(p, m) }
func (osFS) CreateTemp(d, p string) (*os.File, error) { return os.CreateTemp(d, p) }
func (osFS) Remove(p string) error                    { return os.Remove(p) }

// Checker validates install directories against a filesystem.
type Checker struct {
	fs fsOps
}

// New returns a Checker backed by the OS filesystem.
func New() *Checker { return &Checker{fs: osFS{}} }

// Ensure creates dir if missing and verifies it is writable. It returns the
// absolute, cleaned path on success.
func (c *Checker) Ensure(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCreate, dir, err)
	}
	fi, err := c.fs.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := c.fs.MkdirAll(abs, 0o755); err != nil {
			return abs, fmt.Errorf("%w: %s: %v", ErrCreate, abs, err)
		}
	case err != nil:
		return abs, fmt.Errorf("%w: %s: %v", ErrCreate, abs, err)
	case !fi.IsDir():
		return abs, fmt.Errorf("%w: %s", ErrNotDir, abs)
	}
	if err := c.Writable(abs); err != nil {
		return abs, err
	}
	return abs, nil
}

// Writable probes dir by creating and removing a temporary file. A missing
// directory is reported as ErrNotWritable as well.
func (c *Checker) Writable(dir string) error {
	fi, err := c.fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDir, dir)
	}
	f, err := c.fs.CreateTemp(dir, ".launcher-write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotWritable, dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = c.fs.Remove(name)
	return nil
}

// Ensure is a convenience wrapper using the OS filesystem.
func Ensure(dir string) (string, error) { return New().Ensure(dir) }

// Writable is a convenience wrapper using the OS filesystem.
func Writable(dir string) error { return New().Writable(dir) }
