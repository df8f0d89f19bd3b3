package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// fileSystem is the set of operations the guard performs. Tests swap it to
// inject failures.
type fileSystem interface {
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm fs.FileMode) error
	Lstat(name string) (fs.FileInfo, error)
	Remove(name string) error
}

type osFS struct{}

func (osFS) Rename(oldpath, newpath string) error       { return os.Rename(oldpath, newpath) }
func (osFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }
func (osFS) Lstat(name string) (fs.FileInfo, error)     { return os.Lstat(name) }
func (osFS) Remove(name string) error                   { return os.Remove(name) }

func exists(fsys fileSystem, path string) (bool, error) {
	_, err := fsys.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// move renames from to to, falling back to copy and remove when the two
// paths are on different devices.
func move(fsys fileSystem, from, to string) error {
	err := fsys.Rename(from, to)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := copyFile(from, to); err != nil {
		return fmt.Errorf("cross-device copy: %w", err)
	}
	return fsys.Remove(from)
}

// copyFile copies a single regular file, preserving its permission bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	in, err := os.Open(src) // #nosec G304 -- path comes from the manifest
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
