package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArchiveSource moves a processed source transcript into dir, creating it
// if needed, and returns the new path. An existing file of the same name is
// replaced. When a rename is impossible (e.g. across filesystems) the file
// is copied and the original removed.
func ArchiveSource(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", ErrArchiveSource, dir, err)
	}
	dst := filepath.Join(dir, filepath.Base(src))

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	} else if _, statErr := os.Stat(src); statErr != nil {
		return "", fmt.Errorf("%w: %w", ErrArchiveSource, err)
	}

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("%w: copy %s: %w", ErrArchiveSource, src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("%w: remove %s: %w", ErrArchiveSource, src, err)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
