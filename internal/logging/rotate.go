// Log rotation for the daemon's own log file: shift numbered copies,
// drop the oldest, truncate the live file in place so the open *os.File
// stays valid for the logger.
package logging

import (
	"fmt"
	"io"
	"os"
)

const (
	rotateMaxSize = 10 * 1024 * 1024 // bytes
	rotateKeep    = 5
)

// RotateIfNeeded rotates path if it exceeds rotateMaxSize, keeping up to
// rotateKeep numbered backups (path.1 most recent ... path.N oldest).
// Intended to be called periodically (e.g. from the monitor loop tick)
// for the daemon's own stdout/stderr log files.
func RotateIfNeeded(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() < rotateMaxSize {
		return nil
	}

	for i := rotateKeep - 1; i >= 1; i-- {
		old := fmt.Sprintf("%s.%d", path, i)
		next := fmt.Sprintf("%s.%d", path, i+1)
		_ = os.Rename(old, next)
	}
	_ = os.Remove(fmt.Sprintf("%s.%d", path, rotateKeep+1))

	if err := copyFile(path, path+".1"); err != nil {
		return fmt.Errorf("rotate copy %s: %w", path, err)
	}
	if err := os.Truncate(path, 0); err != nil {
		return fmt.Errorf("rotate truncate %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
