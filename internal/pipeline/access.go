package pipeline

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileAccess answers the two questions asked about a script before it runs.
type FileAccess interface {
	Exists(path string) error
	Executable(path string) error
}

// OSAccess checks scripts on the local filesystem with this process's
// credentials.
type OSAccess struct{}

// Exists returns an error if path cannot be found.
func (OSAccess) Exists(path string) error {
	_, err := os.Stat(path)
	return err
}

// Executable returns an error if the process may not execute path.
func (OSAccess) Executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return &os.PathError{Op: "access", Path: path, Err: err}
	}
	return nil
}
