package daemon

import (
	"os"

	"golang.org/x/sys/unix"
)

// redirect points the standard output and error descriptors at f.
func redirect(f *os.File) error {
	fd := int(f.Fd())
	if err := unix.Dup2(fd, unix.Stdout); err != nil {
		return err
	}
	return unix.Dup2(fd, unix.Stderr)
}
