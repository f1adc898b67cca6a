package daemon

import (
	"os"

	"golang.org/x/sys/windows"
)

func redirect(f *os.File) error {
	h := windows.Handle(f.Fd())
	if err := windows.SetStdHandle(windows.STD_OUTPUT_HANDLE, h); err != nil {
		return err
	}
	if err := windows.SetStdHandle(windows.STD_ERROR_HANDLE, h); err != nil {
		return err
	}
	os.Stdout = f
	os.Stderr = f
	return nil
}
