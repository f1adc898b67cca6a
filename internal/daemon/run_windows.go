//go:build windows

package daemon

import (
	"errors"
	"os"
	"syscall"

	"github.com/alebeck/lined/internal/log"
)

const DETACHED_PROCESS = 0x00000008

// Launch starts the service stage as a detached process. Windows has no
// session leaders, and no readiness report is awaited.
func Launch() error {
	cmd, err := stageCommand(Service)
	if err != nil {
		return err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | DETACHED_PROCESS,
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	log.Debugf("Daemon started with PID %d", cmd.Process.Pid)
	return nil
}

func Respawn() error {
	return errors.New("session stage is not used on windows")
}

func ReadyFile() *os.File {
	return nil
}
