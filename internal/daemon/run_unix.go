//go:build linux || darwin

package daemon

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/alebeck/lined/internal/log"
)

// readyFD is the descriptor the startup report pipe is inherited on.
const readyFD = 3

// Launch starts the session stage in a new session and waits until the
// service process it spawns reported readiness.
func Launch() error {
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create startup pipe: %w", err)
	}
	defer r.Close()

	cmd, err := stageCommand(Session)
	if err != nil {
		w.Close()
		return err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.ExtraFiles = []*os.File{w}
	err = cmd.Start()
	// Only the children may hold the write end, or awaitReady never sees EOF
	w.Close()
	if err != nil {
		return fmt.Errorf("cannot fork: %w", err)
	}
	log.Debugf("Session stage started with PID %d", cmd.Process.Pid)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("session stage failed: %w", err)
	}
	return awaitReady(r)
}

// Respawn runs in the session leader and forks once more, so that the
// service process is not a session leader and can never acquire a
// controlling terminal.
func Respawn() error {
	if sid, err := unix.Getsid(0); err != nil || sid != os.Getpid() {
		return fmt.Errorf("setsid failed: not a session leader")
	}
	cmd, err := stageCommand(Service)
	if err != nil {
		return err
	}
	ready := ReadyFile()
	if ready != nil {
		defer ready.Close()
		cmd.ExtraFiles = []*os.File{ready}
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cannot fork: %w", err)
	}
	log.Debugf("Daemon started with PID %d", cmd.Process.Pid)
	return nil
}

// ReadyFile returns the inherited startup report pipe, or nil outside
// of the detached stages.
func ReadyFile() *os.File {
	if CurrentStage() == Launcher {
		return nil
	}
	return os.NewFile(readyFD, "ready")
}
