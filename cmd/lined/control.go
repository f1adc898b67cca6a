//
// Commands talking to a running daemon.
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alebeck/lined/internal/config"
	"github.com/alebeck/lined/internal/ipc"
	"github.com/alebeck/lined/internal/log"
	"github.com/alebeck/lined/internal/pidfile"
	"github.com/alebeck/lined/internal/server"
)

const dialTimeout = 2 * time.Second

func newStopCommand(cfg *config.Config) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Terminate the daemon and wait for it to exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := pidfile.Probe(cfg.PidFile)
			if err != nil {
				return fmt.Errorf("could not read pid file: %w", err)
			}
			switch info.State {
			case pidfile.Stopped:
				log.Infof("Daemon is not running")
				return nil
			case pidfile.Stale:
				return fmt.Errorf("stale pid file %s (PID %d), remove it manually",
					cfg.PidFile, info.Pid)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := killDaemon(ctx, cfg, info.Pid); err != nil {
				return fmt.Errorf("could not stop daemon: %w", err)
			}
			log.Infof("Daemon with PID %d stopped", info.Pid)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

func newSendCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "send LINE...",
		Short: "Send each argument as one line to the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connectDaemon(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			return ipc.Send(conn, args...)
		},
	}
}

// connectDaemon connects to the daemon's listening address
func connectDaemon(cfg *config.Config) (net.Conn, error) {
	return net.DialTimeout("tcp", cfg.Addr, dialTimeout)
}

// killDaemon sends SIGTERM to pid, falling back to a quit command where
// signals are not supported, and waits for the pid file to disappear.
func killDaemon(ctx context.Context, cfg *config.Config, pid int) error {
	if err := terminate(pid); err != nil {
		log.Debugf("Signal failed (%v), sending %q instead", err, server.QuitCommand)
		conn, err := connectDaemon(cfg)
		if err != nil {
			return err
		}
		err = ipc.Send(conn, server.QuitCommand)
		conn.Close()
		if err != nil {
			return err
		}
	}

	// Wait for termination
	wait := 20 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			info, err := pidfile.Probe(cfg.PidFile)
			if err != nil {
				return err
			}
			switch info.State {
			case pidfile.Stopped:
				return nil
			case pidfile.Stale:
				return fmt.Errorf("daemon exited without removing %s", cfg.PidFile)
			}
			wait *= 2
		}
	}
}

func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return err
	}
	return nil
}
