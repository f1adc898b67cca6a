// Package daemon detaches the process from its terminal, performs the
// pid and log file bookkeeping and runs the server until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alebeck/lined/internal/config"
	"github.com/alebeck/lined/internal/log"
	"github.com/alebeck/lined/internal/pidfile"
	"github.com/alebeck/lined/internal/server"
)

// Signals that trigger an orderly shutdown.
var Signals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM}

// Run writes the pid file, redirects output to the log file and serves
// until a quit command, a signal or a fatal error. The startup outcome
// is reported on ready if it is non-nil. Run returns the exit code.
func Run(cfg config.Config, ready *os.File) int {
	n := &notifier{f: ready}
	sd := &Shutdown{}
	die := func(msg string, err error) int {
		log.Errorf("%s: %v", msg, err)
		// Clean up before reporting, the launcher exits on the report
		sd.Cleanup()
		n.fail(fmt.Errorf("%s: %w", msg, err))
		return 1
	}

	pid, err := pidfile.Create(cfg.PidFile)
	if err != nil {
		// The file may belong to a running instance, leave it alone
		log.Errorf("Failed to open pid file: %v", err)
		n.fail(fmt.Errorf("failed to open pid file: %w", err))
		return 1
	}
	sd.SetPidFile(pid)

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return die("Failed to open log file", err)
	}
	sd.SetLogFile(logFile)
	if err := redirect(logFile); err != nil {
		return die("Failed to redirect output", err)
	}
	log.Init(os.Stdout, false)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, Signals...)
	defer signal.Stop(sig)

	log.Infof("Started with PID %d", pid.Pid)
	l, err := server.Listen(cfg.Addr)
	if err != nil {
		return die("Failed to listen on "+cfg.Addr, err)
	}
	sd.SetListener(l)
	n.ready()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, l) }()

	select {
	case s := <-sig:
		log.Infof("Received signal: %s", s)
		cancel()
		sd.Cleanup()
		log.Infof("Quitting after signal")
		return 0
	case err := <-done:
		if err != nil && !errors.Is(err, server.ErrQuit) {
			return die("Server failed", err)
		}
		sd.Cleanup()
		log.Infof("Quitting after '%s' command", server.QuitCommand)
		return 0
	}
}
