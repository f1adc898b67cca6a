package config

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/alebeck/lined/internal/paths"
)

const (
	DefaultPidFile = "daemon.pid"
	DefaultLogFile = "daemon.log"
	DefaultAddr    = "127.0.0.1:8042"
)

// Config holds the fixed locations the daemon operates on. There is no
// configuration file; defaults can be overridden through the
// environment and then through command-line flags.
type Config struct {
	// PidFile is the marker file holding the daemon's process id
	PidFile string
	// LogFile receives standard output and error once daemonized
	LogFile string
	// Addr is the loopback address the daemon listens on
	Addr string
}

// FromEnv returns the defaults, overridden by LINED_PID_FILE,
// LINED_LOG_FILE and LINED_ADDR if set.
func FromEnv() Config {
	cfg := Config{
		PidFile: DefaultPidFile,
		LogFile: DefaultLogFile,
		Addr:    DefaultAddr,
	}
	if p := os.Getenv("LINED_PID_FILE"); p != "" {
		cfg.PidFile = p
	}
	if l := os.Getenv("LINED_LOG_FILE"); l != "" {
		cfg.LogFile = l
	}
	if a := os.Getenv("LINED_ADDR"); a != "" {
		cfg.Addr = a
	}
	return cfg
}

// Normalize makes file paths absolute and validates the listen address.
func (c *Config) Normalize() error {
	var err error
	if c.PidFile == "" || c.LogFile == "" {
		return fmt.Errorf("pid file and log file paths must not be empty")
	}
	if c.PidFile, err = paths.Resolve(c.PidFile); err != nil {
		return fmt.Errorf("resolve pid file: %w", err)
	}
	if c.LogFile, err = paths.Resolve(c.LogFile); err != nil {
		return fmt.Errorf("resolve log file: %w", err)
	}
	if c.PidFile == c.LogFile {
		return fmt.Errorf("pid file and log file must differ, both are %s", c.PidFile)
	}
	if _, err := netip.ParseAddrPort(c.Addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Addr, err)
	}
	return nil
}
