package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alebeck/lined/internal/config"
	"github.com/alebeck/lined/internal/log"
	"github.com/alebeck/lined/internal/pidfile"
	"github.com/alebeck/lined/internal/table"
)

func newStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := pidfile.Probe(cfg.PidFile)
			if err != nil {
				return fmt.Errorf("could not read pid file: %w", err)
			}

			pid, up := "-", "-"
			if info.State != pidfile.Stopped {
				pid = fmt.Sprintf("%d", info.Pid)
			}
			if info.State == pidfile.Running {
				up = uptime(time.Since(info.Since))
			}

			t := table.New("Status", "PID", "Uptime", "Address", "PID file")
			t.AddRow(status(info.State), pid, up, cfg.Addr, cfg.PidFile)
			log.Printf("%s", t)

			if info.State != pidfile.Running {
				return exitCode(1)
			}
			return nil
		},
	}
}

func status(s pidfile.State) string {
	switch s {
	case pidfile.Running:
		return log.Style(log.Green, s.String())
	case pidfile.Stale:
		return log.Style(log.Yellow, s.String())
	}
	return log.Style(log.Red, s.String())
}

func uptime(since time.Duration) string {
	days := int(since / (24 * time.Hour))
	hours := int(since/time.Hour) % 24
	mins := int(since/time.Minute) % 60
	secs := int(since/time.Second) % 60
	if days > 0 {
		return fmt.Sprintf("%02dd%02dh", days, hours)
	} else if hours > 0 {
		return fmt.Sprintf("%02dh%02dm", hours, mins)
	}
	return fmt.Sprintf("%02dm%02ds", mins, secs)
}
