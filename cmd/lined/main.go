package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alebeck/lined/internal/buildinfo"
	"github.com/alebeck/lined/internal/config"
	"github.com/alebeck/lined/internal/log"
)

var isTerm = term.IsTerminal(int(os.Stdout.Fd()))

// exitCode makes a command terminate with the given status without
// printing anything further.
type exitCode int

func (c exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(c))
}

func main() {
	initLogging()

	if err := newRootCommand().Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		log.Fatalf("%v", err)
	}
}

func initLogging() {
	// We don't use colors under Windows for now.
	useColors := isTerm && runtime.GOOS != "windows"
	log.Init(os.Stdout, useColors)
}

func newRootCommand() *cobra.Command {
	cfg := config.FromEnv()
	var foreground bool

	rootCmd := &cobra.Command{
		Use:   "lined",
		Short: "Background service reading line commands on a loopback port",
		Long: "lined detaches from the terminal, records its PID, logs to a file and\n" +
			"logs every line sent to its TCP port until a client sends 'quit'.",
		Version:       buildinfo.Version(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Normalize()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cfg, foreground)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.PidFile, "pid-file", cfg.PidFile, "PID marker file (env LINED_PID_FILE)")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file (env LINED_LOG_FILE)")
	pf.StringVar(&cfg.Addr, "addr", cfg.Addr, "Loopback address to listen on (env LINED_ADDR)")
	rootCmd.Flags().BoolVar(&foreground, "foreground", false,
		"Do not detach from the terminal, e.g. when run by a service manager")

	rootCmd.AddCommand(newStatusCommand(&cfg))
	rootCmd.AddCommand(newStopCommand(&cfg))
	rootCmd.AddCommand(newSendCommand(&cfg))

	return rootCmd
}
