package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// StageEnv carries the detachment stage across re-executions.
const StageEnv = "_LINED_STAGE"

// Stage identifies which step of the detachment sequence the current
// process is in.
type Stage int

const (
	// Launcher is the process started from the terminal
	Launcher Stage = iota
	// Session is the first child, leader of a new session
	Session
	// Service is the final, detached process
	Service
)

var stageNames = map[Stage]string{
	Launcher: "launcher",
	Session:  "session",
	Service:  "service",
}

func (s Stage) String() string {
	n, ok := stageNames[s]
	if !ok {
		return fmt.Sprintf("%d", int(s))
	}
	return n
}

// CurrentStage reads the stage from the environment. Unknown values are
// treated as Launcher.
func CurrentStage() Stage {
	v := os.Getenv(StageEnv)
	for s, n := range stageNames {
		if n == v {
			return s
		}
	}
	return Launcher
}

func withStage(env []string, s Stage) []string {
	out := make([]string, 0, len(env)+1)
	for _, e := range env {
		if !strings.HasPrefix(e, StageEnv+"=") {
			out = append(out, e)
		}
	}
	return append(out, StageEnv+"="+s.String())
}

// stageCommand re-executes the current binary with the same arguments
// in stage s. Standard output and error are inherited, so errors before
// the log redirection still reach the terminal.
func stageCommand(s Stage) (*exec.Cmd, error) {
	ex, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("could not determine executable path: %v", err)
	}
	cmd := exec.Command(ex, os.Args[1:]...)
	cmd.Env = withStage(os.Environ(), s)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}
