//
// Logic for launching the daemon and running its detached stages.
//

package main

import (
	"fmt"

	"github.com/alebeck/lined/internal/config"
	"github.com/alebeck/lined/internal/daemon"
	"github.com/alebeck/lined/internal/log"
)

// start dispatches on the detachment stage. The launcher and the
// session stage return once their child is running; the service stage
// and foreground mode only return when the daemon terminates.
func start(cfg config.Config, foreground bool) error {
	stage := daemon.CurrentStage()
	log.Debugf("Running %s stage", stage)

	switch {
	case stage == daemon.Session:
		return daemon.Respawn()
	case stage == daemon.Service:
		return exitOrNil(daemon.Run(cfg, daemon.ReadyFile()))
	case foreground:
		return exitOrNil(daemon.Run(cfg, nil))
	}

	if err := daemon.Launch(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	log.Infof("Daemon started, listening on %s", cfg.Addr)
	return nil
}

func exitOrNil(code int) error {
	if code == 0 {
		return nil
	}
	return exitCode(code)
}
