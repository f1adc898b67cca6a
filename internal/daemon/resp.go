package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const readyOK = "ok"

// notifier reports the outcome of startup to the launcher. A nil
// notifier or one without a file does nothing.
type notifier struct {
	f *os.File
}

func (n *notifier) ready() {
	n.send(readyOK)
}

func (n *notifier) fail(err error) {
	n.send(err.Error())
}

func (n *notifier) send(msg string) {
	if n == nil || n.f == nil {
		return
	}
	io.WriteString(n.f, msg)
	n.f.Close()
	n.f = nil
}

// awaitReady blocks until the service process reported its startup
// outcome, or until every writer of r is gone.
func awaitReady(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read startup report: %w", err)
	}
	switch msg := string(data); msg {
	case readyOK:
		return nil
	case "":
		return errors.New("daemon exited before it was ready")
	default:
		return errors.New(msg)
	}
}
