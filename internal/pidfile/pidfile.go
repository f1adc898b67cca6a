// Package pidfile manages the marker file that records the daemon's
// process id and doubles as its single-instance lock.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// File is a pid file created by this process.
type File struct {
	Path string
	Pid  int

	mu   sync.Mutex
	lock *flock.Flock
}

// Create writes the current pid to path. It fails if path already exists.
// An advisory lock is held on the file until Remove, which lets other
// processes distinguish a live daemon from a stale file.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	pid := os.Getpid()
	_, werr := f.WriteString(strconv.Itoa(pid))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return nil, werr
	}

	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	ok, err := lock.TryRLock()
	if err != nil || !ok {
		os.Remove(path)
		if err == nil {
			err = errors.New("pid file locked by another process")
		}
		return nil, fmt.Errorf("lock pid file: %w", err)
	}
	return &File{Path: path, Pid: pid, lock: lock}, nil
}

// Remove releases the lock and deletes the file. Further calls are no-ops.
// The lock handle is closed first, as Windows cannot delete open files.
func (f *File) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock == nil {
		return nil
	}
	f.lock.Unlock()
	f.lock = nil
	return os.Remove(f.Path)
}

// State describes what a pid file says about a daemon.
type State int

const (
	Stopped State = iota
	Running
	Stale
)

var stateNames = map[State]string{
	Stopped: "stopped",
	Running: "running",
	Stale:   "stale",
}

func (s State) String() string {
	n, ok := stateNames[s]
	if !ok {
		return fmt.Sprintf("%d", int(s))
	}
	return n
}

// Info is the result of probing a pid file.
type Info struct {
	State State
	Pid   int
	// Since is the modification time of the pid file, i.e. the start
	// time of the daemon that wrote it.
	Since time.Time
}

// staleRetry is how long Probe waits before re-checking a file that
// looked stale. Create writes the pid before taking the lock, and Remove
// releases the lock before deleting, so a live daemon can briefly look
// stale.
var staleRetry = 50 * time.Millisecond

// Probe inspects path without modifying it.
func Probe(path string) (Info, error) {
	info, err := probe(path)
	if err != nil || info.State != Stale {
		return info, err
	}
	time.Sleep(staleRetry)
	return probe(path)
}

func probe(path string) (Info, error) {
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Info{State: Stopped}, nil
	}
	if err != nil {
		return Info{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Info{}, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	info := Info{Pid: pid, Since: st.ModTime()}

	lock := flock.New(path, flock.SetFlag(os.O_RDWR))
	ok, err := lock.TryLock()
	if errors.Is(err, os.ErrNotExist) {
		// Removed in the meantime
		return Info{State: Stopped}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("probe lock: %w", err)
	}
	if ok {
		lock.Unlock()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Info{State: Stopped}, nil
		}
		info.State = Stale
		return info, nil
	}
	info.State = Running
	return info, nil
}
