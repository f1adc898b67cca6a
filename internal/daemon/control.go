package daemon

import (
	"net"
	"os"
	"sync"

	"github.com/alebeck/lined/internal/log"
	"github.com/alebeck/lined/internal/pidfile"
)

// Shutdown holds the resources that have to be released when the
// daemon terminates, whichever path leads there.
type Shutdown struct {
	once sync.Once
	mu   sync.Mutex

	listener net.Listener
	logFile  *os.File
	pidFile  *pidfile.File
}

func (s *Shutdown) SetListener(l net.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

func (s *Shutdown) SetLogFile(f *os.File) {
	s.mu.Lock()
	s.logFile = f
	s.mu.Unlock()
}

func (s *Shutdown) SetPidFile(f *pidfile.File) {
	s.mu.Lock()
	s.pidFile = f
	s.mu.Unlock()
}

// Cleanup closes the listener and log file and removes the pid file.
// Only the first call has an effect; failures are ignored.
func (s *Shutdown) Cleanup() {
	s.once.Do(func() {
		log.Infof("Cleanup")
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			s.listener.Close()
		}
		if s.logFile != nil {
			s.logFile.Close()
		}
		if s.pidFile != nil {
			if err := s.pidFile.Remove(); err != nil {
				log.Warningf("Failed to remove pid file: %v", err)
			}
		}
	})
}
