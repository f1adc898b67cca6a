//go:build linux || darwin

package main

import (
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/alebeck/lined/internal/daemon"
)

// helperEnv makes the test binary behave like the lined binary, so the
// daemon's re-executions of itself go through main as well.
const helperEnv = "LINED_TEST_MAIN"

const waitTimeout = 5 * time.Second

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	dir     string
	pidFile string
	logFile string
	addr    string
	environ []string
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not reserve port: %v", err)
	}
	defer l.Close()
	return l.Addr().String()
}

func newEnv(t *testing.T) *testEnv {
	dir := t.TempDir()
	e := &testEnv{
		dir:     dir,
		pidFile: filepath.Join(dir, "daemon.pid"),
		logFile: filepath.Join(dir, "daemon.log"),
		addr:    freeAddr(t),
	}
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, daemon.StageEnv+"=") {
			e.environ = append(e.environ, kv)
		}
	}
	e.environ = append(e.environ,
		helperEnv+"=1",
		"LINED_PID_FILE="+e.pidFile,
		"LINED_LOG_FILE="+e.logFile,
		"LINED_ADDR="+e.addr,
	)
	t.Cleanup(func() { e.killLeftover() })
	return e
}

func (e *testEnv) command(t *testing.T, args ...string) *exec.Cmd {
	t.Helper()
	out, err := os.OpenFile(filepath.Join(e.dir, "console.out"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { out.Close() })
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = e.environ
	cmd.Dir = e.dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd
}

// run executes a short-lived command and returns its exit code. It
// fails the test if the command does not exit within waitTimeout.
func (e *testEnv) run(t *testing.T, args ...string) int {
	t.Helper()
	cmd := e.command(t, args...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("could not start %v: %v", args, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(waitTimeout):
		cmd.Process.Kill()
		<-done
		t.Fatalf("%v did not exit within %v, output: %s", args, waitTimeout, e.console())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if err != nil {
		t.Fatalf("could not run %v: %v", args, err)
	}
	return 0
}

func (e *testEnv) console() string {
	data, _ := os.ReadFile(filepath.Join(e.dir, "console.out"))
	return string(data)
}

func (e *testEnv) logs() string {
	data, _ := os.ReadFile(e.logFile)
	return string(data)
}

func (e *testEnv) pid(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(e.pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("pid file contains %q: %v", data, err)
	}
	return pid
}

// killLeftover terminates a daemon a failed test left behind.
func (e *testEnv) killLeftover() {
	data, err := os.ReadFile(e.pidFile)
	if err != nil {
		return
	}
	if pid, err := strconv.Atoi(string(data)); err == nil && pid > 1 {
		syscall.Kill(pid, syscall.SIGKILL)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (e *testEnv) waitLog(t *testing.T, s string, n int) {
	t.Helper()
	waitUntil(t, "log line "+strconv.Quote(s), func() bool {
		return strings.Count(e.logs(), s) >= n
	})
}

func (e *testEnv) dial(t *testing.T) net.Conn {
	t.Helper()
	var conn net.Conn
	waitUntil(t, "daemon to accept connections", func() bool {
		var err error
		conn, err = net.Dial("tcp", e.addr)
		return err == nil
	})
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) assertUnbound(t *testing.T) {
	t.Helper()
	l, err := net.Listen("tcp", e.addr)
	if err != nil {
		t.Fatalf("address %s still bound: %v", e.addr, err)
	}
	l.Close()
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (e *testEnv) startForeground(t *testing.T) *process {
	t.Helper()
	p := &process{cmd: e.command(t, "--foreground"), done: make(chan struct{})}
	if err := p.cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	go func() {
		p.err = p.cmd.Wait()
		close(p.done)
	}()
	t.Cleanup(func() {
		p.cmd.Process.Kill()
		<-p.done
	})
	return p
}

func (p *process) wait(t *testing.T) int {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(waitTimeout):
		t.Fatalf("process did not exit")
	}
	var exitErr *exec.ExitError
	if errors.As(p.err, &exitErr) {
		return exitErr.ExitCode()
	}
	if p.err != nil {
		t.Fatalf("wait: %v", p.err)
	}
	return 0
}

func (p *process) assertRunning(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
		t.Fatalf("process exited early: %v", p.err)
	default:
	}
}

func write(t *testing.T, conn net.Conn, s string) {
	t.Helper()
	if _, err := io.WriteString(conn, s); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestForegroundHelloAndQuit(t *testing.T) {
	e := newEnv(t)
	p := e.startForeground(t)
	conn := e.dial(t)

	if pid := e.pid(t); pid != p.cmd.Process.Pid {
		t.Fatalf("pid file contains %d, want %d", pid, p.cmd.Process.Pid)
	}

	write(t, conn, "hello\n")
	e.waitLog(t, " - Read hello\n", 1)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, err := conn.Read(make([]byte, 16)); n != 0 || !os.IsTimeout(err) {
		t.Fatalf("expected no reply on an open connection, got %d bytes, %v", n, err)
	}
	p.assertRunning(t)

	write(t, conn, "quit\n")
	if c := p.wait(t); c != 0 {
		t.Fatalf("exit code %d", c)
	}
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("expected connection closed by server, got %v", err)
	}
	if _, err := os.Stat(e.pidFile); !os.IsNotExist(err) {
		t.Fatalf("pid file left behind: %v", err)
	}
	if !strings.Contains(e.logs(), "Quitting after 'quit' command") {
		t.Fatalf("shutdown reason not logged:\n%s", e.logs())
	}
	e.assertUnbound(t)
}

func TestForegroundSignals(t *testing.T) {
	for _, sig := range daemon.Signals {
		t.Run(sig.String(), func(t *testing.T) {
			e := newEnv(t)
			p := e.startForeground(t)
			conn := e.dial(t)
			write(t, conn, "hello\n")
			e.waitLog(t, " - Read hello\n", 1)

			if err := p.cmd.Process.Signal(sig); err != nil {
				t.Fatal(err)
			}
			if c := p.wait(t); c != 0 {
				t.Fatalf("exit code %d", c)
			}
			if _, err := os.Stat(e.pidFile); !os.IsNotExist(err) {
				t.Fatalf("pid file left behind: %v", err)
			}
			if !strings.Contains(e.logs(), "Received signal: "+sig.String()) {
				t.Fatalf("signal not logged:\n%s", e.logs())
			}
			e.assertUnbound(t)
		})
	}
}

func TestThirdSessionQuits(t *testing.T) {
	e := newEnv(t)
	p := e.startForeground(t)

	for i := 1; i <= 2; i++ {
		conn := e.dial(t)
		write(t, conn, "hello\n")
		e.waitLog(t, " - Read hello\n", i)
		conn.Close()
		e.waitLog(t, "Client disconnected", i)
		p.assertRunning(t)
	}

	conn := e.dial(t)
	write(t, conn, "quit\n")
	if c := p.wait(t); c != 0 {
		t.Fatalf("exit code %d", c)
	}
	if n := strings.Count(e.logs(), "Quitting after"); n != 1 {
		t.Fatalf("expected exactly one shutdown, got %d", n)
	}
}

func TestSendCommand(t *testing.T) {
	e := newEnv(t)
	p := e.startForeground(t)
	e.dial(t).Close()

	if c := e.run(t, "send", "hello", "quit"); c != 0 {
		t.Fatalf("send exit code %d: %s", c, e.console())
	}
	if c := p.wait(t); c != 0 {
		t.Fatalf("exit code %d", c)
	}
	if !strings.Contains(e.logs(), " - Read hello\n") {
		t.Fatalf("hello not logged:\n%s", e.logs())
	}
}

func TestExistingPidFile(t *testing.T) {
	for _, args := range [][]string{nil, {"--foreground"}} {
		e := newEnv(t)
		if err := os.WriteFile(e.pidFile, []byte("1"), 0644); err != nil {
			t.Fatal(err)
		}

		if c := e.run(t, args...); c == 0 {
			t.Fatalf("%v: expected failure, output: %s", args, e.console())
		}
		if !strings.Contains(e.console(), "file exists") {
			t.Errorf("%v: error not reported: %s", args, e.console())
		}
		e.assertUnbound(t)
		if data, _ := os.ReadFile(e.pidFile); string(data) != "1" {
			t.Fatalf("%v: foreign pid file modified: %q", args, data)
		}
		os.Remove(e.pidFile)
	}
}

func TestAddressInUse(t *testing.T) {
	e := newEnv(t)
	l, err := net.Listen("tcp", e.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if c := e.run(t); c == 0 {
		t.Fatalf("expected failure, output: %s", e.console())
	}
	if _, err := os.Stat(e.pidFile); !os.IsNotExist(err) {
		t.Fatalf("pid file not cleaned up: %v", err)
	}
	if !strings.Contains(e.logs(), "Cleanup") {
		t.Fatalf("cleanup not logged:\n%s", e.logs())
	}
}

func TestDaemonLifecycle(t *testing.T) {
	e := newEnv(t)

	launcher := e.command(t)
	if err := launcher.Run(); err != nil {
		t.Fatalf("launch: %v, output: %s", err, e.console())
	}

	pid := e.pid(t)
	if pid == launcher.Process.Pid {
		t.Fatalf("daemon did not detach")
	}
	if runtime.GOOS == "linux" {
		sid, err := unix.Getsid(pid)
		if err != nil {
			t.Fatalf("getsid: %v", err)
		}
		own, _ := unix.Getsid(0)
		if sid == pid || sid == own {
			t.Fatalf("daemon session %d (pid %d, ours %d)", sid, pid, own)
		}
	}

	conn := e.dial(t)
	write(t, conn, "hello\n")
	e.waitLog(t, " - Read hello\n", 1)
	if !strings.Contains(e.logs(), "Started with PID "+strconv.Itoa(pid)) {
		t.Fatalf("start not logged:\n%s", e.logs())
	}
	conn.Close()
	e.waitLog(t, "Client disconnected", 1)

	if c := e.run(t, "status"); c != 0 {
		t.Fatalf("status exit code %d: %s", c, e.console())
	}
	if !strings.Contains(e.console(), "running") {
		t.Fatalf("status output: %s", e.console())
	}

	if c := e.run(t, "stop"); c != 0 {
		t.Fatalf("stop exit code %d: %s", c, e.console())
	}
	if _, err := os.Stat(e.pidFile); !os.IsNotExist(err) {
		t.Fatalf("pid file left behind: %v", err)
	}
	e.assertUnbound(t)

	if c := e.run(t, "status"); c != 1 {
		t.Fatalf("status after stop exit code %d", c)
	}
}

func TestStatusStopped(t *testing.T) {
	e := newEnv(t)
	if c := e.run(t, "status"); c != 1 {
		t.Fatalf("exit code %d", c)
	}
	if !strings.Contains(e.console(), "stopped") {
		t.Fatalf("status output: %s", e.console())
	}
}

func TestStatusStale(t *testing.T) {
	e := newEnv(t)
	if err := os.WriteFile(e.pidFile, []byte("4242"), 0644); err != nil {
		t.Fatal(err)
	}
	if c := e.run(t, "status"); c != 1 {
		t.Fatalf("exit code %d", c)
	}
	if !strings.Contains(e.console(), "stale") {
		t.Fatalf("status output: %s", e.console())
	}
	// killLeftover must not act on a foreign pid
	os.Remove(e.pidFile)
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	if c := e.run(t, "--version"); c != 0 {
		t.Fatalf("exit code %d", c)
	}
	if !strings.HasPrefix(e.console(), "lined version ") {
		t.Errorf("unexpected output: %s", e.console())
	}
}
