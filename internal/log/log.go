package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	// ANSI escape codes for text styling
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[36m"
)

// TimeFormat renders timestamps with seconds resolution.
const TimeFormat = time.ANSIC

var (
	mu     sync.Mutex
	out    io.Writer = os.Stdout
	colors bool
	debug  = len(os.Getenv("DEBUG")) > 0
)

// Init sets the destination of all subsequent log lines, and whether
// error prefixes are coloured.
func Init(w io.Writer, useColors bool) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	colors = useColors
}

func timestamp() string {
	return time.Now().Format(TimeFormat)
}

func write(code, label, format string, a ...any) {
	message := fmt.Sprintf(format, a...)
	mu.Lock()
	defer mu.Unlock()
	if label != "" {
		label = style(code, label) + " "
	}
	fmt.Fprintf(out, "%s - %s%s\n", timestamp(), label, message)
}

func Debugf(format string, a ...any) {
	if !debug {
		return
	}
	write("", "DEBUG", format, a...)
}

func Infof(format string, a ...any) {
	write("", "", format, a...)
}

func Warningf(format string, a ...any) {
	write(Yellow, "Warning:", format, a...)
}

func Errorf(format string, a ...any) {
	write(Red, "Error:", format, a...)
}

func Fatalf(format string, a ...any) {
	Errorf(format, a...)
	os.Exit(1)
}

// Printf writes without timestamp, for plain CLI output.
// Arguments are formatted before locking, as their String methods may
// call Style.
func Printf(format string, a ...any) {
	message := fmt.Sprintf(format, a...)
	mu.Lock()
	defer mu.Unlock()
	io.WriteString(out, message)
}

// Style wraps s in the given escape code if colours are enabled.
func Style(code, s string) string {
	mu.Lock()
	defer mu.Unlock()
	return style(code, s)
}

// style expects mu to be held.
func style(code, s string) string {
	if !colors {
		return s
	}
	return code + s + Reset
}
