package ipc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/alebeck/lined/internal/log"
)

// MaxCommand is the longest command delivered at once. Longer lines are
// split into chunks of this size.
const MaxCommand = 1023

// Reader splits a client stream into newline-terminated commands.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, MaxCommand)}
}

// Next returns the next command with one trailing newline removed. An
// unterminated fragment before EOF is returned as a final command.
// Orderly end of stream is reported as io.EOF.
func (r *Reader) Next() (string, error) {
	line, err := r.br.ReadSlice('\n')
	switch {
	case err == nil, errors.Is(err, bufio.ErrBufferFull):
	case errors.Is(err, io.EOF) && len(line) > 0:
	default:
		return "", err
	}
	log.Debugf("Received: %q", line)
	return string(bytes.TrimSuffix(line, []byte{'\n'})), nil
}

// Send writes each line, newline-terminated, to conn.
func Send(conn net.Conn, lines ...string) error {
	for _, l := range lines {
		log.Debugf("Sending: %q", l)
		if _, err := io.WriteString(conn, l+"\n"); err != nil {
			return fmt.Errorf("failed to send %q: %w", l, err)
		}
	}
	return nil
}
