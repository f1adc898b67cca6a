//go:build windows

package server

import (
	"fmt"
	"net"
)

// Listen binds a TCP listener on addr. The Windows stack picks the
// backlog itself and does not support SO_REUSEADDR semantics.
func Listen(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	return l, nil
}
