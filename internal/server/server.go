// Package server implements the single-client command loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/alebeck/lined/internal/ipc"
	"github.com/alebeck/lined/internal/log"
)

const (
	// Backlog is the number of pending connections queued by the kernel
	// while a client is being served.
	Backlog = 32
	// QuitCommand terminates the whole service.
	QuitCommand = "quit"
)

// ErrQuit is returned by Serve when a client sent QuitCommand.
var ErrQuit = errors.New("quit command received")

// Serve accepts one client at a time and reads its commands until the
// client disconnects, then accepts the next one. It returns ErrQuit on
// a quit command, nil once ctx is cancelled, and any other error on an
// accept or read failure. Serve closes l when ctx is done.
func Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	log.Infof("Waiting for a connection")
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept client: %w", err)
		}
		if err := handle(ctx, conn); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	session := uuid.NewString()[:8]
	log.Infof("Client connected from %s (session %s)", conn.RemoteAddr(), session)

	r := ipc.NewReader(conn)
	for {
		cmd, err := r.Next()
		if errors.Is(err, io.EOF) {
			log.Infof("Client disconnected (session %s)", session)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read from socket: %w", err)
		}

		log.Infof("Read %s", cmd)
		if cmd == QuitCommand {
			return ErrQuit
		}
	}
}
