// Package transport implements the wire-facing adapters: Unix-domain
// socket, TCP, HTTP, and an optional Redis pub/sub front door, all
// funneling into the same dispatch.Dispatcher. Each connection is
// handled on its own goroutine; adapters stop cleanly when their
// context is cancelled.
//
// A net.Listener accept loop spawns one goroutine per connection, reads
// a single newline-framed request from it, writes the response and closes
// the connection, and closes its listener cleanly on shutdown.
package transport

import (
	"bufio"
	"context"
	"io"
	"net"

	"github.com/ahriroot/watchmen/internal/dispatch"
	"github.com/ahriroot/watchmen/internal/logging"
)

// Adapter is the common shape every transport satisfies so the daemon's
// startup code can start and stop them uniformly.
type Adapter interface {
	// Serve blocks, accepting connections until ctx is cancelled or a
	// fatal listener error occurs.
	Serve(ctx context.Context) error
	// Close releases the adapter's listening resources immediately.
	Close() error
}

// streamAdapter is the shared accept-loop implementation for the
// Unix-socket and TCP adapters, which differ only in how their
// net.Listener is constructed.
type streamAdapter struct {
	ln   net.Listener
	disp *dispatch.Dispatcher
	log  *logging.Logger
	name string
}

func (s *streamAdapter) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *streamAdapter) Close() error {
	return s.ln.Close()
}

// handleConn reads one framed JSON request (a single line, or a full
// read-to-EOF for clients that close the write side after sending),
// dispatches it, and writes the JSON response back, newline-terminated.
func (s *streamAdapter) handleConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.log.Warnf("%s: read error: %v", s.name, err)
		return
	}
	if len(line) == 0 {
		return
	}
	resp := s.disp.HandleRaw(line)
	resp = append(resp, '\n')
	if _, err := conn.Write(resp); err != nil {
		s.log.Warnf("%s: write error: %v", s.name, err)
	}
}
