// Package testserver implements the minimal fixed-response target used by the
// serve subcommand and by package tests. It accepts a connection, reads the
// request headers under a short timeout, writes a fixed 200 reply, and closes.
// Request parsing beyond the header terminator is deliberately absent.
package testserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

var response = []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nOK")

const headerTerminator = "\r\n\r\n"

// Server is a TCP listener that answers every connection with a fixed reply.
type Server struct {
	ReadTimeout time.Duration // per-connection header read timeout

	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// Listen binds the server to addr (host:port). Port 0 picks a free port.
func Listen(addr string) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{ReadTimeout: 2 * time.Second, listener: l}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Close stops accepting and unblocks Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.listener.Close()
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if s.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	// Read until the blank line ending the headers. Short reads and timeouts
	// are tolerated: the reply is sent either way.
	reader := bufio.NewReader(conn)
	var buf bytes.Buffer
	for {
		line, err := reader.ReadBytes('\n')
		buf.Write(line)
		if err != nil {
			break
		}
		if bytes.HasSuffix(buf.Bytes(), []byte(headerTerminator)) {
			break
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.ReadTimeout))
	_, _ = conn.Write(response)
}
