package server

import (
	"net"

	"github.com/rsms/go-log"

	"github.com/rsms/redox"
	"github.com/rsms/redox/protocol"
)

// Server is the TCP acceptor: it binds one listener and spawns one
// goroutine per accepted connection, each running an independent
// session loop against the shared keyspace.
type Server struct {
	Keyspace  *redox.Keyspace
	Password  string
	OnAccept  func()
	OnCommand func(op protocol.Op)

	listener net.Listener
}

// Serve binds addr and runs the accept loop until the listener is closed
// (via Close) or Accept returns any other error; no accept error is
// retried.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ln)
}

// ServeListener runs the accept loop over an already-bound listener. The
// outer CLI uses this to retry the bind on EADDRINUSE without a
// close-then-reopen race between the probe and the real accept loop.
func (s *Server) ServeListener(ln net.Listener) error {
	s.listener = ln
	log.Info("server: listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if s.OnAccept != nil {
			s.OnAccept()
		}
		go serve(conn, s.Keyspace, s.Password, s.OnCommand)
	}
}

// Close stops accepting new connections. In-flight sessions are left to
// finish on their own; Redox has no cooperative cancellation for
// sessions (see the concurrency model's "no idle-connection timeouts").
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Addr returns the bound listener's address, or nil before Serve starts
// listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
