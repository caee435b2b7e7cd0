// Package server implements the TCP acceptor and per-connection session
// state machine: line reading, auth gating, command dispatch into the
// keyspace, and reply writing.
package server

import (
	"bufio"
	"crypto/rand"
	"net"
	"strings"

	"github.com/rsms/go-bits"
	"github.com/rsms/go-log"
	"github.com/rsms/go-uuid"

	"github.com/rsms/redox"
	"github.com/rsms/redox/protocol"
)

// opBit returns the bitmask bit for op, used only for the per-session
// distinct-opcode usage summary logged on disconnect.
func opBit(op protocol.Op) uint64 {
	if op < 0 || op > 63 {
		return 0
	}
	return 1 << uint(op)
}

// session owns one accepted connection: its buffered line reader, its
// writer, and its local authentication state. One session runs per
// goroutine for the lifetime of the connection.
type session struct {
	id       uuid.UUID
	conn     net.Conn
	keyspace *redox.Keyspace
	password string // empty means no password configured

	authenticated bool
	opsSeen       uint64 // bitmask of distinct Op values issued this session

	onCommand func(op protocol.Op)
}

func newSessionID() uuid.UUID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return uuid.UUID(b)
}

// serve runs the session's request/response loop until EOF or a socket
// error, then closes the connection. onCommand, if non-nil, is called
// once per decoded command that is dispatched to the keyspace (used to
// drive metrics); AUTH and commands rejected before authentication do
// not trigger it.
func serve(conn net.Conn, ks *redox.Keyspace, password string, onCommand func(op protocol.Op)) {
	s := &session{
		id:            newSessionID(),
		conn:          conn,
		keyspace:      ks,
		password:      password,
		authenticated: password == "",
		onCommand:     onCommand,
	}
	defer s.close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		line, err := reader.ReadString('\n')
		if len(line) == 0 && err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		reply := s.handleLine(line)
		if _, werr := writer.WriteString(reply); werr != nil {
			return
		}
		if werr := writer.Flush(); werr != nil {
			return
		}

		if err != nil { // ReadString returned a final partial line plus EOF
			return
		}
	}
}

// handleLine decodes and dispatches a single request line, returning the
// exact bytes to write back (always "\n"-terminated).
func (s *session) handleLine(line string) string {
	cmd, err := protocol.Decode(line)
	if err != nil {
		return protocol.Encode(protocol.Err(err.Error()))
	}

	if cmd.Op == protocol.OpAuth {
		return protocol.Encode(s.handleAuth(cmd))
	}

	if !s.authenticated {
		return protocol.Encode(protocol.Err("Authentication required"))
	}

	s.opsSeen |= opBit(cmd.Op)
	if s.onCommand != nil {
		s.onCommand(cmd.Op)
	}
	return protocol.Encode(dispatch(s.keyspace, cmd))
}

func (s *session) handleAuth(cmd protocol.Command) protocol.Response {
	if s.password == "" {
		return protocol.Err("Authentication not required")
	}
	if cmd.Password != s.password {
		return protocol.Err("Invalid password")
	}
	s.authenticated = true
	return protocol.OK()
}

func (s *session) close() {
	s.conn.Close()
	log.Info("session %s: disconnected, %d distinct command(s) issued", s.id.String(), bits.PopcountUint64(s.opsSeen))
}
