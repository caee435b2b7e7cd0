package server

import (
	"bufio"
	"net"
	"testing"

	"github.com/rsms/go-testutil"

	"github.com/rsms/redox"
	"github.com/rsms/redox/protocol"
)

// dial starts srv on a loopback listener and returns a connected client
// along with a function to read a single reply line.
func dial(t *testing.T, srv *Server) (net.Conn, func() string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.ServeListener(ln)
	t.Cleanup(func() { srv.Close() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	reader := bufio.NewReader(conn)
	return conn, func() string {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		return line
	}
}

func send(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatal(err)
	}
}

func TestUnauthenticatedCommandsAreRejectedUntilAuth(t *testing.T) {
	assert := testutil.NewAssert(t)

	srv := &Server{Keyspace: redox.NewKeyspace(nil), Password: "secret"}
	conn, recv := dial(t, srv)

	send(t, conn, "SET k v")
	assert.Eq("rejected before auth", recv(), "ERR Authentication required\n")

	send(t, conn, "AUTH wrong")
	assert.Eq("wrong password", recv(), "ERR Invalid password\n")

	send(t, conn, "AUTH secret")
	assert.Eq("auth ok", recv(), "OK\n")

	send(t, conn, "SET k v")
	assert.Eq("now accepted", recv(), "OK\n")
}

func TestAuthWithoutPasswordConfigured(t *testing.T) {
	assert := testutil.NewAssert(t)

	srv := &Server{Keyspace: redox.NewKeyspace(nil)}
	conn, recv := dial(t, srv)

	send(t, conn, "SET k v")
	assert.Eq("accepted without auth", recv(), "OK\n")

	send(t, conn, "AUTH anything")
	assert.Eq("auth not required", recv(), "ERR Authentication not required\n")
}

func TestEndToEndCommandDispatch(t *testing.T) {
	assert := testutil.NewAssert(t)

	srv := &Server{Keyspace: redox.NewKeyspace(nil)}
	conn, recv := dial(t, srv)

	send(t, conn, "SET greeting hello")
	assert.Eq("set", recv(), "OK\n")

	send(t, conn, "GET greeting")
	assert.Eq("get", recv(), "hello\n")

	send(t, conn, "GET missing")
	assert.Eq("get missing", recv(), "NIL\n")

	send(t, conn, "RPUSH list a")
	assert.Eq("rpush", recv(), "1\n")

	send(t, conn, "RPUSH list b")
	assert.Eq("rpush 2", recv(), "2\n")

	send(t, conn, "LRANGE list 0 -1")
	assert.Eq("lrange", recv(), "a b\n")

	send(t, conn, "BOGUS foo")
	assert.Eq("decode error surfaces as ERR", recv(), "ERR Unknown command: BOGUS\n")
}

func TestOnCommandCallbackFiresOncePerDecodedCommand(t *testing.T) {
	assert := testutil.NewAssert(t)

	var seen []protocol.Op
	srv := &Server{
		Keyspace:  redox.NewKeyspace(nil),
		OnCommand: func(op protocol.Op) { seen = append(seen, op) },
	}
	conn, recv := dial(t, srv)

	send(t, conn, "SET a 1")
	recv()
	send(t, conn, "GET a")
	recv()

	assert.Eq("two commands observed", len(seen), 2)
	assert.Eq("first", seen[0], protocol.OpSet)
	assert.Eq("second", seen[1], protocol.OpGet)
}

func TestOnAcceptCallbackFiresPerConnection(t *testing.T) {
	assert := testutil.NewAssert(t)

	accepts := 0
	srv := &Server{Keyspace: redox.NewKeyspace(nil), OnAccept: func() { accepts++ }}
	conn, recv := dial(t, srv)
	send(t, conn, "INFO")
	recv()

	conn2, err := net.Dial("tcp", srv.Addr().String())
	assert.Ok("second dial ok", err == nil)
	defer conn2.Close()
	send(t, conn2, "INFO")
	bufio.NewReader(conn2).ReadString('\n')

	assert.Ok("at least two accepts observed", accepts >= 2)
}
