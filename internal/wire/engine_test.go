package wire

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// fakeServer reads lines off one end of a net.Pipe and lets the test drive
// scripted responses, mirroring how the corpus's own minimal IMAP client
// (and the imapd test server) exercise framing against a real connection
// rather than a mock.
type fakeServer struct {
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, r: bufio.NewReader(conn)}
}

func (f *fakeServer) readLine(t *testing.T) string {
	t.Helper()
	line, err := f.r.ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	return line
}

func (f *fakeServer) send(t *testing.T, s string) {
	t.Helper()
	if _, err := f.conn.Write([]byte(s)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func newEnginePair(t *testing.T) (*Engine, *fakeServer) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	tr := NewTransport(client, 5*time.Second, false, "localhost")
	return NewEngine(tr, "A"), newFakeServer(server)
}

func TestEngine_SimpleOK(t *testing.T) {
	eng, srv := newEnginePair(t)

	done := make(chan *Response, 1)
	errc := make(chan error, 1)
	go func() {
		resp, err := eng.Do("NOOP")
		if err != nil {
			errc <- err
			return
		}
		done <- resp
	}()

	line := srv.readLine(t)
	if line != "A0001 NOOP\r\n" {
		t.Fatalf("server saw %q", line)
	}
	srv.send(t, "A0001 OK NOOP completed\r\n")

	select {
	case err := <-errc:
		t.Fatalf("Do returned error: %v", err)
	case resp := <-done:
		if resp.Status != StatusOK {
			t.Errorf("status = %v, want OK", resp.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestEngine_UntaggedLinesAttributedToCommand(t *testing.T) {
	eng, srv := newEnginePair(t)

	done := make(chan *Response, 1)
	go func() {
		resp, _ := eng.Do("SELECT", `"INBOX"`)
		done <- resp
	}()

	_ = srv.readLine(t)
	srv.send(t, "* 5 EXISTS\r\n")
	srv.send(t, "* 0 RECENT\r\n")
	srv.send(t, "* OK [UIDVALIDITY 123456] UIDs valid\r\n")
	srv.send(t, "A0001 OK [READ-WRITE] SELECT completed\r\n")

	resp := <-done
	if len(resp.Untagged) != 3 {
		t.Fatalf("got %d untagged lines, want 3", len(resp.Untagged))
	}
	if resp.Untagged[0].Tokens[0].Kind != KindNumber || resp.Untagged[0].Tokens[0].Num != 5 {
		t.Errorf("unexpected first untagged token: %v", resp.Untagged[0].Tokens[0])
	}
}

func TestEngine_NOStatusBecomesRuntimeError(t *testing.T) {
	eng, srv := newEnginePair(t)

	done := make(chan *Response, 1)
	go func() {
		resp, _ := eng.Do("SELECT", `"Nonexistent"`)
		done <- resp
	}()

	_ = srv.readLine(t)
	srv.send(t, "A0001 NO [NONEXISTENT] Mailbox doesn't exist\r\n")

	resp := <-done
	if resp.Status != StatusNO {
		t.Fatalf("status = %v, want NO", resp.Status)
	}
	_, err := resp.Data()
	if err == nil {
		t.Fatal("Data() should error on NO status")
	}
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("err type = %T, want *RuntimeError", err)
	}
}

func TestEngine_LiteralArgumentWaitsForContinuation(t *testing.T) {
	eng, srv := newEnginePair(t)

	done := make(chan *Response, 1)
	go func() {
		resp, _ := eng.Do("LOGIN", Literal([]byte("user@example.com")), Literal([]byte("s3cr3t")))
		done <- resp
	}()

	line := srv.readLine(t)
	if line != "A0001 LOGIN {16}\r\n" {
		t.Fatalf("server saw %q", line)
	}
	srv.send(t, "+ go ahead\r\n")

	// The literal payload has no embedded CRLF, so it arrives glued to the
	// next literal marker on the same line from readLine's perspective.
	rest := srv.readLine(t)
	if rest != "user@example.com {6}\r\n" {
		t.Fatalf("server saw %q", rest)
	}
	srv.send(t, "+ go ahead\r\n")

	tail := srv.readLine(t)
	if tail != "s3cr3t\r\n" {
		t.Fatalf("server saw tail %q", tail)
	}

	srv.send(t, "A0001 OK LOGIN completed\r\n")

	resp := <-done
	if resp.Status != StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
}

func TestEngine_IdleKeepaliveCycle(t *testing.T) {
	eng, srv := newEnginePair(t)

	startErr := make(chan error, 1)
	go func() { startErr <- eng.StartIdle() }()
	line0 := srv.readLine(t)
	if line0 != "A0001 IDLE\r\n" {
		t.Fatalf("server saw %q", line0)
	}
	srv.send(t, "+ idling\r\n")
	if err := <-startErr; err != nil {
		t.Fatalf("StartIdle: %v", err)
	}

	idleLineErr := make(chan error, 1)
	var line *Line
	go func() {
		var err error
		line, err = eng.ReadIdleLine(2 * time.Second)
		idleLineErr <- err
	}()
	srv.send(t, "* 7 EXISTS\r\n")
	if err := <-idleLineErr; err != nil {
		t.Fatalf("ReadIdleLine: %v", err)
	}
	if line.Kind != LineUntagged || line.Tokens[0].Num != 7 {
		t.Fatalf("got %v", line)
	}

	done := make(chan *Response, 1)
	go func() {
		resp, _ := eng.StopIdle()
		done <- resp
	}()
	doneLine := srv.readLine(t)
	if doneLine != "DONE\r\n" {
		t.Fatalf("server saw %q", doneLine)
	}
	srv.send(t, "A0001 OK IDLE terminated\r\n")
	resp := <-done
	if resp.Status != StatusOK {
		t.Fatalf("status = %v", resp.Status)
	}
}

func TestEngine_AuthExchange(t *testing.T) {
	eng, srv := newEnginePair(t)

	var seenChallenges [][]byte
	done := make(chan *Response, 1)
	go func() {
		resp, _ := eng.AuthExchange("PLAIN", func(challenge []byte) ([]byte, error) {
			seenChallenges = append(seenChallenges, challenge)
			return []byte("\x00user\x00pass"), nil
		})
		done <- resp
	}()

	line := srv.readLine(t)
	if line != "A0001 AUTHENTICATE PLAIN\r\n" {
		t.Fatalf("server saw %q", line)
	}
	srv.send(t, "+ \r\n")

	resp := srv.readLine(t)
	if resp != "AHVzZXIAcGFzcw==\r\n" {
		t.Fatalf("server saw response %q", resp)
	}
	srv.send(t, "A0001 OK AUTHENTICATE completed\r\n")

	got := <-done
	if got.Status != StatusOK {
		t.Fatalf("status = %v, want OK", got.Status)
	}
	if len(seenChallenges) != 1 || len(seenChallenges[0]) != 0 {
		t.Fatalf("seenChallenges = %v", seenChallenges)
	}
}
