package http1

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomrt/loom/process"
)

// startTestServer spins up a Server on the process-wide hook core (the same
// one production CoSpawn'd code shares) and returns its address. process's
// core is a package-level singleton, so every test in this file binds a
// distinct port rather than stopping/restarting it between runs.
func startTestServer(t *testing.T, port int, handler Handler) string {
	t.Helper()
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s := NewServer(handler)
	require.NoError(t, s.Listen(addr))
	t.Cleanup(func() { s.Close() })
	time.Sleep(20 * time.Millisecond) // let the accept fiber reach hook.Accept
	return addr
}

func TestServerRoundTripsASimpleGetRequest(t *testing.T) {
	addr := startTestServer(t, 18881, func(w *ResponseWriter, r *Request) {
		require.Equal(t, "GET", r.Method)
		require.Equal(t, "/hello", r.Path)
		w.Header()["Content-Type"] = "text/plain"
		w.Write([]byte("hello myserver"))
	})

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: test\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "200")

	headers := map[string]string{}
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = line[:len(line)-2] // strip CRLF
		if line == "" {
			break
		}
		var k, v string
		n, _ := fmt.Sscanf(line, "%s %s", &k, &v)
		_ = n
		headers[k] = v
	}
	require.Equal(t, "14", headers["Content-Length:"])

	body := make([]byte, 14)
	_, err = br.Read(body)
	require.NoError(t, err)
	require.Equal(t, "hello myserver", string(body))
}

func TestServerClosesConnectionWhenRequestAsksTo(t *testing.T) {
	addr := startTestServer(t, 18882, func(w *ResponseWriter, r *Request) {
		w.Write([]byte("bye"))
	})

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	_, err = br.ReadString('\n') // status line
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}

	// server should have closed its side after one response; a further
	// read returns EOF rather than blocking forever.
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, err = conn.Read(buf)
	require.Error(t, err)
}

func TestServerKeepsConnectionAliveForHTTP11WithoutClose(t *testing.T) {
	process.StartCore(0) // no-op if already started by an earlier test in this file
	addr := startTestServer(t, 18883, func(w *ResponseWriter, r *Request) {
		fmt.Fprintf(w, "req=%s", r.Path)
	})

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	br := bufio.NewReader(conn)

	for i := 0; i < 2; i++ {
		_, err = conn.Write([]byte("GET /again HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		statusLine, err := br.ReadString('\n')
		require.NoError(t, err)
		require.Contains(t, statusLine, "200")
		for {
			line, err := br.ReadString('\n')
			require.NoError(t, err)
			if line == "\r\n" {
				break
			}
		}
		body := make([]byte, len("req=/again"))
		_, err = br.Read(body)
		require.NoError(t, err)
		require.Equal(t, "req=/again", string(body))
	}
}
