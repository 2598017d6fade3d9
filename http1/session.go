package http1

import (
	"bufio"
	"net"
)

// Session is the Go counterpart of HttpSession: one per accepted
// connection, it reads requests off the wire and writes responses back.
// Unlike HttpSession it isn't tied to a SocketStream; conn only needs to be
// a net.Conn, so the same Session works whether it's backed by
// nets.HookConn (the cooperative, hook-driven path Server uses) or by
// anything else that satisfies net.Conn.
type Session struct {
	conn net.Conn
	br   *bufio.Reader
}

// NewSession wraps conn for request/response framing.
func NewSession(conn net.Conn) *Session {
	return &Session{conn: conn, br: bufio.NewReader(conn)}
}

// ReadRequest blocks for the next request on the connection, the way
// HttpSession::recvRequest blocks on read() until a full request has
// arrived or the parser reports an error.
func (s *Session) ReadRequest() (*Request, error) {
	return readRequest(s.br)
}

// NewResponseWriter returns a ResponseWriter scoped to req's HTTP version;
// pass it to Respond, which flushes it, once the handler has finished
// writing the body.
func (s *Session) NewResponseWriter(req *Request) *ResponseWriter {
	version := req.Version
	if version == "" {
		version = "HTTP/1.1"
	}
	return newResponseWriter(s.conn, version)
}

// Respond flushes w to the connection, matching
// HttpSession::sendResponse's single writeFixSize call.
func (s *Session) Respond(w *ResponseWriter, closeConn bool) error {
	return w.flush(closeConn)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
