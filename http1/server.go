package http1

import (
	"net"
	"strings"

	"github.com/loomrt/loom/hook"
	"github.com/loomrt/loom/log"
	"github.com/loomrt/loom/nets"
	"github.com/loomrt/loom/process"
)

// Handler processes one request on a session, writing its response into w.
// It does not return an error: like HttpServer::handleClient, a handler
// that wants to report a failure writes a non-2xx status to w itself.
type Handler func(w *ResponseWriter, r *Request)

// Server accepts connections through the hook layer and runs Handler over
// each one's requests, the Go counterpart of HttpServer (which itself
// layers over TcpServer the same way nets.TcpNetWorker layers over the
// raw socket calls).
type Server struct {
	Handler Handler

	// KeepAlive mirrors HttpServer's m_isKeepalive: when false every
	// connection is closed after its first response regardless of what
	// the request asked for.
	KeepAlive bool

	lfd int
	log *log.Logger
}

// NewServer builds a Server that dispatches every request to handler.
func NewServer(handler Handler) *Server {
	return &Server{Handler: handler, KeepAlive: true, log: log.NewLogger("http1", log.INFO, nil)}
}

// Listen binds addr (host:port) and starts accepting connections on the
// core, the hook-based counterpart of HttpServer::bind followed by
// TcpServer::start's accept loop: Accept blocks the accepting fiber, never
// a goroutine, so every connection this server serves exercises the same
// suspend/wake contract as nets' TCP worker.
func (s *Server) Listen(addr string) error {
	addr = strings.TrimPrefix(addr, "http://")
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}
	lfd, err := nets.ListenTCPSocket(tcpAddr)
	if err != nil {
		return err
	}
	s.lfd = lfd

	process.CoSpawn(func() {
		for {
			cfd, sa, err := hook.Accept(lfd)
			if err != nil {
				s.log.Log(log.WARN, "http1 accept failed: %v", err)
				return
			}
			conn := nets.NewHookConn(cfd, tcpAddr, nets.TCPAddrFromSockaddr(sa))
			process.CoSpawn(func() { s.serve(conn) })
		}
	})
	return nil
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return hook.Close(s.lfd)
}

// serve is the per-connection loop, mirroring HttpServer::handleClient's
// do/while(m_isKeepalive) around recvRequest/dispatch/sendResponse.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	session := NewSession(conn)
	for {
		req, err := session.ReadRequest()
		if err != nil {
			return
		}
		w := session.NewResponseWriter(req)
		s.Handler(w, req)
		closeConn := req.Close || !s.KeepAlive
		if err := session.Respond(w, closeConn); err != nil {
			return
		}
		if closeConn {
			return
		}
	}
}
