package httpd

import (
	"errors"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/harveysanders/picodisplay/textboard/control"
	"github.com/soypat/lneto/http/httpraw"
	"github.com/soypat/lneto/tcp"
)

// Handler answers a routed request.
type Handler interface {
	Serve(method, path string, body []byte) control.Response
}

// Listener opens a passive TCP connection on a local port. It is implemented
// by *xnet.StackAsync.
type Listener interface {
	ListenTCP(conn *tcp.Conn, port uint16) error
}

// Server answers HTTP requests one connection at a time.
type Server struct {
	Port    uint16
	Handler Handler
	Logger  *slog.Logger
	// BufSize bounds the size of a request, headers included, and sizes the
	// TCP buffers.
	BufSize int
	// Timeout bounds reading a request and writing its response.
	Timeout time.Duration
	// OnRequest, if set, is called after each response is written.
	OnRequest func(method, path string, status int)

	reqHdr  httpraw.Header
	respHdr httpraw.Header
	in      []byte
	out     []byte
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return s.Logger
}

func (s *Server) bufSize() int {
	if s.BufSize < 256 {
		return 1024
	}
	return s.BufSize
}

// ListenAndServe accepts connections on s.Port forever. It only returns if
// the TCP connection cannot be configured.
func (s *Server) ListenAndServe(ln Listener) error {
	const pollTime = 5 * time.Millisecond
	log := s.logger()
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}

	var conn tcp.Conn
	err := conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, s.bufSize()),
		TxBuf:             make([]byte, s.bufSize()),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	log.Info("httpd:listening", slog.Uint64("port", uint64(s.Port)))
	for {
		err = ln.ListenTCP(&conn, s.Port)
		if err != nil {
			log.Error("httpd:listen-failed", slog.String("err", err.Error()))
			s.closeConn(&conn, "listen failed")
			time.Sleep(time.Second)
			continue
		}

		// Wait for a client to complete the handshake.
		for st := conn.State(); st == tcp.StateListen || st == tcp.StateSynRcvd; st = conn.State() {
			runtime.Gosched()
			time.Sleep(pollTime)
		}
		if st := conn.State(); st != tcp.StateEstablished && st != tcp.StateCloseWait {
			s.closeConn(&conn, "handshake failed: "+st.String())
			continue
		}

		log.Info("httpd:accept", slog.String("state", conn.State().String()))
		conn.SetDeadline(time.Now().Add(s.Timeout))
		if err := s.ServeConn(&conn); err != nil {
			log.Error("httpd:serve", slog.String("err", err.Error()))
		}
		s.closeConn(&conn, "response sent")
	}
}

// closeConn closes conn and waits for the close to finish so the connection
// can be reused for the next listen.
func (s *Server) closeConn(conn *tcp.Conn, reason string) {
	s.logger().Debug("httpd:closing", slog.String("reason", reason))
	conn.Close()
	for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	conn.Abort()
}

// ServeConn reads one request from rw, dispatches it to the handler and
// writes the response.
func (s *Server) ServeConn(rw io.ReadWriter) error {
	if s.in == nil {
		s.in = make([]byte, 0, s.bufSize())
		s.out = make([]byte, 0, 512)
	}
	req, err := ReadRequest(rw, &s.reqHdr, s.in)
	switch {
	case err == nil:
	case errors.Is(err, ErrTooLarge):
		s.respond(rw, req.Method, req.Path, errorResponse(statusRequestTooLarge))
		return err
	case errors.Is(err, ErrIncomplete):
		return err
	default:
		s.respond(rw, req.Method, req.Path, errorResponse(control.StatusBadRequest))
		return err
	}

	resp := s.Handler.Serve(req.Method, req.Path, req.Body)
	return s.respond(rw, req.Method, req.Path, resp)
}

func errorResponse(status int) control.Response {
	return control.Response{Status: status, ContentType: "text/plain", Body: []byte("error")}
}

func (s *Server) respond(w io.Writer, method, path string, resp control.Response) error {
	var err error
	s.out, err = AppendResponse(s.out[:0], &s.respHdr, resp)
	if err != nil {
		return errors.New("encode response:" + err.Error())
	}
	_, err = w.Write(s.out)
	if err != nil {
		return errors.New("write:" + err.Error())
	}
	s.logger().Info("httpd:response",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.Status),
	)
	if s.OnRequest != nil {
		s.OnRequest(method, path, resp.Status)
	}
	return nil
}
