package merecat

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mwjian/merecat/accesslog"
)

// keepAliveIdleTimeout bounds how long a connection may sit between
// requests before the "external idle timer" spec.md §5 calls for
// closes it; lingerDrainTimeout bounds the post-response drain
// should_linger asks for after a rejected POST/PUT.
const (
	keepAliveIdleTimeout = 30 * time.Second
	lingerDrainTimeout   = 2 * time.Second
)

// Run listens on addr and serves until ctx is cancelled or a shutdown
// signal arrives. One listener, one process — spec.md's server has no
// notion of multiple bound sockets beyond what vhosting shares on a
// single port.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve drives an already-bound listener. Adapted from the teacher's
// Server.Run (server_run.go): an errgroup pairs the accept loop against
// a signal/ctx watcher that closes the listener to unwind both, the
// same graceful-shutdown shape, now over a raw net.Listener instead of
// fasthttp.Server.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.listeners = append(s.listeners, ln)

	errGroup, errCtx := errgroup.WithContext(ctx)
	s.ctx = errCtx

	errGroup.Go(func() error {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
		defer signal.Stop(ch)

		select {
		case <-ctx.Done():
			return errors.Wrap(ln.Close(), context.Canceled.Error())
		case sig := <-ch:
			return errors.Wrap(ln.Close(), "server shutdown: "+sig.String())
		}
	})

	errGroup.Go(func() error {
		return s.acceptLoop(ln)
	})

	return errGroup.Wait()
}

// acceptLoop accepts connections until the listener closes, running
// each on its own goroutine and waiting for all of them to finish
// before returning — so Serve's errgroup only unwinds once every
// in-flight request has had a chance to send its response.
func (s *Server) acceptLoop(ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(c)
		}()
	}
}

// handleConnection runs C4-C7's read/parse/resolve cycle repeatedly
// over one accepted socket, matching libhttpd's single-process
// event-loop reuse of a Connection across keep-alive requests — here,
// one goroutine per connection takes the place of the select() loop.
func (s *Server) handleConnection(c net.Conn) {
	defer c.Close()

	conn := NewConnection(s, c)
	conn.Reset()

	pl := newPipeline(resolverDispatch{}).After(accessLogHook{})

	for {
		c.SetReadDeadline(time.Now().Add(keepAliveIdleTimeout))

		raw, status, err := readRequestHeader(conn)
		if err != nil || status == grNoRequest {
			return
		}

		c.SetReadDeadline(time.Time{})

		if status == grBadRequest {
			sendError(conn, 400, string(raw))
			return
		}

		if parseStatus := parseRequest(conn, raw); parseStatus != 0 {
			sendError(conn, parseStatus, string(raw))
			return
		}

		if err := pl.Run(conn); err != nil {
			s.log().Error(err).Errorf("request failed for %s", conn.decodedURL.String())
			return
		}

		if !conn.doKeepAlive || conn.aborted {
			if conn.shouldLinger {
				lingerDrain(c)
			}
			return
		}

		conn.Reset()
	}
}

// readRequestHeader implements C4's byte-at-a-time recognition over
// the connection's buffered reader: it peeks progressively larger
// windows (never consuming bytes the FSM hasn't yet classified as part
// of the header block) until the FSM reaches a terminal verdict, then
// discards exactly the header bytes, leaving any request body the
// client already sent available for conn.rw's later reads (the CGI
// input interposer's first use of them).
func readRequestHeader(conn *Connection) (raw []byte, status requestStatus, err error) {
	fsm := &requestFSM{}

	// Each pass scans everything already buffered; only when that gives
	// no verdict does Peek block, and then for just one more byte.
	for size := 1; size <= maxRequestHeaderSize; size++ {
		if n := conn.rw.Reader.Buffered(); n > size {
			size = n
		}
		buf, peekErr := conn.rw.Peek(size)

		st := fsm.Scan(buf)
		if st != grNoRequest {
			n := fsm.checkedIdx
			conn.rw.Discard(n)
			return buf[:n], st, nil
		}

		if peekErr != nil {
			if len(buf) == 0 {
				return nil, grNoRequest, peekErr
			}
			conn.rw.Discard(len(buf))
			return buf, grBadRequest, nil
		}
	}

	return nil, grBadRequest, nil
}

// lingerDrain performs the bounded post-response drain spec.md §5
// describes for should_linger: read and discard whatever the client
// sends for a short window, so an aborted POST/PUT body doesn't land
// on the wire as garbage for the next request (there isn't one here —
// the connection closes right after) or reset the socket under load.
func lingerDrain(c net.Conn) {
	c.SetReadDeadline(time.Now().Add(lingerDrainTimeout))
	io.CopyN(io.Discard, c, 1<<20)
}

// accessLogHook is the pipeline's IAfter: it runs after every
// disposition, successful or not, and writes one Combined Log Format
// line via the server's accesslog.Logger.
type accessLogHook struct{}

func (accessLogHook) Name() string { return "access-log" }

func (accessLogHook) Run(conn *Connection, _ error) error {
	proto := "HTTP/1.0"
	if conn.oneOne {
		proto = "HTTP/1.1"
	}

	url := conn.encodedURL.String()
	if conn.server.config.vhost && conn.hostDir.Len() > 0 {
		url = conn.hostDir.String() + url
	}

	entry := accesslog.Entry{
		RemoteAddr: conn.remoteAddr,
		RemoteUser: conn.remoteUser.String(),
		Method:     string(conn.method),
		URL:        url,
		Protocol:   proto,
		Status:     conn.status,
		BytesSent:  conn.bytesSent,
		Referer:    conn.referer.String(),
		UserAgent:  conn.userAgent.String(),
	}

	if err := conn.server.access.Write(entry); err != nil {
		conn.logger.Warnf("access log write failed: %s", err.Error())
	}

	return nil
}
