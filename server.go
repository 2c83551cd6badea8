package merecat

import (
	"context"
	"io"
	"net"

	"github.com/mwjian/merecat/accesslog"
	"github.com/mwjian/merecat/logger"
	"github.com/mwjian/merecat/logger/config"
	"github.com/mwjian/merecat/logger/level"
)

// Server is the process-wide state of spec.md §3: an immutable *Config
// built by cmd/merecatd, the bound listener(s), the MIME table (package
// level, shared by every Server — see mime.go), a bounded CGI pid
// tracker, and the diagnostic/access log sinks. Adapted from the
// teacher's Server (server.go), trading its route tree and
// fasthttp.Server for the single filesystem resolver and FSM-driven
// accept loop this protocol needs (server_run.go).
type Server struct {
	config *Config

	cgi *cgiTracker

	logConfig *config.Config
	access    *accesslog.Logger

	ctx context.Context

	listeners []net.Listener
}

// ServerOption configures a Server beyond what Config captures,
// mirroring the teacher's SetLoggerWriter/SetLogLevel builder pair.
type ServerOption func(*Server)

// WithLogWriter redirects structured diagnostic logging, e.g. to a
// log/syslog.Writer in production.
func WithLogWriter(w io.Writer) ServerOption {
	return func(s *Server) { s.logConfig.SetWriter(w) }
}

// WithAccessLogWriter points the Combined Log Format writer somewhere
// other than the diagnostic log stream (its default).
func WithAccessLogWriter(w io.Writer) ServerOption {
	return func(s *Server) { s.access = accesslog.New(w, s.config.noLog) }
}

// New builds a Server from cfg. The CGI tracker is sized from
// cfg.cgiLimit, spec.md §3's "fixed-length tracker of live CGI process
// identifiers".
func New(cfg *Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		cgi:       newCGITracker(cfg.cgiLimit),
		logConfig: config.NewConfig(),
		ctx:       context.Background(),
	}
	s.logConfig.SetLevel(cfg.logLevel)
	s.access = accesslog.New(s.logConfig.Writer(), cfg.noLog)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Config exposes the immutable configuration, for cmd/merecatd and
// tests asserting on what New produced.
func (s *Server) Config() *Config { return s.config }

func (s *Server) log() *logger.Logger {
	return logger.New().SetConfig(s.logConfig)
}

// LogLevel reports the configured diagnostic log level.
func (s *Server) LogLevel() level.Level { return s.logConfig.Level() }

// SetLogLevel adjusts the diagnostic log level after New, the way the
// teacher's Server.SetLogLevel does.
func (s *Server) SetLogLevel(lvl level.Level) *Server {
	s.logConfig.SetLevel(lvl)
	return s
}

// CGIActive reports how many CGI children are currently tracked, for
// the diagnostic log line spec.md §4.11 calls for.
func (s *Server) CGIActive() int { return s.cgi.count() }
