package merecat

import (
	"time"

	"github.com/mwjian/merecat/logger/level"
)

// indexNames is probed in order against a directory request before
// falling back to on-the-fly indexing or a 403. Ported from
// libhttpd.c's INDEX_NAMES.
var indexNames = []string{"index.html", "index.htm"}

// Config is the server's process-wide, immutable-after-New
// configuration, built from cmd/merecatd's flags the way the teacher's
// logger/config.Config is built: a plain struct mutated only through
// setters until it's handed to New, then treated as read-only.
type Config struct {
	documentRoot string
	hostname     string
	port         int

	cgiPattern   string
	cgiLimit     int
	cgiTimeLimit time.Duration

	vhost          bool
	globalPasswd   bool
	noSymlinkCheck bool
	noEmptyReferer bool
	listDotfiles   bool
	noLog          bool

	defaultCharset string
	maxAge         time.Duration

	urlPattern  string
	localHost   string
	indexNames  []string

	logLevel level.Level
}

// Option configures a Config. Mirrors the teacher's With*/Set* builder
// style, collapsed into functional options since Config has no
// existing users to stay compatible with.
type Option func(*Config)

func WithHostname(h string) Option       { return func(c *Config) { c.hostname = h } }
func WithPort(p int) Option              { return func(c *Config) { c.port = p } }
func WithCGIPattern(p string) Option     { return func(c *Config) { c.cgiPattern = p } }
func WithCGILimit(n int) Option          { return func(c *Config) { c.cgiLimit = n } }
func WithVhost(on bool) Option           { return func(c *Config) { c.vhost = on } }
func WithGlobalPasswd(on bool) Option    { return func(c *Config) { c.globalPasswd = on } }
func WithNoSymlinkCheck(on bool) Option  { return func(c *Config) { c.noSymlinkCheck = on } }
func WithNoEmptyReferer(on bool) Option  { return func(c *Config) { c.noEmptyReferer = on } }
func WithListDotfiles(on bool) Option    { return func(c *Config) { c.listDotfiles = on } }
func WithNoLog(on bool) Option           { return func(c *Config) { c.noLog = on } }
func WithDefaultCharset(cs string) Option { return func(c *Config) { c.defaultCharset = cs } }
func WithMaxAge(d time.Duration) Option  { return func(c *Config) { c.maxAge = d } }
func WithURLPattern(p string) Option     { return func(c *Config) { c.urlPattern = p } }
func WithLocalHost(h string) Option      { return func(c *Config) { c.localHost = h } }
func WithLogLevel(l level.Level) Option  { return func(c *Config) { c.logLevel = l } }

// NewConfig builds a Config for documentRoot with libhttpd-compatible
// defaults, then applies opts in order.
func NewConfig(documentRoot string, opts ...Option) *Config {
	c := &Config{
		documentRoot:   documentRoot,
		cgiLimit:       8,
		cgiTimeLimit:   30 * time.Second,
		defaultCharset: defaultCharset,
		indexNames:     indexNames,
		logLevel:       level.InfoLevel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}
