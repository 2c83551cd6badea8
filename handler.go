package merecat

// IGate is a before-dispatch check: access control, authentication,
// referer policy. Returning a non-nil disposition short-circuits the
// pipeline (set.Run stops calling further gates and the main handler).
type IGate interface {
	Run(conn *Connection) error
	Name() string
}

// IDispatch is the main handler of a pipeline: it decides and writes the
// response disposition (static file, redirect, index, CGI, error).
type IDispatch interface {
	Run(conn *Connection) error
	Name() string
}

// IAfter runs once the response has been decided, win or lose (access
// logging is the only current use).
type IAfter interface {
	Run(conn *Connection, err error) error
	Name() string
}

// namedFunc adapts a plain function to IGate/IDispatch for the simple,
// stateless gates that don't need their own type.
type namedFunc struct {
	name string
	fn   func(conn *Connection) error
}

func (n *namedFunc) Run(conn *Connection) error { return n.fn(conn) }
func (n *namedFunc) Name() string               { return n.name }

func gateFunc(name string, fn func(conn *Connection) error) IGate {
	return &namedFunc{name: name, fn: fn}
}
