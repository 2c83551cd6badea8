package merecat

// pipeline is the before/main/after chain run for every request:
// optional gates, then the dispatch handler that picks one of the
// dispositions in spec.md §4.7, then the after hooks. The server builds
// it with no gates (the access, auth and referer checks run inside the
// resolver) and with access logging as its after hook. Adapted from the teacher's HandlerSet/Router
// pair (top_handler.go, gorouter.go), which supported arbitrary
// per-route registration; this server has exactly one route (the
// filesystem resolver), so the registration machinery is gone but the
// before/main/after running contract survives unchanged.
type pipeline struct {
	before []IGate
	main   IDispatch
	after  []IAfter
}

func newPipeline(main IDispatch, before ...IGate) *pipeline {
	return &pipeline{main: main, before: before}
}

func (p *pipeline) After(h ...IAfter) *pipeline {
	p.after = append(p.after, h...)
	return p
}

// Run executes the gates in order, stopping at the first one that either
// errors or marks the connection aborted, then the main dispatcher
// unless already aborted, then every after-handler regardless of the
// outcome so access logging always sees the final disposition.
func (p *pipeline) Run(conn *Connection) error {
	var err error

	for _, g := range p.before {
		conn.debugHandler(g.Name())
		if err = g.Run(conn); err != nil || conn.aborted {
			break
		}
	}

	if err == nil && !conn.aborted {
		conn.debugHandler(p.main.Name())
		err = p.main.Run(conn)
	}

	for _, a := range p.after {
		if aerr := a.Run(conn, err); aerr != nil && err == nil {
			err = aerr
		}
	}

	return err
}
