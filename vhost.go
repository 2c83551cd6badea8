package merecat

import (
	"os"
	"strings"
)

// sharedDirs are top-level directories under the document root that a
// vhost request is still allowed to fall through to, even when the
// matched vhost directory doesn't itself carry the icon/cgi tree
// (spec.md §9 second Open Question; decision recorded in SPEC_FULL.md
// §6). Ported from libhttpd.c's is_vhost_shared.
var sharedDirs = []string{"icons/", "cgi-bin/"}

func isVhostShared(path string) bool {
	for _, d := range sharedDirs {
		if strings.HasPrefix(path, d) {
			return true
		}
	}
	return false
}

// resolveVhost determines the virtual host directory for conn and
// prepends it to expnFilename, mirroring libhttpd.c's vhost_map(). The
// hostname is taken from the request's absolute-form URI host, then
// the Host: header, then (if neither is present) left empty — there is
// no raw listening socket to introspect in this port, so a request
// lacking both is treated as hitting the root document tree directly.
func resolveVhost(conn *Connection) {
	hostname := conn.host.String()
	if hostname == "" {
		return
	}
	hostname = strings.ToLower(hostname)
	if colon := strings.IndexByte(hostname, ':'); colon >= 0 {
		hostname = hostname[:colon]
	}

	if conn.tildeMapped {
		return
	}

	conn.hostDir.SetString(hostname)

	expn := conn.expnFilename.String()
	if expn == "." {
		expn = ""
	}
	conn.expnFilename.SetString(hostname + "/" + expn)
}

// vhostDirExists reports whether the document root actually has a
// directory for conn's resolved vhost. The shared-directory fallback
// below does not consult it.
func vhostDirExists(conn *Connection) bool {
	if conn.hostDir.Len() == 0 {
		return false
	}
	info, err := os.Stat(conn.server.config.documentRoot + "/" + conn.hostDir.String())
	return err == nil && info.IsDir()
}

// resolveSharedFallback is consulted whenever symlink expansion leaves
// a non-empty trailer under vhosting: if the unresolved tail looks like
// one of the shared top-level directories and the vhost's own hostname
// was at least recognized, retry resolution against the document root
// directly instead of the (nonexistent, within the vhost dir) shared
// path. Mirrors the hc->hs->vhost && is_vhost_shared(pi) branch in
// really_start_request's symlink-expansion call site.
func resolveSharedFallback(conn *Connection, trailer string) (retry bool) {
	if !conn.server.config.vhost || conn.hostDir.Len() == 0 {
		return false
	}
	if !isVhostShared(trailer) {
		return false
	}

	conn.expnFilename.SetString(trailer)
	return true
}
