package merecat

import "strings"

// checkReferer enforces the referer policy spec.md §4.7 step 9
// describes: requests whose filename matches url_pattern and whose
// referer doesn't match local_pattern are rejected. Ported from
// libhttpd.c's check_referer/really_check_referer.
func checkReferer(conn *Connection) error {
	if conn.server.config.urlPattern == "" {
		return nil
	}

	if !refererOK(conn) {
		conn.logger.Infof("non-local referer %q for %q", conn.referer.String(), conn.decodedURL.String())
		return sendError(conn, 403, conn.decodedURL.String())
	}

	return nil
}

func refererOK(conn *Connection) bool {
	referer := conn.referer.String()

	schemeSep := strings.Index(referer, "//")
	if referer == "" || schemeSep < 0 {
		if conn.server.config.noEmptyReferer && matchWildcard(conn.server.config.urlPattern, conn.origFilename.String()) {
			return false
		}
		return true
	}

	rest := referer[schemeSep+2:]
	end := strings.IndexAny(rest, "/:")
	if end < 0 {
		end = len(rest)
	}
	refHost := strings.ToLower(rest[:end])

	localPattern := conn.server.config.localHost
	if localPattern == "" {
		localPattern = conn.hostDir.String()
	}
	if localPattern == "" {
		localPattern = conn.server.config.hostname
	}

	if !matchWildcard(localPattern, refHost) && matchWildcard(conn.server.config.urlPattern, conn.origFilename.String()) {
		return false
	}
	return true
}
