package merecat

import (
	"os"
	"strings"
)

// resolverDispatch is the C7 request resolver: the IDispatch the
// pipeline's main stage runs once request parsing has succeeded. Its
// Run method follows the thirteen steps of spec.md §4.7 in order,
// ported from libhttpd.c's really_start_request().
type resolverDispatch struct{}

func (resolverDispatch) Name() string { return "resolve" }

func (resolverDispatch) Run(conn *Connection) error {
	return resolveAndDispatch(conn)
}

func resolveAndDispatch(conn *Connection) error {
	if conn.server.config.vhost {
		resolveVhost(conn)
	}

	if err := expandAndCheck(conn); err != nil || conn.aborted {
		return err
	}

	fi := conn.fileInfo

	if fi.IsDir() {
		return resolveDirectory(conn)
	}

	if !fi.Mode().IsRegular() {
		return sendError(conn, 404, conn.decodedURL.String())
	}

	return finishResolve(conn)
}

// expandAndCheck runs symlink expansion (C3), stats the result, and
// enforces the world-readable check of step 2-3. It retries once
// through the vhost shared-directory fallback (SPEC_FULL.md §6) if
// expansion leaves a trailer that looks like icons/ or cgi-bin/.
func expandAndCheck(conn *Connection) error {
	checked, trailer, err := expandSymlinks(conn.expnFilename.String(), conn.server.config.noSymlinkCheck, conn.tildeMapped)
	if err != nil {
		return sendError(conn, 500, conn.decodedURL.String())
	}

	if trailer != "" && resolveSharedFallback(conn, trailer) {
		checked, trailer, err = expandSymlinks(conn.expnFilename.String(), conn.server.config.noSymlinkCheck, conn.tildeMapped)
		if err != nil {
			return sendError(conn, 500, conn.decodedURL.String())
		}
	}

	conn.expnFilename.SetString(checked)
	conn.pathInfo.SetString(trailer)

	fullPath := conn.server.config.documentRoot + "/" + checked
	fi, statErr := os.Stat(fullPath)
	if statErr != nil {
		return sendError(conn, 500, conn.decodedURL.String())
	}
	conn.fileInfo = fi

	if fi.Mode().Perm()&0o005 == 0 {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	return nil
}

// resolveDirectory implements steps 3-6: pathinfo on a directory is a
// dead end, missing trailing slash gets a redirect, an index file
// takes priority, then (if indexing is enabled and the access checks
// pass) a generated listing.
func resolveDirectory(conn *Connection) error {
	if conn.pathInfo.Len() > 0 {
		return sendError(conn, 404, conn.decodedURL.String())
	}

	orig := conn.origFilename.String()
	if orig != "" && orig != "." && !strings.HasSuffix(orig, "/") {
		return sendDirRedirect(conn)
	}

	if hit, path := probeIndexFile(conn); hit {
		return serveIndexFile(conn, path)
	}

	if conn.fileInfo.Mode().Perm()&0o004 == 0 {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	if err := runAccessGate(conn); err != nil || conn.aborted {
		return err
	}
	if err := runAuthGate(conn); err != nil || conn.aborted {
		return err
	}
	if err := checkReferer(conn); err != nil || conn.aborted {
		return err
	}

	dirPath := conn.server.config.documentRoot + "/" + conn.expnFilename.String()
	urlPath := "/" + conn.origFilename.String()
	if conn.origFilename.String() == "." {
		urlPath = "/"
	}
	return renderIndex(conn, dirPath, urlPath)
}

func probeIndexFile(conn *Connection) (bool, string) {
	expn := conn.expnFilename.String()
	base := expn
	if base == "." {
		base = ""
	} else if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	for _, name := range conn.server.config.indexNames {
		candidate := base + name
		if _, err := os.Stat(conn.server.config.documentRoot + "/" + candidate); err == nil {
			return true, candidate
		}
	}
	return false, ""
}

// serveIndexFile re-runs symlink expansion against the matched index
// name (step 5: "re-run symlink expansion; remaining trailer is an
// error"), then continues the normal file path.
func serveIndexFile(conn *Connection, indexPath string) error {
	checked, trailer, err := expandSymlinks(indexPath, conn.server.config.noSymlinkCheck, conn.tildeMapped)
	if err != nil || trailer != "" {
		return sendError(conn, 500, conn.decodedURL.String())
	}

	conn.expnFilename.SetString(checked)

	fi, statErr := os.Stat(conn.server.config.documentRoot + "/" + checked)
	if statErr != nil {
		return sendError(conn, 500, conn.decodedURL.String())
	}
	conn.fileInfo = fi

	if fi.Mode().Perm()&0o005 == 0 {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	return finishResolve(conn)
}

func sendDirRedirect(conn *Connection) error {
	loc := "/" + conn.origFilename.String() + "/"
	if q := conn.query.String(); q != "" {
		loc += "?" + q
	}

	writeStatusLine(conn, 302)
	writeCommonHeaders(conn, 302)
	writeHeader(conn, "Location", loc)
	writeHeader(conn, "Content-Length", "0")
	finishHeaders(conn)
	return conn.rw.Flush()
}

// finishResolve implements steps 8-13: access/auth on the containing
// directory, referer check, OPTIONS synthesis, CGI dispatch, the
// PATH_INFO-on-non-CGI rejection, then the static-file response path.
func finishResolve(conn *Connection) error {
	if err := runAccessGate(conn); err != nil || conn.aborted {
		return err
	}
	if err := runAuthGate(conn); err != nil || conn.aborted {
		return err
	}
	if err := checkReferer(conn); err != nil || conn.aborted {
		return err
	}

	if conn.method == MethodOptions {
		return sendOptionsResponse(conn)
	}

	if isCGI(conn, conn.expnFilename.String()) {
		if conn.fileInfo.Mode().Perm()&0o001 != 0 {
			return runCGI(conn)
		}
		return sendError(conn, 403, conn.decodedURL.String())
	}

	if conn.pathInfo.Len() > 0 {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	return finishStaticFile(conn)
}

func sendOptionsResponse(conn *Connection) error {
	allow := "GET,HEAD,OPTIONS"
	if isCGI(conn, conn.expnFilename.String()) {
		allow = "POST," + allow
	}

	writeStatusLine(conn, 200)
	writeCommonHeaders(conn, 200)
	writeHeader(conn, "Allow", allow)
	writeHeader(conn, "Content-Length", "0")
	writeHeader(conn, "Content-Type", "text/html")
	finishHeaders(conn)
	return conn.rw.Flush()
}

func finishStaticFile(conn *Connection) error {
	fi := conn.fileInfo

	if conn.gotRange && (conn.lastByteIndex == -1 || conn.lastByteIndex >= fi.Size()) {
		conn.lastByteIndex = fi.Size() - 1
	}

	mtype, encodings := figureMime(conn.expnFilename.String(), conn.server.config.defaultCharset)
	conn.mimeType = mtype
	conn.encodings = encodings

	// The If-Modified-Since/304 decision, range clamping, compression,
	// and body streaming all live in response.go's serveStaticFile,
	// matching step 13's HEAD/304/mmap-and-send branching.
	path := conn.server.config.documentRoot + "/" + conn.expnFilename.String()
	return serveStaticFile(conn, path, fi)
}
