package merecat

import (
	"bufio"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const htpasswdFilename = ".htpasswd"

// runAuthGate is the C6 before-gate: walks up from the request's
// containing directory looking for an .htpasswd, and enforces Basic
// auth against it if found. Ported from libhttpd.c's
// auth_check/auth_check2.
func runAuthGate(conn *Connection) error {
	if strings.Contains(conn.expnFilename.String(), htpasswdFilename) {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	dir := requestDir(conn)
	topdir := "."
	if conn.server.config.vhost && conn.hostDir.Len() > 0 {
		topdir = conn.hostDir.String()
	}

	root := conn.server.config.documentRoot

	if conn.server.config.globalPasswd {
		rc, err := checkAuthFile(conn, filepath.Join(root, topdir))
		if rc != 0 {
			return err
		}
	}

	path := findUpward(root, topdir, dir, htpasswdFilename)
	if path == "" {
		return nil
	}

	_, err := checkAuthFile(conn, filepath.Join(root, filepath.Dir(path)))
	return err
}

// checkAuthFile returns rc == 0 when dir/.htpasswd doesn't exist (the
// caller should keep looking), and rc == 1 otherwise, with err as the
// disposition (nil for "authorized, continue") — mirroring auth_check2's
// -1/0/1 tri-state collapsed into (found bool, disposition error). dir
// is an absolute filesystem path (already joined with the document
// root by the caller).
func checkAuthFile(conn *Connection, dir string) (rc int, err error) {
	authPath := filepath.Join(dir, htpasswdFilename)

	info, statErr := os.Stat(authPath)
	if statErr != nil {
		return 0, nil
	}

	realm := dir
	auth := conn.authorization.String()
	if auth == "" || !strings.HasPrefix(auth, "Basic ") {
		return 1, sendUnauthorized(conn, realm)
	}

	decoded, decErr := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if decErr != nil {
		return 1, sendUnauthorized(conn, realm)
	}

	colon := strings.IndexByte(string(decoded), ':')
	if colon < 0 {
		return 1, sendUnauthorized(conn, realm)
	}
	user := string(decoded[:colon])
	pass := string(decoded[colon+1:])
	if c := strings.IndexByte(pass, ':'); c >= 0 {
		pass = pass[:c]
	}

	if cached := conn.authCache; cached.path == authPath && cached.mtime.Equal(info.ModTime()) && cached.user == user {
		if bcrypt.CompareHashAndPassword([]byte(cached.crypted), []byte(pass)) == nil {
			conn.remoteUser.SetString(user)
			return 1, nil
		}
		return 1, sendUnauthorized(conn, realm)
	}

	crypted, found, err := lookupHtpasswdEntry(authPath, user)
	if err != nil {
		return 1, sendError(conn, 403, conn.encodedURL.String())
	}
	if !found {
		return 1, sendUnauthorized(conn, realm)
	}

	if bcrypt.CompareHashAndPassword([]byte(crypted), []byte(pass)) != nil {
		return 1, sendUnauthorized(conn, realm)
	}

	conn.remoteUser.SetString(user)
	conn.authCache = authCacheEntry{path: authPath, mtime: info.ModTime(), user: user, crypted: crypted}

	return 1, nil
}

// lookupHtpasswdEntry scans a newline-delimited user:crypted file and
// returns the last matching entry, per spec.md §6's "last-matching
// entry wins within one file".
func lookupHtpasswdEntry(path, user string) (crypted string, found bool, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return "", false, openErr
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		if line[:colon] == user {
			crypted, found = line[colon+1:], true
		}
	}

	return crypted, found, scanner.Err()
}

func sendUnauthorized(conn *Connection, realm string) error {
	conn.wwwAuthenticate = `Basic realm="` + realm + `"`
	return sendError(conn, 401, conn.encodedURL.String())
}

func containingDir(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[:idx]
	}
	return "."
}

// requestDir is the directory the access/auth gates should search
// upward from: the expanded filename itself when it resolved to a
// directory (access_check(hc, hc->expnfilename) in the source's
// directory-index branch), otherwise the file's containing directory
// (access_check(hc, NULL), which defaults to dirname(expnfilename)).
func requestDir(conn *Connection) string {
	if conn.fileInfo != nil && conn.fileInfo.IsDir() {
		return conn.expnFilename.String()
	}
	return containingDir(conn.expnFilename.String())
}

// findUpward walks from dir up to (and including) topdir looking for
// name under root (the server's document root), returning the first
// hit's path relative to root, or "".
func findUpward(root, topdir, dir, name string) string {
	dir = filepath.Clean(dir)
	topdir = filepath.Clean(topdir)

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(filepath.Join(root, candidate)); err == nil {
			return candidate
		}
		if dir == topdir || dir == "." || dir == "/" {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
