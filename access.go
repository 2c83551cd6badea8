package merecat

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mwjian/merecat/params"
)

const htaccessFilename = ".htaccess"

// runAccessGate is the other half of C6: IPv4 allow/deny rules loaded
// from .htaccess, searched upward from the request's containing
// directory the same way runAuthGate searches for .htpasswd. Ported
// from libhttpd.c's access_check/access_check2.
func runAccessGate(conn *Connection) error {
	if strings.Contains(conn.expnFilename.String(), htaccessFilename) {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	dir := requestDir(conn)
	topdir := "."
	if conn.server.config.vhost && conn.hostDir.Len() > 0 {
		topdir = conn.hostDir.String()
	}

	root := conn.server.config.documentRoot
	path := findUpward(root, topdir, dir, htaccessFilename)
	if path == "" {
		return nil
	}

	return checkAccessFile(conn, filepath.Join(root, path))
}

// checkAccessFile evaluates the rules in path in order against
// conn.remoteAddr. The first "allow" match accepts immediately; a
// "deny" match keeps scanning (matching the source's switch-without-
// return on the 'd' case); falling off the end denies with 403.
// Malformed lines are also a 403, logged.
func checkAccessFile(conn *Connection, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return sendError(conn, 403, conn.decodedURL.String())
	}
	defer f.Close()

	rules, parseErr := parseAccessRules(f)
	if parseErr != nil {
		conn.logger.Warnf("access file %s: invalid line: %s", path, parseErr.Error())
		return sendError(conn, 403, conn.decodedURL.String())
	}

	remote := net.ParseIP(conn.remoteAddr)
	if remote == nil {
		return sendError(conn, 403, conn.decodedURL.String())
	}

	for _, rule := range rules {
		network := rule.Value[0]
		_, ipnet, err := net.ParseCIDR(network)
		if err != nil {
			continue
		}
		if !ipnet.Contains(remote) {
			continue
		}

		switch rule.Key {
		case "allow":
			return nil
		case "deny":
			// Keep scanning; a later allow can still override.
		}
	}

	return sendError(conn, 403, conn.decodedURL.String())
}

// parseAccessRules reads "(allow|deny) addr[/masklen|/netmask]" lines
// into an ordered params.Params list (Key = directive, Value =
// []string{CIDR}), normalizing a bare address or a dotted-quad netmask
// into CIDR notation so lookups can use net.IPNet.Contains.
func parseAccessRules(f *os.File) (params.Params, error) {
	var rules params.Params

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errInvalidAccessLine(line)
		}

		directive := strings.ToLower(fields[0])
		switch directive {
		case "allow", "deny":
		default:
			if len(directive) == 0 {
				return nil, errInvalidAccessLine(line)
			}
			switch directive[0] {
			case 'a':
				directive = "allow"
			case 'd':
				directive = "deny"
			default:
				return nil, errInvalidAccessLine(line)
			}
		}

		cidr, err := toCIDR(fields[1])
		if err != nil {
			return nil, err
		}

		rules = append(rules, params.Param{Key: directive, Value: []string{cidr}})
	}

	return rules, scanner.Err()
}

func errInvalidAccessLine(line string) error {
	return &accessLineError{line}
}

type accessLineError struct{ line string }

func (e *accessLineError) Error() string { return e.line }

// toCIDR normalizes an .htaccess address token into CIDR notation:
// "addr" alone means /32; "addr/masklen" (0-32) is used as-is;
// "addr/netmask" (a dotted quad) is converted to its prefix length.
func toCIDR(token string) (string, error) {
	slash := strings.IndexByte(token, '/')
	if slash < 0 {
		if net.ParseIP(token) == nil {
			return "", errInvalidAccessLine(token)
		}
		return token + "/32", nil
	}

	addr := token[:slash]
	mask := token[slash+1:]
	if net.ParseIP(addr) == nil || mask == "" {
		return "", errInvalidAccessLine(token)
	}

	if !strings.Contains(mask, ".") {
		n, err := strconv.Atoi(mask)
		if err != nil || n < 0 || n > 32 {
			return "", errInvalidAccessLine(token)
		}
		return addr + "/" + mask, nil
	}

	maskIP := net.ParseIP(mask)
	if maskIP == nil {
		return "", errInvalidAccessLine(token)
	}
	maskIP4 := maskIP.To4()
	if maskIP4 == nil {
		return "", errInvalidAccessLine(token)
	}
	ones, _ := net.IPMask(maskIP4).Size()
	return addr + "/" + strconv.Itoa(ones), nil
}
