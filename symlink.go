package merecat

import (
	"errors"
	"os"
	"strings"
)

// maxSymlinkChases bounds the number of readlink() traversals a single
// expandSymlinks call will follow before giving up, guarding against
// symlink loops. Ported from libhttpd.c's MAX_LINKS.
const maxSymlinkChases = 20

var errTooManySymlinks = errors.New("merecat: too many levels of symbolic links")

// expandSymlinks walks path one component at a time, resolving symlinks
// as it goes, and stops at the first component that doesn't exist.
// Ported from libhttpd.c's expand_symlinks().
//
// It returns the longest prefix of path that exists on disk (never
// containing "..", since ".." segments are collapsed against the
// checked prefix as they're consumed) and a trailer holding whatever
// of path could not be resolved (used as CGI PATH_INFO). When
// noSymlinkCheck is set (the server is chrooted, so nothing can escape
// the tree via a symlink anyway) a single stat of the whole path is
// tried first as a shortcut.
func expandSymlinks(path string, noSymlinkCheck, tildeMapped bool) (checked string, trailer string, err error) {
	if noSymlinkCheck {
		if _, statErr := os.Stat(path); statErr == nil {
			return strings.TrimRight(path, "/"), "", nil
		}
	}

	var checkedBuf strings.Builder
	rest := path
	if !tildeMapped {
		rest = strings.TrimLeft(rest, "/")
	}

	nlinks := 0

	for len(rest) > 0 {
		prevChecked := checkedBuf.String()
		prevRest := rest

		var component string
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			component = rest[:i]
			rest = rest[i+1:]
		} else {
			component = rest
			rest = ""
		}

		switch {
		case component == "":
			// Absolute-path marker: rest began with "/" (only reachable
			// when tildeMapped preserved a leading slash).
			checkedBuf.WriteByte('/')
		case component == "..":
			popLastComponent(&checkedBuf)
		default:
			appendComponent(&checkedBuf, component)
		}

		checked = checkedBuf.String()
		if checked == "" {
			continue
		}

		link, readErr := os.Readlink(checked)
		if readErr != nil {
			if isNotSymlink(readErr) {
				continue
			}
			if os.IsNotExist(readErr) || isNotDirErr(readErr) || os.IsPermission(readErr) {
				// The last component consumed was bogus: restore the
				// checked prefix to what existed before it and return
				// everything from there on as the trailer.
				if prevChecked == "" {
					return ".", prevRest, nil
				}
				return prevChecked, prevRest, nil
			}
			return "", "", readErr
		}

		nlinks++
		if nlinks > maxSymlinkChases {
			return "", "", errTooManySymlinks
		}

		link = strings.TrimRight(link, "/")

		if rest != "" {
			rest = link + "/" + rest
		} else {
			rest = link
		}

		checkedBuf.Reset()
		if strings.HasPrefix(rest, "/") {
			// An absolute symlink target resets the checked prefix.
		} else {
			checkedBuf.WriteString(prevChecked)
		}
	}

	checked = checkedBuf.String()
	if checked == "" {
		checked = "."
	}

	return checked, rest, nil
}

func appendComponent(b *strings.Builder, component string) {
	s := b.String()
	if len(s) > 0 && s[len(s)-1] != '/' {
		b.WriteByte('/')
	}
	b.WriteString(component)
}

// popLastComponent removes the last "/"-delimited segment from b,
// never reducing it below empty (or below the single leading "/" of an
// absolute prefix). Mirrors expand_symlinks()'s ".." handling.
func popLastComponent(b *strings.Builder) {
	s := b.String()
	if s == "" {
		return
	}
	idx := strings.LastIndexByte(s, '/')
	switch {
	case idx < 0:
		s = ""
	case idx == 0:
		s = s[:1]
	default:
		s = s[:idx]
	}
	b.Reset()
	b.WriteString(s)
}

func isNotSymlink(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe) && pe.Err.Error() == "invalid argument"
}

func isNotDirErr(err error) bool {
	var pe *os.PathError
	return errors.As(err, &pe) && pe.Err.Error() == "not a directory"
}
