package merecat

import "strings"

// hexit returns the value of a hex digit, or -1 if c isn't one. Ported
// from libhttpd.c's hexit().
func hexit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// strdecode percent-decodes s: "%HH" where both digits are hex becomes
// the corresponding byte; any other "%" is left intact (spec.md §4.1).
func strdecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, lo := hexit(s[i+1]), hexit(s[i+2])
			if hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}

	return string(out)
}

// strencode is the inverse of strdecode for printable-ASCII input
// (testable property 3 in spec.md §8): every byte outside the
// unreserved set is percent-encoded.
func strencode(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	const hexDigits = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0xf])
	}

	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~' || c == '/':
		return true
	default:
		return false
	}
}

// defang maps the HTML-significant characters to entities so that
// attacker-controlled strings (a path, a header value) can be embedded
// in an error page body without creating markup. It grows by at most
// 5x (the longest entity, "&amp;", is 5 bytes for 1 input byte) per
// spec.md §8 property 4 and truncates safely if maxLen is reached.
func defang(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		var ent string
		switch s[i] {
		case '<':
			ent = "&lt;"
		case '>':
			ent = "&gt;"
		case '&':
			ent = "&amp;"
		case '"':
			ent = "&#34;"
		case '\'':
			ent = "&#39;"
		case '?':
			ent = "&#63;"
		default:
			if b.Len()+1 > maxLen {
				return b.String()
			}
			b.WriteByte(s[i])
			continue
		}

		if b.Len()+len(ent) > maxLen {
			return b.String()
		}
		b.WriteString(ent)
	}

	return b.String()
}

// deDotdot sanitizes a logical path in place, per spec.md §4.1 (a)-(e):
// collapse "//" runs, strip the leading "/", drop "./" noise, and
// repeatedly collapse ".." segments (both leading "../" and interior
// "xxx/../") until none remain, finally trimming a trailing "/..".
// Ported step-for-step from libhttpd.c's de_dotdot().
func deDotdot(file string) string {
	// Collapse multiple "/" sequences.
	for {
		i := strings.Index(file, "//")
		if i < 0 {
			break
		}
		j := i + 2
		for j < len(file) && file[j] == '/' {
			j++
		}
		file = file[:i+1] + file[j:]
	}

	// Collapse a single leading "/".
	if len(file) > 0 && file[0] == '/' {
		file = file[1:]
	}

	// Remove a leading "./" and any "/./" sequences.
	for strings.HasPrefix(file, "./") {
		file = file[2:]
	}
	for {
		i := strings.Index(file, "/./")
		if i < 0 {
			break
		}
		file = file[:i] + file[i+2:]
	}

	// Alternate between removing a leading "../" and collapsing "xxx/../".
	for {
		for strings.HasPrefix(file, "../") {
			file = file[3:]
		}
		i := strings.Index(file, "/../")
		if i < 0 {
			break
		}
		j := i - 1
		for j >= 0 && file[j] != '/' {
			j--
		}
		file = file[:j+1] + file[i+4:]
	}

	// Elide a trailing "xxx/..".
	for len(file) > 2 && strings.HasSuffix(file, "/..") {
		cut := len(file) - 3
		j := cut - 1
		for j >= 0 && file[j] != '/' {
			j--
		}
		if j < 0 {
			break
		}
		file = file[:j]
	}

	return file
}

// rejectsEscape reports whether a de_dotdot'd path still looks like an
// escape attempt: it starts with "/" (only possible if the input was
// "//../.." style noise deDotdot couldn't fully collapse) or is exactly
// ".." or starts with "../" (spec.md §4.1 final paragraph, testable
// property 1 in spec.md §8).
func rejectsEscape(file string) bool {
	if strings.HasPrefix(file, "/") {
		return true
	}
	if file == ".." || strings.HasPrefix(file, "../") {
		return true
	}
	return false
}

// collapseSlashes collapses every run of "/" in s to a single "/".
// The request parser does not call it; deDotdot does its own
// collapsing as its first step.
func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevSlash := false
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(s[i])
	}

	return b.String()
}
