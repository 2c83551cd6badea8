package merecat

import "errors"

// errNoOverlap mirrors the teacher's static/fs.go sentinel: the Range
// request's start lies entirely past the end of the resource, so the
// composer must answer 416 rather than serve a body.
var errNoOverlap = errors.New("merecat: invalid range: failed to overlap")

// resolveRange turns the raw bounds request.go stashed on conn
// (firstByteIndex/lastByteIndex, with firstByteIndex == -1 meaning a
// suffix request "bytes=-N") into a clamped, half-open-free
// [first, last] pair against the file's actual size. It mutates conn
// in place and clears gotRange if the range doesn't apply.
//
// Ported from the teacher's parseRange (itself a port of Go stdlib's
// net/http ServeContent), restricted to the single-interval case
// request.go already enforced at parse time.
func resolveRange(conn *Connection, size int64) error {
	if !conn.gotRange {
		return nil
	}

	if conn.firstByteIndex == -1 {
		// Suffix range: "bytes=-N" — last N bytes of the resource.
		n := conn.lastByteIndex
		if n > size {
			n = size
		}
		conn.firstByteIndex = size - n
		conn.lastByteIndex = size - 1
		conn.rangeIfOK = true
		return nil
	}

	if conn.firstByteIndex >= size {
		conn.gotRange = false
		return errNoOverlap
	}

	if conn.lastByteIndex < 0 || conn.lastByteIndex >= size {
		conn.lastByteIndex = size - 1
	}

	if conn.firstByteIndex > conn.lastByteIndex {
		conn.gotRange = false
		return errNoOverlap
	}

	conn.rangeIfOK = true
	return nil
}

// rangeContentLength is l-f+1, the invariant spec.md §3/§8 requires of
// every 206 response.
func rangeContentLength(conn *Connection) int64 {
	return conn.lastByteIndex - conn.firstByteIndex + 1
}
