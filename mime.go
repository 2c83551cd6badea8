package merecat

import (
	"sort"
	"strings"
)

// mimeEntry is one row of the compiled-in extension tables (spec.md §6,
// "MIME tables: compiled into the binary at build time as static arrays
// of (ext, value)"), ported from libhttpd.c's struct mime_entry.
type mimeEntry struct {
	ext string
	val string
}

// typeTable maps a file extension to a MIME type. Sorted once at init
// so lookups can binary-search it, matching libhttpd's init_mime() +
// figure_mime()'s qsort/bsearch pairing.
var typeTable = []mimeEntry{
	{"css", "text/css"},
	{"csv", "text/csv"},
	{"gif", "image/gif"},
	{"htm", "text/html"},
	{"html", "text/html"},
	{"ico", "image/x-icon"},
	{"jpeg", "image/jpeg"},
	{"jpg", "image/jpeg"},
	{"js", "application/javascript"},
	{"json", "application/json"},
	{"mjs", "application/javascript"},
	{"mp3", "audio/mpeg"},
	{"mp4", "video/mp4"},
	{"pdf", "application/pdf"},
	{"png", "image/png"},
	{"svg", "image/svg+xml"},
	{"tar", "application/x-tar"},
	{"txt", "text/plain"},
	{"wasm", "application/wasm"},
	{"wav", "audio/wav"},
	{"webm", "video/webm"},
	{"webp", "image/webp"},
	{"woff", "font/woff"},
	{"woff2", "font/woff2"},
	{"xml", "text/xml"},
	{"zip", "application/zip"},
}

// encodingTable maps a trailing extension to a Content-Encoding token.
// Linear-searched: spec.md §4.2 "Encoding lookup is linear", there are
// only a handful of entries.
var encodingTable = []mimeEntry{
	{"Z", "compress"},
	{"br", "br"},
	{"bz2", "bzip2"},
	{"gz", "gzip"},
	{"uu", "x-uuencode"},
}

func init() {
	sort.Slice(typeTable, func(i, j int) bool { return typeTable[i].ext < typeTable[j].ext })
}

// lookupType binary-searches typeTable. Ties break on exact-length
// match per spec.md §4.2 ("tie-breaks on extension length (exact
// length match wins)") and spec.md §8 property 5 (must agree with a
// linear scan of the same table).
func lookupType(ext string) (string, bool) {
	lo, hi := 0, len(typeTable)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		c := strings.Compare(strings.ToLower(ext), typeTable[mid].ext)
		switch {
		case c < 0:
			hi = mid - 1
		case c > 0:
			lo = mid + 1
		default:
			return typeTable[mid].val, true
		}
	}
	return "", false
}

func lookupEncoding(ext string) (string, bool) {
	for _, e := range encodingTable {
		if strings.EqualFold(e.ext, ext) {
			return e.val, true
		}
	}
	return "", false
}

// defaultCharset is substituted into the fallback "text/plain;
// charset=%s" type when no extension matches (spec.md §4.2).
const defaultCharset = "UTF-8"

// figureMime peels extensions off name from right to left. Each
// extension is tested first against the encoding table (collected so
// the outermost encoding is emitted first) then against the type
// table; the first type hit wins and stops the scan. Ported from
// libhttpd.c's figure_mime().
func figureMime(name string, charset string) (mtype string, encodings []string) {
	mtype = "text/plain; charset=" + charset

	rest := name
	var encIdx []string

	for {
		dot := strings.LastIndexByte(rest, '.')
		if dot < 0 {
			break
		}
		ext := rest[dot+1:]
		rest = rest[:dot]

		if enc, ok := lookupEncoding(ext); ok {
			encIdx = append(encIdx, enc)
		}

		if typ, ok := lookupType(ext); ok {
			mtype = typ
			break
		}
	}

	// Reverse so the outermost (last-applied) encoding is emitted first,
	// matching figure_mime's `for (i = n_me_indexes - 1; i >= 0; --i)`.
	encodings = make([]string, len(encIdx))
	for i, e := range encIdx {
		encodings[len(encIdx)-1-i] = e
	}

	return mtype, encodings
}
