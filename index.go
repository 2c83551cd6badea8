package merecat

import (
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// reservedHTFiles are always hidden from a generated index regardless
// of list_dotfiles, per spec.md §4.9 and libhttpd.c's is_reserved_htfile.
var reservedHTFiles = map[string]bool{
	htpasswdFilename: true,
	htaccessFilename: true,
}

// dirEntryRow is one row of the generated listing: a directory or file
// name plus the stat info needed to render its size/mtime column.
type dirEntryRow struct {
	name  string
	isDir bool
	size  int64
	mtime string
}

// renderIndex builds the HTML directory listing for conn (spec.md
// §4.9). The build runs on its own goroutine via errgroup — the
// cooperative-task substitute for libhttpd.c's forked child_ls the
// design notes (SPEC_FULL.md §6) call for — buffering into a
// strings.Builder the way the original buffers through a temp file,
// then the result is sent after headers in one write.
func renderIndex(conn *Connection, dirPath, urlPath string) error {
	var body string

	g, _ := errgroup.WithContext(conn.server.ctx)
	g.Go(func() error {
		b, err := buildIndexBody(conn, dirPath, urlPath)
		body = b
		return err
	})
	if err := g.Wait(); err != nil {
		return sendError(conn, 500, conn.decodedURL.String())
	}

	writeStatusLine(conn, 200)
	writeCommonHeaders(conn, 200)
	writeHeader(conn, "Content-Type", "text/html; charset="+conn.server.config.defaultCharset)
	writeHeader(conn, "Content-Length", strconv.Itoa(len(body)))
	finishHeaders(conn)

	if conn.method == MethodHead {
		return conn.rw.Flush()
	}

	if _, err := io.WriteString(conn.rw, body); err != nil {
		return err
	}
	return conn.rw.Flush()
}

func buildIndexBody(conn *Connection, dirPath, urlPath string) (string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return "", err
	}

	listDotfiles := conn.server.config.listDotfiles

	var dirs, files []dirEntryRow
	for _, de := range entries {
		name := de.Name()
		if name == "." || name == ".." {
			continue
		}
		if reservedHTFiles[name] {
			continue
		}
		if !listDotfiles && strings.HasPrefix(name, ".") && len(name) > 2 {
			continue
		}

		info, statErr := de.Info()
		if statErr != nil {
			continue
		}
		if info.Mode().Perm()&0o004 == 0 {
			continue
		}

		row := dirEntryRow{
			name:  name,
			isDir: de.IsDir(),
			size:  info.Size(),
			mtime: info.ModTime().Format("2006-01-02 15:04"),
		}
		if row.isDir {
			dirs = append(dirs, row)
		} else {
			files = append(files, row)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].name < dirs[j].name })
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>Index of %s</title></head>\n<body>\n", html.EscapeString(urlPath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<table>\n", html.EscapeString(urlPath))

	if urlPath != "/" {
		io.WriteString(&b, " <tr><td><a href=\"..\">Parent Directory</a></td><td></td><td></td></tr>\n")
	}

	for _, row := range dirs {
		writeIndexRow(&b, urlPath, row)
	}
	for _, row := range files {
		writeIndexRow(&b, urlPath, row)
	}

	io.WriteString(&b, "</table>\n</body></html>\n")

	return b.String(), nil
}

func writeIndexRow(b *strings.Builder, urlPath string, row dirEntryRow) {
	href := url.PathEscape(row.name)
	suffix := ""
	sizeStr := humaneSize(row)
	if row.isDir {
		suffix = "/"
		sizeStr = "-"
	}

	fmt.Fprintf(b, " <tr><td><a href=\"%s%s\">%s%s</a></td><td class=\"right\">%s</td><td>%s</td></tr>\n",
		href, suffix, html.EscapeString(row.name), suffix, sizeStr, row.mtime)
}

// humaneSize formats a file size with decimal SI suffixes, ported from
// libhttpd.c's humane_size().
func humaneSize(row dirEntryRow) string {
	mult := []string{"", "k", "M", "G", "T", "P"}
	bytes := row.size
	i := 0
	for bytes > 1000 && i < len(mult)-1 {
		bytes /= 1000
		i++
	}
	return strconv.FormatInt(bytes, 10) + mult[i]
}
