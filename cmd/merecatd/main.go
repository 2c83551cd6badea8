// Command merecatd is the bootstrap binary for the merecat HTTP
// server: flag parsing, privilege drop, chroot, and signal-driven
// shutdown — the external collaborators spec.md §1 carves out of the
// core and §6 documents the CLI contract for.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"syscall"

	"github.com/mwjian/merecat"
	"github.com/mwjian/merecat/logger/level"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "merecatd: "+err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("merecatd", flag.ContinueOnError)

	cgiPattern := fs.String("c", "", "CGI wildcard pattern, e.g. \"cgi-bin/*|*.cgi\"")
	chdirAfterChroot := fs.Bool("d", false, "chdir to webroot after chrooting (chroot already implies it unless -d is given relative to root)")
	globalPasswd := fs.Bool("g", false, "check a document-root-wide .htpasswd first; per-directory ones are searched only when it is absent")
	help := fs.Bool("h", false, "show this help and exit")
	logLevelFlag := fs.String("l", "info", "log level: trace|debug|info|warn|error")
	foreground := fs.Bool("n", false, "run in the foreground (merecatd never daemonizes; accepted for CLI compatibility)")
	port := fs.Int("p", 8080, "TCP port to listen on")
	chroot := fs.String("r", "", "chroot to this directory before serving")
	symlinkCheck := fs.Bool("s", true, "enable the symlink-escape check (-s=false disables it)")
	throttleFile := fs.String("t", "", "throttle configuration file (unsupported; accepted for CLI compatibility, logged if given)")
	runAsUser := fs.String("u", "", "drop privileges to this user after binding and chrooting")
	vhost := fs.Bool("v", false, "enable name-based virtual hosting")
	showVersion := fs.Bool("V", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: merecatd [flags] [WEBROOT] [HOSTNAME]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *help {
		fs.Usage()
		return nil
	}
	if *showVersion {
		fmt.Println("merecatd " + version)
		return nil
	}

	webroot := "."
	hostname := ""
	if rest := fs.Args(); len(rest) > 0 {
		webroot = rest[0]
		if len(rest) > 1 {
			hostname = rest[1]
		}
	}

	lvl, err := parseLogLevel(*logLevelFlag)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(*port))
	if err != nil {
		return err
	}

	if *chroot != "" {
		if err := applyChroot(*chroot, webroot, *chdirAfterChroot); err != nil {
			return err
		}
		webroot = "."
	}

	if *runAsUser != "" {
		if err := dropPrivileges(*runAsUser); err != nil {
			return err
		}
	}

	if *throttleFile != "" {
		fmt.Fprintf(os.Stderr, "merecatd: -t %s: throttle files are not implemented, ignoring\n", *throttleFile)
	}
	_ = *foreground // this binary only ever runs in the foreground

	opts := []merecat.Option{
		merecat.WithPort(*port),
		merecat.WithCGIPattern(*cgiPattern),
		merecat.WithGlobalPasswd(*globalPasswd),
		merecat.WithNoSymlinkCheck(!*symlinkCheck),
		merecat.WithVhost(*vhost),
		merecat.WithLogLevel(lvl),
	}
	if hostname != "" {
		opts = append(opts, merecat.WithHostname(hostname))
	}

	cfg := merecat.NewConfig(webroot, opts...)
	srv := merecat.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return srv.Serve(ctx, ln)
}

func parseLogLevel(s string) (level.Level, error) {
	switch s {
	case "trace":
		return level.TraceLevel, nil
	case "debug":
		return level.DebugLevel, nil
	case "info":
		return level.InfoLevel, nil
	case "warn", "warning":
		return level.WarnLevel, nil
	case "error":
		return level.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("-l %s: unknown log level", s)
	}
}

// applyChroot chroots the process into webroot, the way the external
// bootstrap spec.md §1 expects — Unix-only, matching libhttpd's own
// chroot() call site, with no portable equivalent on other platforms.
func applyChroot(chrootDir, webroot string, chdirAfter bool) error {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		return fmt.Errorf("-r: chroot is not supported on %s", runtime.GOOS)
	}

	if err := syscall.Chroot(chrootDir); err != nil {
		return fmt.Errorf("chroot %s: %w", chrootDir, err)
	}

	dir := "/"
	if chdirAfter {
		dir = webroot
	}
	return syscall.Chdir(dir)
}

// dropPrivileges switches the effective user after binding the
// listener and chrooting, matching libhttpd's "bind as root, drop
// after" sequencing.
func dropPrivileges(name string) error {
	u, err := user.Lookup(name)
	if err != nil {
		return fmt.Errorf("-u %s: %w", name, err)
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("-u %s: invalid uid %s", name, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("-u %s: invalid gid %s", name, u.Gid)
	}

	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}
