package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/pwnholic/urltrack/internal"
)

var errHelp = errors.New("help requested")

type Flag struct {
	Config   string
	Addr     string
	LogLevel string
	Output   string
	Manifest string
	Workers  int
	Verbose  bool
	DryRun   bool
}

// parseFlag parses the flags of one subcommand. Only "serve" accepts --addr and
// only "export" accepts --manifest, --output, --workers and --dry-run.
func parseFlag(cmd string, args []string, stderr io.Writer) (*Flag, error) {
	f := &Flag{}
	fs := flag.NewFlagSet("urltrack "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVarP(&f.Config, "config", "c", "urltrack.yaml", "config file path (missing file uses defaults)")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides log.level)")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "shorthand for --log-level debug")

	switch cmd {
	case "serve":
		fs.StringVarP(&f.Addr, "addr", "a", "", `listen address (e.g. ":8080", overrides server.addr)`)
	case "export":
		fs.StringVarP(&f.Manifest, "manifest", "m", "", "YAML manifest listing entries and screenshot files")
		fs.StringVarP(&f.Output, "output", "o", "", "output PDF path (overrides export.filename)")
		fs.IntVarP(&f.Workers, "workers", "w", 0, "concurrent screenshot reads (overrides export.workers)")
		fs.BoolVarP(&f.DryRun, "dry-run", "n", false, "print the page layout without writing a PDF")
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: urltrack %s [flags]\n\nFlags:\n", cmd)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errHelp
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if f.Verbose && f.LogLevel == "" {
		f.LogLevel = "debug"
	}
	if f.LogLevel != "" {
		if _, err := internal.ParseLevel(f.LogLevel); err != nil {
			return nil, err
		}
	}
	if cmd == "export" && f.Manifest == "" {
		return nil, errors.New("--manifest is required")
	}
	if f.Workers < 0 {
		return nil, errors.New("--workers must be >= 1")
	}
	return f, nil
}
