package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/config"
)

func init() {
	internal.InitDefaultLogger(internal.INFO)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "URL Tracker - collect URLs with screenshots and export them to PDF")
	fmt.Fprintln(w, "Usage: urltrack <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  serve    run the web UI")
	fmt.Fprintln(w, "  export   write a PDF from a YAML manifest")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  urltrack serve --addr :9000")
	fmt.Fprintln(w, "  urltrack export -m entries.yaml -o report.pdf")
	fmt.Fprintln(w, "  urltrack export -m entries.yaml --dry-run")
}

func run(args []string, stdout, stderr io.Writer) int {
	internal.GetDefaultLogger().SetOutput(stderr)

	if len(args) == 0 {
		usage(stderr)
		return 1
	}
	cmd := args[0]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage(stderr)
		return 0
	}

	f, err := parseFlag(cmd, args[1:], stderr)
	if err != nil {
		if errors.Is(err, errHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "urltrack: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(f)
	if err != nil {
		internal.Error("%v", err)
		return 1
	}

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		internal.Debug(format, args...)
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "export":
		if f.DryRun {
			err = planManifest(ctx, cfg, f.Manifest, stdout)
		} else {
			err = exportManifest(ctx, cfg, f.Manifest)
		}
	}
	if err != nil {
		internal.Error("Something went wrong: %v", err)
		return 1
	}
	internal.Success("Program completed in %v", time.Since(startTime))
	return 0
}

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig(f *Flag) (*config.Config, error) {
	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, err
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.Addr != "" {
		cfg.Server.Addr = f.Addr
	}
	if f.Output != "" {
		cfg.Export.Filename = f.Output
	}
	if f.Workers > 0 {
		cfg.Export.Workers = f.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := internal.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	internal.GetDefaultLogger().SetLevel(level)
	return cfg, nil
}
