package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"golang.org/x/sync/errgroup"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/config"
	"github.com/pwnholic/urltrack/internal/tracker"
)

var errInvalidManifest = errors.New("invalid manifest")

type manifest struct {
	Entries []manifestEntry `yaml:"entries"`
}

type manifestEntry struct {
	URL         string   `yaml:"url"`
	Screenshots []string `yaml:"screenshots"`
}

func exportManifest(ctx context.Context, cfg *config.Config, manifestPath string) error {
	entries, err := loadManifest(ctx, manifestPath, cfg.Export.Workers)
	if err != nil {
		return err
	}
	_, err = cfg.DocumentExporter().ExportToFile(ctx, entries, cfg.Export.Filename)
	return err
}

// planManifest prints where every screenshot would be placed. Only image
// headers are read, so nothing is decoded or rendered.
func planManifest(ctx context.Context, cfg *config.Config, manifestPath string, w io.Writer) error {
	entries, err := loadManifest(ctx, manifestPath, cfg.Export.Workers)
	if err != nil {
		return err
	}

	layout := cfg.PageLayout()
	if err := layout.Validate(); err != nil {
		return err
	}
	dec := cfg.Decoder()
	unit := layout.Unit

	for i, e := range entries {
		dims := make([][2]int, len(e.Screenshots))
		for j, shot := range e.Screenshots {
			width, height, err := dec.Dimensions(shot)
			if err != nil {
				return fmt.Errorf("entry %d, screenshot %d: %w", i+1, j+1, err)
			}
			dims[j] = [2]int{width, height}
		}

		page := layout.PlanPage(i, e.URL, dims)
		fmt.Fprintf(w, "Page %d: %s\n", i+1, page.Heading)
		for j, box := range page.Boxes {
			overflow := ""
			if box.Bottom() > layout.PageHeight {
				overflow = " (overflows page)"
			}
			fmt.Fprintf(w, "  %s %dx%d px -> x=%.2f y=%.2f w=%.2f h=%.2f %s%s\n",
				e.Screenshots[j].Name, dims[j][0], dims[j][1], box.X, box.Y, box.Width, box.Height, unit, overflow)
		}
		if layout.SeparatorRule {
			fmt.Fprintf(w, "  rule y=%.2f %s\n", page.RuleY, unit)
		}
	}
	return nil
}

// loadManifest reads the manifest and every screenshot it lists. Files are read
// by up to workers goroutines; entry and screenshot order follow the manifest.
func loadManifest(ctx context.Context, path string, workers int) ([]tracker.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidManifest, path, err)
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s lists no entries", errInvalidManifest, path)
	}

	baseDir := filepath.Dir(path)
	shots := make([][]tracker.ImageBlob, len(m.Entries))
	for i, e := range m.Entries {
		shots[i] = make([]tracker.ImageBlob, len(e.Screenshots))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, e := range m.Entries {
		for j, p := range e.Screenshots {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				blob, err := readScreenshot(resolvePath(baseDir, p))
				if err != nil {
					return fmt.Errorf("entry %d: %w", i+1, err)
				}
				shots[i][j] = blob
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store := tracker.NewStore()
	for i, e := range m.Entries {
		if _, err := store.Add(tracker.Entry{URL: e.URL, Screenshots: shots[i]}); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", errInvalidManifest, i+1, err)
		}
	}
	internal.Info("Loaded %d entries from %s", store.Len(), path)
	return store.Snapshot(), nil
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func readScreenshot(path string) (tracker.ImageBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("failed to read screenshot: %w", err)
	}
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	internal.Debug("Read %s (%s, %d bytes)", path, mimeType, len(data))
	return tracker.ImageBlob{Name: filepath.Base(path), MIMEType: mimeType, Data: data}, nil
}
