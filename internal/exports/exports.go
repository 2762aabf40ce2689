package exports

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/tracker"
)

const DefaultFilename = "items.pdf"

type DocumentExporter struct {
	PDF interface {
		Export(ctx context.Context, entries []tracker.Entry) (*Result, error)
	}
	Filename string
}

func NewDocumentExporter(layout Layout, decoder Decoder) *DocumentExporter {
	return &DocumentExporter{
		PDF:      NewPDFExporter(layout, decoder),
		Filename: DefaultFilename,
	}
}

// ExportTo writes the PDF to w. Nothing is written when the export fails.
func (d *DocumentExporter) ExportTo(ctx context.Context, entries []tracker.Entry, w io.Writer) (*Result, error) {
	res, err := d.PDF.Export(ctx, entries)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(res.PDF); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return res, nil
}

// ExportToFile writes the PDF to outputPath through a temporary file in the
// same directory, so a failed export never leaves a partial file behind.
func (d *DocumentExporter) ExportToFile(ctx context.Context, entries []tracker.Entry, outputPath string) (*Result, error) {
	if outputPath == "" {
		outputPath = d.Filename
	}
	res, err := d.PDF.Export(ctx, entries)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".urltrack-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(res.PDF); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		return nil, fmt.Errorf("failed to save PDF: %w", err)
	}

	internal.Success("Saved to %s", outputPath)
	return res, nil
}
