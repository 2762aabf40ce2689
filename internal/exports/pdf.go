package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/tracker"
)

const fontFamily = "goregular"

// pdfDocument wraps a gopdf document laid out with a Layout.
type pdfDocument struct {
	pdf    *gopdf.GoPdf
	layout Layout
	mutex  sync.Mutex
}

func newPDFDocument(layout Layout, title string) (*pdfDocument, error) {
	unit := gopdf.UnitMM
	if layout.Unit == UnitPT {
		unit = gopdf.UnitPT
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{
		Unit:     unit,
		PageSize: gopdf.Rect{W: layout.PageWidth, H: layout.PageHeight},
	})
	pdf.SetInfo(gopdf.PdfInfo{
		Title:   title,
		Creator: "urltrack",
	})

	if err := pdf.AddTTFFontData(fontFamily, goregular.TTF); err != nil {
		pdf.Close()
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	return &pdfDocument{pdf: pdf, layout: layout}, nil
}

func (p *pdfDocument) addEntryPage(heading string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.pdf.AddPage()
	if err := p.pdf.SetFont(fontFamily, "", p.layout.HeadingFontSize); err != nil {
		return fmt.Errorf("failed to set heading font: %w", err)
	}
	p.pdf.SetXY(p.layout.XMargin, p.layout.HeadingY)
	if err := p.pdf.Cell(nil, heading); err != nil {
		return fmt.Errorf("failed to write heading: %w", err)
	}
	return p.pdf.SetFont(fontFamily, "", p.layout.BodyFontSize)
}

func (p *pdfDocument) addImage(data []byte, box LayoutBox) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	imageHolder, err := gopdf.ImageHolderByBytes(data)
	if err != nil {
		return fmt.Errorf("failed to create PDF image holder: %w", err)
	}
	rect := &gopdf.Rect{W: box.Width, H: box.Height}
	if err := p.pdf.ImageByHolder(imageHolder, box.X, box.Y, rect); err != nil {
		return fmt.Errorf("failed to add image to PDF: %w", err)
	}
	return nil
}

func (p *pdfDocument) addRule(y float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.pdf.SetLineWidth(0.3)
	p.pdf.Line(p.layout.XMargin, y, p.layout.XMargin+p.layout.MaxContentWidth, y)
}

func (p *pdfDocument) bytes() ([]byte, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.pdf == nil {
		return nil, errors.New("PDF not initialized")
	}
	var buf bytes.Buffer
	if _, err := p.pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *pdfDocument) close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.pdf != nil {
		p.pdf.Close()
		p.pdf = nil
	}
}

// Result is a finished export: the PDF bytes and the placements used to
// produce them.
type Result struct {
	PDF      []byte
	Document Document
}

// PDFExporter renders entries as a PDF, one page per entry.
type PDFExporter struct {
	Layout  Layout
	Decoder Decoder
	// Verify re-reads the output with pdfcpu and checks the page count.
	Verify bool
	Title  string
}

func NewPDFExporter(layout Layout, decoder Decoder) *PDFExporter {
	return &PDFExporter{
		Layout:  layout,
		Decoder: decoder,
		Verify:  true,
		Title:   "URL Tracker",
	}
}

// Export lays out entries in order. Screenshots are decoded one at a time and
// each is placed before the next decode starts. Any decode failure aborts the
// export and no PDF is returned. entries is never modified.
func (e *PDFExporter) Export(ctx context.Context, entries []tracker.Entry) (*Result, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	if err := e.Layout.Validate(); err != nil {
		return nil, err
	}
	if e.Decoder == nil {
		return nil, errors.New("exporter has no image decoder")
	}

	startTime := time.Now()
	doc, err := newPDFDocument(e.Layout, e.Title)
	if err != nil {
		return nil, err
	}
	defer doc.close()

	plan := Document{Pages: make([]Page, 0, len(entries))}
	images := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.renderEntry(ctx, doc, i, entry)
		if err != nil {
			return nil, err
		}
		plan.Pages = append(plan.Pages, page)
		images += len(page.Boxes)
	}

	data, err := doc.bytes()
	if err != nil {
		return nil, err
	}
	if e.Verify {
		if err := verifyPDF(data, len(entries)); err != nil {
			return nil, err
		}
	}

	internal.Info("Exported %d entries with %d screenshots in %v (%d bytes)", len(entries), images, time.Since(startTime), len(data))
	return &Result{PDF: data, Document: plan}, nil
}

func (e *PDFExporter) renderEntry(ctx context.Context, doc *pdfDocument, index int, entry tracker.Entry) (Page, error) {
	builder := e.Layout.beginPage(index, entry.URL)
	if err := doc.addEntryPage(builder.page.Heading); err != nil {
		return Page{}, err
	}

	for j, shot := range entry.Screenshots {
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		decoded, err := e.Decoder.Decode(ctx, shot)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Page{}, ctxErr
			}
			internal.Error("Failed to decode screenshot %d of entry %d: %v", j+1, index+1, err)
			return Page{}, &DecodeFailedError{EntryIndex: index, ImageIndex: j, URL: entry.URL, Err: err}
		}

		box := builder.place(decoded.PixelWidth, decoded.PixelHeight)
		err = doc.addImage(decoded.Data, box)
		decoded.Release()
		if err != nil {
			return Page{}, &DecodeFailedError{EntryIndex: index, ImageIndex: j, URL: entry.URL, Err: err}
		}
		internal.Debug("Placed screenshot %d of entry %d: %dx%d px at (%.2f, %.2f) size %.2fx%.2f",
			j+1, index+1, decoded.PixelWidth, decoded.PixelHeight, box.X, box.Y, box.Width, box.Height)
	}

	page := builder.finish()
	if e.Layout.SeparatorRule {
		doc.addRule(page.RuleY)
	}
	return page, nil
}
