package exports

import (
	"fmt"
	"math"
)

const (
	UnitMM = "mm"
	UnitPT = "pt"
)

// Layout holds the page geometry used for an export. All lengths are in Unit
// except the font sizes, which are always points.
type Layout struct {
	Unit             string
	PageWidth        float64
	PageHeight       float64
	XMargin          float64
	HeadingY         float64
	HeadingHeight    float64
	TopMargin        float64
	MaxContentWidth  float64
	MaxContentHeight float64
	ImageGap         float64
	HeadingFontSize  float64
	BodyFontSize     float64

	// ClampHeight also fits images into MaxContentHeight. When false, tall
	// images keep their width-derived height and may run off the page.
	ClampHeight bool

	// SeparatorRule draws a line under the last screenshot of each entry.
	SeparatorRule bool
}

// DefaultLayout is an A4 page in millimetres with a 180mm content column.
func DefaultLayout() Layout {
	return Layout{
		Unit:             UnitMM,
		PageWidth:        210,
		PageHeight:       297,
		XMargin:          10,
		HeadingY:         10,
		HeadingHeight:    6,
		TopMargin:        4,
		MaxContentWidth:  180,
		MaxContentHeight: 100,
		ImageGap:         10,
		HeadingFontSize:  16,
		BodyFontSize:     12,
		SeparatorRule:    true,
	}
}

func (l Layout) Validate() error {
	switch l.Unit {
	case UnitMM, UnitPT:
	default:
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidLayout, l.Unit)
	}

	type field struct {
		name  string
		value float64
	}

	positive := []field{
		{"page width", l.PageWidth},
		{"page height", l.PageHeight},
		{"max content width", l.MaxContentWidth},
		{"max content height", l.MaxContentHeight},
		{"heading font size", l.HeadingFontSize},
		{"body font size", l.BodyFontSize},
	}
	for _, f := range positive {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidLayout, f.name, f.value)
		}
	}

	nonNegative := []field{
		{"x margin", l.XMargin},
		{"heading y", l.HeadingY},
		{"heading height", l.HeadingHeight},
		{"top margin", l.TopMargin},
		{"image gap", l.ImageGap},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %g", ErrInvalidLayout, f.name, f.value)
		}
	}

	if l.XMargin+l.MaxContentWidth > l.PageWidth {
		return fmt.Errorf("%w: x margin %g + content width %g exceeds page width %g",
			ErrInvalidLayout, l.XMargin, l.MaxContentWidth, l.PageWidth)
	}
	return nil
}

// ContentTop is where the first screenshot of a page is placed.
func (l Layout) ContentTop() float64 {
	return l.HeadingY + l.HeadingHeight + l.TopMargin
}

// Fit scales a pixelWidth x pixelHeight image to the content column. The
// width is capped at MaxContentWidth and the height follows the aspect ratio.
func (l Layout) Fit(pixelWidth, pixelHeight int) (width, height float64) {
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return 0, 0
	}
	aspect := float64(pixelWidth) / float64(pixelHeight)
	width = math.Min(float64(pixelWidth), l.MaxContentWidth)
	height = width / aspect

	if l.ClampHeight && height > l.MaxContentHeight {
		height = l.MaxContentHeight
		width = height * aspect
	}
	return width, height
}

func HeadingText(index int, url string) string {
	return fmt.Sprintf("Entry %d: %s", index+1, url)
}

type LayoutBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (b LayoutBox) Bottom() float64 {
	return b.Y + b.Height
}

type Page struct {
	Heading  string
	HeadingY float64
	Boxes    []LayoutBox
	// RuleY is the separator position; zero when the layout draws no rule.
	RuleY float64
}

// Document is the placement plan of an export, one Page per entry.
type Document struct {
	Pages []Page
}

// pageBuilder tracks the vertical cursor while one entry is laid out.
type pageBuilder struct {
	layout Layout
	page   Page
	cursor float64
}

func (l Layout) beginPage(index int, url string) *pageBuilder {
	return &pageBuilder{
		layout: l,
		page: Page{
			Heading:  HeadingText(index, url),
			HeadingY: l.HeadingY,
		},
		cursor: l.ContentTop(),
	}
}

func (b *pageBuilder) place(pixelWidth, pixelHeight int) LayoutBox {
	w, h := b.layout.Fit(pixelWidth, pixelHeight)
	box := LayoutBox{X: b.layout.XMargin, Y: b.cursor, Width: w, Height: h}
	b.page.Boxes = append(b.page.Boxes, box)
	b.cursor += h + b.layout.ImageGap
	return box
}

func (b *pageBuilder) finish() Page {
	if b.layout.SeparatorRule {
		b.page.RuleY = b.cursor
	}
	return b.page
}

// PlanPage lays out one entry from known pixel dimensions without rendering.
func (l Layout) PlanPage(index int, url string, dims [][2]int) Page {
	b := l.beginPage(index, url)
	for _, d := range dims {
		b.place(d[0], d[1])
	}
	return b.finish()
}
