package exports

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/tracker"
)

// Decoder turns an attached screenshot into something the PDF can embed.
type Decoder interface {
	Decode(ctx context.Context, blob tracker.ImageBlob) (*DecodedImage, error)
}

// DecodedImage is only valid for the duration of one export.
type DecodedImage struct {
	Data        []byte
	Format      string
	PixelWidth  int
	PixelHeight int
}

// Release drops the embeddable payload once the image has been placed.
func (d *DecodedImage) Release() {
	d.Data = nil
}

type ImageDecoder struct {
	// Timeout bounds a single decode; zero means no limit beyond ctx.
	Timeout time.Duration
	// MaxPixelWidth downscales wider images before embedding; zero disables it.
	// PixelWidth and PixelHeight still report the original size.
	MaxPixelWidth int
	// MaxPixels rejects images whose header declares more pixels, before any
	// pixel buffer is allocated. Zero means DefaultMaxPixels.
	MaxPixels int
	Quality   int
}

// DefaultMaxPixels is 50 megapixels.
const DefaultMaxPixels = 50_000_000

func NewImageDecoder() *ImageDecoder {
	return &ImageDecoder{
		Timeout:   10 * time.Second,
		MaxPixels: DefaultMaxPixels,
		Quality:   90,
	}
}

type decodeResult struct {
	img *DecodedImage
	err error
}

// Decode blocks until blob is decoded, ctx is done or the timeout elapses.
func (d *ImageDecoder) Decode(ctx context.Context, blob tracker.ImageBlob) (*DecodedImage, error) {
	if !blob.IsImage() {
		return nil, fmt.Errorf("%w: %q has type %q", ErrDecode, blob.Name, blob.MIMEType)
	}
	if len(blob.Data) == 0 {
		return nil, fmt.Errorf("%w: %q is empty", ErrDecode, blob.Name)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	done := make(chan decodeResult, 1)
	go func() {
		img, err := d.decode(blob)
		done <- decodeResult{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %q: %w", ErrDecode, blob.Name, ctx.Err())
	case r := <-done:
		return r.img, r.err
	}
}

// Dimensions reads only the image header and applies the same MIME and pixel
// checks as Decode.
func (d *ImageDecoder) Dimensions(blob tracker.ImageBlob) (width, height int, err error) {
	if !blob.IsImage() {
		return 0, 0, fmt.Errorf("%w: %q has type %q", ErrDecode, blob.Name, blob.MIMEType)
	}
	cfg, err := d.config(blob)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (d *ImageDecoder) config(blob tracker.ImageBlob) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob.Data))
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %q: %v", ErrDecode, blob.Name, err)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return image.Config{}, fmt.Errorf("%w: %q has invalid dimensions %dx%d", ErrDecode, blob.Name, cfg.Width, cfg.Height)
	}
	if limit := d.maxPixels(); int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return image.Config{}, fmt.Errorf("%w: %q is %dx%d, over the %d pixel limit", ErrDecode, blob.Name, cfg.Width, cfg.Height, limit)
	}
	return cfg, nil
}

func (d *ImageDecoder) decode(blob tracker.ImageBlob) (*DecodedImage, error) {
	// The header is checked first: image.Decode allocates the full pixel
	// buffer from the declared size before reading any pixel data.
	if _, err := d.config(blob); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrDecode, blob.Name, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %q has invalid dimensions %dx%d", ErrDecode, blob.Name, width, height)
	}

	if isSuspiciousBlankImage(img) {
		internal.Warn("Screenshot %q looks blank at an unusual size: %dx%d", blob.Name, width, height)
	}

	decoded := &DecodedImage{
		Format:      format,
		PixelWidth:  width,
		PixelHeight: height,
	}

	downscale := d.MaxPixelWidth > 0 && width > d.MaxPixelWidth
	if format == "jpeg" && !downscale {
		decoded.Data = blob.Data
		return decoded, nil
	}

	dst := flatten(img, d.targetSize(width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: d.quality()}); err != nil {
		return nil, fmt.Errorf("%w: %q: converting %s to JPEG: %v", ErrDecode, blob.Name, format, err)
	}
	decoded.Data = buf.Bytes()
	internal.Debug("Converted %s screenshot %q (%dx%d) to JPEG, %d bytes", format, blob.Name, width, height, buf.Len())
	return decoded, nil
}

func (d *ImageDecoder) targetSize(width, height int) image.Rectangle {
	if d.MaxPixelWidth <= 0 || width <= d.MaxPixelWidth {
		return image.Rect(0, 0, width, height)
	}
	h := int(float64(height) * float64(d.MaxPixelWidth) / float64(width))
	return image.Rect(0, 0, d.MaxPixelWidth, max(h, 1))
}

func (d *ImageDecoder) maxPixels() int {
	if d.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return d.MaxPixels
}

func (d *ImageDecoder) quality() int {
	if d.Quality <= 0 || d.Quality > 100 {
		return 90
	}
	return d.Quality
}

// flatten draws img onto a white canvas of the given size. JPEG has no alpha
// channel, so transparent regions would otherwise come out black.
func flatten(img image.Image, size image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(size)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if size.Dx() == img.Bounds().Dx() && size.Dy() == img.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func isSuspiciousBlankImage(img image.Image) bool {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	unusualSize := width > 5000 || height > 5000 || (width*height) > 25000000 // 25MP
	if !unusualSize {
		return false
	}

	samplePoints := []image.Point{
		{bounds.Min.X, bounds.Min.Y},
		{bounds.Max.X - 1, bounds.Min.Y},
		{bounds.Min.X, bounds.Max.Y - 1},
		{bounds.Max.X - 1, bounds.Max.Y - 1},
		{bounds.Min.X + width/2, bounds.Min.Y + height/2},
	}
	for _, pt := range samplePoints {
		r, g, b, a := img.At(pt.X, pt.Y).RGBA()
		if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
			return false
		}
	}
	return true
}
