package exports

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/pwnholic/urltrack/internal/tracker"
)

const tolerance = 1e-9

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func pngBlob(t *testing.T, w, h int) tracker.ImageBlob {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatal(err)
	}
	return tracker.ImageBlob{Name: fmt.Sprintf("%dx%d.png", w, h), MIMEType: "image/png", Data: buf.Bytes()}
}

func jpegBlob(t *testing.T, w, h int) tracker.ImageBlob {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}
	return tracker.ImageBlob{Name: fmt.Sprintf("%dx%d.jpg", w, h), MIMEType: "image/jpeg", Data: buf.Bytes()}
}

func gifBlob(t *testing.T, w, h int) tracker.ImageBlob {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(w, h), nil); err != nil {
		t.Fatal(err)
	}
	return tracker.ImageBlob{Name: fmt.Sprintf("%dx%d.gif", w, h), MIMEType: "image/gif", Data: buf.Bytes()}
}

// sizeDecoder reports fixed dimensions per blob name and embeds a tiny JPEG,
// so layout tests do not depend on encoding large fixtures.
type sizeDecoder struct {
	sizes map[string][2]int
	fail  map[string]bool
	calls []string
	tiny  []byte
}

func newSizeDecoder(t *testing.T) *sizeDecoder {
	return &sizeDecoder{
		sizes: map[string][2]int{},
		fail:  map[string]bool{},
		tiny:  jpegBlob(t, 4, 3).Data,
	}
}

func (d *sizeDecoder) blob(name string, w, h int) tracker.ImageBlob {
	d.sizes[name] = [2]int{w, h}
	return tracker.ImageBlob{Name: name, MIMEType: "image/png", Data: []byte(name)}
}

func (d *sizeDecoder) Decode(_ context.Context, blob tracker.ImageBlob) (*DecodedImage, error) {
	d.calls = append(d.calls, blob.Name)
	if d.fail[blob.Name] {
		return nil, fmt.Errorf("%w: %q is corrupt", ErrDecode, blob.Name)
	}
	size, ok := d.sizes[blob.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown blob %q", ErrDecode, blob.Name)
	}
	return &DecodedImage{Data: d.tiny, Format: "jpeg", PixelWidth: size[0], PixelHeight: size[1]}, nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
