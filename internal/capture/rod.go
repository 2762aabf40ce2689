// Package capture takes screenshots of tracked URLs with a headless browser.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/tracker"
)

var (
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageLoad       = errors.New("failed to load page")
	ErrScreenshot     = errors.New("failed to capture screenshot")
	ErrDisabled       = errors.New("screenshot capture is disabled")
)

type Capturer interface {
	Capture(ctx context.Context, rawURL string) (tracker.ImageBlob, error)
	Close() error
}

type Options struct {
	Timeout time.Duration
	Width   int
	Height  int
	// FullPage captures the whole scrollable page instead of the viewport.
	FullPage bool
}

func DefaultOptions() Options {
	return Options{Timeout: 30 * time.Second, Width: 1280, Height: 800}
}

// RodCapturer launches Chrome lazily on first use and reuses it.
type RodCapturer struct {
	opts    Options
	mu      sync.Mutex
	browser *rod.Browser
	// connect attaches to the launched browser; nil means Browser.Connect.
	connect func(*launcher.Launcher, *rod.Browser) error
}

func NewRodCapturer(opts Options) *RodCapturer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	return &RodCapturer{opts: opts}
}

func (r *RodCapturer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true)
	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin).NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	connect := r.connect
	if connect == nil {
		connect = func(_ *launcher.Launcher, b *rod.Browser) error { return b.Connect() }
	}
	if err := connect(l, browser); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.browser = browser
	internal.Info("Launched headless browser for screenshot capture")
	return browser, nil
}

// Capture loads rawURL and returns a PNG screenshot of it.
func (r *RodCapturer) Capture(ctx context.Context, rawURL string) (tracker.ImageBlob, error) {
	if err := ctx.Err(); err != nil {
		return tracker.ImageBlob{}, err
	}

	browser, err := r.ensureBrowser()
	if err != nil {
		return tracker.ImageBlob{}, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: rawURL})
	if err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.opts.Width,
		Height:            r.opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("%w: viewport: %v", ErrScreenshot, err)
	}

	if err := page.Timeout(r.opts.Timeout).WaitLoad(); err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	data, err := page.Screenshot(r.opts.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return tracker.ImageBlob{}, fmt.Errorf("%w: %v", ErrScreenshot, err)
	}

	internal.Info("Captured %s (%d bytes)", rawURL, len(data))
	return tracker.ImageBlob{
		Name:     FileName(rawURL),
		MIMEType: "image/png",
		Data:     data,
	}, nil
}

func (r *RodCapturer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		err := r.browser.Close()
		r.browser = nil
		return err
	}
	return nil
}

// Disabled is used when capture is turned off in the config.
type Disabled struct{}

func (Disabled) Capture(context.Context, string) (tracker.ImageBlob, error) {
	return tracker.ImageBlob{}, ErrDisabled
}

func (Disabled) Close() error { return nil }

// FileName derives a screenshot name such as "example.com-docs.png".
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "capture.png"
	}
	name := u.Hostname()
	if p := strings.Trim(u.Path, "/"); p != "" {
		name += "-" + p
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '-'
	}, name)
	if len(name) > 80 {
		name = name[:80]
	}
	return name + ".png"
}
