package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com", "example.com.png"},
		{"https://example.com/docs/intro/", "example.com-docs-intro.png"},
		{"https://a.com/search?q=1", "a.com-search.png"},
		{"https://a.com/café", "a.com-caf-.png"},
		{"not a url", "capture.png"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FileName(tt.input); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	var c Capturer = Disabled{}
	if _, err := c.Capture(context.Background(), "https://a.com"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Capture() error = %v, want ErrDisabled", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestNewRodCapturer_Defaults(t *testing.T) {
	c := NewRodCapturer(Options{})
	d := DefaultOptions()
	if c.opts.Timeout != d.Timeout || c.opts.Width != d.Width || c.opts.Height != d.Height {
		t.Errorf("opts = %+v, want defaults %+v", c.opts, d)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() before launch = %v", err)
	}
}

func TestRodCapturer_Capture(t *testing.T) {
	if os.Getenv("URLTRACK_ROD_TEST") != "1" {
		t.Skip("set URLTRACK_ROD_TEST=1 to run headless browser tests")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body style="background:#fc0"><h1>capture me</h1></body></html>`)
	}))
	defer srv.Close()

	c := NewRodCapturer(Options{Width: 320, Height: 240})
	defer c.Close()

	blob, err := c.Capture(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if blob.MIMEType != "image/png" || len(blob.Data) == 0 {
		t.Errorf("blob = %s, %d bytes", blob.MIMEType, len(blob.Data))
	}
	if string(blob.Data[1:4]) != "PNG" {
		t.Errorf("data is not a PNG")
	}
}

// processAlive reports whether pid is running and not a zombie.
func processAlive(pid int) bool {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// The state follows the parenthesised command name.
	i := strings.LastIndexByte(string(stat), ')')
	return i < 0 || i+2 >= len(stat) || stat[i+2] != 'Z'
}

func TestRodCapturer_ConnectFailureStopsBrowser(t *testing.T) {
	if os.Getenv("URLTRACK_ROD_TEST") != "1" {
		t.Skip("set URLTRACK_ROD_TEST=1 to run headless browser tests")
	}
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc to inspect the browser process")
	}

	var pid int
	c := NewRodCapturer(Options{})
	c.connect = func(l *launcher.Launcher, _ *rod.Browser) error {
		pid = l.PID()
		return errors.New("refused")
	}

	if _, err := c.ensureBrowser(); !errors.Is(err, ErrBrowserConnect) {
		t.Fatalf("ensureBrowser() error = %v, want ErrBrowserConnect", err)
	}
	if pid == 0 {
		t.Fatal("browser was never launched")
	}

	deadline := time.Now().Add(5 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("browser process %d still running after a failed connect", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if c.browser != nil {
		t.Error("a failed connect must not cache the browser")
	}
}
