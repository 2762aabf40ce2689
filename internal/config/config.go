// Package config loads urltrack settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/pwnholic/urltrack/internal"
	"github.com/pwnholic/urltrack/internal/capture"
	"github.com/pwnholic/urltrack/internal/clients"
	"github.com/pwnholic/urltrack/internal/exports"
)

var ErrInvalidConfig = errors.New("invalid config")

// MaxFileSize limits config input (1MB).
const MaxFileSize = 1 << 20

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Export  ExportConfig  `yaml:"export"`
	Layout  LayoutConfig  `yaml:"layout"`
	Preview PreviewConfig `yaml:"preview"`
	Capture CaptureConfig `yaml:"capture"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxUploadMB bounds one multipart form submission.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ExportConfig struct {
	Filename      string        `yaml:"filename"`
	Verify        bool          `yaml:"verify"`
	DecodeTimeout time.Duration `yaml:"decode_timeout"`
	MaxPixelWidth int           `yaml:"max_pixel_width"`
	MaxPixels     int           `yaml:"max_pixels"`
	JPEGQuality   int           `yaml:"jpeg_quality"`
	Workers       int           `yaml:"workers"`
}

type LayoutConfig struct {
	Unit             string  `yaml:"unit"`
	PageWidth        float64 `yaml:"page_width"`
	PageHeight       float64 `yaml:"page_height"`
	XMargin          float64 `yaml:"x_margin"`
	HeadingY         float64 `yaml:"heading_y"`
	HeadingHeight    float64 `yaml:"heading_height"`
	TopMargin        float64 `yaml:"top_margin"`
	MaxContentWidth  float64 `yaml:"max_content_width"`
	MaxContentHeight float64 `yaml:"max_content_height"`
	ImageGap         float64 `yaml:"image_gap"`
	HeadingFontSize  float64 `yaml:"heading_font_size"`
	BodyFontSize     float64 `yaml:"body_font_size"`
	ClampHeight      bool    `yaml:"clamp_height"`
	SeparatorRule    bool    `yaml:"separator_rule"`
}

type PreviewConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	RetryCount   int           `yaml:"retry_count"`
	RetryWait    time.Duration `yaml:"retry_wait"`
	RetryMaxWait time.Duration `yaml:"retry_max_wait"`
	UserAgent    string        `yaml:"user_agent"`
}

type CaptureConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Timeout  time.Duration `yaml:"timeout"`
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"`
	FullPage bool          `yaml:"full_page"`
}

func Default() *Config {
	layout := exports.DefaultLayout()
	http := clients.DefaultHTTPClientOptions()
	capt := capture.DefaultOptions()
	return &Config{
		Server: ServerConfig{Addr: ":8080", MaxUploadMB: 64},
		Log:    LogConfig{Level: "info"},
		Export: ExportConfig{
			Filename:      exports.DefaultFilename,
			Verify:        true,
			DecodeTimeout: 10 * time.Second,
			MaxPixelWidth: 2400,
			MaxPixels:     exports.DefaultMaxPixels,
			JPEGQuality:   90,
			Workers:       4,
		},
		Layout: LayoutConfig{
			Unit:             layout.Unit,
			PageWidth:        layout.PageWidth,
			PageHeight:       layout.PageHeight,
			XMargin:          layout.XMargin,
			HeadingY:         layout.HeadingY,
			HeadingHeight:    layout.HeadingHeight,
			TopMargin:        layout.TopMargin,
			MaxContentWidth:  layout.MaxContentWidth,
			MaxContentHeight: layout.MaxContentHeight,
			ImageGap:         layout.ImageGap,
			HeadingFontSize:  layout.HeadingFontSize,
			BodyFontSize:     layout.BodyFontSize,
			ClampHeight:      layout.ClampHeight,
			SeparatorRule:    layout.SeparatorRule,
		},
		Preview: PreviewConfig{
			Timeout:      http.Timeout,
			RetryCount:   http.RetryCount,
			RetryWait:    http.RetryWaitTime,
			RetryMaxWait: http.RetryMaxWaitTime,
			UserAgent:    http.UserAgent,
		},
		Capture: CaptureConfig{
			Enabled: false,
			Timeout: capt.Timeout,
			Width:   capt.Width,
			Height:  capt.Height,
		},
	}
}

// Load reads path on top of the defaults. A missing file yields the defaults
// unchanged; unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			internal.Debug("Config %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrInvalidConfig, path, len(data), MaxFileSize)
	}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := internal.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.PageLayout().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Export.Filename == "" {
		return fmt.Errorf("%w: export.filename must not be empty", ErrInvalidConfig)
	}
	if c.Export.DecodeTimeout < 0 || c.Preview.Timeout < 0 || c.Capture.Timeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}
	if c.Export.MaxPixelWidth < 0 {
		return fmt.Errorf("%w: export.max_pixel_width must not be negative", ErrInvalidConfig)
	}
	if c.Export.MaxPixels < 1 {
		return fmt.Errorf("%w: export.max_pixels must be >= 1", ErrInvalidConfig)
	}
	if c.Export.JPEGQuality < 0 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("%w: export.jpeg_quality must be within 0-100", ErrInvalidConfig)
	}
	if c.Export.Workers < 1 {
		return fmt.Errorf("%w: export.workers must be >= 1", ErrInvalidConfig)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("%w: server.max_upload_mb must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) PageLayout() exports.Layout {
	l := c.Layout
	return exports.Layout{
		Unit:             l.Unit,
		PageWidth:        l.PageWidth,
		PageHeight:       l.PageHeight,
		XMargin:          l.XMargin,
		HeadingY:         l.HeadingY,
		HeadingHeight:    l.HeadingHeight,
		TopMargin:        l.TopMargin,
		MaxContentWidth:  l.MaxContentWidth,
		MaxContentHeight: l.MaxContentHeight,
		ImageGap:         l.ImageGap,
		HeadingFontSize:  l.HeadingFontSize,
		BodyFontSize:     l.BodyFontSize,
		ClampHeight:      l.ClampHeight,
		SeparatorRule:    l.SeparatorRule,
	}
}

func (c *Config) Decoder() *exports.ImageDecoder {
	d := exports.NewImageDecoder()
	d.Timeout = c.Export.DecodeTimeout
	d.MaxPixelWidth = c.Export.MaxPixelWidth
	d.MaxPixels = c.Export.MaxPixels
	if c.Export.JPEGQuality > 0 {
		d.Quality = c.Export.JPEGQuality
	}
	return d
}

func (c *Config) DocumentExporter() *exports.DocumentExporter {
	pdf := exports.NewPDFExporter(c.PageLayout(), c.Decoder())
	pdf.Verify = c.Export.Verify
	return &exports.DocumentExporter{PDF: pdf, Filename: c.Export.Filename}
}

func (c *Config) HTTPClientOptions() *clients.HTTPClientOptions {
	return &clients.HTTPClientOptions{
		RetryCount:       c.Preview.RetryCount,
		RetryWaitTime:    c.Preview.RetryWait,
		RetryMaxWaitTime: c.Preview.RetryMaxWait,
		Timeout:          c.Preview.Timeout,
		UserAgent:        c.Preview.UserAgent,
	}
}

// Capturer returns a rod capturer when capture is enabled.
func (c *Config) Capturer() capture.Capturer {
	if !c.Capture.Enabled {
		return capture.Disabled{}
	}
	return capture.NewRodCapturer(capture.Options{
		Timeout:  c.Capture.Timeout,
		Width:    c.Capture.Width,
		Height:   c.Capture.Height,
		FullPage: c.Capture.FullPage,
	})
}
