// Package tracker holds the in-memory list of tracked URLs and their screenshots.
package tracker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyURL        = errors.New("url must not be empty")
	ErrNoScreenshots   = errors.New("at least one screenshot is required")
	ErrNotImage        = errors.New("attachment is not an image")
	ErrIndexOutOfRange = errors.New("entry index out of range")
)

// ImageBlob is an attached screenshot. Data must not be modified once the
// blob is attached to an Entry.
type ImageBlob struct {
	Name     string
	MIMEType string
	Data     []byte
}

func (b ImageBlob) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(b.MIMEType), "image/")
}

type Entry struct {
	URL         string
	Screenshots []ImageBlob
}

func (e Entry) clone() Entry {
	shots := make([]ImageBlob, len(e.Screenshots))
	copy(shots, e.Screenshots)
	return Entry{URL: e.URL, Screenshots: shots}
}

// ValidateEntry applies the form rules: a non-empty URL and one or more image
// attachments.
func ValidateEntry(e Entry) error {
	if strings.TrimSpace(e.URL) == "" {
		return ErrEmptyURL
	}
	if len(e.Screenshots) == 0 {
		return ErrNoScreenshots
	}
	for i, shot := range e.Screenshots {
		if !shot.IsImage() {
			return fmt.Errorf("%w: screenshot %d (%q) has type %q", ErrNotImage, i+1, shot.Name, shot.MIMEType)
		}
	}
	return nil
}

// FilterImages keeps the image/* blobs in their original order and reports how
// many were dropped.
func FilterImages(blobs []ImageBlob) (kept []ImageBlob, rejected int) {
	for _, b := range blobs {
		if b.IsImage() {
			kept = append(kept, b)
			continue
		}
		rejected++
	}
	return kept, rejected
}
