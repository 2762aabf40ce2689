package exports

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty         = errors.New("nothing to export: entry list is empty")
	ErrDecode        = errors.New("image decode failed")
	ErrDecodeFailed  = errors.New("export aborted: screenshot could not be decoded")
	ErrInvalidLayout = errors.New("invalid page layout")
	ErrVerify        = errors.New("generated PDF failed verification")
)

// DecodeFailedError identifies the screenshot that stopped an export.
// EntryIndex and ImageIndex are 0-based.
type DecodeFailedError struct {
	EntryIndex int
	ImageIndex int
	URL        string
	Err        error
}

func (e *DecodeFailedError) Error() string {
	return fmt.Sprintf("entry %d (%s), screenshot %d: %v", e.EntryIndex+1, e.URL, e.ImageIndex+1, e.Err)
}

func (e *DecodeFailedError) Unwrap() error {
	return e.Err
}

func (e *DecodeFailedError) Is(target error) bool {
	return target == ErrDecodeFailed
}
