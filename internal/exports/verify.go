package exports

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PageCount parses a PDF with pdfcpu and returns its number of pages.
func PageCount(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}

func verifyPDF(data []byte, wantPages int) error {
	pages, err := PageCount(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if pages != wantPages {
		return fmt.Errorf("%w: got %d pages, want %d", ErrVerify, pages, wantPages)
	}
	return nil
}
