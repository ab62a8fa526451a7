package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disablePDFCPUConfig sync.Once

// readPDF returns one unit per page. pdfcpu validates the file structure
// first so corrupt uploads fail before ledongthuc walks the page tree.
func readPDF(ctx context.Context, path string, log *slog.Logger) (units []string, err error) {
	disablePDFCPUConfig.Do(api.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pageCount, err := api.PageCount(f, conf)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}

	// ledongthuc/pdf panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = fmt.Errorf("malformed PDF content: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	pages := reader.NumPage()
	if pages != pageCount {
		log.WarnContext(ctx, "pdf page count mismatch", "pdfcpu", pageCount, "reader", pages)
	}

	units = make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			units = append(units, "")
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		units = append(units, text)
	}

	return units, nil
}
