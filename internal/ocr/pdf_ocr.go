package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-po-matcher/constants"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
)

var rePdfinfoPages = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// extractPDF reads the text layer first and only rasterizes pages when every
// page comes back blank.
func (e *Extractor) extractPDF(ctx context.Context, path, filename string) (ExtractionResult, error) {
	failure := func(cause error) error {
		return common.NewAppError(common.CodePDFExtraction,
			"Failed to extract text from PDF: "+filepath.Base(filename),
			fmt.Errorf("%w: %w", common.ErrPDFExtraction, cause))
	}

	pages, err := e.pdfToText(ctx, path)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF}, failure(err)
	}
	text := joinPages(pages)
	if strings.TrimSpace(text) != "" {
		return ExtractionResult{
			Text:       text,
			Pages:      len(pages),
			SourceType: constants.PDF,
			Method:     "pdf-text",
			Confidence: 1,
		}, nil
	}

	count := len(pages)
	if count == 0 {
		if count, err = e.pdfPageCount(ctx, path); err != nil {
			return ExtractionResult{SourceType: constants.PDF}, failure(err)
		}
	}
	if e.cfg.MaxPages > 0 && count > e.cfg.MaxPages {
		e.logger.Warn("ocr.pdf.too_many_pages", "filename", filename, "pages", count, "max_pages", e.cfg.MaxPages)
		return ExtractionResult{SourceType: constants.PDF, Pages: count},
			failure(fmt.Errorf("scanned PDF has %d pages, OCR limit is %d", count, e.cfg.MaxPages))
	}
	e.logger.Info("ocr.pdf.fallback", "filename", filename, "pages", count, "dpi", e.cfg.DPI)

	ocrText, err := e.pdfToOCR(ctx, path, count)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF}, failure(err)
	}
	return ExtractionResult{
		Text:       ocrText,
		Pages:      count,
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Confidence: heuristicConfidence(ocrText),
	}, nil
}

// pdfToText returns the text of each page in order.
func (e *Extractor) pdfToText(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, _, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on form feeds. pdftotext terminates every
// page (including the last) with \f, so a trailing empty element is dropped.
func splitPages(out string) []string {
	if out == "" {
		return nil
	}
	pages := strings.Split(out, "\f")
	if strings.HasSuffix(out, "\f") {
		pages = pages[:len(pages)-1]
	}
	return pages
}

func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Extractor) pdfPageCount(ctx context.Context, path string) (int, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Pdfinfo, path)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	m := rePdfinfoPages.FindStringSubmatch(string(out))
	if m == nil {
		return 0, fmt.Errorf("pdfinfo: page count not found")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("pdfinfo: invalid page count %q", m[1])
	}
	return n, nil
}

// pdfToOCR renders and recognizes one page at a time; each page image is
// removed before the next one is rendered.
func (e *Extractor) pdfToOCR(ctx context.Context, path string, pages int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "po-pp-*")
	if err != nil {
		return "", err
	}
	defer func(dir string) {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", dir, "error", err)
		}
	}(tmpDir)

	var b strings.Builder
	dpi := strconv.Itoa(e.cfg.DPI)
	for n := 1; n <= pages; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := strconv.Itoa(n)
		prefix := filepath.Join(tmpDir, "page-"+page)
		// pdftoppm -f N -l N -r <dpi> -png -singlefile <in.pdf> <tmp/page-N>
		if _, _, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-f", page, "-l", page, "-r", dpi, "-png", "-singlefile", path, prefix); err != nil {
			return "", fmt.Errorf("pdftoppm page %d: %w", n, err)
		}
		img := prefix + ".png"
		txt, err := e.tesseractOCR(ctx, img)
		if rmErr := os.Remove(img); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Debug("ocr.pdf.page_remove_failed", "page", n, "error", rmErr)
		}
		if err != nil {
			return "", fmt.Errorf("ocr page %d: %w", n, err)
		}
		b.WriteString(Normalize(txt))
		b.WriteString("\n")
	}
	return b.String(), nil
}
