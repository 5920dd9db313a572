package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-po-matcher/constants"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Pdfinfo   string // binary name or absolute path; if empty -> "pdfinfo"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI for scanned PDFs, default 200
	// MaxPages caps how many pages a scanned PDF may have before OCR is
	// refused. 0 = no limit.
	MaxPages int

	// Preprocess converts images to grayscale before recognition.
	Preprocess bool

	// TSVConfidence runs a second tesseract pass in TSV mode on images and
	// blends the mean word confidence into ExtractionResult.Confidence.
	TSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Duration   time.Duration
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

func (c Config) withDefaults() Config {
	or := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	c.Pdftotext = or(c.Pdftotext, "pdftotext")
	c.Pdftoppm = or(c.Pdftoppm, "pdftoppm")
	c.Pdfinfo = or(c.Pdfinfo, "pdfinfo")
	c.Tesseract = or(c.Tesseract, "tesseract")
	c.TesseractLang = or(c.TesseractLang, "eng")
	if c.DPI <= 0 {
		c.DPI = 200
	}
	return c
}

// WithRunner swaps the command runner (tests use a stub).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Supported reports whether filename has an extension the extractor can read.
func Supported(filename string) bool {
	return constants.MapExtToFormat(filepath.Ext(filename)) != ""
}

// UnsupportedTypeError builds the error returned for unknown extensions.
func UnsupportedTypeError(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	return common.NewAppError(common.CodeUnsupportedType, fmt.Sprintf("Unsupported file type: %s", ext), common.ErrUnsupportedType)
}

// Extract reads the file at path. The strategy is chosen from the extension of
// filename, which is the name the document was uploaded under.
func (e *Extractor) Extract(ctx context.Context, path, filename string) (ExtractionResult, error) {
	start := time.Now()
	if filename == "" {
		filename = filepath.Base(path)
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	e.logger.Debug("ocr.extract.start", "path", path, "filename", filename, "ext", ext)

	var (
		res ExtractionResult
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path, filename)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path, filename)
	default:
		e.logger.Warn("ocr.extract.unsupported", "filename", filename, "ext", ext)
		return ExtractionResult{}, UnsupportedTypeError(filename)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.extract.failed", "filename", filename, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, err
	}
	e.logger.Info("ocr.extract.ok",
		"filename", filename,
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
