package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-po-matcher/constants"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
)

func (e *Extractor) extractImage(ctx context.Context, path, filename string) (ExtractionResult, error) {
	failure := func(cause error) error {
		return common.NewAppError(common.CodeOCRFailure,
			"Failed to perform OCR on image: "+filepath.Base(filename),
			fmt.Errorf("%w: %w", common.ErrOCRFailure, cause))
	}

	prepared, cleanup, err := e.prepareImage(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE}, failure(err)
	}
	defer cleanup()

	txt, err := e.tesseractOCR(ctx, prepared)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE}, failure(err)
	}
	txt = Normalize(txt)

	var ocrConf float32
	if e.cfg.TSVConfidence {
		if c, err := e.tesseractTSVConfidence(ctx, prepared); err == nil {
			ocrConf = c
		} else {
			e.logger.Warn("ocr.image.tsv_confidence_failed", "filename", filename, "error", err)
		}
	}
	conf := heuristicConfidence(txt)
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*conf
	}

	return ExtractionResult{
		Text:       txt,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Confidence: conf,
	}, nil
}

// prepareImage decodes the image (honouring EXIF orientation) and writes a PNG
// copy for tesseract. Decoding up front turns corrupt uploads into OCR failures
// before any external command runs.
func (e *Extractor) prepareImage(path string) (string, func(), error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", func() {}, fmt.Errorf("decode image: %w", err)
	}
	img := src
	if e.cfg.Preprocess {
		img = imaging.Grayscale(src)
	}

	tmpDir, err := os.MkdirTemp("", "po-img-*")
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.image.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}
	out := filepath.Join(tmpDir, "page.png")
	if err := imaging.Save(img, out); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("write preprocessed image: %w", err)
	}
	return out, cleanup, nil
}

// tesseractArgs builds "tesseract <file> stdout -l <lang> [opts] [configs...]".
func (e *Extractor) tesseractArgs(path string, configs ...string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, configs...)
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// tesseractTSVConfidence returns the mean word confidence in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, error) {
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path, "tsv")...)
	if err != nil {
		return 0, fmt.Errorf("tesseract tsv: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column (index 10) of word rows; -1 marks non-word rows.
func meanTSVConfidence(tsv string) float32 {
	const confCol = 10
	var sum float64
	n := 0
	for i, ln := range strings.Split(tsv, "\n") {
		cols := strings.Split(ln, "\t")
		if i == 0 || len(cols) < 12 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[confCol]), 64)
		if err != nil || v < 0 {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(sum / float64(n) / 100)
}
