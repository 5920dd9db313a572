package server

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/currency"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/ocr"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/pipeline"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/reconcile"
)

// NewProcessor wires extraction, the model client, the rate lookup and the
// optional history store into a pipeline.Processor.
func NewProcessor(cfg *common.Config, history pipeline.HistoryWriter, logger *slog.Logger) (*pipeline.Processor, error) {
	extractor := ocr.NewExtractor(ocrConfig(cfg.OCR), logger)
	client := openai.NewClient(modelConfig(cfg.LLM), logger)
	comparator, err := llm.NewComparator(client, cfg.LLM.Temperature, logger)
	if err != nil {
		return nil, err
	}

	rates := currency.NewClient(currency.Config{BaseURL: cfg.FX.BaseURL, Timeout: cfg.FX.Timeout}, logger)
	reconciler := reconcile.NewReconciler(rates, logger)

	return pipeline.NewProcessor(logger, extractor, comparator, reconciler, history), nil
}

func ocrConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		TesseractLang: c.TesseractLang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.DPI,
		MaxPages:      c.MaxPages,
		Preprocess:    c.Preprocess,
		TSVConfidence: c.TSVConfidence,
		PSM:           c.PSM,
		OEM:           c.OEM,
	}
}

func modelConfig(c common.LLMConfig) openai.Config {
	return openai.Config{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
		Referer: c.Referer,
		Title:   c.Title,
	}
}
