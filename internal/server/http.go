package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/pipeline"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/repository"
)

const (
	missingFilesMessage = "Both invoice and purchase order files must be provided."
	tooLargeMessage     = "Uploaded files exceed the maximum request size of %d bytes."
	uploadStampLayout   = "20060102_150405"
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Comparer runs one invoice/PO comparison.
type Comparer interface {
	Compare(ctx context.Context, req pipeline.CompareRequest) (*llm.ComparisonResult, error)
}

// HistoryLister reads the comparison history, newest first.
type HistoryLister interface {
	List(ctx context.Context) ([]*repository.HistoryRecord, error)
}

// Exporter renders the history as a workbook.
type Exporter interface {
	ExportHistoryXLSX(ctx context.Context) ([]byte, error)
}

type HTTPConfig struct {
	UploadDir      string
	MaxUploadBytes int64
}

// HTTPServer serves the comparison API.
type HTTPServer struct {
	cfg      HTTPConfig
	compare  Comparer
	history  HistoryLister
	exporter Exporter // optional
	logger   *slog.Logger
	now      func() time.Time
}

func NewHTTPServer(cfg HTTPConfig, cmp Comparer, history HistoryLister, exporter Exporter, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &HTTPServer{cfg: cfg, compare: cmp, history: history, exporter: exporter, logger: logger, now: time.Now}
}

// Routes returns the router with request-ID, recovery and access-log middleware.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(s.logger))

	r.Get("/health", s.health)
	r.Head("/health", s.health)
	r.Post("/compare", s.handleCompare)
	r.Get("/history", s.handleHistory)
	r.Get("/history/export", s.handleExport)
	return r
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := common.LoggerFromContext(ctx, s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("http.compare.too_large", "limit", tooLarge.Limit, "error", err)
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(tooLargeMessage, tooLarge.Limit))
			return
		}
		log.Warn("http.compare.bad_form", "error", err)
		writeDetail(w, http.StatusBadRequest, missingFilesMessage)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	invFile, invHeader, invErr := r.FormFile("invoice_file")
	poFile, poHeader, poErr := r.FormFile("po_file")
	if invErr == nil {
		defer invFile.Close()
	}
	if poErr == nil {
		defer poFile.Close()
	}
	if invErr != nil || poErr != nil || invHeader.Filename == "" || poHeader.Filename == "" {
		writeDetail(w, http.StatusBadRequest, missingFilesMessage)
		return
	}

	stamp := s.now().Format(uploadStampLayout)
	invName := filepath.Base(invHeader.Filename)
	poName := filepath.Base(poHeader.Filename)
	invStored := fmt.Sprintf("%s_invoice_%s", stamp, invName)
	poStored := fmt.Sprintf("%s_po_%s", stamp, poName)

	invPath, err := s.saveUpload(invFile, invStored)
	if err != nil {
		log.Error("http.compare.save_failed", "file", invStored, "error", err)
		writeDetail(w, http.StatusInternalServerError, common.PublicMessage(err))
		return
	}
	poPath, err := s.saveUpload(poFile, poStored)
	if err != nil {
		log.Error("http.compare.save_failed", "file", poStored, "error", err)
		writeDetail(w, http.StatusInternalServerError, common.PublicMessage(err))
		return
	}

	res, err := s.compare.Compare(ctx, pipeline.CompareRequest{
		InvoicePath:       invPath,
		InvoiceName:       invName,
		POPath:            poPath,
		POName:            poName,
		InvoiceRecordName: invStored,
		PORecordName:      poStored,
	})
	if err != nil {
		writeDetail(w, common.HTTPStatus(err), common.PublicMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) saveUpload(src multipart.File, name string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path, nil
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.history.List(r.Context())
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("http.history.failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, []any{})
		return
	}
	if recs == nil {
		recs = []*repository.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeDetail(w, http.StatusNotFound, "Export is not enabled.")
		return
	}
	data, err := s.exporter.ExportHistoryXLSX(r.Context())
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("http.export.failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, common.PublicMessage(err))
		return
	}
	filename := fmt.Sprintf("comparison_history_%s.xlsx", s.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
