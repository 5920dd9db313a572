package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/ocr"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/pipeline"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/repository"
)

type stubComparer struct {
	got    pipeline.CompareRequest
	result *llm.ComparisonResult
	err    error
}

func (s *stubComparer) Compare(_ context.Context, req pipeline.CompareRequest) (*llm.ComparisonResult, error) {
	s.got = req
	return s.result, s.err
}

type stubHistory struct {
	recs []*repository.HistoryRecord
	err  error
}

func (s stubHistory) List(context.Context) ([]*repository.HistoryRecord, error) {
	return s.recs, s.err
}

type stubExporter struct{ data []byte }

func (s stubExporter) ExportHistoryXLSX(context.Context) ([]byte, error) { return s.data, nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cmp Comparer, hist HistoryLister) (*HTTPServer, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewHTTPServer(HTTPConfig{UploadDir: dir}, cmp, hist, stubExporter{data: []byte("PK")}, quietLogger())
	s.now = func() time.Time { return time.Date(2026, 10, 16, 10, 15, 0, 0, time.UTC) }
	return s, dir
}

func multipartBody(t *testing.T, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, f := range files {
		w, err := mw.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(f[1]))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body["detail"]
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &stubComparer{}, stubHistory{})
	h := s.Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("GET /health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Errorf("missing generated request id")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodHead, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("HEAD /health = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") != "abc-123" {
		t.Errorf("request id not propagated: %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestCompare_MissingFile(t *testing.T) {
	cmp := &stubComparer{}
	s, _ := newTestServer(t, cmp, stubHistory{})
	body, ct := multipartBody(t, map[string][2]string{"invoice_file": {"inv.pdf", "x"}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compare", body)
	req.Header.Set("Content-Type", ct)
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if d := decodeDetail(t, rec); d != "Both invoice and purchase order files must be provided." {
		t.Errorf("detail = %q", d)
	}
	if cmp.got.InvoicePath != "" {
		t.Errorf("comparer called")
	}
}

func TestCompare_OversizeUpload(t *testing.T) {
	cmp := &stubComparer{}
	s := NewHTTPServer(HTTPConfig{UploadDir: t.TempDir(), MaxUploadBytes: 1024}, cmp, stubHistory{}, nil, quietLogger())
	body, ct := multipartBody(t, map[string][2]string{
		"invoice_file": {"inv.pdf", strings.Repeat("x", 4<<10)},
		"po_file":      {"po.pdf", "y"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compare", body)
	req.Header.Set("Content-Type", ct)
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if d := decodeDetail(t, rec); d != "Uploaded files exceed the maximum request size of 1024 bytes." {
		t.Errorf("detail = %q", d)
	}
	if cmp.got.InvoicePath != "" {
		t.Errorf("comparer called")
	}
}

func TestCompare_SavesUploadsAndReturnsResult(t *testing.T) {
	cmp := &stubComparer{result: &llm.ComparisonResult{InvoiceNumber: "INV-9", OverallStatus: "APPROVED"}}
	s, dir := newTestServer(t, cmp, stubHistory{})
	body, ct := multipartBody(t, map[string][2]string{
		"invoice_file": {"invoice.pdf", "%PDF-1.4 invoice"},
		"po_file":      {"scan.png", "png bytes"},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/compare", body)
	req.Header.Set("Content-Type", ct)
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got llm.ComparisonResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.InvoiceNumber != "INV-9" {
		t.Errorf("result = %+v", got)
	}
	if strings.Contains(rec.Body.String(), "currency_conversion") {
		t.Errorf("unexpected currency_conversion in %s", rec.Body.String())
	}

	wantInv := filepath.Join(dir, "20261016_101500_invoice_invoice.pdf")
	wantPO := filepath.Join(dir, "20261016_101500_po_scan.png")
	if cmp.got.InvoicePath != wantInv || cmp.got.POPath != wantPO {
		t.Errorf("paths = %q / %q", cmp.got.InvoicePath, cmp.got.POPath)
	}
	if cmp.got.InvoiceName != "invoice.pdf" || cmp.got.POName != "scan.png" {
		t.Errorf("names = %q / %q", cmp.got.InvoiceName, cmp.got.POName)
	}
	if cmp.got.InvoiceRecordName != "20261016_101500_invoice_invoice.pdf" {
		t.Errorf("record name = %q", cmp.got.InvoiceRecordName)
	}
	data, err := os.ReadFile(wantPO)
	if err != nil || string(data) != "png bytes" {
		t.Errorf("saved po = %q, %v", data, err)
	}
}

func TestCompare_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"unsupported", ocr.UnsupportedTypeError("po.docx"), http.StatusBadRequest, "Unsupported file type: .docx"},
		{"empty", common.NewAppError(common.CodeEmptyExtraction, "Could not extract text", common.ErrEmptyExtraction), http.StatusBadRequest, "Could not extract text"},
		{"model", common.NewAppError(common.CodeModelInvocation, "Failed to analyze documents with AI.", common.ErrModelInvocation), http.StatusInternalServerError, "Failed to analyze documents with AI."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, &stubComparer{err: tc.err}, stubHistory{})
			body, ct := multipartBody(t, map[string][2]string{
				"invoice_file": {"a.pdf", "x"},
				"po_file":      {"po.docx", "y"},
			})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/compare", body)
			req.Header.Set("Content-Type", ct)
			s.Routes().ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if d := decodeDetail(t, rec); d != tc.detail {
				t.Errorf("detail = %q", d)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	recs := []*repository.HistoryRecord{
		{ID: 2, Timestamp: "2026-10-16T10:00:00.000000Z", InvoiceFile: "b", POFile: "d"},
		{ID: 1, Timestamp: "2026-10-15T10:00:00.000000Z", InvoiceFile: "a", POFile: "c"},
	}
	s, _ := newTestServer(t, &stubComparer{}, stubHistory{recs: recs})
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0]["id"].(float64) != 2 || got[0]["invoice_file"] != "b" {
		t.Errorf("history = %v", got)
	}
	if _, ok := got[0]["result"]; !ok {
		t.Errorf("result key missing: %v", got[0])
	}
}

func TestHistory_EmptyAndFailure(t *testing.T) {
	s, _ := newTestServer(t, &stubComparer{}, stubHistory{})
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty history = %d %q", rec.Code, rec.Body.String())
	}

	s, _ = newTestServer(t, &stubComparer{}, stubHistory{err: common.ErrStorageRead})
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusInternalServerError || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("failed history = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHistoryExport(t *testing.T) {
	s, _ := newTestServer(t, &stubComparer{}, stubHistory{})
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "comparison_history_20261016.xlsx") {
		t.Errorf("disposition = %q", cd)
	}
}
