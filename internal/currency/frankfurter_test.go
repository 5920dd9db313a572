package currency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConvert_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("amount") != "9200" || q.Get("from") != "INR" || q.Get("to") != "USD" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"amount":9200.0,"base":"INR","date":"2026-10-15","rates":{"USD":100.004}}`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Convert(context.Background(), decimal.NewFromInt(9200), "INR", "USD")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("converted = %s, want 100.00", got)
	}
}

func TestConvert_UnsupportedCurrency(t *testing.T) {
	for name, body := range map[string]string{
		"missing": `{"amount":1,"base":"USD","rates":{}}`,
		"zero":    `{"amount":1,"base":"USD","rates":{"XYZ":0}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()
			_, err := newTestClient(srv.URL).Convert(context.Background(), decimal.NewFromInt(1), "USD", "XYZ")
			if err == nil || err.Error() != "Error: XYZ is not a supported currency." {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestConvert_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Convert(context.Background(), decimal.NewFromInt(1), "USD", "ABC")
	var le *LookupError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *LookupError", err)
	}
	if !strings.HasPrefix(le.Message, "Error: Unable to fetch exchange rates - ") {
		t.Errorf("message = %q", le.Message)
	}

	srv.Close()
	_, err = newTestClient(srv.URL).Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR")
	if err == nil || !strings.HasPrefix(err.Error(), "Error: Unable to fetch exchange rates - ") {
		t.Errorf("closed server err = %v", err)
	}
}
