// Package currency converts amounts through the Frankfurter exchange-rate API.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LookupError carries the user-facing failure text for a conversion.
type LookupError struct {
	Message string
	Cause   error
}

func (e *LookupError) Error() string { return e.Message }

func (e *LookupError) Unwrap() error { return e.Cause }

func unsupported(code string) error {
	return &LookupError{Message: fmt.Sprintf("Error: %s is not a supported currency.", code)}
}

func unreachable(cause error) error {
	return &LookupError{Message: "Error: Unable to fetch exchange rates - " + cause.Error(), Cause: cause}
}

type Config struct {
	BaseURL string        // default https://api.frankfurter.app
	Timeout time.Duration // default 15s
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.frankfurter.app"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type latestResponse struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// Convert returns amount expressed in "to", rounded to 2 decimals.
// Every error is a *LookupError whose message is meant for end users.
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	start := time.Now()
	q := url.Values{}
	q.Set("amount", amount.String())
	q.Set("from", from)
	q.Set("to", to)
	endpoint := c.baseURL + "/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, unreachable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("fx.http_error", "from", from, "to", to, "error", err)
		return decimal.Zero, unreachable(err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("fx.response_body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("fx.bad_status", "from", from, "to", to, "status", resp.StatusCode)
		return decimal.Zero, unreachable(fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), endpoint))
	}

	var body latestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return decimal.Zero, unreachable(fmt.Errorf("decode response: %w", err))
	}
	rate, ok := body.Rates[to]
	if !ok || rate.IsZero() {
		c.logger.Warn("fx.unsupported_currency", "to", to, "rates", len(body.Rates))
		return decimal.Zero, unsupported(to)
	}

	converted := rate.Round(2)
	c.logger.Info("fx.convert.ok",
		"amount", amount.String(),
		"from", from,
		"to", to,
		"converted", converted.String(),
		"rate_date", body.Date,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return converted, nil
}
