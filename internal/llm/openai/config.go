package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for an OpenAI-compatible chat/completions endpoint (OpenRouter by default).
type Config struct {
	APIKey  string        // if empty, falls back to env OPENROUTER_API_KEY then OPENAI_API_KEY
	BaseURL string        // default https://openrouter.ai/api/v1
	Model   string        // e.g., "qwen/qwen-2.5-72b-instruct"
	Timeout time.Duration // http client timeout

	// Optional OpenRouter attribution headers.
	Referer string
	Title   string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen/qwen-2.5-72b-instruct"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Title == "" {
		cfg.Title = "po-matcher"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
