package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	OCR      OCRConfig      `yaml:"ocr"`
	LLM      LLMConfig      `yaml:"llm"`
	FX       FXConfig       `yaml:"fx"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"` // empty disables the gRPC listener
	UploadDir       string        `yaml:"upload_dir"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds history store configuration.
// DSN is a SQLite file path (or "file:" URI) unless it starts with postgres:// or postgresql://.
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	DPI           int    `yaml:"dpi"`
	TesseractLang string `yaml:"tesseract_lang"`
	TessdataDir   string `yaml:"tessdata_dir"`
	Preprocess    bool   `yaml:"preprocess"`
	PSM           int    `yaml:"psm"`
	OEM           int    `yaml:"oem"`
	MaxPages      int    `yaml:"max_pages"` // scanned PDFs with more pages are rejected; 0 = no limit
	TSVConfidence bool   `yaml:"tsv_confidence"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"-"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Referer     string        `yaml:"referer"`
	Title       string        `yaml:"title"`
}

// FXConfig configures the exchange-rate lookup.
type FXConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			GRPCAddr:        ":9090",
			UploadDir:       "uploads",
			MaxUploadBytes:  32 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "database.db",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		OCR: OCRConfig{
			DPI:           200,
			TesseractLang: "eng",
			Preprocess:    true,
		},
		LLM: LLMConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "qwen/qwen-2.5-72b-instruct",
			Temperature: 0.1,
			Timeout:     60 * time.Second,
		},
		FX: FXConfig{
			BaseURL: "https://api.frankfurter.app",
			Timeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.GRPCAddr = getEnvAllowEmpty("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.UploadDir = getEnv("UPLOAD_DIR", cfg.Server.UploadDir)
	cfg.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", cfg.Server.MaxUploadBytes)
	cfg.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Database.DSN = getEnv("HISTORY_DSN", cfg.Database.DSN)
	cfg.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", cfg.Database.MaxConnLifetime)
	cfg.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", cfg.Database.MaxConnIdleTime)
	cfg.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", cfg.Database.DialTimeout)
	cfg.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", cfg.Database.StatementTimeout)

	cfg.OCR.DPI = getEnvAsInt("OCR_DPI", cfg.OCR.DPI)
	cfg.OCR.TesseractLang = getEnv("TESSERACT_LANG", cfg.OCR.TesseractLang)
	cfg.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", cfg.OCR.TessdataDir)
	cfg.OCR.Preprocess = getEnvAsBool("OCR_PREPROCESS", cfg.OCR.Preprocess)
	cfg.OCR.PSM = getEnvAsInt("OCR_PSM", cfg.OCR.PSM)
	cfg.OCR.OEM = getEnvAsInt("OCR_OEM", cfg.OCR.OEM)
	cfg.OCR.MaxPages = getEnvAsInt("OCR_MAX_PAGES", cfg.OCR.MaxPages)
	cfg.OCR.TSVConfidence = getEnvAsBool("OCR_TSV_CONFIDENCE", cfg.OCR.TSVConfidence)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnv("OPENROUTER_API_KEY", getEnv("OPENAI_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.Referer = getEnv("LLM_REFERER", cfg.LLM.Referer)
	cfg.LLM.Title = getEnv("LLM_TITLE", cfg.LLM.Title)

	cfg.FX.BaseURL = getEnv("FX_BASE_URL", cfg.FX.BaseURL)
	cfg.FX.Timeout = getEnvAsDuration("FX_TIMEOUT", cfg.FX.Timeout)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENROUTER_API_KEY is required", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "HISTORY_DSN is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError(CodeConfig, "OCR_DPI must be positive", ErrInvalidInput)
	}
	if c.OCR.MaxPages < 0 {
		return NewAppError(CodeConfig, "OCR_MAX_PAGES must not be negative", ErrInvalidInput)
	}
	return nil
}
