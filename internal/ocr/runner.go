package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external tool. Tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs the poppler and tesseract binaries.
type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	log := r.logger
	if log == nil {
		log = slog.Default()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		log.Error("ocr.exec.failed",
			"tool", name,
			"argc", len(args),
			"elapsed_ms", elapsed,
			"error", err,
			"stderr", truncate(strings.TrimSpace(stderr.String()), 4<<10),
		)
		return stdout.Bytes(), stderr.Bytes(), err
	}
	log.Debug("ocr.exec.ok", "tool", name, "elapsed_ms", elapsed, "stdout_bytes", stdout.Len())
	return stdout.Bytes(), stderr.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
