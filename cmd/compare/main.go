package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/pipeline"
	svc "github.com/joseph-ayodele/invoice-po-matcher/internal/server"
)

// compare runs one comparison from the command line and prints the result as JSON.
func main() {
	var (
		invoice = flag.String("invoice", "", "path to the invoice (pdf or image)")
		po      = flag.String("po", "", "path to the purchase order (pdf or image)")
		record  = flag.Bool("record", false, "append the result to the history store")
		timeout = flag.Duration("timeout", 3*time.Minute, "overall deadline")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if *invoice == "" || *po == "" {
		logger.Error("usage", "cmd", "compare -invoice <file> -po <file> [-record]")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", common.PublicMessage(err))
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var history pipeline.HistoryWriter
	if *record {
		store, err := svc.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			os.Exit(1)
		}
		defer svc.CloseDB(store, logger)
		history = store
	}

	processor, err := svc.NewProcessor(cfg, history, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}

	res, err := processor.Compare(ctx, pipeline.CompareRequest{
		InvoicePath: *invoice,
		InvoiceName: filepath.Base(*invoice),
		POPath:      *po,
		POName:      filepath.Base(*po),
	})
	if err != nil {
		logger.Error("compare failed", "error", err)
		fmt.Fprintln(os.Stderr, common.PublicMessage(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
