package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-po-matcher/internal/common"
	"github.com/joseph-ayodele/invoice-po-matcher/internal/llm"
)

const historyTable = "history"

// TimestampLayout is fixed-width UTC so that text ordering equals time ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// HistoryRecord is one completed comparison. Records are never updated.
type HistoryRecord struct {
	ID          int64                `json:"id"`
	Timestamp   string               `json:"timestamp"`
	InvoiceFile string               `json:"invoice_file"`
	POFile      string               `json:"po_file"`
	Result      llm.ComparisonResult `json:"result"`
}

// HistoryRepository is the append-only comparison log.
type HistoryRepository interface {
	Append(ctx context.Context, invoiceFile, poFile string, result *llm.ComparisonResult) (*HistoryRecord, error)
	List(ctx context.Context) ([]*HistoryRecord, error)
}

type historyRow struct {
	ID          int64  `sql:"id"`
	Timestamp   string `sql:"timestamp"`
	InvoiceFile string `sql:"invoice_file"`
	POFile      string `sql:"po_file"`
	Result      string `sql:"result"`
}

// Append inserts a record in a single statement and returns it with its id.
func (s *Store) Append(ctx context.Context, invoiceFile, poFile string, result *llm.ComparisonResult) (*HistoryRecord, error) {
	if result == nil {
		return nil, common.NewAppError(common.CodeStorageWrite, "nil comparison result", common.ErrStorageWrite)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, common.NewAppError(common.CodeStorageWrite, "encode result", fmt.Errorf("%w: %w", common.ErrStorageWrite, err))
	}
	ts := s.now().UTC().Format(TimestampLayout)

	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert(historyTable).
		Columns("timestamp", "invoice_file", "po_file", "result").
		Values(ts, invoiceFile, poFile, string(payload)).
		Returning("id").
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		s.logger.Error("history.append.failed", "error", err)
		return nil, common.NewAppError(common.CodeStorageWrite, "insert history", fmt.Errorf("%w: %w", common.ErrStorageWrite, err))
	}
	defer rows.Close()
	id, err := entsql.ScanInt64(rows)
	if err != nil {
		return nil, common.NewAppError(common.CodeStorageWrite, "read inserted id", fmt.Errorf("%w: %w", common.ErrStorageWrite, err))
	}

	s.logger.Info("history.append.ok", "id", id, "invoice_file", invoiceFile, "po_file", poFile)
	return &HistoryRecord{
		ID:          id,
		Timestamp:   ts,
		InvoiceFile: invoiceFile,
		POFile:      poFile,
		Result:      *result,
	}, nil
}

// List returns every record, newest first.
func (s *Store) List(ctx context.Context) ([]*HistoryRecord, error) {
	start := time.Now()
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select("id", "timestamp", "invoice_file", "po_file", "result").
		From(entsql.Table(historyTable)).
		OrderBy(entsql.Desc("timestamp"), entsql.Desc("id")).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, common.NewAppError(common.CodeStorageRead, "query history", fmt.Errorf("%w: %w", common.ErrStorageRead, err))
	}
	defer rows.Close()

	var raw []historyRow
	if err := entsql.ScanSlice(rows, &raw); err != nil {
		return nil, common.NewAppError(common.CodeStorageRead, "scan history", fmt.Errorf("%w: %w", common.ErrStorageRead, err))
	}

	out := make([]*HistoryRecord, 0, len(raw))
	for _, r := range raw {
		rec := &HistoryRecord{
			ID:          r.ID,
			Timestamp:   r.Timestamp,
			InvoiceFile: r.InvoiceFile,
			POFile:      r.POFile,
		}
		if err := json.Unmarshal([]byte(r.Result), &rec.Result); err != nil {
			return nil, common.NewAppError(common.CodeStorageRead, "decode history result",
				fmt.Errorf("%w: record %d: %w", common.ErrStorageRead, r.ID, err))
		}
		out = append(out, rec)
	}
	s.logger.Debug("history.list.ok", "rows", len(out), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select(entsql.Count("*")).
		From(entsql.Table(historyTable)).
		Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrStorageRead, err)
	}
	defer rows.Close()
	return entsql.ScanInt(rows)
}
