package telemetry

import (
	"context"
	"fmt"
	"time"

	qdb "github.com/questdb/go-questdb-client/v3"
)

// QuestDBWriter ships rows to QuestDB over the ILP/HTTP ingestion API.
// It is driven by the middleware's single writer goroutine only.
type QuestDBWriter struct {
	sender qdb.LineSender
	table  string
}

// NewQuestDBWriter connects an ILP sender to addr (host:port). Basic auth
// is configured only when user is non-empty.
func NewQuestDBWriter(ctx context.Context, addr, user, password, table string) (*QuestDBWriter, error) {
	opts := []qdb.LineSenderOption{
		qdb.WithHttp(),
		qdb.WithAddress(addr),
	}
	if user != "" {
		opts = append(opts, qdb.WithBasicAuth(user, password))
	}

	sender, err := qdb.NewLineSender(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ILP sender: %w", err)
	}

	return &QuestDBWriter{sender: sender, table: table}, nil
}

// WriteRow appends one row and flushes it to the sink.
func (w *QuestDBWriter) WriteRow(row Row) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := w.sender.Table(w.table).
		Symbol("method", row.Method).
		StringColumn("request_id", row.RequestID).
		StringColumn("path", row.Path).
		StringColumn("scheme", row.Scheme).
		StringColumn("query_string", row.Query).
		StringColumn("server", row.Host).
		StringColumn("client", row.Client).
		StringColumn("http_version", row.HTTPVersion).
		StringColumn("req_headers", row.ReqHeaders).
		StringColumn("res_headers", row.ResHeaders).
		Int64Column("status_code", int64(row.StatusCode)).
		Float64Column("process_time", row.ProcessTime).
		TimestampColumn("created_at", row.CreatedAt).
		At(ctx, time.Now())
	if err != nil {
		return err
	}

	return w.sender.Flush(ctx)
}

// Close releases the sender.
func (w *QuestDBWriter) Close(ctx context.Context) error {
	return w.sender.Close(ctx)
}
