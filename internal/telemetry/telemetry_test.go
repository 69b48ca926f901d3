package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Recording writer for testing
type recordingWriter struct {
	mu   sync.Mutex
	rows []Row
	err  error
}

func (w *recordingWriter) WriteRow(row Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, row)
	return nil
}

func (w *recordingWriter) recorded() []Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Row(nil), w.rows...)
}

func TestMiddleware_RecordsRequestAndResponse(t *testing.T) {
	writer := &recordingWriter{}
	m := NewMiddleware(writer)

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/users?page=2", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	m.Close()

	rows := writer.recorded()
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	row := rows[0]

	if row.Method != http.MethodGet {
		t.Errorf("Expected method GET, got %s", row.Method)
	}
	if row.Path != "/api/v2/users" {
		t.Errorf("Expected path /api/v2/users, got %s", row.Path)
	}
	if row.Query != "page=2" {
		t.Errorf("Expected query page=2, got %s", row.Query)
	}
	if row.StatusCode != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", row.StatusCode)
	}
	if row.Scheme != "http" {
		t.Errorf("Expected scheme http, got %s", row.Scheme)
	}
	if row.HTTPVersion != "HTTP/1.1" {
		t.Errorf("Expected HTTP/1.1, got %s", row.HTTPVersion)
	}
	if !strings.Contains(row.ReqHeaders, "Accept: application/json") {
		t.Errorf("Expected request headers recorded, got %q", row.ReqHeaders)
	}
	if !strings.Contains(row.ResHeaders, "X-Custom: yes") {
		t.Errorf("Expected response headers recorded, got %q", row.ResHeaders)
	}
	if row.RequestID == "" {
		t.Error("Expected a request id")
	}
	if row.ProcessTime < 0 {
		t.Errorf("Expected non-negative process time, got %f", row.ProcessTime)
	}
	if row.CreatedAt.IsZero() {
		t.Error("Expected a created-at timestamp")
	}
}

func TestMiddleware_DefaultStatusIs200(t *testing.T) {
	writer := &recordingWriter{}
	m := NewMiddleware(writer)

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	m.Close()

	rows := writer.recorded()
	if len(rows) != 1 || rows[0].StatusCode != http.StatusOK {
		t.Fatalf("Expected one row with status 200, got %+v", rows)
	}
}

func TestMiddleware_SetsRequestIDHeader(t *testing.T) {
	writer := &recordingWriter{}
	m := NewMiddleware(writer)
	defer m.Close()

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("Expected X-Request-Id on the response")
	}
}

func TestMiddleware_WriterFailureDoesNotAffectRequests(t *testing.T) {
	writer := &recordingWriter{err: errors.New("sink down")}
	m := NewMiddleware(writer)

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	m.Close()

	if rec.Code != http.StatusOK {
		t.Errorf("Expected the request to succeed regardless of the sink, got %d", rec.Code)
	}
}

func TestMiddleware_RequestAfterCloseIsDropped(t *testing.T) {
	writer := &recordingWriter{}
	m := NewMiddleware(writer)

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	m.Close()

	// A request finishing after Close must still succeed; only its
	// telemetry row is lost.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected the request to succeed after Close, got %d", rec.Code)
	}
	if rows := writer.recorded(); len(rows) != 0 {
		t.Errorf("Expected no rows after Close, got %d", len(rows))
	}
}

func TestMiddleware_CloseIsIdempotent(t *testing.T) {
	writer := &recordingWriter{}
	m := NewMiddleware(writer)

	m.Close()
	m.Close()
}

func TestFlattenHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("B-Header", "two")
	h.Set("A-Header", "one")
	h.Add("A-Header", "three")

	flat := flattenHeaders(h)
	if flat != "A-Header: one, three\nB-Header: two" {
		t.Errorf("Unexpected flattened headers: %q", flat)
	}
}
