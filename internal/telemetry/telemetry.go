// Package telemetry records request/response metadata and ships it to a
// time-series sink. The pipeline is fire-and-forget: shipping never blocks
// a request and a failed or dropped row is only logged.
package telemetry

import (
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Row is one request/response observation.
type Row struct {
	RequestID   string
	Method      string
	Path        string
	Scheme      string
	Query       string
	Host        string
	Client      string
	HTTPVersion string
	ReqHeaders  string
	ResHeaders  string
	StatusCode  int
	ProcessTime float64 // seconds
	CreatedAt   time.Time
}

// RowWriter ships rows to the sink.
type RowWriter interface {
	WriteRow(row Row) error
}

const bufferSize = 256

// Middleware observes requests independently of the handler flow. Rows are
// handed to a single writer goroutine through a buffered channel; the ILP
// sender is not safe for concurrent use, so all writes happen there.
type Middleware struct {
	rows chan Row
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewMiddleware starts the writer goroutine draining into w.
func NewMiddleware(w RowWriter) *Middleware {
	m := &Middleware{
		rows: make(chan Row, bufferSize),
		done: make(chan struct{}),
	}
	go m.run(w)
	return m
}

// Wrap instruments next with request/response recording.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		createdAt := time.Now().UTC()
		start := time.Now()

		next.ServeHTTP(rec, r)

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}

		row := Row{
			RequestID:   requestID,
			Method:      r.Method,
			Path:        r.URL.Path,
			Scheme:      scheme,
			Query:       r.URL.RawQuery,
			Host:        r.Host,
			Client:      r.RemoteAddr,
			HTTPVersion: r.Proto,
			ReqHeaders:  flattenHeaders(r.Header),
			ResHeaders:  flattenHeaders(rec.Header()),
			StatusCode:  rec.status,
			ProcessTime: time.Since(start).Seconds(),
			CreatedAt:   createdAt,
		}

		m.enqueue(row)
	})
}

// enqueue hands a row to the writer goroutine without ever blocking the
// request: a full buffer or a closed middleware drops the row.
func (m *Middleware) enqueue(row Row) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		log.Printf("telemetry closed, dropping row for %s %s", row.Method, row.Path)
		return
	}

	select {
	case m.rows <- row:
	default:
		log.Printf("telemetry buffer full, dropping row for %s %s", row.Method, row.Path)
	}
}

// Close stops accepting rows and waits for the writer to drain. Requests
// still in flight after Close have their rows dropped, not their responses
// broken. Safe to call more than once.
func (m *Middleware) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.rows)
	}
	m.mu.Unlock()
	<-m.done
}

func (m *Middleware) run(w RowWriter) {
	defer close(m.done)
	for row := range m.rows {
		if err := w.WriteRow(row); err != nil {
			log.Printf("failed to ship telemetry row: %v", err)
		}
	}
}

func flattenHeaders(h http.Header) string {
	lines := make([]string, 0, len(h))
	for key, values := range h {
		lines = append(lines, key+": "+strings.Join(values, ", "))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
