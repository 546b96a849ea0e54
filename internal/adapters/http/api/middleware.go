package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"
)

// MetricsMiddleware records request count and latency per endpoint, and
// error counters labelled with the error envelope code.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status < http.StatusBadRequest {
			return
		}
		code, severity := classifyStatus(rec.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByType(code, severity)
		metrics.RecordErrorLatency("http", code, ms)
	}
}

// classifyStatus maps a response status to the error code writeServiceError
// uses for it and a severity for alerting. Storage outages rank highest.
func classifyStatus(status int) (code, severity string) {
	switch status {
	case http.StatusServiceUnavailable:
		return "unavailable", "critical"
	case http.StatusTooManyRequests:
		return "rate_limited", "low"
	case http.StatusNotFound:
		return "not_found", "low"
	case http.StatusRequestEntityTooLarge:
		return "bad_request", "medium"
	}
	if status >= http.StatusInternalServerError {
		return "internal", "high"
	}
	return "bad_request", "medium"
}

// statusRecorder captures the status code a handler writes.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// maxTrackedClients bounds the per-client limiter table.
const maxTrackedClients = 10000

// submitLimiter throttles report submission per client address.
type submitLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

// newSubmitLimiter allows perMinute submissions per client with burst.
// A nil limiter (perMinute <= 0) lets everything through.
func newSubmitLimiter(perMinute, burst int) *submitLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &submitLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *submitLimiter) allow(client string) bool {
	l.mu.Lock()
	lim, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[client] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware rejects requests over the client's budget with 429.
func (l *submitLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	if l == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientAddr(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind("api.submit_report", ErrRateLimited))
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
