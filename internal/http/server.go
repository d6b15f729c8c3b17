// Package http exposes the expense recorder as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"masareef/internal/config"
	"masareef/internal/services"
	"masareef/internal/sheets"
)

type Server struct {
	http.Server
	service     *services.ExpenseService
	appender    sheets.ExpenseRowAppender
	managerHash string
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter, 60 mutating requests per client
// minute.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes.
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	// Reset the counter after a quiet minute.
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server. The appender may be nil, in which case
// the sheets export endpoint reports the feature as unconfigured.
func NewServer(cfg *config.Config, svc *services.ExpenseService, appender sheets.ExpenseRowAppender) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		service:     svc,
		appender:    appender,
		managerHash: cfg.ManagerPasswordHash,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /categories", s.secured(s.handleListCategories))

	mux.HandleFunc("POST /expenses", s.secured(s.handleCreateExpense))
	mux.HandleFunc("GET /expenses", s.secured(s.handleListExpenses))
	mux.HandleFunc("GET /expenses/{id}", s.secured(s.handleGetExpense))
	mux.HandleFunc("PATCH /expenses/{id}", s.secured(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.secured(s.handleDeleteExpense))

	// Aggregates, exports and the wipe carry the manager capability.
	mux.HandleFunc("GET /summary", s.secured(s.requireManager(s.handleSummary)))
	mux.HandleFunc("GET /export/expenses.csv", s.secured(s.requireManager(s.handleExportLedgerCSV)))
	mux.HandleFunc("GET /export/summary.csv", s.secured(s.requireManager(s.handleExportSummaryCSV)))
	mux.HandleFunc("GET /export/expenses.pdf", s.secured(s.requireManager(s.handleExportLedgerPDF)))
	mux.HandleFunc("GET /export/summary.pdf", s.secured(s.requireManager(s.handleExportSummaryPDF)))
	mux.HandleFunc("POST /export/sheets", s.secured(s.requireManager(s.handleExportSheets)))
	mux.HandleFunc("DELETE /expenses", s.secured(s.requireManager(s.handleWipe)))

	return s
}

// secured adds security headers, rate limiting on mutating methods,
// request ids and request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		mutating := r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodDelete
		if mutating && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the rate limiter cleanup goroutine and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
