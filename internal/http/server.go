package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fincoach/internal/cache"
	"fincoach/internal/core"
	"fincoach/internal/log"
	"fincoach/internal/services"
)

// Coach is the application surface the API exposes. Implemented by
// services.AnalysisService.
type Coach interface {
	ImportTransactions(ctx context.Context, txs []core.Transaction) error
	ResetAll(ctx context.Context) error
	AnalyzeSpending(ctx context.Context) (services.AnalysisResult, error)
	Insights(ctx context.Context) ([]core.Insight, error)
	Subscriptions(ctx context.Context) ([]core.Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
	OptimizeSubscriptions(ctx context.Context) ([]core.SubscriptionOptimization, error)
	Optimizations(ctx context.Context) ([]core.SubscriptionOptimization, error)
	StressTest(ctx context.Context, currentFund float64) (core.EmergencyFundAnalysis, error)
	EmergencyFund(ctx context.Context) (core.EmergencyFundAnalysis, bool, error)
	WhatIf(ctx context.Context, choice services.ScenarioChoice) (core.WhatIfSimulation, error)
	CreateGoal(ctx context.Context, name string, targetAmount float64, months int) (services.GoalForecast, error)
	Goals(ctx context.Context) ([]core.Goal, error)
	Chat(ctx context.Context, message string) (core.ChatMessage, error)
	ChatHistory(ctx context.Context) ([]core.ChatMessage, error)
	ClearChat(ctx context.Context) error
}

// TransactionLister reads the stored history for list and summary endpoints.
type TransactionLister interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}

type Server struct {
	http.Server
	coach       Coach
	lister      TransactionLister
	rateLimiter *rateLimiter
	logger      *log.Logger
	structured  *log.StructuredLogger

	// Summary responses are cheap to recompute but requested on every page
	// load, so they get a short-TTL cache.
	summaryCache *cache.LRUCache[summaryResponse]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
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

// startCleanup runs periodic cleanup to remove stale client entries
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

// cleanupStaleEntries removes client entries older than 10 minutes
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

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, coach Coach, lister TransactionLister) *Server {
	mux := http.NewServeMux()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		coach:        coach,
		lister:       lister,
		rateLimiter:  newRateLimiter(),
		logger:       logger,
		structured:   log.NewStructuredLogger(logger),
		summaryCache: cache.NewLRUCache[summaryResponse](10, time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/transactions/sample", s.withMiddleware(s.handleSeedSample))
	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleImportTransactions))
	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("DELETE /api/transactions", s.withMiddleware(s.handleReset))

	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("POST /api/analysis", s.withMiddleware(s.handleAnalyze))
	mux.HandleFunc("GET /api/insights", s.withMiddleware(s.handleInsights))

	mux.HandleFunc("GET /api/subscriptions", s.withMiddleware(s.handleListSubscriptions))
	mux.HandleFunc("POST /api/subscriptions/{id}/cancel", s.withMiddleware(s.handleCancelSubscription))
	mux.HandleFunc("POST /api/subscriptions/optimize", s.withMiddleware(s.handleOptimize))
	mux.HandleFunc("GET /api/optimizations", s.withMiddleware(s.handleOptimizations))

	mux.HandleFunc("POST /api/emergency-fund", s.withMiddleware(s.handleStressTest))
	mux.HandleFunc("GET /api/emergency-fund", s.withMiddleware(s.handleEmergencyFund))
	mux.HandleFunc("POST /api/whatif", s.withMiddleware(s.handleWhatIf))

	mux.HandleFunc("POST /api/goals", s.withMiddleware(s.handleCreateGoal))
	mux.HandleFunc("GET /api/goals", s.withMiddleware(s.handleListGoals))

	mux.HandleFunc("POST /api/chat", s.withMiddleware(s.handleChat))
	mux.HandleFunc("GET /api/chat", s.withMiddleware(s.handleChatHistory))
	mux.HandleFunc("DELETE /api/chat", s.withMiddleware(s.handleClearChat))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		// Rate limit mutating requests
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
