// Package http exposes the JSON API over the report and receipt services.
package http

import (
	"net/http"
	"time"

	applog "scontrini/internal/log"
	"scontrini/internal/services"
)

// Server wraps http.Server with the service dependencies of the API.
type Server struct {
	http.Server
	receipts    *services.ReceiptService
	reports     *services.ReportService
	rateLimiter *rateLimiter
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, receipts *services.ReceiptService, reports *services.ReportService, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		receipts:    receipts,
		reports:     reports,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/receipts", s.requireUser(s.handleCreateReceipt))
	mux.HandleFunc("GET /api/receipts", s.requireUser(s.handleListReceipts))
	mux.HandleFunc("GET /api/receipts/{id}", s.requireUser(s.handleGetReceipt))
	mux.HandleFunc("DELETE /api/receipts/{id}", s.requireUser(s.handleDeleteReceipt))

	mux.HandleFunc("GET /api/analytics/spending", s.requireUser(s.handleSpendingSummary))
	mux.HandleFunc("GET /api/analytics/categories", s.requireUser(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /api/analytics/budgets", s.requireUser(s.handleBudgetStatus))
	mux.HandleFunc("POST /api/analytics/budgets", s.requireUser(s.handleUpsertBudget))
	mux.HandleFunc("DELETE /api/analytics/budgets/{id}", s.requireUser(s.handleDeleteBudget))

	handler := applog.Middleware(logger)(
		applog.RequestIDMiddleware()(
			applog.AccessLogMiddleware()(mux)))

	s.Server = http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 64 << 10,
	}

	return s
}

// Stop releases server-owned background resources. Shutdown of the listener
// itself goes through http.Server.Shutdown.
func (s *Server) Stop() {
	s.rateLimiter.stop()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
