package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/voltcycle/payments/internal/config"
	"github.com/voltcycle/payments/internal/handlers"
	custommw "github.com/voltcycle/payments/internal/middleware"
)

// Server wraps the HTTP server
type Server struct {
	router  *chi.Mux
	handler *handlers.Handler
	config  *config.Config
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, h *handlers.Handler) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		handler: h,
		config:  cfg,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes and middleware
func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Public health check
	r.Get("/health", s.handler.HealthCheck)

	// Storefront-facing endpoints (requires internal authentication)
	r.Group(func(r chi.Router) {
		r.Use(custommw.EnsureInternalAuth(s.config.InternalSecret))

		r.Post("/payments/mpesa/initiate", s.handler.InitiateMpesaPayment)
		r.Get("/payments/orders/{orderNumber}/status", s.handler.PaymentStatus)

		r.Post("/payments/bank-transfers", s.handler.InitiateBankTransfer)
		r.Post("/payments/bank-transfers/{reference}/proof", s.handler.SubmitTransferProof)
		r.Post("/payments/bank-transfers/{id}/verify", s.handler.VerifyBankTransfer)
	})

	// Provider callback endpoint (IP filtered + size limited)
	r.Group(func(r chi.Router) {
		r.Use(custommw.IPFilter(s.config.DarajaIPs))
		r.Use(custommw.RequestSizeLimit(s.config.MaxRequestSize))
		r.Post("/payments/mpesa/callback", s.handler.MpesaCallback)
	})

	log.Println("Routes configured successfully")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := ":" + s.config.ServerPort
	log.Printf("Starting HTTP server on %s", addr)

	return http.ListenAndServe(addr, s.router)
}
