// Package server wires every HTTP route behind one chi router and owns the
// listener lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/macrofit/macrofit-api/pkg/logger"
)

type Server struct {
	server *http.Server
	logger *logger.Logger
}

func NewServer(port string, h *Handler, l *logger.Logger) *Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: httpServer,
		logger: l,
	}
}

// Routes builds the full router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(prometheusMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", h.handleSignup)
		r.Post("/auth/login", h.handleLogin)
		r.Get("/plans/catalog", h.handlePlans)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.Get("/profile", h.handleGetProfile)
			r.Put("/profile", h.handleSaveProfile)
			r.Get("/macros", h.handleMacros)
			r.Post("/analyze-image", h.handleAnalyzeImage)

			r.Post("/plans/generate", h.handleGeneratePlans)
			r.Get("/plans", h.handleGetPlans)

			r.Post("/payments/pix", h.handleCreatePixPayment)
			r.Post("/payments/card", h.handleCreateCardPayment)
			r.Get("/subscription", h.handleSubscription)

			r.Post("/progress", h.handleAddProgress)
			r.Get("/progress", h.handleProgress)
		})
	})

	// Provider callbacks authenticate by signature, not bearer token.
	r.Post("/webhooks/payment", h.handlePaymentWebhook)
	r.Post("/webhooks/stripe", h.handleStripeWebhook)

	return r
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
