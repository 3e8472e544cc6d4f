package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/macrofit/macrofit-api/config"
	"github.com/macrofit/macrofit-api/internal/ai"
	"github.com/macrofit/macrofit-api/internal/auth"
	"github.com/macrofit/macrofit-api/internal/db"
	"github.com/macrofit/macrofit-api/internal/notify"
	"github.com/macrofit/macrofit-api/internal/payment"
	"github.com/macrofit/macrofit-api/internal/plans"
	"github.com/macrofit/macrofit-api/internal/profile"
	"github.com/macrofit/macrofit-api/internal/server"
	"github.com/macrofit/macrofit-api/internal/subscription"
	"github.com/macrofit/macrofit-api/pkg/logger"
)

func main() {
	// Initialize logger
	l := logger.New()
	l.Info("Starting MacroFit API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l.Fatal("Failed to load config", err)
	}

	// Validate critical configuration
	if cfg.Auth.JWTSecret == "" {
		l.Fatal("JWT secret is not configured")
	}
	if cfg.OpenAI.APIKey == "" {
		l.Fatal("OpenAI API key is not configured")
	}
	if cfg.MercadoPago.AccessToken == "" {
		l.Fatal("Mercado Pago access token is not configured")
	}
	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookKey == "" {
		l.Fatal("Stripe configuration is incomplete")
	}

	// Initialize database connection with retry
	var database *db.PostgresDB
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		database, err = db.NewPostgresDB(cfg.DB)
		if err == nil {
			break
		}
		l.Error("Failed to connect to database, retrying...", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if database == nil {
		l.Fatal("Failed to connect to database after multiple attempts", err)
	}
	defer database.Close()

	if err := db.Migrate(cfg.DB); err != nil {
		l.Fatal("Failed to run migrations", err)
	}

	// Payment providers
	mpClient, err := payment.NewMercadoPagoClient(cfg.MercadoPago.AccessToken, cfg.MercadoPago.WebhookSecret)
	if err != nil {
		l.Fatal("Failed to create Mercado Pago client", err)
	}
	stripeClient := payment.NewStripeClient(cfg.Stripe)

	// Model client
	aiClient := ai.NewClient(cfg.OpenAI.APIKey).WithModel(cfg.OpenAI.Model)

	// Ops notifier is optional; without a token alerts are just logged.
	var notifier subscription.Notifier
	if cfg.Telegram.Token != "" && cfg.Telegram.OpsChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.OpsChatID, l)
		if err != nil {
			l.Error("Failed to connect ops notifier, continuing without alerts", err)
		} else {
			notifier = tg
		}
	}

	// Repositories
	userRepo := auth.NewPostgresRepository(database.Pool)
	profileRepo := profile.NewPostgresRepository(database.Pool)
	planRepo := plans.NewPostgresRepository(database.Pool)
	subRepo := subscription.NewPostgresRepository(database.Pool)

	// Services
	authService := auth.NewService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, l)
	profileService := profile.NewService(profileRepo, l)
	planService := plans.NewService(planRepo, profileService, aiClient, l)
	subService := subscription.NewService(subRepo, profileRepo, mpClient, stripeClient, notifier, subscription.ServiceConfig{
		NotificationURL: cfg.Server.BaseURL + "/webhooks/payment",
		SuccessURL:      cfg.Server.BaseURL + "/payment/success",
		CancelURL:       cfg.Server.BaseURL + "/payment/cancel",
	}, l)

	handler := server.NewHandler(server.HandlerDeps{
		Auth:     authService,
		Users:    userRepo,
		Profiles: profileService,
		Plans:    planService,
		Subs:     subService,
		Vision:   aiClient,
		Pix:      mpClient,
		Card:     stripeClient,
		Logger:   l,
	})

	httpServer := server.NewServer(cfg.Server.Port, handler, l)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Failed to start HTTP server", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		l.Error("Error during HTTP server shutdown", err)
	}

	l.Info("Server stopped successfully")
}
