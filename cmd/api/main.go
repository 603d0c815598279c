package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/nobreverify/internal/api"
	"github.com/punchamoorthee/nobreverify/internal/commerce"
	"github.com/punchamoorthee/nobreverify/internal/config"
	"github.com/punchamoorthee/nobreverify/internal/discord"
	"github.com/punchamoorthee/nobreverify/internal/service"
	"github.com/punchamoorthee/nobreverify/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error("unable to open ledger", "backend", cfg.LedgerBackend, "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	checker, err := discord.NewVerifier(cfg.PublicKey)
	if err != nil {
		logger.Error("invalid DISCORD_PUBLIC_KEY", "error", err)
		os.Exit(1)
	}

	// Initialize Layers
	tictoClient := commerce.NewClient(commerce.Config{
		ClientID:     cfg.TictoClientID,
		ClientSecret: cfg.TictoClientSecret,
		OAuthURL:     cfg.TictoOAuthURL,
		OrdersURL:    cfg.TictoOrdersURL,
		ProductIDs:   cfg.ProductIDs,
		Timeout:      cfg.HTTPTimeout,
	}, logger.With("component", "commerce"))
	discordClient := discord.NewClient(cfg.DiscordAPI, cfg.BotToken, cfg.GuildID, cfg.HTTPTimeout, logger.With("component", "discord"))
	svc := service.NewVerificationService(ledger, tictoClient, discordClient, cfg.RoleID, cfg.WelcomeMessage, logger.With("component", "verification"))
	handler := api.NewHandler(svc, logger)

	var admin *api.AdminHandler
	if cfg.AdminToken != "" {
		admin = api.NewAdminHandler(ledger, cfg.AdminToken)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, checker, admin, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("server starting", "port", cfg.Port, "ledger", cfg.LedgerBackend, "env", cfg.Env)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.Error("unable to listen", "addr", srv.Addr, "error", err)
		os.Exit(1)
	}
	if err := serve(ctx, srv, ln, shutdownTimeout, logger); err != nil {
		logger.Error("server stopped", "error", err)
		ledger.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
