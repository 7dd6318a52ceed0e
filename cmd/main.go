package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pulsabot/internal/bootstrap"
	"pulsabot/internal/bot"
	"pulsabot/internal/config"
	cronpkg "pulsabot/internal/cron"
	"pulsabot/internal/handler"
	"pulsabot/internal/ledger"
	"pulsabot/internal/middleware"
	"pulsabot/internal/pkg/telegram"
	"pulsabot/internal/provider"
	"pulsabot/internal/repository"
	"pulsabot/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	trxRepo := repository.NewTransactionRepository(db)
	topupRepo := repository.NewTopUpRepository(db)

	// --- Provider clients ---
	providerClient := provider.NewClient(
		cfg.Provider.APIKey,
		cfg.Provider.BaseURL,
		cfg.Provider.StockURL,
		cfg.Provider.Timeout,
	)
	qrisClient := provider.NewQRISClient(cfg.QRIS.APIURL, cfg.QRIS.Static)

	// --- Ledger ---
	ldg := ledger.New(userRepo, trxRepo, providerClient, cfg.Provider.Timeout, logger)

	// --- Telegram Bot API (direct HTTP client) ---
	botAPI := telegram.NewBotAPI(cfg.Bot.Token)

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	callbackDeduper, dedupeErr := middleware.NewCallbackDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		10*time.Minute,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for callback dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	callbackHandler := handler.NewProviderCallbackHandler(ldg, botAPI, callbackDeduper, logger)
	router.Setup(e, callbackHandler)

	// --- Bot ---
	botRepos := &bot.BotRepos{
		User:        userRepo,
		Product:     productRepo,
		Transaction: trxRepo,
		TopUp:       topupRepo,
	}
	teleBot, err := bot.New(cfg, botRepos, ldg, providerClient, qrisClient, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, trxRepo, ldg, providerClient, botAPI, teleBot, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting webhook server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	go teleBot.Start()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	teleBot.Stop()

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
