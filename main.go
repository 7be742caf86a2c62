package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/tacticmap/internal/auth"
	"github.com/vladimiradmaev/tacticmap/internal/bot"
	"github.com/vladimiradmaev/tacticmap/internal/bot/handlers"
	"github.com/vladimiradmaev/tacticmap/internal/bot/sessions"
	"github.com/vladimiradmaev/tacticmap/internal/config"
	"github.com/vladimiradmaev/tacticmap/internal/logger"
	"github.com/vladimiradmaev/tacticmap/internal/session"
	"github.com/vladimiradmaev/tacticmap/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if err := cfg.RequireBotToken(); err != nil {
		logger.Fatal("Invalid config", "error", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		logger.Fatal("Failed to initialize logger", "error", err)
	}
	logger.Info("Starting TACTICMAP bot", "storage", cfg.Storage.Backend, "auth_mode", cfg.AuthMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", "backend", cfg.Storage.Backend, "error", err)
	}
	defer kv.Close()

	deps := handlers.Dependencies{}
	var opts []session.Option
	if cfg.AuthMode == config.AuthPassword {
		verifier := auth.NewPasswordVerifier(kv)
		deps.Passwords = verifier
		opts = append(opts, session.WithVerifier(verifier))
	}

	deps.Registry = sessions.NewRegistry(kv, cfg.Storage.Namespace, sessions.Delays{
		Login:      cfg.Delays.Login,
		BLEScan:    cfg.Delays.BLEScan,
		BLEConnect: cfg.Delays.BLEConnect,
		StreamTick: cfg.Delays.StreamTick,
	}, cfg.DemoLesion, opts...)
	defer deps.Registry.Close()

	telegramBot, err := bot.NewBot(cfg.TelegramToken, deps)
	if err != nil {
		logger.Fatal("Failed to create bot", "error", err)
	}

	logger.Info("Bot is running. Press Ctrl+C to stop.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Bot stopped with error", "error", err)
	}
	logger.Info("Bot stopped")
}
