package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/adityarizkyr/session-service/config"
	"github.com/adityarizkyr/session-service/db"
	"github.com/adityarizkyr/session-service/internal/audit"
	"github.com/adityarizkyr/session-service/internal/auth/handler"
	repo "github.com/adityarizkyr/session-service/internal/auth/repository/postgres"
	"github.com/adityarizkyr/session-service/internal/auth/service"
	"github.com/adityarizkyr/session-service/internal/mailer"
	"github.com/adityarizkyr/session-service/internal/ratelimit"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	userRepo := repo.NewPostgresRepository(dbPool)

	var counterStore ratelimit.CounterStore
	if cfg.RedisAddr != "" {
		redisClient, err := db.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		counterStore = ratelimit.NewRedisStore(redisClient)
	} else {
		counterStore = ratelimit.NewMemoryStore()
	}

	loginLimiter := ratelimit.New(counterStore, "login",
		time.Duration(cfg.LoginRateWindowSec)*time.Second, int64(cfg.LoginRateMax))
	forgotLimiter := ratelimit.New(counterStore, "forgot",
		time.Duration(cfg.ForgotRateWindowSec)*time.Second, int64(cfg.ForgotRateMax))

	var emailSender mailer.EmailSender
	if cfg.SMTPAddr != "" {
		emailSender, err = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Host:     cfg.SMTPHost,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			SiteName: cfg.SiteName,
		})
		if err != nil {
			logger.Error("mailer setup failed", "error", err)
			os.Exit(1)
		}
	} else {
		emailSender = mailer.NewLogMailer(logger)
	}

	auditSink := audit.NewSlogSink(logger)

	tokenService := service.NewTokenService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessExpiryMin, cfg.RefreshExpiryMin)
	userService := service.NewUserService(userRepo, tokenService, cfg, auditSink)
	resetService := service.NewResetService(userRepo, emailSender, cfg, auditSink)
	guard := service.NewSessionGuard(userRepo, tokenService)

	authHandler := handler.NewAuthHandler(userService, resetService, guard)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler, loginLimiter, forgotLimiter)

	logger.Info("listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
