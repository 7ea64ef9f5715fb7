package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/romanzh1/mindful-garden/internal/auth"
	"github.com/romanzh1/mindful-garden/internal/coach"
	"github.com/romanzh1/mindful-garden/internal/config"
	"github.com/romanzh1/mindful-garden/internal/events"
	"github.com/romanzh1/mindful-garden/internal/handler"
	"github.com/romanzh1/mindful-garden/internal/repository"
	"github.com/romanzh1/mindful-garden/internal/service"
	"github.com/romanzh1/mindful-garden/pkg/gemini"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err = cfg.ValidateServe(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	repo, err := repository.NewDB(cfg.PostgresDSN(), cfg.MaxIdleConns, cfg.MaxOpenConns)
	if err != nil {
		zap.S().Errorw("connect to PostgreSQL", zap.Error(err), zap.String("host", cfg.PostgresHost))
		return err
	}
	defer repo.Close()

	if err = repo.Up(cfg.MigrationsDir); err != nil {
		zap.S().Errorw("run migrations", zap.Error(err))
		return err
	}

	bus := events.NewBus()
	svc := service.NewService(repo, coach.New(newGenerator(ctx, cfg)), bus, cfg.DefaultTZ)
	go svc.RunDailyReset(ctx)

	if cfg.RedisURL != "" {
		relay, err := events.NewRedisRelay(cfg.RedisURL, cfg.RedisChannel, bus)
		if err != nil {
			return err
		}
		defer relay.Close()

		if err = relay.Ping(ctx); err != nil {
			return err
		}
		go func() {
			if err := relay.Run(ctx); err != nil {
				zap.S().Errorw("session relay stopped", zap.Error(err))
			}
		}()
	}

	var google *auth.GoogleOAuth
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	}
	authSvc := auth.NewService(repo, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), google, bus, cfg.DefaultTZ)

	if cfg.TelegramToken != "" {
		bot, err := handler.NewTelegramHandler(cfg.TelegramToken, svc)
		if err != nil {
			zap.S().Errorw("create telegram handler", zap.Error(err))
			return err
		}
		go bot.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPHandler(svc, authSvc, cfg.RequestTimeout).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("http server started", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen (addr: %s): %w", cfg.HTTPAddr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	zap.S().Info("http server stopped")
	return nil
}

// newGenerator returns nil when no Gemini credentials are configured; the coach then
// answers with its static fallbacks.
func newGenerator(ctx context.Context, cfg *config.Config) coach.Generator {
	if cfg.GeminiAPIKey == "" && !cfg.GeminiUseADC {
		zap.S().Warn("gemini is not configured, coach uses fallbacks")
		return nil
	}

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		BaseURL:  cfg.GeminiBaseURL,
		Timeout:  cfg.GeminiTimeout,
		UseADC:   cfg.GeminiUseADC,
		Project:  cfg.GeminiProject,
		Location: cfg.GeminiLocation,
	})
	if err != nil {
		zap.S().Warnw("create gemini client, coach uses fallbacks", zap.Error(err))
		return nil
	}
	return client
}
