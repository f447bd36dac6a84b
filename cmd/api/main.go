package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/app"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/config"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/config/environment"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(environment.GetEnv("CONFIG_PATH", "."))
	if err != nil {
		logger.L().Fatal("failed to load configuration", logger.Err(err))
	}
	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "newsletter-api"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	if cfg.Log.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to start", logger.Err(err))
	}
	defer a.Close(context.Background())

	if cfg.JWT.Secret == "" {
		log.Warn("JWT_SECRET is empty; admin routes will answer 503")
	}

	g, gctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: a.Router(gctx),
	}

	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	// each pass checks the runtime schedulerEnabled setting
	g.Go(func() error {
		return a.Scheduler.Run(gctx, cfg.Scheduler.Interval)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", logger.Err(err))
		return
	}
	log.Info("server exiting")
}
