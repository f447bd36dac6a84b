// Package app assembles the newsletter backend from its configuration.
// Both the HTTP server and the newsletterctl commands are built from it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/api/routes"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/config"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	mongorepo "github.com/ArowuTest/ecell-newsletter-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/services"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/lock"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mongodb"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App holds the wired services and the resources that must be released on Close.
type App struct {
	Config *config.Config

	Campaigns   *services.CampaignService
	Subscribers *services.SubscriberService
	Settings    *services.SettingsService
	Dispatcher  *services.Dispatcher
	Scheduler   *services.Scheduler

	mongo  *mongodb.Client
	redis  *lock.Redis
	mailer *mailer.Mailer
	log    *zap.Logger
}

// New connects to MongoDB (and Redis when configured), ensures the indexes
// and builds every service. The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("app")

	client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.MongoDB.Database)
	if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("connected to mongodb", zap.String("database", cfg.MongoDB.Database))

	a := &App{Config: cfg, mongo: client, log: log}

	campaignRepo := mongorepo.NewCampaignRepository(db)
	subscriberRepo := mongorepo.NewSubscriberRepository(db)

	a.Settings = services.NewSettingsService(mongorepo.NewSettingsRepository(db), models.NewsletterSettings{
		BatchSize:        cfg.Newsletter.BatchSize,
		BatchDelayMs:     int(cfg.Newsletter.BatchDelay / time.Millisecond),
		SchedulerEnabled: cfg.Scheduler.Enabled,
	}, cfg.Newsletter.SettingsTTL)

	a.mailer = mailer.New(ctx, newSender(cfg), mailer.Options{
		SendDelay:     cfg.Newsletter.SendDelay,
		VerifyTimeout: cfg.SMTP.VerifyTimeout,
	})

	a.Dispatcher = services.NewDispatcher(campaignRepo, subscriberRepo, a.mailer, a.Settings, services.DispatcherConfig{
		FrontendBaseURL: cfg.Newsletter.FrontendBaseURL,
		BatchSize:       cfg.Newsletter.BatchSize,
		BatchDelay:      cfg.Newsletter.BatchDelay,
	})
	a.Campaigns = services.NewCampaignService(campaignRepo, subscriberRepo)
	a.Subscribers = services.NewSubscriberService(subscriberRepo, a.mailer, cfg.Newsletter.FrontendBaseURL)

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		a.redis = lock.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := a.redis.Ping(ctx); err != nil {
			a.Close(context.Background())
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		locker = a.redis
		log.Info("using redis scheduler lock", zap.String("addr", cfg.Redis.Addr))
	}
	a.Scheduler = services.NewScheduler(campaignRepo, a.Dispatcher, locker, a.Settings, cfg.Scheduler.LockTTL)

	return a, nil
}

func newSender(cfg *config.Config) mailer.Sender {
	if cfg.SMTP.Mock || cfg.SMTP.Host == "" {
		logger.Named("app").Warn("SMTP is not configured; emails are logged, not delivered")
		return mailer.NewMockSender("mock")
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		TLSMode:  cfg.SMTP.TLSMode,
		Timeout:  cfg.SMTP.SendTimeout,
	})
}

// Router builds the HTTP handler. Sends started over HTTP are cancelled
// between batches once lifetime is done.
func (a *App) Router(lifetime context.Context) *gin.Engine {
	return routes.SetupRouter(a.Config, routes.HandlerDependencies{
		Campaigns:   a.Campaigns,
		Dispatcher:  a.Dispatcher,
		Subscribers: a.Subscribers,
		Settings:    a.Settings,
		Health:      a.Health,
		Lifetime:    lifetime,
	})
}

// Health pings the database and, when configured, Redis.
func (a *App) Health(ctx context.Context) error {
	if err := a.mongo.Ping(ctx); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// MailReady reports whether the mail transport passed verification.
func (a *App) MailReady() error { return a.mailer.Ready() }

// Close waits for pending welcome emails, then releases the Redis and
// MongoDB connections.
func (a *App) Close(ctx context.Context) {
	a.Subscribers.WaitForWelcomes()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("closing redis", logger.Err(err))
		}
	}
	if err := a.mongo.Disconnect(ctx); err != nil {
		a.log.Warn("disconnecting from mongodb", logger.Err(err))
	}
}
