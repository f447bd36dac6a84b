package services

import (
	"context"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/lock"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const schedulerLockKey = "scheduler:due-campaigns"

// CampaignSender is the part of the Dispatcher the scheduler drives.
type CampaignSender interface {
	SendCampaign(ctx context.Context, id primitive.ObjectID) (*models.DispatchResult, error)
}

// Scheduler dispatches scheduled campaigns once their send time has passed
type Scheduler struct {
	campaignRepo repositories.CampaignRepository
	sender       CampaignSender
	locker       lock.Locker
	settings     SettingsProvider
	lockTTL      time.Duration
	log          *zap.Logger

	now func() time.Time
}

// NewScheduler creates a new Scheduler. settings may be nil.
func NewScheduler(campaignRepo repositories.CampaignRepository, sender CampaignSender, locker lock.Locker, settings SettingsProvider, lockTTL time.Duration) *Scheduler {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Scheduler{
		campaignRepo: campaignRepo,
		sender:       sender,
		locker:       locker,
		settings:     settings,
		lockTTL:      lockTTL,
		log:          logger.Named("scheduler"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ProcessDueCampaigns dispatches every scheduled campaign whose time has
// come, one after another. A failing campaign is logged and the pass moves
// on. A pass is skipped when another one holds the scheduler lock.
func (s *Scheduler) ProcessDueCampaigns(ctx context.Context) (*models.SchedulerPass, error) {
	pass := &models.SchedulerPass{}

	release, ok, err := s.locker.TryLock(ctx, schedulerLockKey, s.lockTTL)
	if err != nil {
		metrics.SchedulerPasses.WithLabelValues("error").Inc()
		return pass, err
	}
	if !ok {
		s.log.Debug("scheduler pass skipped; another pass holds the lock")
		metrics.SchedulerPasses.WithLabelValues("skipped").Inc()
		return pass, nil
	}
	defer release()

	due, err := s.campaignRepo.FindDue(ctx, s.now())
	if err != nil {
		metrics.SchedulerPasses.WithLabelValues("error").Inc()
		return pass, err
	}
	pass.Due = len(due)
	metrics.DueCampaigns.Add(float64(len(due)))

	for _, c := range due {
		if ctx.Err() != nil {
			break
		}
		log := s.log.With(logger.CampaignID(c.ID.Hex()))
		res, err := s.sender.SendCampaign(ctx, c.ID)
		if err != nil {
			pass.Failed++
			log.Error("scheduled campaign dispatch failed", logger.Err(err))
			continue
		}
		pass.Dispatched++
		log.Info("scheduled campaign dispatched",
			logger.Count("sent", res.TotalSent),
			logger.Count("failed", res.TotalFailed),
		)
	}

	metrics.SchedulerPasses.WithLabelValues("ok").Inc()
	if pass.Due > 0 {
		s.log.Info("scheduler pass finished",
			logger.Count("due", pass.Due),
			logger.Count("dispatched", pass.Dispatched),
			logger.Count("failed", pass.Failed),
		)
	}
	return pass, ctx.Err()
}

// Run calls ProcessDueCampaigns every interval until ctx is cancelled. Passes
// are skipped while the runtime settings disable the scheduler.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	s.log.Info("scheduler started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if s.enabled(ctx) {
			if _, err := s.ProcessDueCampaigns(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("scheduler pass failed", logger.Err(err))
			}
		}
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) enabled(ctx context.Context) bool {
	if s.settings == nil {
		return true
	}
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		s.log.Warn("could not read settings; running pass anyway", logger.Err(err))
		return true
	}
	return settings.SchedulerEnabled
}
