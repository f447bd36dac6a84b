package services

import (
	"context"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	gocache "github.com/patrickmn/go-cache"
)

const settingsCacheKey = "newsletter_settings"

// SettingsService serves the runtime dispatch settings, caching reads for a short TTL
type SettingsService struct {
	settingsRepo repositories.SettingsRepository
	defaults     models.NewsletterSettings
	cache        *gocache.Cache
}

// NewSettingsService creates a new SettingsService. defaults seed the
// settings document the first time it is read. A non-positive ttl disables caching.
func NewSettingsService(settingsRepo repositories.SettingsRepository, defaults models.NewsletterSettings, ttl time.Duration) *SettingsService {
	s := &SettingsService{
		settingsRepo: settingsRepo,
		defaults:     defaults,
	}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

// GetSettings retrieves the current settings
func (s *SettingsService) GetSettings(ctx context.Context) (*models.NewsletterSettings, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(settingsCacheKey); ok {
			cached := v.(models.NewsletterSettings)
			return &cached, nil
		}
	}
	settings, err := s.settingsRepo.GetSettings(ctx, s.defaults)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetDefault(settingsCacheKey, *settings)
	}
	return settings, nil
}

// UpdateSettings replaces the tunable settings
func (s *SettingsService) UpdateSettings(ctx context.Context, settings *models.NewsletterSettings, updatedBy string) error {
	if settings.BatchSize <= 0 {
		return apperrors.NewValidation("batchSize", "must be positive")
	}
	if settings.BatchDelayMs < 0 {
		return apperrors.NewValidation("batchDelayMs", "must not be negative")
	}
	settings.UpdatedBy = updatedBy
	if err := s.settingsRepo.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Delete(settingsCacheKey)
	}
	return nil
}
