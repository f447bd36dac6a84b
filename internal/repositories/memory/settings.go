package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
)

var _ repositories.SettingsRepository = (*SettingsStore)(nil)

type SettingsStore struct {
	mu       sync.Mutex
	settings *models.NewsletterSettings
	Reads    int
}

func NewSettingsStore() *SettingsStore { return &SettingsStore{} }

func (s *SettingsStore) GetSettings(_ context.Context, defaults models.NewsletterSettings) (*models.NewsletterSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	if s.settings == nil {
		d := defaults
		d.CreatedAt = time.Now().UTC()
		d.UpdatedAt = d.CreatedAt
		s.settings = &d
	}
	out := *s.settings
	return &out, nil
}

func (s *SettingsStore) UpdateSettings(_ context.Context, settings *models.NewsletterSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.UpdatedAt = time.Now().UTC()
	out := *settings
	s.settings = &out
	return nil
}
