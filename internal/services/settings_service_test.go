package services

import (
	"context"
	"testing"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = models.NewsletterSettings{BatchSize: 10, BatchDelayMs: 2000, SchedulerEnabled: true}

func TestSettingsService_SeedsDefaultsAndCaches(t *testing.T) {
	store := memory.NewSettingsStore()
	svc := NewSettingsService(store, testDefaults, time.Minute)

	for i := 0; i < 3; i++ {
		s, err := svc.GetSettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 10, s.BatchSize)
		assert.Equal(t, 2*time.Second, s.BatchDelay())
	}
	assert.Equal(t, 1, store.Reads)
}

func TestSettingsService_UpdateInvalidatesCache(t *testing.T) {
	store := memory.NewSettingsStore()
	svc := NewSettingsService(store, testDefaults, time.Minute)
	_, err := svc.GetSettings(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.UpdateSettings(context.Background(),
		&models.NewsletterSettings{BatchSize: 25, BatchDelayMs: 0}, "admin@example.com"))

	s, err := svc.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, s.BatchSize)
	assert.False(t, s.SchedulerEnabled)
	assert.Equal(t, "admin@example.com", s.UpdatedBy)
	assert.Equal(t, 2, store.Reads)
}

func TestSettingsService_NoCacheWhenTTLZero(t *testing.T) {
	store := memory.NewSettingsStore()
	svc := NewSettingsService(store, testDefaults, 0)
	for i := 0; i < 2; i++ {
		_, err := svc.GetSettings(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Reads)
}

func TestSettingsService_Validation(t *testing.T) {
	svc := NewSettingsService(memory.NewSettingsStore(), testDefaults, 0)
	err := svc.UpdateSettings(context.Background(), &models.NewsletterSettings{BatchSize: 0}, "admin")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	err = svc.UpdateSettings(context.Background(), &models.NewsletterSettings{BatchSize: 5, BatchDelayMs: -1}, "admin")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
