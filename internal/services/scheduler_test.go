package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories/memory"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// stubSender fails for the ids in fail and records every call.
type stubSender struct {
	mu    sync.Mutex
	calls []primitive.ObjectID
	fail  map[primitive.ObjectID]error
}

func (s *stubSender) SendCampaign(_ context.Context, id primitive.ObjectID) (*models.DispatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	if err := s.fail[id]; err != nil {
		return nil, err
	}
	return &models.DispatchResult{TotalSent: 1}, nil
}

func (s *stubSender) Calls() []primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]primitive.ObjectID(nil), s.calls...)
}

func scheduleAt(t *testing.T, store *memory.CampaignStore, at time.Time) *models.Campaign {
	t.Helper()
	c := &models.Campaign{Title: "t", Subject: "s", Content: "c", Status: models.CampaignScheduled, ScheduledFor: &at}
	require.NoError(t, store.Create(context.Background(), c))
	return c
}

func TestProcessDueCampaigns_DispatchesPastDueExactlyOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.addSubscribers(t, 3)
	due := scheduleAt(t, f.campaigns, time.Now().UTC().Add(-5*time.Minute))
	future := scheduleAt(t, f.campaigns, time.Now().UTC().Add(time.Hour))

	s := NewScheduler(f.campaigns, f.dispatcher, lock.NewLocal(), nil, time.Minute)

	pass, err := s.ProcessDueCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SchedulerPass{Due: 1, Dispatched: 1}, *pass)
	assert.Equal(t, models.CampaignSent, f.status(t, due.ID))
	assert.Equal(t, models.CampaignScheduled, f.status(t, future.ID))
	assert.Equal(t, 3, f.recorder.Attempts())

	pass, err = s.ProcessDueCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SchedulerPass{}, *pass)
	assert.Equal(t, 3, f.recorder.Attempts())
}

func TestProcessDueCampaigns_ContinuesPastFailures(t *testing.T) {
	store := memory.NewCampaignStore()
	now := time.Now().UTC()
	first := scheduleAt(t, store, now.Add(-3*time.Minute))
	second := scheduleAt(t, store, now.Add(-2*time.Minute))
	third := scheduleAt(t, store, now.Add(-1*time.Minute))

	sender := &stubSender{fail: map[primitive.ObjectID]error{second.ID: assert.AnError}}
	s := NewScheduler(store, sender, nil, nil, time.Minute)

	pass, err := s.ProcessDueCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SchedulerPass{Due: 3, Dispatched: 2, Failed: 1}, *pass)
	assert.Equal(t, []primitive.ObjectID{first.ID, second.ID, third.ID}, sender.Calls())
}

func TestProcessDueCampaigns_SkipsWhileLockHeld(t *testing.T) {
	store := memory.NewCampaignStore()
	scheduleAt(t, store, time.Now().UTC().Add(-time.Minute))
	locker := lock.NewLocal()
	release, ok, err := locker.TryLock(context.Background(), schedulerLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sender := &stubSender{}
	s := NewScheduler(store, sender, locker, nil, time.Minute)

	pass, err := s.ProcessDueCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SchedulerPass{}, *pass)
	assert.Empty(t, sender.Calls())

	release()
	pass, err = s.ProcessDueCampaigns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pass.Dispatched)
}

func TestScheduler_RunHonoursSettingsAndStops(t *testing.T) {
	store := memory.NewCampaignStore()
	scheduleAt(t, store, time.Now().UTC().Add(-time.Minute))
	settingsStore := memory.NewSettingsStore()
	settings := NewSettingsService(settingsStore, models.NewsletterSettings{BatchSize: 10, SchedulerEnabled: false}, 0)

	sender := &stubSender{}
	s := NewScheduler(store, sender, nil, settings, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx, 5*time.Millisecond))
	assert.Empty(t, sender.Calls())

	require.NoError(t, settings.UpdateSettings(context.Background(),
		&models.NewsletterSettings{BatchSize: 10, SchedulerEnabled: true}, "admin"))
	assert.True(t, s.enabled(context.Background()))
}

func TestScheduler_RunDispatchesImmediately(t *testing.T) {
	store := memory.NewCampaignStore()
	c := scheduleAt(t, store, time.Now().UTC().Add(-time.Minute))
	sender := &stubSender{}
	s := NewScheduler(store, sender, nil, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool { return len(sender.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []primitive.ObjectID{c.ID}, sender.Calls())
}

func TestScheduler_RunPicksUpRuntimeEnable(t *testing.T) {
	store := memory.NewCampaignStore()
	c := scheduleAt(t, store, time.Now().UTC().Add(-time.Minute))
	settings := NewSettingsService(memory.NewSettingsStore(), models.NewsletterSettings{BatchSize: 10, SchedulerEnabled: false}, 0)
	sender := &stubSender{}
	s := NewScheduler(store, sender, nil, settings, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sender.Calls(), "disabled at startup")

	require.NoError(t, settings.UpdateSettings(context.Background(),
		&models.NewsletterSettings{BatchSize: 10, SchedulerEnabled: true}, "admin"))
	// the stub leaves the campaign scheduled, so later ticks may pick it up again
	require.Eventually(t, func() bool { return len(sender.Calls()) >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, c.ID, sender.Calls()[0])
}
