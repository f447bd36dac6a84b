package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories/memory"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer/mailertest"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testBaseURL = "https://ecell.example.org"

// countingTransport records the size of every bulk call it forwards.
type countingTransport struct {
	mailer.Transport

	mu      sync.Mutex
	batches []int
}

func (t *countingTransport) SendBulkEmails(ctx context.Context, msgs []*mailer.Message) *mailer.BulkResult {
	t.mu.Lock()
	t.batches = append(t.batches, len(msgs))
	t.mu.Unlock()
	return t.Transport.SendBulkEmails(ctx, msgs)
}

func (t *countingTransport) BatchSizes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.batches...)
}

type fixture struct {
	campaigns   *memory.CampaignStore
	subscribers *memory.SubscriberStore
	recorder    *mailertest.Recorder
	transport   *countingTransport
	dispatcher  *Dispatcher
	waits       []time.Duration
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	f := &fixture{
		campaigns:   memory.NewCampaignStore(),
		subscribers: memory.NewSubscriberStore(),
		recorder:    mailertest.NewRecorder(),
	}
	m := mailer.New(context.Background(), f.recorder, mailer.Options{})
	require.NoError(t, m.Ready())
	f.transport = &countingTransport{Transport: m}
	f.dispatcher = NewDispatcher(f.campaigns, f.subscribers, f.transport, nil, DispatcherConfig{
		FrontendBaseURL: testBaseURL,
		BatchSize:       batchSize,
		BatchDelay:      2 * time.Second,
	})
	f.dispatcher.wait = func(ctx context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return ctx.Err()
	}
	return f
}

func (f *fixture) addCampaign(t *testing.T, status models.CampaignStatus) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Title:   "Demo Day",
		Subject: "Join us for Demo Day",
		Content: "Startups pitch on Friday.\n\nSee you there.",
		Status:  status,
	}
	if status == models.CampaignScheduled {
		at := time.Now().UTC().Add(-time.Minute)
		c.ScheduledFor = &at
	}
	require.NoError(t, f.campaigns.Create(context.Background(), c))
	return c
}

func (f *fixture) addSubscribers(t *testing.T, n int) []*models.Subscriber {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*models.Subscriber, 0, n)
	for i := 0; i < n; i++ {
		s := &models.Subscriber{
			Email:            fmt.Sprintf("user%02d@example.com", i),
			IsActive:         true,
			Source:           models.SourceWebsite,
			UnsubscribeToken: fmt.Sprintf("tok%02d", i),
			SubscriptionDate: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.subscribers.Create(context.Background(), s))
		out = append(out, s)
	}
	return out
}

func (f *fixture) status(t *testing.T, id primitive.ObjectID) models.CampaignStatus {
	t.Helper()
	c, err := f.campaigns.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}
