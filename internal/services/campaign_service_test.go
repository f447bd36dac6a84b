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
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newCampaignService() (*CampaignService, *memory.CampaignStore, *memory.SubscriberStore) {
	campaigns := memory.NewCampaignStore()
	subscribers := memory.NewSubscriberStore()
	return NewCampaignService(campaigns, subscribers), campaigns, subscribers
}

func draft(t *testing.T, svc *CampaignService) *models.Campaign {
	t.Helper()
	c := &models.Campaign{
		Title:   "  Hackathon recap ",
		Subject: "What happened at the hackathon",
		Content: "Twelve teams shipped.",
		Tags:    []string{"events", " events", ""},
	}
	require.NoError(t, svc.CreateCampaign(context.Background(), c, "admin@example.com"))
	return c
}

func TestCreateCampaign(t *testing.T) {
	svc, store, _ := newCampaignService()
	c := &models.Campaign{
		Title:   "  Hackathon recap ",
		Subject: "What happened at the hackathon",
		Content: "Twelve teams shipped.",
		Status:  models.CampaignSent,
		Tags:    []string{"events", " events", ""},
	}
	require.NoError(t, svc.CreateCampaign(context.Background(), c, "admin@example.com"))

	got, err := store.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignDraft, got.Status)
	assert.Equal(t, "Hackathon recap", got.Title)
	assert.Equal(t, []string{"events"}, got.Tags)
	assert.Equal(t, "admin@example.com", got.CreatedBy)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateCampaign_Validation(t *testing.T) {
	svc, _, _ := newCampaignService()
	tests := map[string]*models.Campaign{
		"missing title":   {Subject: "s", Content: "c"},
		"missing subject": {Title: "t", Content: "c"},
		"missing content": {Title: "t", Subject: "s"},
		"bad image":       {Title: "t", Subject: "s", Content: "c", FeaturedImage: "not a url"},
	}
	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			err := svc.CreateCampaign(context.Background(), c, "admin")
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestUpdateCampaign(t *testing.T) {
	svc, _, _ := newCampaignService()
	c := draft(t, svc)

	subject := "New subject"
	got, err := svc.UpdateCampaign(context.Background(), c.ID, models.CampaignPatch{Subject: &subject})
	require.NoError(t, err)
	assert.Equal(t, "New subject", got.Subject)
	assert.Equal(t, "Hackathon recap", got.Title)

	empty := ""
	_, err = svc.UpdateCampaign(context.Background(), c.ID, models.CampaignPatch{Title: &empty})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateAndDeleteRejectedOnceSending(t *testing.T) {
	for status, want := range map[models.CampaignStatus]error{
		models.CampaignSent:    apperrors.ErrAlreadySent,
		models.CampaignSending: apperrors.ErrAlreadySending,
	} {
		t.Run(string(status), func(t *testing.T) {
			svc, store, _ := newCampaignService()
			c := &models.Campaign{Title: "t", Subject: "s", Content: "c", Status: status}
			require.NoError(t, store.Create(context.Background(), c))

			title := "changed"
			_, err := svc.UpdateCampaign(context.Background(), c.ID, models.CampaignPatch{Title: &title})
			assert.ErrorIs(t, err, want)
			assert.ErrorIs(t, svc.DeleteCampaign(context.Background(), c.ID), want)
		})
	}
}

func TestDeleteCampaign(t *testing.T) {
	svc, store, _ := newCampaignService()
	c := draft(t, svc)

	require.NoError(t, svc.DeleteCampaign(context.Background(), c.ID))
	_, err := store.FindByID(context.Background(), c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCampaign(context.Background(), c.ID), apperrors.ErrNotFound)
}

func TestScheduleCampaign(t *testing.T) {
	svc, _, _ := newCampaignService()
	c := draft(t, svc)
	at := time.Now().Add(24 * time.Hour)

	got, err := svc.ScheduleCampaign(context.Background(), c.ID, at)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignScheduled, got.Status)
	require.NotNil(t, got.ScheduledFor)
	assert.True(t, got.ScheduledFor.Equal(at))

	later := at.Add(time.Hour)
	got, err = svc.ScheduleCampaign(context.Background(), c.ID, later)
	require.NoError(t, err, "rescheduling is allowed")
	assert.True(t, got.ScheduledFor.Equal(later))

	_, err = svc.ScheduleCampaign(context.Background(), c.ID, time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.ScheduleCampaign(context.Background(), c.ID, time.Time{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestScheduleAndCancel_StatusConflicts(t *testing.T) {
	svc, store, _ := newCampaignService()
	sent := &models.Campaign{Title: "t", Subject: "s", Content: "c", Status: models.CampaignSent}
	cancelled := &models.Campaign{Title: "t", Subject: "s", Content: "c", Status: models.CampaignCancelled}
	require.NoError(t, store.Create(context.Background(), sent))
	require.NoError(t, store.Create(context.Background(), cancelled))

	_, err := svc.ScheduleCampaign(context.Background(), sent.ID, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrAlreadySent)
	_, err = svc.CancelCampaign(context.Background(), sent.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadySent)

	_, err = svc.ScheduleCampaign(context.Background(), cancelled.ID, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = svc.CancelCampaign(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCancelCampaign(t *testing.T) {
	svc, _, _ := newCampaignService()
	c := draft(t, svc)
	_, err := svc.ScheduleCampaign(context.Background(), c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	got, err := svc.CancelCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCancelled, got.Status)
}

func TestRecordEngagement(t *testing.T) {
	svc, _, _ := newCampaignService()
	c := draft(t, svc)

	_, err := svc.RecordEngagement(context.Background(), c.ID, "opens", 3)
	require.NoError(t, err)
	stats, err := svc.RecordEngagement(context.Background(), c.ID, "opens", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Stats.Opens)

	_, err = svc.RecordEngagement(context.Background(), c.ID, "forwards", 1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.RecordEngagement(context.Background(), c.ID, "clicks", 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListCampaignsAndOverview(t *testing.T) {
	svc, _, subscribers := newCampaignService()
	for i := 0; i < 3; i++ {
		draft(t, svc)
	}
	c := draft(t, svc)
	_, err := svc.CancelCampaign(context.Background(), c.ID)
	require.NoError(t, err)

	list, page, err := svc.ListCampaigns(context.Background(), models.CampaignFilter{Status: models.CampaignDraft}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, page)

	_, _, err = svc.ListCampaigns(context.Background(), models.CampaignFilter{Status: "archived"}, 1, 10)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	require.NoError(t, subscribers.Create(context.Background(), &models.Subscriber{Email: "a@example.com", IsActive: true, UnsubscribeToken: "a"}))
	require.NoError(t, subscribers.Create(context.Background(), &models.Subscriber{Email: "b@example.com", UnsubscribeToken: "b"}))

	overview, err := svc.GetOverview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), overview.TotalSubscribers)
	assert.Equal(t, int64(1), overview.ActiveSubscribers)
	assert.Equal(t, int64(3), overview.CampaignsByStatus[models.CampaignDraft])
	assert.Equal(t, int64(1), overview.CampaignsByStatus[models.CampaignCancelled])
}
