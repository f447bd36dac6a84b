package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories/memory"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer/mailertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubscriberService(t *testing.T) (*SubscriberService, *memory.SubscriberStore, *mailertest.Recorder) {
	t.Helper()
	store := memory.NewSubscriberStore()
	rec := mailertest.NewRecorder()
	m := mailer.New(context.Background(), rec, mailer.Options{})
	return NewSubscriberService(store, m, testBaseURL), store, rec
}

func TestSubscribe_CreatesAndWelcomes(t *testing.T) {
	svc, store, rec := newSubscriberService(t)

	sub, outcome, err := svc.Subscribe(context.Background(), models.SubscribeRequest{
		Email:     "  Ada@Example.com ",
		Name:      "Ada",
		Interests: []string{"ai", "ai", "fintech"},
	})
	require.NoError(t, err)
	assert.Equal(t, SubscribeCreated, outcome)
	assert.Equal(t, "ada@example.com", sub.Email)
	assert.True(t, sub.IsActive)
	assert.Equal(t, models.SourceWebsite, sub.Source)
	assert.Equal(t, []string{"ai", "fintech"}, sub.Interests)
	assert.Len(t, sub.UnsubscribeToken, 32)

	stored, err := store.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, sub.UnsubscribeToken, stored.UnsubscribeToken)

	svc.WaitForWelcomes()
	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Contains(t, sent[0].Text, "Welcome, Ada!")
	assert.Contains(t, sent[0].Text, testBaseURL+"/newsletter/unsubscribe/"+sub.UnsubscribeToken)
}

func TestSubscribe_WelcomeFailureDoesNotFail(t *testing.T) {
	svc, _, rec := newSubscriberService(t)
	rec.Reject("ada@example.com")

	_, outcome, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, SubscribeCreated, outcome)
	svc.WaitForWelcomes()
	assert.Equal(t, 1, rec.Attempts())
}

func TestSubscribe_DoesNotWaitForWelcomeEmail(t *testing.T) {
	svc, store, rec := newSubscriberService(t)
	release := make(chan struct{})
	rec.OnSend = func(int, *mailer.Message) { <-release }

	done := make(chan error, 1)
	go func() {
		_, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "ada@example.com"})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		close(release)
		t.Fatal("subscribe blocked on the welcome email")
	}
	stored, err := store.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Empty(t, rec.Sent())

	close(release)
	svc.WaitForWelcomes()
	assert.Len(t, rec.Sent(), 1)
}

func TestSubscribe_DuplicateAndReactivation(t *testing.T) {
	svc, _, rec := newSubscriberService(t)
	first, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	_, _, err = svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "ADA@example.com"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	_, err = svc.Unsubscribe(context.Background(), first.UnsubscribeToken)
	require.NoError(t, err)

	again, outcome, err := svc.Subscribe(context.Background(), models.SubscribeRequest{
		Email: "ada@example.com", Name: "Ada L", Source: models.SourceEvent,
	})
	require.NoError(t, err)
	assert.Equal(t, SubscribeReactivated, outcome)
	assert.True(t, again.IsActive)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.UnsubscribeToken, again.UnsubscribeToken)
	assert.Equal(t, models.SourceEvent, again.Source)
	svc.WaitForWelcomes()
	assert.Equal(t, 2, rec.Attempts(), "reactivation sends the welcome email again")
}

func TestSubscribe_Validation(t *testing.T) {
	svc, _, _ := newSubscriberService(t)

	_, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, _, err = svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "a@example.com", Source: "billboard"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	svc, store, _ := newSubscriberService(t)
	sub, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "ada@example.com"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := svc.Unsubscribe(context.Background(), sub.UnsubscribeToken)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	}
	active, err := store.FindActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.Unsubscribe(context.Background(), "unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.Unsubscribe(context.Background(), " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestExportCSV(t *testing.T) {
	svc, _, _ := newSubscriberService(t)
	a, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)
	_, _, err = svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "b@example.com", Source: models.SourceSocial})
	require.NoError(t, err)
	_, err = svc.Unsubscribe(context.Background(), a.UnsubscribeToken)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(context.Background(), &buf, models.SubscriberFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Email", "Name", "Subscription Date", "Status", "Source"}, rows[0])

	byEmail := map[string][]string{}
	for _, r := range rows[1:] {
		byEmail[r[0]] = r
	}
	assert.Equal(t, "Inactive", byEmail["a@example.com"][3])
	assert.Equal(t, "Active", byEmail["b@example.com"][3])
	assert.Equal(t, "social", byEmail["b@example.com"][4])

	active := true
	buf.Reset()
	n, err = svc.ExportCSV(context.Background(), &buf, models.SubscriberFilter{Active: &active})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestImportCSV(t *testing.T) {
	svc, store, rec := newSubscriberService(t)
	existing, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "old@example.com"})
	require.NoError(t, err)
	_, err = svc.Unsubscribe(context.Background(), existing.UnsubscribeToken)
	require.NoError(t, err)
	_, _, err = svc.Subscribe(context.Background(), models.SubscribeRequest{Email: "active@example.com"})
	require.NoError(t, err)
	svc.WaitForWelcomes()
	welcomes := rec.Attempts()

	input := strings.Join([]string{
		"Email,Name,Source,Interests",
		"new@example.com,New Person,event,ai; robotics",
		"OLD@example.com,,,",
		"active@example.com,,,",
		"broken,,,",
		"second@example.com,,billboard,",
	}, "\n")

	summary, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalRows)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Reactivated)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "line 5")
	assert.Equal(t, welcomes, rec.Attempts(), "imports do not send welcome emails")

	created, err := store.FindByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "New Person", created.Name)
	assert.Equal(t, models.SourceEvent, created.Source)
	assert.Equal(t, []string{"ai", "robotics"}, created.Interests)

	fallback, err := store.FindByEmail(context.Background(), "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SourceOther, fallback.Source)
}

func TestImportCSV_MissingEmailColumn(t *testing.T) {
	svc, _, _ := newSubscriberService(t)
	_, err := svc.ImportCSV(context.Background(), strings.NewReader("Name,Source\nA,event\n"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListAndDeleteSubscribers(t *testing.T) {
	svc, _, _ := newSubscriberService(t)
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, _, err := svc.Subscribe(context.Background(), models.SubscribeRequest{Email: e})
		require.NoError(t, err)
	}

	list, page, err := svc.ListSubscribers(context.Background(), models.SubscriberFilter{Search: "b@"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 10, Total: 1, Pages: 1}, page)

	require.NoError(t, svc.DeleteSubscriber(context.Background(), list[0].ID))
	assert.ErrorIs(t, svc.DeleteSubscriber(context.Background(), list[0].ID), apperrors.ErrNotFound)
}
