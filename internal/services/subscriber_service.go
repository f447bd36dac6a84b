package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/templates"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/utils"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/mailer"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const welcomeTimeout = 30 * time.Second

// SubscribeOutcome tells a new subscription apart from a reactivated one
type SubscribeOutcome string

const (
	SubscribeCreated     SubscribeOutcome = "created"
	SubscribeReactivated SubscribeOutcome = "reactivated"
)

// SubscriberService handles subscriber-related business logic
type SubscriberService struct {
	subscriberRepo  repositories.SubscriberRepository
	transport       mailer.Transport
	frontendBaseURL string
	log             *zap.Logger
	welcomes        sync.WaitGroup

	now func() time.Time
}

// NewSubscriberService creates a new SubscriberService. A nil transport
// disables welcome emails.
func NewSubscriberService(subscriberRepo repositories.SubscriberRepository, transport mailer.Transport, frontendBaseURL string) *SubscriberService {
	return &SubscriberService{
		subscriberRepo:  subscriberRepo,
		transport:       transport,
		frontendBaseURL: frontendBaseURL,
		log:             logger.Named("subscribers"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe creates a subscriber or reactivates an inactive one. An address
// that is already active is rejected with apperrors.ErrDuplicate. New and
// reactivated subscribers get a welcome email; failing to send it does not
// fail the call.
func (s *SubscriberService) Subscribe(ctx context.Context, req models.SubscribeRequest) (*models.Subscriber, SubscribeOutcome, error) {
	return s.subscribe(ctx, req, true)
}

func (s *SubscriberService) subscribe(ctx context.Context, req models.SubscribeRequest, welcome bool) (*models.Subscriber, SubscribeOutcome, error) {
	req.Email = models.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Interests = cleanList(req.Interests)
	if req.Source == "" {
		req.Source = models.SourceWebsite
	}
	if err := validateStruct(req); err != nil {
		return nil, "", err
	}
	if !req.Source.Valid() {
		return nil, "", apperrors.NewValidation("source", fmt.Sprintf("unknown source %q", req.Source))
	}

	existing, err := s.subscriberRepo.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing.IsActive:
		return nil, "", fmt.Errorf("%w: %s is already subscribed", apperrors.ErrDuplicate, req.Email)
	case err == nil:
		sub, err := s.subscriberRepo.Reactivate(ctx, existing.ID, req.Name, req.Interests, req.Source)
		if err != nil {
			return nil, "", err
		}
		metrics.Subscriptions.WithLabelValues("reactivated").Inc()
		s.log.Info("subscriber reactivated", logger.Email(sub.Email))
		if welcome {
			s.sendWelcome(ctx, sub)
		}
		return sub, SubscribeReactivated, nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, "", err
	}

	now := s.now()
	sub := &models.Subscriber{
		Email:            req.Email,
		Name:             req.Name,
		IsActive:         true,
		Interests:        req.Interests,
		Source:           req.Source,
		UnsubscribeToken: newUnsubscribeToken(),
		SubscriptionDate: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.subscriberRepo.Create(ctx, sub); err != nil {
		return nil, "", err
	}
	metrics.Subscriptions.WithLabelValues("subscribed").Inc()
	s.log.Info("subscriber created", logger.Email(sub.Email), zap.String("source", string(sub.Source)))

	if welcome {
		s.sendWelcome(ctx, sub)
	}
	return sub, SubscribeCreated, nil
}

// Unsubscribe deactivates the subscriber owning token. Repeating it is harmless.
func (s *SubscriberService) Unsubscribe(ctx context.Context, token string) (*models.Subscriber, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewValidation("token", "is required")
	}
	sub, err := s.subscriberRepo.Deactivate(ctx, token)
	if err != nil {
		return nil, err
	}
	metrics.Subscriptions.WithLabelValues("unsubscribed").Inc()
	s.log.Info("subscriber unsubscribed", logger.Email(sub.Email))
	return sub, nil
}

// GetSubscriberByID retrieves a subscriber by ID
func (s *SubscriberService) GetSubscriberByID(ctx context.Context, id primitive.ObjectID) (*models.Subscriber, error) {
	return s.subscriberRepo.FindByID(ctx, id)
}

// ListSubscribers retrieves subscribers with pagination
func (s *SubscriberService) ListSubscribers(ctx context.Context, filter models.SubscriberFilter, page, limit int) ([]*models.Subscriber, models.Pagination, error) {
	page, limit = normalizePage(page, limit)
	subs, total, err := s.subscriberRepo.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return subs, models.NewPagination(page, limit, total), nil
}

// DeleteSubscriber permanently removes a subscriber
func (s *SubscriberService) DeleteSubscriber(ctx context.Context, id primitive.ObjectID) error {
	if err := s.subscriberRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("subscriber deleted", zap.String("subscriber_id", id.Hex()))
	return nil
}

// ExportCSV writes the subscribers matching filter as CSV to w
func (s *SubscriberService) ExportCSV(ctx context.Context, w io.Writer, filter models.SubscriberFilter) (int, error) {
	subs, err := s.subscriberRepo.FindAllUnpaged(ctx, filter)
	if err != nil {
		return 0, err
	}
	if err := utils.WriteSubscribersCSV(w, subs); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(subs), nil
}

// ImportCSV subscribes every row of a CSV file. Rows for active addresses are
// skipped, bad rows are reported in the summary and do not stop the import.
// Imported subscribers do not get a welcome email.
func (s *SubscriberService) ImportCSV(ctx context.Context, r io.Reader) (*models.ImportSummary, error) {
	reader, err := utils.NewSubscriberCSVReader(r)
	if err != nil {
		return nil, apperrors.NewValidation("file", err.Error())
	}

	summary := &models.ImportSummary{Errors: []string{}}
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		summary.TotalRows++
		if err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}

		outcome, err := s.importRow(ctx, row)
		switch {
		case errors.Is(err, apperrors.ErrDuplicate):
			summary.Skipped++
		case err != nil:
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", row.Line, err))
		case outcome == SubscribeReactivated:
			summary.Reactivated++
		default:
			summary.Created++
		}
	}

	s.log.Info("subscriber import finished",
		logger.Count("rows", summary.TotalRows),
		logger.Count("created", summary.Created),
		logger.Count("reactivated", summary.Reactivated),
		logger.Count("skipped", summary.Skipped),
		logger.Count("errors", len(summary.Errors)),
	)
	return summary, nil
}

func (s *SubscriberService) importRow(ctx context.Context, row *utils.SubscriberRow) (SubscribeOutcome, error) {
	source := row.Source
	if source == "" || !source.Valid() {
		source = models.SourceOther
	}
	_, outcome, err := s.subscribe(ctx, models.SubscribeRequest{
		Email:     row.Email,
		Name:      row.Name,
		Interests: row.Interests,
		Source:    source,
	}, false)
	return outcome, err
}

// sendWelcome delivers the welcome email in the background, bounded by
// welcomeTimeout. Subscribing never waits on the relay.
func (s *SubscriberService) sendWelcome(ctx context.Context, sub *models.Subscriber) {
	if s.transport == nil {
		return
	}
	log := s.log.With(logger.Email(sub.Email))
	rendered, err := templates.RenderWelcome(sub, templates.UnsubscribeURL(s.frontendBaseURL, sub.UnsubscribeToken))
	if err != nil {
		log.Warn("failed to render welcome email", logger.Err(err))
		return
	}
	msg := &mailer.Message{
		To:      sub.Email,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)
	s.welcomes.Add(1)
	go func() {
		defer s.welcomes.Done()
		defer cancel()
		if _, err := s.transport.SendEmail(wctx, msg); err != nil {
			log.Warn("failed to send welcome email", logger.Err(err))
		}
	}()
}

// WaitForWelcomes blocks until every in-flight welcome email has finished.
func (s *SubscriberService) WaitForWelcomes() {
	s.welcomes.Wait()
}

// newUnsubscribeToken returns an unguessable 32 character hex token.
func newUnsubscribeToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
