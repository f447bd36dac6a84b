package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CampaignService handles campaign CRUD and lifecycle operations other than sending
type CampaignService struct {
	campaignRepo   repositories.CampaignRepository
	subscriberRepo repositories.SubscriberRepository
	log            *zap.Logger

	now func() time.Time
}

// NewCampaignService creates a new CampaignService
func NewCampaignService(campaignRepo repositories.CampaignRepository, subscriberRepo repositories.SubscriberRepository) *CampaignService {
	return &CampaignService{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		log:            logger.Named("campaigns"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateCampaign validates and stores a new draft campaign
func (s *CampaignService) CreateCampaign(ctx context.Context, campaign *models.Campaign, createdBy string) error {
	normalizeCampaign(campaign)
	if err := validateStruct(campaign); err != nil {
		return err
	}
	now := s.now()
	campaign.ID = primitive.NilObjectID
	campaign.Status = models.CampaignDraft
	campaign.ScheduledFor = nil
	campaign.SentAt = nil
	campaign.Stats = models.CampaignStats{}
	campaign.CreatedBy = createdBy
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		return err
	}
	s.log.Info("campaign created", logger.CampaignID(campaign.ID.Hex()), zap.String("created_by", createdBy))
	return nil
}

// GetCampaignByID retrieves a campaign by ID
func (s *CampaignService) GetCampaignByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	return s.campaignRepo.FindByID(ctx, id)
}

// ListCampaigns lists campaigns matching filter with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, filter models.CampaignFilter, page, limit int) ([]*models.Campaign, models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.Pagination{}, apperrors.NewValidation("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	page, limit = normalizePage(page, limit)
	campaigns, total, err := s.campaignRepo.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return campaigns, models.NewPagination(page, limit, total), nil
}

// UpdateCampaign applies patch to a campaign that has not started sending
func (s *CampaignService) UpdateCampaign(ctx context.Context, id primitive.ObjectID, patch models.CampaignPatch) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := editGuard(campaign.Status); err != nil {
		return nil, err
	}
	patch.Apply(campaign)
	normalizeCampaign(campaign)
	if err := validateStruct(campaign); err != nil {
		return nil, err
	}
	campaign.UpdatedAt = s.now()
	if err := s.campaignRepo.UpdateContent(ctx, campaign); err != nil {
		return nil, s.explainMismatch(ctx, id, err)
	}
	return campaign, nil
}

// DeleteCampaign deletes a campaign that has not started sending
func (s *CampaignService) DeleteCampaign(ctx context.Context, id primitive.ObjectID) error {
	if err := s.campaignRepo.Delete(ctx, id); err != nil {
		return s.explainMismatch(ctx, id, err)
	}
	s.log.Info("campaign deleted", logger.CampaignID(id.Hex()))
	return nil
}

// ScheduleCampaign sets a future send time and moves the campaign to scheduled
func (s *CampaignService) ScheduleCampaign(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Campaign, error) {
	if at.IsZero() {
		return nil, apperrors.NewValidation("scheduledFor", "is required")
	}
	if !at.After(s.now()) {
		return nil, apperrors.NewValidation("scheduledFor", "must be in the future")
	}
	campaign, err := s.campaignRepo.Schedule(ctx, id, at.UTC())
	if err != nil {
		return nil, s.explainTransition(ctx, id, models.CampaignScheduled, err)
	}
	s.log.Info("campaign scheduled", logger.CampaignID(id.Hex()), zap.Time("scheduled_for", at.UTC()))
	return campaign, nil
}

// CancelCampaign cancels a draft or scheduled campaign
func (s *CampaignService) CancelCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.TransitionStatus(ctx, id, models.SendableStatuses, models.CampaignCancelled)
	if err != nil {
		return nil, s.explainTransition(ctx, id, models.CampaignCancelled, err)
	}
	s.log.Info("campaign cancelled", logger.CampaignID(id.Hex()))
	return campaign, nil
}

// CampaignStats is the stats view of one campaign
type CampaignStats struct {
	ID     primitive.ObjectID    `json:"id"`
	Title  string                `json:"title"`
	Status models.CampaignStatus `json:"status"`
	SentAt *time.Time            `json:"sentAt,omitempty"`
	Stats  models.CampaignStats  `json:"stats"`
}

// GetCampaignStats returns the counters of a campaign
func (s *CampaignService) GetCampaignStats(ctx context.Context, id primitive.ObjectID) (*CampaignStats, error) {
	c, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignStats{ID: c.ID, Title: c.Title, Status: c.Status, SentAt: c.SentAt, Stats: c.Stats}, nil
}

// RecordEngagement adds externally reported opens, clicks, bounces or unsubscribes
func (s *CampaignService) RecordEngagement(ctx context.Context, id primitive.ObjectID, metric string, count int) (*CampaignStats, error) {
	field, ok := models.EngagementMetrics[metric]
	if !ok {
		return nil, apperrors.NewValidation("metric", fmt.Sprintf("unknown metric %q", metric))
	}
	if count <= 0 {
		return nil, apperrors.NewValidation("count", "must be positive")
	}
	c, err := s.campaignRepo.IncrementStat(ctx, id, field, count)
	if err != nil {
		return nil, err
	}
	return &CampaignStats{ID: c.ID, Title: c.Title, Status: c.Status, SentAt: c.SentAt, Stats: c.Stats}, nil
}

// GetOverview aggregates subscriber and campaign counts
func (s *CampaignService) GetOverview(ctx context.Context) (*models.NewsletterOverview, error) {
	active, inactive, err := s.subscriberRepo.CountByActive(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.campaignRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &models.NewsletterOverview{
		TotalSubscribers:    active + inactive,
		ActiveSubscribers:   active,
		InactiveSubscribers: inactive,
		CampaignsByStatus:   byStatus,
	}, nil
}

// explainMismatch turns a failed editable-precondition into the error for the current status.
func (s *CampaignService) explainMismatch(ctx context.Context, id primitive.ObjectID, err error) error {
	if !errors.Is(err, apperrors.ErrStatusMismatch) {
		return err
	}
	current, ferr := s.campaignRepo.FindByID(ctx, id)
	if ferr != nil {
		return ferr
	}
	if gerr := editGuard(current.Status); gerr != nil {
		return gerr
	}
	return err
}

func (s *CampaignService) explainTransition(ctx context.Context, id primitive.ObjectID, to models.CampaignStatus, err error) error {
	if !errors.Is(err, apperrors.ErrStatusMismatch) {
		return err
	}
	current, ferr := s.campaignRepo.FindByID(ctx, id)
	if ferr != nil {
		return ferr
	}
	switch current.Status {
	case models.CampaignSending:
		return apperrors.ErrAlreadySending
	case models.CampaignSent:
		return apperrors.ErrAlreadySent
	}
	return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, current.Status, to)
}

// editGuard rejects edits and deletes once a campaign has started sending.
func editGuard(status models.CampaignStatus) error {
	switch status {
	case models.CampaignSent:
		return apperrors.ErrAlreadySent
	case models.CampaignSending:
		return apperrors.ErrAlreadySending
	}
	return nil
}

func normalizeCampaign(c *models.Campaign) {
	c.Title = strings.TrimSpace(c.Title)
	c.Subject = strings.TrimSpace(c.Subject)
	c.FeaturedImage = strings.TrimSpace(c.FeaturedImage)
	c.Tags = cleanList(c.Tags)
	c.TargetGroups = cleanList(c.TargetGroups)
}

// cleanList trims, drops blanks and de-duplicates, keeping first occurrences.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
