// Package memory provides in-process implementations of the repository
// interfaces. They back the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.CampaignRepository = (*CampaignStore)(nil)

// CampaignStore keeps campaigns in a map guarded by a mutex.
type CampaignStore struct {
	mu        sync.Mutex
	campaigns map[primitive.ObjectID]models.Campaign

	// FailMarkSent, when set, is returned by MarkSent.
	FailMarkSent error
}

func NewCampaignStore() *CampaignStore {
	return &CampaignStore{campaigns: make(map[primitive.ObjectID]models.Campaign)}
}

func (s *CampaignStore) Create(_ context.Context, campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if campaign.ID.IsZero() {
		campaign.ID = primitive.NewObjectID()
	}
	s.campaigns[campaign.ID] = cloneCampaign(*campaign)
	return nil
}

func (s *CampaignStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, apperrors.NotFound("campaign", id.Hex())
	}
	out := cloneCampaign(c)
	return &out, nil
}

func (s *CampaignStore) FindAll(_ context.Context, filter models.CampaignFilter, page, limit int) ([]*models.Campaign, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(filter.Search)
	var matched []*models.Campaign
	for _, c := range s.campaigns {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title+" "+c.Subject+" "+c.Content), search) {
			continue
		}
		cc := cloneCampaign(c)
		matched = append(matched, &cc)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.Hex() > matched[j].ID.Hex()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, page, limit), int64(len(matched)), nil
}

func (s *CampaignStore) UpdateContent(_ context.Context, campaign *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaign.ID]
	if !ok {
		return apperrors.NotFound("campaign", campaign.ID.Hex())
	}
	if !c.Status.Editable() {
		return apperrors.ErrStatusMismatch
	}
	c.Title, c.Subject, c.Content, c.HTMLContent = campaign.Title, campaign.Subject, campaign.Content, campaign.HTMLContent
	c.PreviewText, c.FeaturedImage = campaign.PreviewText, campaign.FeaturedImage
	c.Tags, c.TargetGroups = campaign.Tags, campaign.TargetGroups
	c.UpdatedAt = campaign.UpdatedAt
	s.campaigns[c.ID] = c
	return nil
}

func (s *CampaignStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", id.Hex())
	}
	if !c.Status.Editable() {
		return apperrors.ErrStatusMismatch
	}
	delete(s.campaigns, id)
	return nil
}

func (s *CampaignStore) TransitionStatus(_ context.Context, id primitive.ObjectID, from []models.CampaignStatus, to models.CampaignStatus) (*models.Campaign, error) {
	return s.update(id, from, func(c *models.Campaign) {
		c.Status = to
	})
}

func (s *CampaignStore) Schedule(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Campaign, error) {
	return s.update(id, models.SendableStatuses, func(c *models.Campaign) {
		c.Status = models.CampaignScheduled
		c.ScheduledFor = &at
	})
}

func (s *CampaignStore) MarkSent(_ context.Context, id primitive.ObjectID, totalRecipients int, sentAt time.Time) error {
	if s.FailMarkSent != nil {
		return s.FailMarkSent
	}
	_, err := s.update(id, []models.CampaignStatus{models.CampaignSending}, func(c *models.Campaign) {
		c.Status = models.CampaignSent
		c.SentAt = &sentAt
		c.Stats.TotalRecipients = totalRecipients
	})
	return err
}

func (s *CampaignStore) FindDue(_ context.Context, now time.Time) ([]*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := []*models.Campaign{}
	for _, c := range s.campaigns {
		if c.Status == models.CampaignScheduled && c.ScheduledFor != nil && !c.ScheduledFor.After(now) {
			cc := cloneCampaign(c)
			due = append(due, &cc)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(*due[j].ScheduledFor) })
	return due, nil
}

func (s *CampaignStore) IncrementStat(_ context.Context, id primitive.ObjectID, field string, delta int) (*models.Campaign, error) {
	return s.update(id, nil, func(c *models.Campaign) {
		switch field {
		case "stats.opens":
			c.Stats.Opens += delta
		case "stats.clicks":
			c.Stats.Clicks += delta
		case "stats.bounces":
			c.Stats.Bounces += delta
		case "stats.unsubscribes":
			c.Stats.Unsubscribes += delta
		}
	})
}

func (s *CampaignStore) CountByStatus(_ context.Context) (map[models.CampaignStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.CampaignStatus]int64)
	for _, c := range s.campaigns {
		counts[c.Status]++
	}
	return counts, nil
}

// update applies fn when the campaign's status is in from (any status when from is nil).
func (s *CampaignStore) update(id primitive.ObjectID, from []models.CampaignStatus, fn func(*models.Campaign)) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, apperrors.NotFound("campaign", id.Hex())
	}
	if from != nil && !containsStatus(from, c.Status) {
		return nil, apperrors.ErrStatusMismatch
	}
	fn(&c)
	c.UpdatedAt = time.Now().UTC()
	s.campaigns[id] = c
	out := cloneCampaign(c)
	return &out, nil
}

func containsStatus(list []models.CampaignStatus, s models.CampaignStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneCampaign(c models.Campaign) models.Campaign {
	c.Tags = append([]string(nil), c.Tags...)
	c.TargetGroups = append([]string(nil), c.TargetGroups...)
	if c.ScheduledFor != nil {
		t := *c.ScheduledFor
		c.ScheduledFor = &t
	}
	if c.SentAt != nil {
		t := *c.SentAt
		c.SentAt = &t
	}
	return c
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
