package repositories

import (
	"context"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignRepository defines the interface for campaign data operations.
// Lookups of unknown ids return apperrors.ErrNotFound. Conditional status
// updates that match nothing return apperrors.ErrStatusMismatch.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	FindAll(ctx context.Context, filter models.CampaignFilter, page, limit int) ([]*models.Campaign, int64, error)
	// UpdateContent replaces the editable fields, only while the campaign is editable.
	UpdateContent(ctx context.Context, campaign *models.Campaign) error
	// Delete removes the campaign, only while it is editable.
	Delete(ctx context.Context, id primitive.ObjectID) error

	// TransitionStatus moves the campaign to `to` only if its current status is in `from`.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.CampaignStatus, to models.CampaignStatus) (*models.Campaign, error)
	// Schedule sets scheduledFor and status=scheduled from draft or scheduled.
	Schedule(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Campaign, error)
	// MarkSent commits the end of a dispatch. Requires status=sending.
	MarkSent(ctx context.Context, id primitive.ObjectID, totalRecipients int, sentAt time.Time) error
	FindDue(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	IncrementStat(ctx context.Context, id primitive.ObjectID, field string, delta int) (*models.Campaign, error)
	CountByStatus(ctx context.Context) (map[models.CampaignStatus]int64, error)
}

// SubscriberRepository defines the interface for subscriber data operations.
// Create returns apperrors.ErrDuplicate when the email or token is taken.
type SubscriberRepository interface {
	Create(ctx context.Context, subscriber *models.Subscriber) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Subscriber, error)
	FindByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	FindByEmails(ctx context.Context, emails []string) ([]*models.Subscriber, error)
	FindByToken(ctx context.Context, token string) (*models.Subscriber, error)
	FindAll(ctx context.Context, filter models.SubscriberFilter, page, limit int) ([]*models.Subscriber, int64, error)
	// FindAllUnpaged returns every match, oldest subscription first.
	FindAllUnpaged(ctx context.Context, filter models.SubscriberFilter) ([]*models.Subscriber, error)
	// FindActive returns the active subscribers in snapshot order (subscriptionDate, then id).
	FindActive(ctx context.Context) ([]*models.Subscriber, error)
	Reactivate(ctx context.Context, id primitive.ObjectID, name string, interests []string, source models.SubscriberSource) (*models.Subscriber, error)
	// Deactivate sets isActive=false for the token's subscriber. Unknown tokens return ErrNotFound.
	Deactivate(ctx context.Context, token string) (*models.Subscriber, error)
	MarkEmailed(ctx context.Context, emails []string, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountByActive(ctx context.Context) (active, inactive int64, err error)
}

// SettingsRepository defines the interface for the newsletter settings document
type SettingsRepository interface {
	// GetSettings returns the settings, creating them from defaults when absent.
	GetSettings(ctx context.Context, defaults models.NewsletterSettings) (*models.NewsletterSettings, error)
	UpdateSettings(ctx context.Context, settings *models.NewsletterSettings) error
}
