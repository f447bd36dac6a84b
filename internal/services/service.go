package services

import (
	"context"
	"io"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignManager defines the campaign operations exposed to the HTTP layer
type CampaignManager interface {
	CreateCampaign(ctx context.Context, campaign *models.Campaign, createdBy string) error
	GetCampaignByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, filter models.CampaignFilter, page, limit int) ([]*models.Campaign, models.Pagination, error)
	UpdateCampaign(ctx context.Context, id primitive.ObjectID, patch models.CampaignPatch) (*models.Campaign, error)
	DeleteCampaign(ctx context.Context, id primitive.ObjectID) error

	// ScheduleCampaign sets the send time. It must be in the future.
	ScheduleCampaign(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Campaign, error)
	CancelCampaign(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error)

	GetCampaignStats(ctx context.Context, id primitive.ObjectID) (*CampaignStats, error)
	RecordEngagement(ctx context.Context, id primitive.ObjectID, metric string, count int) (*CampaignStats, error)
	GetOverview(ctx context.Context) (*models.NewsletterOverview, error)
}

// CampaignDispatcher sends campaigns
type CampaignDispatcher interface {
	// SendCampaign sends to every active subscriber and marks the campaign sent.
	SendCampaign(ctx context.Context, id primitive.ObjectID) (*models.DispatchResult, error)

	// SendCampaignToAddresses sends to the given addresses only, without touching campaign state.
	SendCampaignToAddresses(ctx context.Context, id primitive.ObjectID, addresses []string) (*models.DispatchResult, error)
}

// SubscriberManager defines the subscriber operations exposed to the HTTP layer
type SubscriberManager interface {
	Subscribe(ctx context.Context, req models.SubscribeRequest) (*models.Subscriber, SubscribeOutcome, error)
	Unsubscribe(ctx context.Context, token string) (*models.Subscriber, error)
	ListSubscribers(ctx context.Context, filter models.SubscriberFilter, page, limit int) ([]*models.Subscriber, models.Pagination, error)
	DeleteSubscriber(ctx context.Context, id primitive.ObjectID) error
	ExportCSV(ctx context.Context, w io.Writer, filter models.SubscriberFilter) (int, error)
	ImportCSV(ctx context.Context, r io.Reader) (*models.ImportSummary, error)
}

// SettingsManager reads and replaces the runtime newsletter settings
type SettingsManager interface {
	GetSettings(ctx context.Context) (*models.NewsletterSettings, error)
	UpdateSettings(ctx context.Context, settings *models.NewsletterSettings, updatedBy string) error
}

var (
	_ CampaignManager    = (*CampaignService)(nil)
	_ CampaignDispatcher = (*Dispatcher)(nil)
	_ SubscriberManager  = (*SubscriberService)(nil)
	_ SettingsManager    = (*SettingsService)(nil)
	_ CampaignSender     = (*Dispatcher)(nil)
)
