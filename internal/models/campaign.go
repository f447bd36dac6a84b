package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignStatus is the lifecycle state of a newsletter campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignCancelled CampaignStatus = "cancelled"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignSending, CampaignCancelled},
	CampaignScheduled: {CampaignScheduled, CampaignSending, CampaignCancelled},
	// a failed dispatch is reset for manual retry
	CampaignSending: {CampaignSent, CampaignDraft},
}

// Valid reports whether s is a known status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignSending, CampaignSent, CampaignCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether campaign content may still be changed or deleted.
func (s CampaignStatus) Editable() bool {
	return s != CampaignSent && s != CampaignSending
}

// SendableStatuses are the states a dispatch may start from.
var SendableStatuses = []CampaignStatus{CampaignDraft, CampaignScheduled}

// CampaignStats holds aggregate counters. TotalRecipients is written by the
// dispatcher, the engagement counters are reported externally.
type CampaignStats struct {
	TotalRecipients int `bson:"totalRecipients" json:"totalRecipients"`
	Opens           int `bson:"opens" json:"opens"`
	Clicks          int `bson:"clicks" json:"clicks"`
	Bounces         int `bson:"bounces" json:"bounces"`
	Unsubscribes    int `bson:"unsubscribes" json:"unsubscribes"`
}

// EngagementMetrics lists the externally reported counters by their bson name.
var EngagementMetrics = map[string]string{
	"opens":        "stats.opens",
	"clicks":       "stats.clicks",
	"bounces":      "stats.bounces",
	"unsubscribes": "stats.unsubscribes",
}

// Campaign represents one newsletter send job
type Campaign struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Title         string             `bson:"title" json:"title" validate:"required,max=200"`
	Subject       string             `bson:"subject" json:"subject" validate:"required,max=300"`
	Content       string             `bson:"content" json:"content" validate:"required"`
	HTMLContent   string             `bson:"htmlContent,omitempty" json:"htmlContent,omitempty"`
	PreviewText   string             `bson:"previewText,omitempty" json:"previewText,omitempty" validate:"max=500"`
	FeaturedImage string             `bson:"featuredImage,omitempty" json:"featuredImage,omitempty" validate:"omitempty,url"`
	Tags          []string           `bson:"tags" json:"tags"`
	TargetGroups  []string           `bson:"targetGroups" json:"targetGroups"`
	ScheduledFor  *time.Time         `bson:"scheduledFor,omitempty" json:"scheduledFor,omitempty"`
	SentAt        *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	Status        CampaignStatus     `bson:"status" json:"status"`
	Stats         CampaignStats      `bson:"stats" json:"stats"`
	CreatedBy     string             `bson:"createdBy" json:"createdBy"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CampaignFilter narrows campaign listings. Zero values match everything.
type CampaignFilter struct {
	Status CampaignStatus
	Search string
}

// CampaignPatch carries the operator-editable fields of an update. Nil fields
// are left untouched.
type CampaignPatch struct {
	Title         *string   `json:"title"`
	Subject       *string   `json:"subject"`
	Content       *string   `json:"content"`
	HTMLContent   *string   `json:"htmlContent"`
	PreviewText   *string   `json:"previewText"`
	FeaturedImage *string   `json:"featuredImage"`
	Tags          *[]string `json:"tags"`
	TargetGroups  *[]string `json:"targetGroups"`
}

// Apply copies the non-nil patch fields onto c.
func (p CampaignPatch) Apply(c *Campaign) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Subject != nil {
		c.Subject = *p.Subject
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.HTMLContent != nil {
		c.HTMLContent = *p.HTMLContent
	}
	if p.PreviewText != nil {
		c.PreviewText = *p.PreviewText
	}
	if p.FeaturedImage != nil {
		c.FeaturedImage = *p.FeaturedImage
	}
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
	if p.TargetGroups != nil {
		c.TargetGroups = *p.TargetGroups
	}
}
