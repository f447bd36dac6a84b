package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriberSource records where a subscription came from
type SubscriberSource string

const (
	SourceWebsite  SubscriberSource = "website"
	SourceEvent    SubscriberSource = "event"
	SourceReferral SubscriberSource = "referral"
	SourceSocial   SubscriberSource = "social"
	SourceOther    SubscriberSource = "other"
)

// Valid reports whether s is one of the known sources.
func (s SubscriberSource) Valid() bool {
	switch s {
	case SourceWebsite, SourceEvent, SourceReferral, SourceSocial, SourceOther:
		return true
	}
	return false
}

// Subscriber represents an address opted into the newsletter
type Subscriber struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email            string             `bson:"email" json:"email"`
	Name             string             `bson:"name,omitempty" json:"name,omitempty"`
	IsActive         bool               `bson:"isActive" json:"isActive"`
	Interests        []string           `bson:"interests" json:"interests"`
	Source           SubscriberSource   `bson:"source" json:"source"`
	UnsubscribeToken string             `bson:"unsubscribeToken" json:"-"`
	SubscriptionDate time.Time          `bson:"subscriptionDate" json:"subscriptionDate"`
	LastEmailSent    *time.Time         `bson:"lastEmailSent,omitempty" json:"lastEmailSent,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// StatusLabel is the human readable activity state used in exports.
func (s *Subscriber) StatusLabel() string {
	if s.IsActive {
		return "Active"
	}
	return "Inactive"
}

// NormalizeEmail lower-cases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SubscriberFilter narrows subscriber listings. A nil Active matches both states.
type SubscriberFilter struct {
	Active *bool
	Search string
}

// SubscribeRequest is the input of a subscribe call
type SubscribeRequest struct {
	Email     string           `json:"email" validate:"required,email"`
	Name      string           `json:"name" validate:"max=120"`
	Interests []string         `json:"interests"`
	Source    SubscriberSource `json:"source"`
}
