package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewsletterSettings holds the runtime-tunable dispatch settings
type NewsletterSettings struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	BatchSize        int                `bson:"batchSize" json:"batchSize" binding:"required,min=1,max=500"`
	BatchDelayMs     int                `bson:"batchDelayMs" json:"batchDelayMs" binding:"min=0,max=600000"`
	SchedulerEnabled bool               `bson:"schedulerEnabled" json:"schedulerEnabled"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
	UpdatedBy        string             `bson:"updatedBy" json:"updatedBy"`
}

// BatchDelay returns the inter-batch pause as a duration.
func (s *NewsletterSettings) BatchDelay() time.Duration {
	return time.Duration(s.BatchDelayMs) * time.Millisecond
}
