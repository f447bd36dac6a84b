package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)

// SettingsRepository implements repositories.SettingsRepository
type SettingsRepository struct {
	collection *mongo.Collection
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{
		collection: db.Collection(SettingsCollection),
	}
}

// GetSettings retrieves the settings document, inserting defaults on first use
func (r *SettingsRepository) GetSettings(ctx context.Context, defaults models.NewsletterSettings) (*models.NewsletterSettings, error) {
	var settings models.NewsletterSettings
	err := r.collection.FindOne(ctx, bson.M{}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		now := time.Now().UTC()
		settings = defaults
		settings.CreatedAt = now
		settings.UpdatedAt = now
		res, err := r.collection.InsertOne(ctx, settings)
		if err != nil {
			return nil, err
		}
		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			settings.ID = oid
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings overwrites the tunable fields of the settings document
func (r *SettingsRepository) UpdateSettings(ctx context.Context, settings *models.NewsletterSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"batchSize":        settings.BatchSize,
			"batchDelayMs":     settings.BatchDelayMs,
			"schedulerEnabled": settings.SchedulerEnabled,
			"updatedAt":        settings.UpdatedAt,
			"updatedBy":        settings.UpdatedBy,
		},
		"$setOnInsert": bson.M{"createdAt": settings.UpdatedAt},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{}, update, options.Update().SetUpsert(true))
	return err
}
