package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.SubscriberRepository = (*SubscriberRepository)(nil)

// SubscriberRepository implements repositories.SubscriberRepository
type SubscriberRepository struct {
	collection *mongo.Collection
}

// NewSubscriberRepository creates a new SubscriberRepository
func NewSubscriberRepository(db *mongo.Database) *SubscriberRepository {
	return &SubscriberRepository{
		collection: db.Collection(SubscribersCollection),
	}
}

// snapshotOrder is the order recipients are dispatched and exported in.
var snapshotOrder = bson.D{{Key: "subscriptionDate", Value: 1}, {Key: "_id", Value: 1}}

// Create inserts a new subscriber
func (r *SubscriberRepository) Create(ctx context.Context, subscriber *models.Subscriber) error {
	if subscriber.ID.IsZero() {
		subscriber.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, subscriber)
	return translate(err, "subscriber", subscriber.Email)
}

// FindByID finds a subscriber by ID
func (r *SubscriberRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Subscriber, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id.Hex())
}

// FindByEmail finds a subscriber by email address
func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	email = models.NormalizeEmail(email)
	return r.findOne(ctx, bson.M{"email": email}, email)
}

// FindByEmails finds every subscriber whose address is in emails
func (r *SubscriberRepository) FindByEmails(ctx context.Context, emails []string) ([]*models.Subscriber, error) {
	if len(emails) == 0 {
		return []*models.Subscriber{}, nil
	}
	return r.find(ctx, bson.M{"email": bson.M{"$in": emails}}, options.Find())
}

// FindByToken finds a subscriber by unsubscribe token
func (r *SubscriberRepository) FindByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	return r.findOne(ctx, bson.M{"unsubscribeToken": token}, "token")
}

// FindAll finds subscribers matching the filter, newest first, with pagination
func (r *SubscriberRepository) FindAll(ctx context.Context, filter models.SubscriberFilter, page, limit int) ([]*models.Subscriber, int64, error) {
	query := subscriberQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "subscriptionDate", Value: -1}, {Key: "_id", Value: -1}})

	subscribers, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return subscribers, total, nil
}

// FindAllUnpaged returns all subscribers matching the filter
func (r *SubscriberRepository) FindAllUnpaged(ctx context.Context, filter models.SubscriberFilter) ([]*models.Subscriber, error) {
	return r.find(ctx, subscriberQuery(filter), options.Find().SetSort(snapshotOrder))
}

// FindActive returns the current active subscribers in snapshot order
func (r *SubscriberRepository) FindActive(ctx context.Context) ([]*models.Subscriber, error) {
	return r.find(ctx, bson.M{"isActive": true}, options.Find().SetSort(snapshotOrder))
}

// Reactivate flips an inactive subscriber back to active and refreshes its profile.
// The unsubscribe token is never touched.
func (r *SubscriberRepository) Reactivate(ctx context.Context, id primitive.ObjectID, name string, interests []string, source models.SubscriberSource) (*models.Subscriber, error) {
	now := time.Now().UTC()
	set := bson.M{
		"isActive":         true,
		"interests":        interests,
		"source":           source,
		"subscriptionDate": now,
		"updatedAt":        now,
	}
	if name != "" {
		set["name"] = name
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, id.Hex())
}

// Deactivate marks the token's subscriber inactive
func (r *SubscriberRepository) Deactivate(ctx context.Context, token string) (*models.Subscriber, error) {
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	return r.findOneAndUpdate(ctx, bson.M{"unsubscribeToken": token}, update, "token")
}

// MarkEmailed stamps lastEmailSent on every listed address
func (r *SubscriberRepository) MarkEmailed(ctx context.Context, emails []string, at time.Time) error {
	if len(emails) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"email": bson.M{"$in": emails}},
		bson.M{"$set": bson.M{"lastEmailSent": at}},
	)
	return err
}

// Delete removes a subscriber
func (r *SubscriberRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("subscriber", id.Hex())
	}
	return nil
}

// CountByActive counts active and inactive subscribers
func (r *SubscriberRepository) CountByActive(ctx context.Context) (int64, int64, error) {
	active, err := r.collection.CountDocuments(ctx, bson.M{"isActive": true})
	if err != nil {
		return 0, 0, err
	}
	inactive, err := r.collection.CountDocuments(ctx, bson.M{"isActive": false})
	if err != nil {
		return 0, 0, err
	}
	return active, inactive, nil
}

// EnsureIndexes creates the unique indexes on email and unsubscribe token
func (r *SubscriberRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "unsubscribeToken", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "subscriptionDate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("subscriber indexes: %w", err)
	}
	return nil
}

func (r *SubscriberRepository) findOne(ctx context.Context, filter bson.M, key string) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	if err := r.collection.FindOne(ctx, filter).Decode(&subscriber); err != nil {
		return nil, translate(err, "subscriber", key)
	}
	return &subscriber, nil
}

func (r *SubscriberRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, key string) (*models.Subscriber, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var subscriber models.Subscriber
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&subscriber); err != nil {
		return nil, translate(err, "subscriber", key)
	}
	return &subscriber, nil
}

func (r *SubscriberRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Subscriber, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subscribers []*models.Subscriber
	if err := cursor.All(ctx, &subscribers); err != nil {
		return nil, err
	}
	if subscribers == nil {
		subscribers = []*models.Subscriber{}
	}
	return subscribers, nil
}

func subscriberQuery(filter models.SubscriberFilter) bson.M {
	query := bson.M{}
	if filter.Active != nil {
		query["isActive"] = *filter.Active
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"name": pattern},
		}
	}
	return query
}
