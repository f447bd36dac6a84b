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

var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// CampaignRepository implements the repositories.CampaignRepository interface
type CampaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *mongo.Database) *CampaignRepository {
	return &CampaignRepository{
		collection: db.Collection(CampaignsCollection),
	}
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign)
	if err != nil {
		return nil, translate(err, "campaign", id.Hex())
	}
	return &campaign, nil
}

// FindAll finds campaigns matching the filter, newest first, with pagination
func (r *CampaignRepository) FindAll(ctx context.Context, filter models.CampaignFilter, page, limit int) ([]*models.Campaign, int64, error) {
	query := campaignQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, 0, err
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, total, nil
}

// Create creates a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID.IsZero() {
		campaign.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, campaign)
	return err
}

// UpdateContent writes the operator-editable fields while the campaign is still editable
func (r *CampaignRepository) UpdateContent(ctx context.Context, campaign *models.Campaign) error {
	filter := bson.M{
		"_id":    campaign.ID,
		"status": bson.M{"$nin": []models.CampaignStatus{models.CampaignSent, models.CampaignSending}},
	}
	update := bson.M{"$set": bson.M{
		"title":         campaign.Title,
		"subject":       campaign.Subject,
		"content":       campaign.Content,
		"htmlContent":   campaign.HTMLContent,
		"previewText":   campaign.PreviewText,
		"featuredImage": campaign.FeaturedImage,
		"tags":          campaign.Tags,
		"targetGroups":  campaign.TargetGroups,
		"updatedAt":     campaign.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrMismatch(ctx, campaign.ID)
	}
	return nil
}

// Delete deletes a campaign that has not started sending
func (r *CampaignRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$nin": []models.CampaignStatus{models.CampaignSent, models.CampaignSending}},
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return r.missOrMismatch(ctx, id)
	}
	return nil
}

// TransitionStatus is a compare-and-swap on the status field
func (r *CampaignRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []models.CampaignStatus, to models.CampaignStatus) (*models.Campaign, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()}}
	return r.findOneAndUpdate(ctx, id, filter, update)
}

// Schedule sets the send time and moves the campaign to scheduled
func (r *CampaignRepository) Schedule(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Campaign, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": models.SendableStatuses}}
	update := bson.M{"$set": bson.M{
		"status":       models.CampaignScheduled,
		"scheduledFor": at,
		"updatedAt":    time.Now().UTC(),
	}}
	return r.findOneAndUpdate(ctx, id, filter, update)
}

// MarkSent records the final state of a completed dispatch
func (r *CampaignRepository) MarkSent(ctx context.Context, id primitive.ObjectID, totalRecipients int, sentAt time.Time) error {
	filter := bson.M{"_id": id, "status": models.CampaignSending}
	update := bson.M{"$set": bson.M{
		"status":                models.CampaignSent,
		"sentAt":                sentAt,
		"stats.totalRecipients": totalRecipients,
		"updatedAt":             sentAt,
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrMismatch(ctx, id)
	}
	return nil
}

// FindDue finds scheduled campaigns whose send time has passed, oldest first
func (r *CampaignRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduledFor", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":       models.CampaignScheduled,
		"scheduledFor": bson.M{"$lte": now},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	return campaigns, nil
}

// IncrementStat adds delta to one of the stats counters
func (r *CampaignRepository) IncrementStat(ctx context.Context, id primitive.ObjectID, field string, delta int) (*models.Campaign, error) {
	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.findOneAndUpdate(ctx, id, bson.M{"_id": id}, update)
}

// CountByStatus counts campaigns per status
func (r *CampaignRepository) CountByStatus(ctx context.Context) (map[models.CampaignStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.CampaignStatus `bson:"_id"`
		Count  int64                 `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[models.CampaignStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// EnsureIndexes creates the indexes the due-campaign query relies on
func (r *CampaignRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledFor", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("campaign indexes: %w", err)
	}
	return nil
}

func (r *CampaignRepository) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, filter, update bson.M) (*models.Campaign, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var campaign models.Campaign
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&campaign)
	if err == mongo.ErrNoDocuments {
		return nil, r.missOrMismatch(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// missOrMismatch tells an unknown id apart from a failed status precondition.
func (r *CampaignRepository) missOrMismatch(ctx context.Context, id primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("campaign", id.Hex())
	}
	return apperrors.ErrStatusMismatch
}

func campaignQuery(filter models.CampaignFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"subject": pattern},
			bson.M{"content": pattern},
		}
	}
	return query
}
