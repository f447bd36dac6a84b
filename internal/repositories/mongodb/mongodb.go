// Package mongodb implements the repository interfaces on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/apperrors"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CampaignsCollection   = "campaigns"
	SubscribersCollection = "subscribers"
	SettingsCollection    = "newsletter_settings"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every collection the service owns.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, repo := range []indexer{
		NewCampaignRepository(db),
		NewSubscriberRepository(db),
	} {
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// translate maps driver errors onto apperrors kinds.
func translate(err error, kind, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperrors.NotFound(kind, key)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s %q: %w", kind, key, apperrors.ErrDuplicate)
	default:
		return err
	}
}
