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

var _ repositories.SubscriberRepository = (*SubscriberStore)(nil)

// SubscriberStore enforces the same uniqueness rules as the Mongo indexes.
type SubscriberStore struct {
	mu          sync.Mutex
	subscribers map[primitive.ObjectID]models.Subscriber

	// FailFindActive, when set, is returned by FindActive.
	FailFindActive error
}

func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{subscribers: make(map[primitive.ObjectID]models.Subscriber)}
}

func (s *SubscriberStore) Create(_ context.Context, subscriber *models.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subscribers {
		if existing.Email == subscriber.Email || existing.UnsubscribeToken == subscriber.UnsubscribeToken {
			return apperrors.ErrDuplicate
		}
	}
	if subscriber.ID.IsZero() {
		subscriber.ID = primitive.NewObjectID()
	}
	s.subscribers[subscriber.ID] = cloneSubscriber(*subscriber)
	return nil
}

func (s *SubscriberStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Subscriber, error) {
	return s.findOne(func(sub models.Subscriber) bool { return sub.ID == id }, id.Hex())
}

func (s *SubscriberStore) FindByEmail(_ context.Context, email string) (*models.Subscriber, error) {
	email = models.NormalizeEmail(email)
	return s.findOne(func(sub models.Subscriber) bool { return sub.Email == email }, email)
}

func (s *SubscriberStore) FindByEmails(_ context.Context, emails []string) ([]*models.Subscriber, error) {
	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[e] = true
	}
	return s.filter(func(sub models.Subscriber) bool { return want[sub.Email] }), nil
}

func (s *SubscriberStore) FindByToken(_ context.Context, token string) (*models.Subscriber, error) {
	return s.findOne(func(sub models.Subscriber) bool { return sub.UnsubscribeToken == token }, "token")
}

func (s *SubscriberStore) FindAll(_ context.Context, filter models.SubscriberFilter, page, limit int) ([]*models.Subscriber, int64, error) {
	matched := s.filter(matcher(filter))
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].SubscriptionDate.After(matched[j].SubscriptionDate) })
	return paginate(matched, page, limit), int64(len(matched)), nil
}

func (s *SubscriberStore) FindAllUnpaged(_ context.Context, filter models.SubscriberFilter) ([]*models.Subscriber, error) {
	return s.filter(matcher(filter)), nil
}

func (s *SubscriberStore) FindActive(_ context.Context) ([]*models.Subscriber, error) {
	if s.FailFindActive != nil {
		return nil, s.FailFindActive
	}
	return s.filter(func(sub models.Subscriber) bool { return sub.IsActive }), nil
}

func (s *SubscriberStore) Reactivate(_ context.Context, id primitive.ObjectID, name string, interests []string, source models.SubscriberSource) (*models.Subscriber, error) {
	return s.update(func(sub models.Subscriber) bool { return sub.ID == id }, id.Hex(), func(sub *models.Subscriber) {
		sub.IsActive = true
		sub.Interests = interests
		sub.Source = source
		sub.SubscriptionDate = time.Now().UTC()
		if name != "" {
			sub.Name = name
		}
	})
}

func (s *SubscriberStore) Deactivate(_ context.Context, token string) (*models.Subscriber, error) {
	return s.update(func(sub models.Subscriber) bool { return sub.UnsubscribeToken == token }, "token", func(sub *models.Subscriber) {
		sub.IsActive = false
	})
}

func (s *SubscriberStore) MarkEmailed(_ context.Context, emails []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[e] = true
	}
	for id, sub := range s.subscribers {
		if want[sub.Email] {
			t := at
			sub.LastEmailSent = &t
			s.subscribers[id] = sub
		}
	}
	return nil
}

func (s *SubscriberStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[id]; !ok {
		return apperrors.NotFound("subscriber", id.Hex())
	}
	delete(s.subscribers, id)
	return nil
}

func (s *SubscriberStore) CountByActive(_ context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active, inactive int64
	for _, sub := range s.subscribers {
		if sub.IsActive {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive, nil
}

// filter returns matching subscribers in snapshot order.
func (s *SubscriberStore) filter(keep func(models.Subscriber) bool) []*models.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Subscriber{}
	for _, sub := range s.subscribers {
		if keep(sub) {
			cs := cloneSubscriber(sub)
			out = append(out, &cs)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubscriptionDate.Equal(out[j].SubscriptionDate) {
			return out[i].ID.Hex() < out[j].ID.Hex()
		}
		return out[i].SubscriptionDate.Before(out[j].SubscriptionDate)
	})
	return out
}

func (s *SubscriberStore) findOne(match func(models.Subscriber) bool, key string) (*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		if match(sub) {
			cs := cloneSubscriber(sub)
			return &cs, nil
		}
	}
	return nil, apperrors.NotFound("subscriber", key)
}

func (s *SubscriberStore) update(match func(models.Subscriber) bool, key string, fn func(*models.Subscriber)) (*models.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subscribers {
		if match(sub) {
			fn(&sub)
			sub.UpdatedAt = time.Now().UTC()
			s.subscribers[id] = sub
			cs := cloneSubscriber(sub)
			return &cs, nil
		}
	}
	return nil, apperrors.NotFound("subscriber", key)
}

func matcher(filter models.SubscriberFilter) func(models.Subscriber) bool {
	search := strings.ToLower(filter.Search)
	return func(sub models.Subscriber) bool {
		if filter.Active != nil && sub.IsActive != *filter.Active {
			return false
		}
		if search != "" && !strings.Contains(strings.ToLower(sub.Email+" "+sub.Name), search) {
			return false
		}
		return true
	}
}

func cloneSubscriber(sub models.Subscriber) models.Subscriber {
	sub.Interests = append([]string(nil), sub.Interests...)
	if sub.LastEmailSent != nil {
		t := *sub.LastEmailSent
		sub.LastEmailSent = &t
	}
	return sub
}
