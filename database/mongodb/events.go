package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"portal-backend/models"
	"portal-backend/portal"
)

const eventsCollection = "events"

// EventStore keeps each event with its votes, discussion and tasks as one document.
type EventStore struct {
	coll *mongo.Collection
}

func (s *EventStore) Insert(ctx context.Context, e *models.Event) error {
	if _, err := s.coll.InsertOne(ctx, e); err != nil {
		return portal.StorageError("insert event", err)
	}
	return nil
}

func (s *EventStore) FindByID(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, portal.ErrNotFound
		}
		return nil, portal.StorageError("find event", err)
	}
	return &e, nil
}

func (s *EventStore) Update(ctx context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	return replaceVersioned(ctx, s.coll, id, eventVersion, fn, func(_ *models.Event, err error) error {
		return portal.StorageError("update event", err)
	})
}

func (s *EventStore) Delete(ctx context.Context, id string, guard func(*models.Event) error) error {
	return deleteVersioned(ctx, s.coll, id, eventVersion, guard)
}

func eventFilter(f portal.EventFilter) bson.M {
	q := bson.M{}
	if f.Status != nil {
		q["status"] = *f.Status
	}
	if f.ProposedBy != "" {
		q["proposed_by"] = f.ProposedBy
	}
	return q
}

// List returns matching events, newest first.
func (s *EventStore) List(ctx context.Context, f portal.EventFilter) ([]*models.Event, error) {
	cur, err := s.coll.Find(ctx, eventFilter(f), options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, portal.StorageError("list events", err)
	}
	defer cur.Close(ctx)

	events := []*models.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, portal.StorageError("decode events", err)
	}
	return events, nil
}

func (s *EventStore) Count(ctx context.Context, f portal.EventFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, eventFilter(f))
	if err != nil {
		return 0, portal.StorageError("count events", err)
	}
	return n, nil
}
