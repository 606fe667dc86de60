// Package mongodb stores users and events as MongoDB documents.
//
// Documents carry a version counter. Mutations read the document, apply the
// change in memory and replace it only if the version is still the one that
// was read, retrying a bounded number of times on conflict.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"portal-backend/config"
	"portal-backend/models"
	"portal-backend/portal"
)

const maxAttempts = 8

// ErrConflict is reported, wrapped in portal.ErrStorage, when a document kept
// changing underneath every retry.
var ErrConflict = errors.New("concurrent modification")

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg config.Mongo, log *logrus.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.WithField("database", cfg.Database).Info("mongodb connected")
	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "is_approved", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	_, err = db.Collection(eventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "proposed_by", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}
	return nil
}

// Stores returns document stores on db.
func Stores(db *mongo.Database) portal.Stores {
	return portal.Stores{
		Users: &UserStore{
			coll: db.Collection(usersCollection),
			meta: db.Collection(metaCollection),
		},
		Events: &EventStore{coll: db.Collection(eventsCollection)},
	}
}

// replaceVersioned is the optimistic read-modify-write loop shared by both
// stores. replaceErr translates a failed write of doc; errors from fn are
// returned unchanged.
func replaceVersioned[T any](ctx context.Context, coll *mongo.Collection, id string, version func(*T) *int64, fn func(*T) error, replaceErr func(doc *T, err error) error) (*T, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var doc T
		if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, portal.ErrNotFound
			}
			return nil, portal.StorageError("find "+coll.Name(), err)
		}
		v := version(&doc)
		read := *v
		if err := fn(&doc); err != nil {
			return nil, err
		}
		*v = read + 1
		res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": read}, &doc)
		if err != nil {
			return nil, replaceErr(&doc, err)
		}
		if res.MatchedCount == 1 {
			return &doc, nil
		}
	}
	return nil, portal.StorageError("update "+coll.Name(), ErrConflict)
}

// deleteVersioned removes a document once guard accepts the version it saw.
func deleteVersioned[T any](ctx context.Context, coll *mongo.Collection, id string, version func(*T) *int64, guard func(*T) error) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var doc T
		if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return portal.ErrNotFound
			}
			return portal.StorageError("find "+coll.Name(), err)
		}
		if guard != nil {
			if err := guard(&doc); err != nil {
				return err
			}
		}
		res, err := coll.DeleteOne(ctx, bson.M{"_id": id, "version": *version(&doc)})
		if err != nil {
			return portal.StorageError("delete "+coll.Name(), err)
		}
		if res.DeletedCount == 1 {
			return nil
		}
	}
	return portal.StorageError("delete "+coll.Name(), ErrConflict)
}

func userVersion(u *models.User) *int64   { return &u.Version }
func eventVersion(e *models.Event) *int64 { return &e.Version }
