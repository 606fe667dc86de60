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

const (
	usersCollection = "users"
	metaCollection  = "portal_meta"

	// firstUserClaim exists while the collection holds the first user. Whoever
	// inserts it into an empty collection is the first user.
	firstUserClaim = "first_user"
)

type UserStore struct {
	coll *mongo.Collection
	meta *mongo.Collection
}

func (s *UserStore) duplicate(ctx context.Context, u *models.User) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"username": u.Username, "_id": bson.M{"$ne": u.ID}})
	if err != nil {
		return portal.StorageError("check username", err)
	}
	if n > 0 {
		return portal.ErrDuplicateUsername
	}
	return portal.ErrDuplicateEmail
}

// claimFirst reports how many users to treat as already existing. When the
// collection is empty the caller races for the first-user claim document.
func (s *UserStore) claimFirst(ctx context.Context, userID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil || n > 0 {
		return n, err
	}
	_, err = s.meta.InsertOne(ctx, bson.M{"_id": firstUserClaim, "user_id": userID})
	if mongo.IsDuplicateKeyError(err) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, nil
}

// releaseClaim drops the first-user claim. With userID set only that user's
// claim is dropped; otherwise the claim goes only if no users remain.
func (s *UserStore) releaseClaim(ctx context.Context, userID string) error {
	if userID == "" {
		n, err := s.coll.CountDocuments(ctx, bson.M{})
		if err != nil || n > 0 {
			return err
		}
		_, err = s.meta.DeleteOne(ctx, bson.M{"_id": firstUserClaim})
		return err
	}
	_, err := s.meta.DeleteOne(ctx, bson.M{"_id": firstUserClaim, "user_id": userID})
	return err
}

func (s *UserStore) Insert(ctx context.Context, u *models.User, bootstrap func(int64, *models.User)) error {
	claimed := false
	if bootstrap != nil {
		n, err := s.claimFirst(ctx, u.ID)
		if err != nil {
			return portal.StorageError("bootstrap user", err)
		}
		claimed = n == 0
		bootstrap(n, u)
	}
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if claimed {
			if rerr := s.releaseClaim(ctx, u.ID); rerr != nil {
				return portal.StorageError("release first-user claim", rerr)
			}
		}
		if mongo.IsDuplicateKeyError(err) {
			return s.duplicate(ctx, u)
		}
		return portal.StorageError("insert user", err)
	}
	return nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, portal.ErrNotFound
		}
		return nil, portal.StorageError("find user", err)
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	return replaceVersioned(ctx, s.coll, id, userVersion, fn, func(u *models.User, err error) error {
		if mongo.IsDuplicateKeyError(err) {
			return s.duplicate(ctx, u)
		}
		return portal.StorageError("update user", err)
	})
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return portal.StorageError("delete user", err)
	}
	if res.DeletedCount == 0 {
		return portal.ErrNotFound
	}
	if err := s.releaseClaim(ctx, ""); err != nil {
		return portal.StorageError("release first-user claim", err)
	}
	return nil
}

func userFilter(f portal.UserFilter) bson.M {
	q := bson.M{}
	if f.Role != nil {
		q["role"] = *f.Role
	}
	if f.Approved != nil {
		q["is_approved"] = *f.Approved
	}
	return q
}

func (s *UserStore) List(ctx context.Context, f portal.UserFilter) ([]*models.User, error) {
	cur, err := s.coll.Find(ctx, userFilter(f), options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, portal.StorageError("list users", err)
	}
	defer cur.Close(ctx)

	users := []*models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, portal.StorageError("decode users", err)
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context, f portal.UserFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, userFilter(f))
	if err != nil {
		return 0, portal.StorageError("count users", err)
	}
	return n, nil
}
