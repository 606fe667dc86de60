package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portal-backend/models"
	"portal-backend/portal"
)

type UserStore struct {
	db *gorm.DB
}

// duplicate works out which unique column a failed insert or update clashed on.
func (s *UserStore) duplicate(ctx context.Context, u *models.User) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", u.Username, u.ID).Count(&n).Error; err != nil {
		return portal.StorageError("check username", err)
	}
	if n > 0 {
		return portal.ErrDuplicateUsername
	}
	return portal.ErrDuplicateEmail
}

func (s *UserStore) Insert(ctx context.Context, u *models.User, bootstrap func(int64, *models.User)) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if bootstrap != nil {
			// Serialise first-user decisions so that two concurrent
			// registrations cannot both see an empty table.
			if err := tx.Exec("LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
			var n int64
			if err := tx.Model(&models.User{}).Count(&n).Error; err != nil {
				return err
			}
			bootstrap(n, u)
		}
		return tx.Create(u).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.duplicate(ctx, u)
	}
	return portal.StorageError("insert user", err)
}

func (s *UserStore) findBy(ctx context.Context, column, value string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where(column+" = ?", value).First(&u).Error; err != nil {
		return nil, notFoundOr("find user", err)
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findBy(ctx, "id", id)
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findBy(ctx, "username", username)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findBy(ctx, "email", email)
}

func (s *UserStore) Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	var u models.User
	var ruleErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error; err != nil {
			return err
		}
		if ruleErr = fn(&u); ruleErr != nil {
			return ruleErr
		}
		u.Version++
		return tx.Save(&u).Error
	})
	switch {
	case err == nil:
		return &u, nil
	case ruleErr != nil:
		return nil, ruleErr
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, s.duplicate(ctx, &u)
	}
	return nil, notFoundOr("update user", err)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return portal.StorageError("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return portal.ErrNotFound
	}
	return nil
}

func userQuery(db *gorm.DB, f portal.UserFilter) *gorm.DB {
	q := db.Model(&models.User{})
	if f.Role != nil {
		q = q.Where("role = ?", *f.Role)
	}
	if f.Approved != nil {
		q = q.Where("is_approved = ?", *f.Approved)
	}
	return q
}

func (s *UserStore) List(ctx context.Context, f portal.UserFilter) ([]*models.User, error) {
	users := []*models.User{}
	if err := userQuery(s.db.WithContext(ctx), f).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, portal.StorageError("list users", err)
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context, f portal.UserFilter) (int64, error) {
	var n int64
	if err := userQuery(s.db.WithContext(ctx), f).Count(&n).Error; err != nil {
		return 0, portal.StorageError("count users", err)
	}
	return n, nil
}
