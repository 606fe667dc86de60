package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portal-backend/models"
	"portal-backend/portal"
)

// EventStore keeps each event aggregate in one row; votes, discussion and
// tasks live in JSON columns. Mutations lock the row for the duration of the
// read-modify-write.
type EventStore struct {
	db *gorm.DB
}

func (s *EventStore) Insert(ctx context.Context, e *models.Event) error {
	return portal.StorageError("insert event", s.db.WithContext(ctx).Create(e).Error)
}

func (s *EventStore) FindByID(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("find event", err)
	}
	return &e, nil
}

// locked loads the event with a row lock, hands it to fn, and commits only
// if fn succeeds. Errors from fn come back unchanged.
func (s *EventStore) locked(ctx context.Context, op, id string, fn func(tx *gorm.DB, e *models.Event) error) (*models.Event, error) {
	var e models.Event
	var ruleErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&e, "id = ?", id).Error; err != nil {
			return err
		}
		ruleErr = fn(tx, &e)
		return ruleErr
	})
	if err != nil {
		if ruleErr != nil {
			return nil, ruleErr
		}
		return nil, notFoundOr(op, err)
	}
	return &e, nil
}

func (s *EventStore) Update(ctx context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	var dbErr error
	e, err := s.locked(ctx, "update event", id, func(tx *gorm.DB, e *models.Event) error {
		if err := fn(e); err != nil {
			return err
		}
		e.Version++
		if dbErr = tx.Save(e).Error; dbErr != nil {
			return dbErr
		}
		return nil
	})
	if dbErr != nil {
		return nil, portal.StorageError("update event", dbErr)
	}
	return e, err
}

func (s *EventStore) Delete(ctx context.Context, id string, guard func(*models.Event) error) error {
	var dbErr error
	_, err := s.locked(ctx, "delete event", id, func(tx *gorm.DB, e *models.Event) error {
		if guard != nil {
			if err := guard(e); err != nil {
				return err
			}
		}
		if dbErr = tx.Delete(&models.Event{}, "id = ?", id).Error; dbErr != nil {
			return dbErr
		}
		return nil
	})
	if dbErr != nil {
		return portal.StorageError("delete event", dbErr)
	}
	return err
}

func eventQuery(db *gorm.DB, f portal.EventFilter) *gorm.DB {
	q := db.Model(&models.Event{})
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.ProposedBy != "" {
		q = q.Where("proposed_by = ?", f.ProposedBy)
	}
	return q
}

// List returns matching events, newest first.
func (s *EventStore) List(ctx context.Context, f portal.EventFilter) ([]*models.Event, error) {
	events := []*models.Event{}
	if err := eventQuery(s.db.WithContext(ctx), f).Order("created_at desc").Find(&events).Error; err != nil {
		return nil, portal.StorageError("list events", err)
	}
	return events, nil
}

func (s *EventStore) Count(ctx context.Context, f portal.EventFilter) (int64, error) {
	var n int64
	if err := eventQuery(s.db.WithContext(ctx), f).Count(&n).Error; err != nil {
		return 0, portal.StorageError("count events", err)
	}
	return n, nil
}
