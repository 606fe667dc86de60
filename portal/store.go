package portal

import (
	"context"

	"portal-backend/models"
)

// UserFilter narrows user listings. Nil fields match everything.
type UserFilter struct {
	Role     *models.Role
	Approved *bool
}

// Match reports whether u satisfies the filter. Stores without a query
// language use it directly.
func (f UserFilter) Match(u *models.User) bool {
	if f.Role != nil && u.Role != *f.Role {
		return false
	}
	if f.Approved != nil && u.IsApproved != *f.Approved {
		return false
	}
	return true
}

// EventFilter narrows event listings. Zero fields match everything.
type EventFilter struct {
	Status     *models.EventStatus
	ProposedBy string
}

func (f EventFilter) Match(e *models.Event) bool {
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.ProposedBy != "" && e.ProposedBy != f.ProposedBy {
		return false
	}
	return true
}

// UserStore persists users.
//
// Lookups return ErrNotFound when nothing matches. Insert returns
// ErrDuplicateUsername or ErrDuplicateEmail on a uniqueness clash. Every
// other failure matches ErrStorage.
type UserStore interface {
	// Insert stores u. bootstrap, when non-nil, is called with the number of
	// users already stored and may modify u before it is written; the count
	// and the write happen atomically.
	Insert(ctx context.Context, u *models.User, bootstrap func(existing int64, u *models.User)) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Update runs fn on the current user and writes the result atomically.
	// If fn returns an error nothing is written and the error is returned as is.
	Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f UserFilter) ([]*models.User, error)
	Count(ctx context.Context, f UserFilter) (int64, error)
}

// EventStore persists event aggregates, including their votes, discussion and tasks.
type EventStore interface {
	Insert(ctx context.Context, e *models.Event) error
	FindByID(ctx context.Context, id string) (*models.Event, error)
	// Update runs fn on the current event and writes the result atomically
	// with respect to other Update and Delete calls on the same event.
	// If fn returns an error nothing is written and the error is returned as is.
	Update(ctx context.Context, id string, fn func(e *models.Event) error) (*models.Event, error)
	// Delete removes the event after guard (if non-nil) accepts it under the same lock.
	Delete(ctx context.Context, id string, guard func(e *models.Event) error) error
	List(ctx context.Context, f EventFilter) ([]*models.Event, error)
	Count(ctx context.Context, f EventFilter) (int64, error)
}

// Stores groups the persistence collaborators of the core.
type Stores struct {
	Users  UserStore
	Events EventStore
}
