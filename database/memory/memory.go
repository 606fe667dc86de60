// Package memory keeps users and events in process memory. It backs the
// test suites and the `--store=memory` mode of the server.
package memory

import (
	"context"
	"sort"
	"sync"

	"portal-backend/models"
	"portal-backend/portal"
)

// UserStore is a mutex-guarded map of users.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[string]*models.User{}}
}

func (s *UserStore) clash(u *models.User) error {
	for _, other := range s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return portal.ErrDuplicateUsername
		}
		if u.Email != nil && other.Email != nil && *u.Email == *other.Email {
			return portal.ErrDuplicateEmail
		}
	}
	return nil
}

func (s *UserStore) Insert(_ context.Context, u *models.User, bootstrap func(int64, *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clash(u); err != nil {
		return err
	}
	if bootstrap != nil {
		bootstrap(int64(len(s.users)), u)
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *UserStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, portal.ErrNotFound
}

func (s *UserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username })
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email != nil && *u.Email == email })
}

func (s *UserStore) Update(_ context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[id]
	if !ok {
		return nil, portal.ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.clash(next); err != nil {
		return nil, err
	}
	s.users[id] = next
	return next.Clone(), nil
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return portal.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) List(_ context.Context, f portal.UserFilter) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.User{}
	for _, u := range s.users {
		if f.Match(u) {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *UserStore) Count(ctx context.Context, f portal.UserFilter) (int64, error) {
	users, err := s.List(ctx, f)
	return int64(len(users)), err
}

// EventStore is a mutex-guarded map of event aggregates. Update clones the
// stored event, runs the mutation and swaps the clone in, all under the lock.
type EventStore struct {
	mu     sync.Mutex
	events map[string]*models.Event
}

func NewEventStore() *EventStore {
	return &EventStore{events: map[string]*models.Event{}}
}

func (s *EventStore) Insert(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e.Clone()
	return nil
}

func (s *EventStore) FindByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, portal.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *EventStore) Update(_ context.Context, id string, fn func(*models.Event) error) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[id]
	if !ok {
		return nil, portal.ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1
	s.events[id] = next
	return next.Clone(), nil
}

func (s *EventStore) Delete(_ context.Context, id string, guard func(*models.Event) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[id]
	if !ok {
		return portal.ErrNotFound
	}
	if guard != nil {
		if err := guard(cur.Clone()); err != nil {
			return err
		}
	}
	delete(s.events, id)
	return nil
}

// List returns matching events, newest first.
func (s *EventStore) List(_ context.Context, f portal.EventFilter) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Event{}
	for _, e := range s.events {
		if f.Match(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *EventStore) Count(ctx context.Context, f portal.EventFilter) (int64, error) {
	events, err := s.List(ctx, f)
	return int64(len(events)), err
}

// Stores returns a fresh pair of empty stores.
func Stores() portal.Stores {
	return portal.Stores{Users: NewUserStore(), Events: NewEventStore()}
}
