// Package storetest checks that a store implementation honours the contract
// the portal core relies on. Every backend runs the same suite.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-backend/models"
	"portal-backend/portal"
)

// Factory returns empty stores for one subtest.
type Factory func(t *testing.T) portal.Stores

func Run(t *testing.T, newStores Factory) {
	t.Run("UserRoundTrip", func(t *testing.T) { userRoundTrip(t, newStores(t)) })
	t.Run("UserUniqueness", func(t *testing.T) { userUniqueness(t, newStores(t)) })
	t.Run("FirstUserBootstrap", func(t *testing.T) { firstUserBootstrap(t, newStores(t)) })
	t.Run("FirstUserAfterEmptied", func(t *testing.T) { firstUserAfterEmptied(t, newStores(t)) })
	t.Run("UserFilters", func(t *testing.T) { userFilters(t, newStores(t)) })
	t.Run("EventRoundTrip", func(t *testing.T) { eventRoundTrip(t, newStores(t)) })
	t.Run("EventUpdateRollback", func(t *testing.T) { eventUpdateRollback(t, newStores(t)) })
	t.Run("EventConcurrentUpdates", func(t *testing.T) { eventConcurrentUpdates(t, newStores(t)) })
	t.Run("EventDeleteGuard", func(t *testing.T) { eventDeleteGuard(t, newStores(t)) })
	t.Run("EventFilters", func(t *testing.T) { eventFilters(t, newStores(t)) })
}

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newUser(username string, role models.Role, approved bool, offset int) *models.User {
	return &models.User{
		ID:           models.NewID(),
		Username:     username,
		PasswordHash: "hash",
		Role:         role,
		IsApproved:   approved,
		CreatedAt:    base.Add(time.Duration(offset) * time.Minute),
		UpdatedAt:    base,
	}
}

func newEvent(title, by string, status models.EventStatus, offset int) *models.Event {
	return &models.Event{
		ID:         models.NewID(),
		Title:      title,
		Status:     status,
		ProposedBy: by,
		Upvotes:    []string{},
		Downvotes:  []string{},
		Discussion: []models.Comment{},
		Tasks:      []models.Task{},
		CreatedAt:  base.Add(time.Duration(offset) * time.Minute),
		UpdatedAt:  base,
	}
}

func userRoundTrip(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	email := "alice@example.com"
	u := newUser("alice", models.RoleMember, false, 0)
	u.Email = &email
	u.Profile = models.Profile{Name: "Alice", Contact: "9876543210"}
	require.NoError(t, s.Users.Insert(ctx, u, nil))

	byID, err := s.Users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.Equal(t, "Alice", byID.Profile.Name)

	byEmail, err := s.Users.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.Users.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	updated, err := s.Users.Update(ctx, u.ID, func(u *models.User) error {
		u.IsApproved = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsApproved)

	again, err := s.Users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, again.IsApproved)

	require.NoError(t, s.Users.Delete(ctx, u.ID))
	assert.ErrorIs(t, s.Users.Delete(ctx, u.ID), portal.ErrNotFound)
	_, err = s.Users.Update(ctx, u.ID, func(*models.User) error { return nil })
	assert.ErrorIs(t, err, portal.ErrNotFound)
}

func userUniqueness(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	email := "a@example.com"
	a := newUser("alice", models.RoleMember, true, 0)
	a.Email = &email
	require.NoError(t, s.Users.Insert(ctx, a, nil))

	assert.ErrorIs(t, s.Users.Insert(ctx, newUser("alice", models.RoleMember, false, 1), nil), portal.ErrDuplicateUsername)

	b := newUser("bob", models.RoleMember, false, 1)
	b.Email = &email
	assert.ErrorIs(t, s.Users.Insert(ctx, b, nil), portal.ErrDuplicateEmail)

	// Several accounts may have no email.
	require.NoError(t, s.Users.Insert(ctx, newUser("carol", models.RoleMember, false, 2), nil))
	require.NoError(t, s.Users.Insert(ctx, newUser("dave", models.RoleMember, false, 3), nil))
}

func firstUserBootstrap(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	const n = 8
	users := make([]*models.User, n)
	var wg sync.WaitGroup
	for i := range users {
		users[i] = newUser(fmt.Sprintf("user%d", i), models.RoleMember, false, i)
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			err := s.Users.Insert(ctx, u, func(existing int64, u *models.User) {
				if existing == 0 {
					u.Role = models.RoleAdmin
					u.IsApproved = true
				}
			})
			assert.NoError(t, err)
		}(users[i])
	}
	wg.Wait()

	admin := models.RoleAdmin
	count, err := s.Users.Count(ctx, portal.UserFilter{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// firstUserAfterEmptied pins the bootstrap count to the users currently
// stored, not to the users ever stored.
func firstUserAfterEmptied(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	insert := func(username string) int64 {
		var seen int64 = -1
		require.NoError(t, s.Users.Insert(ctx, newUser(username, models.RoleMember, false, 0), func(existing int64, _ *models.User) {
			seen = existing
		}))
		return seen
	}
	first := newUser("alice", models.RoleMember, false, 0)
	require.NoError(t, s.Users.Insert(ctx, first, func(existing int64, _ *models.User) {
		assert.Equal(t, int64(0), existing)
	}))
	assert.NotEqual(t, int64(0), insert("bob"))

	bob, err := s.Users.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, s.Users.Delete(ctx, first.ID))
	require.NoError(t, s.Users.Delete(ctx, bob.ID))

	assert.Equal(t, int64(0), insert("carol"))
	assert.NotEqual(t, int64(0), insert("dave"))
}

func userFilters(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	for i, u := range []*models.User{
		newUser("admin", models.RoleAdmin, true, 0),
		newUser("bob", models.RoleMember, true, 1),
		newUser("carol", models.RoleMember, false, 2),
		newUser("dave", models.RoleMember, false, 3),
	} {
		require.NoError(t, s.Users.Insert(ctx, u, nil), i)
	}

	member, unapproved, approved := models.RoleMember, false, true
	pending, err := s.Users.List(ctx, portal.UserFilter{Role: &member, Approved: &unapproved})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "carol", pending[0].Username, "oldest first")
	assert.Equal(t, "dave", pending[1].Username)

	n, err := s.Users.Count(ctx, portal.UserFilter{Approved: &approved})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := s.Users.List(ctx, portal.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func eventRoundTrip(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	n := 30
	date := base.Add(48 * time.Hour)
	e := newEvent("Picnic", "u1", models.EventPending, 0)
	e.ExpectedParticipants = &n
	e.SuggestedDate = &date
	require.NoError(t, s.Events.Insert(ctx, e))

	updated, err := s.Events.Update(ctx, e.ID, func(e *models.Event) error {
		e.Upvotes = append(e.Upvotes, "u2")
		e.Discussion = append(e.Discussion, models.Comment{UserID: "u2", Text: "yes", CreatedAt: base})
		e.Tasks = append(e.Tasks, models.Task{
			ID:          "t1",
			Title:       "Food",
			AssignedTo:  []string{"u2", "u3"},
			Status:      models.TaskPending,
			CompletedBy: []string{"u2"},
			CreatedAt:   base,
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, updated.Upvotes)

	got, err := s.Events.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Picnic", got.Title)
	assert.Equal(t, 30, *got.ExpectedParticipants)
	assert.True(t, date.Equal(*got.SuggestedDate))
	assert.Equal(t, []string{"u2"}, got.Upvotes)
	assert.Empty(t, got.Downvotes)
	require.Len(t, got.Discussion, 1)
	assert.Equal(t, "yes", got.Discussion[0].Text)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, []string{"u2", "u3"}, got.Tasks[0].AssignedTo)
	assert.Equal(t, []string{"u2"}, got.Tasks[0].CompletedBy)

	_, err = s.Events.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, portal.ErrNotFound)
	_, err = s.Events.Update(ctx, "missing", func(*models.Event) error { return nil })
	assert.ErrorIs(t, err, portal.ErrNotFound)
}

func eventUpdateRollback(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	e := newEvent("Picnic", "u1", models.EventPending, 0)
	require.NoError(t, s.Events.Insert(ctx, e))

	rule := errors.New("rule violated")
	_, err := s.Events.Update(ctx, e.ID, func(e *models.Event) error {
		e.Title = "half"
		e.Status = models.EventApproved
		return rule
	})
	assert.ErrorIs(t, err, rule)

	got, err := s.Events.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Picnic", got.Title)
	assert.Equal(t, models.EventPending, got.Status)
}

func eventConcurrentUpdates(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	e := newEvent("Picnic", "u1", models.EventPending, 0)
	require.NoError(t, s.Events.Insert(ctx, e))

	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Events.Update(ctx, e.ID, func(e *models.Event) error {
				e.Upvotes = append(e.Upvotes, id)
				e.Discussion = append(e.Discussion, models.Comment{UserID: id, Text: "hi", CreatedAt: base})
				return nil
			})
			assert.NoError(t, err)
		}(fmt.Sprintf("voter-%d", i))
	}
	wg.Wait()

	got, err := s.Events.FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Upvotes, n)
	assert.Len(t, got.Discussion, n)
}

func eventDeleteGuard(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	e := newEvent("Picnic", "u1", models.EventPending, 0)
	require.NoError(t, s.Events.Insert(ctx, e))

	err := s.Events.Delete(ctx, e.ID, func(*models.Event) error { return portal.ErrForbidden })
	assert.ErrorIs(t, err, portal.ErrForbidden)
	_, err = s.Events.FindByID(ctx, e.ID)
	require.NoError(t, err)

	require.NoError(t, s.Events.Delete(ctx, e.ID, func(e *models.Event) error {
		if e.ProposedBy != "u1" {
			return portal.ErrForbidden
		}
		return nil
	}))
	assert.ErrorIs(t, s.Events.Delete(ctx, e.ID, nil), portal.ErrNotFound)
}

func eventFilters(t *testing.T, s portal.Stores) {
	ctx := context.Background()
	require.NoError(t, s.Events.Insert(ctx, newEvent("old", "u1", models.EventApproved, 0)))
	require.NoError(t, s.Events.Insert(ctx, newEvent("mid", "u2", models.EventPending, 1)))
	require.NoError(t, s.Events.Insert(ctx, newEvent("new", "u1", models.EventPending, 2)))

	all, err := s.Events.List(ctx, portal.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].Title, "newest first")
	assert.Equal(t, "old", all[2].Title)

	pending := models.EventPending
	n, err := s.Events.Count(ctx, portal.EventFilter{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	mine, err := s.Events.List(ctx, portal.EventFilter{ProposedBy: "u1", Status: &pending})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "new", mine[0].Title)
}
