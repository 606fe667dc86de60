package portal_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portal-backend/database/memory"
	"portal-backend/models"
	"portal-backend/portal"
)

type fakeCreds struct{}

func (fakeCreds) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeCreds) Verify(password, hash string) bool { return hash == "hashed:"+password }

func (fakeCreds) IssueToken(u *models.User) (string, error) { return "token-" + u.ID, nil }

type fakeVerifier map[string]*portal.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (*portal.Identity, error) {
	id, ok := f[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return id, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, opts ...portal.Option) *portal.Service {
	t.Helper()
	opts = append([]portal.Option{portal.WithClock(func() time.Time { return testNow })}, opts...)
	return portal.New(memory.Stores(), fakeCreds{}, opts...)
}

func actorOf(u *models.User) models.Actor {
	return models.Actor{ID: u.ID, Role: u.Role}
}

// register creates an account; the first call yields the admin.
func register(t *testing.T, svc *portal.Service, username string) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), portal.RegisterInput{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: "pw-" + username,
	})
	require.NoError(t, err)
	return u
}

// member registers and approves a member account.
func member(t *testing.T, svc *portal.Service, admin *models.User, username string) *models.User {
	t.Helper()
	u := register(t, svc, username)
	u, err := svc.Approve(context.Background(), actorOf(admin), u.ID)
	require.NoError(t, err)
	return u
}

func propose(t *testing.T, svc *portal.Service, by *models.User, title string) *models.Event {
	t.Helper()
	e, err := svc.Propose(context.Background(), actorOf(by), portal.EventInput{Title: title})
	require.NoError(t, err)
	return e
}
