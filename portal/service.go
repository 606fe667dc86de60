// Package portal holds the rules of the community portal: user onboarding and
// approval, the event proposal lifecycle, task coordination and dashboard
// statistics. Every operation takes an explicit actor and returns typed
// failures from errors.go; persistence is delegated to the store interfaces.
package portal

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"portal-backend/models"
)

// Credentials hashes passwords and issues access tokens.
type Credentials interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	IssueToken(u *models.User) (string, error)
}

// Identity is what an external identity provider vouches for.
type Identity struct {
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier checks a token issued by a third-party identity provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Service exposes the core operations.
type Service struct {
	users    UserStore
	events   EventStore
	creds    Credentials
	identity IdentityVerifier
	log      *logrus.Entry
	now      func() time.Time
}

type Option func(*Service)

// WithIdentityVerifier enables login through an external identity provider.
func WithIdentityVerifier(v IdentityVerifier) Option {
	return func(s *Service) { s.identity = v }
}

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.log = l.WithField("component", "portal") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(stores Stores, creds Credentials, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Service{
		users:  stores.Users,
		events: stores.Events,
		creds:  creds,
		log:    logrus.NewEntry(discard),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logStorage(op string, err error) {
	if errors.Is(err, ErrStorage) {
		s.log.WithError(err).WithField("op", op).Error("store operation failed")
	}
}
