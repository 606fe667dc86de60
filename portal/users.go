package portal

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"portal-backend/models"
)

// phonePattern accepts ten digits, optionally preceded by "+" and a
// 1-4 digit country code with an optional space or dash separator.
var phonePattern = regexp.MustCompile(`^(\+\d{1,4}[\s-]?)?\d{10}$`)

// ValidPhone reports whether s is an acceptable contact number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type CreateUserInput struct {
	RegisterInput
	Role models.Role
}

// Session is the result of a successful login.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// NeedsRegistration signals that an externally verified identity has no
// account yet. It is not an error: the client is expected to register.
type NeedsRegistration struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func (in RegisterInput) normalize() (RegisterInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" {
		return in, invalid("username is required")
	}
	if in.Password == "" {
		return in, invalid("password is required")
	}
	if len(in.Password) > MaxPasswordBytes {
		return in, invalid("password must be at most %d bytes", MaxPasswordBytes)
	}
	return in, nil
}

func (s *Service) newUser(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	var email *string
	if in.Email != "" {
		if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
			return nil, ErrDuplicateEmail
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		email = &in.Email
	}
	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &models.User{
		ID:           models.NewID(),
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Register creates an account. The first account ever created becomes an
// approved admin; every later one is an unapproved member.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	u, err := s.newUser(ctx, in, models.RoleMember)
	if err != nil {
		s.logStorage("register", err)
		return nil, err
	}
	err = s.users.Insert(ctx, u, func(existing int64, u *models.User) {
		if existing == 0 {
			u.Role = models.RoleAdmin
			u.IsApproved = true
		}
	})
	if err != nil {
		s.logStorage("register", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role, "approved": u.IsApproved}).Info("user registered")
	return u, nil
}

// CreateUser lets an admin create an account with a chosen role. The account
// still has to be approved before its owner can log in.
func (s *Service) CreateUser(ctx context.Context, actor models.Actor, in CreateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	u, err := s.newUser(ctx, in.RegisterInput, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Insert(ctx, u, nil); err != nil {
		s.logStorage("create user", err)
		return nil, err
	}
	return u, nil
}

// SeedAdmin creates an approved admin when no admin exists yet.
func (s *Service) SeedAdmin(ctx context.Context, username, password string) (*models.User, error) {
	admin := models.RoleAdmin
	n, err := s.users.Count(ctx, UserFilter{Role: &admin})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrAdminExists
	}
	u, err := s.newUser(ctx, RegisterInput{Username: username, Password: password}, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	u.IsApproved = true
	u.Profile.Name = "Super Admin"
	if err := s.users.Insert(ctx, u, nil); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) login(u *models.User) (*Session, error) {
	if !u.CanLogin() {
		return nil, ErrNotApproved
	}
	token, err := s.creds.IssueToken(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}

// Authenticate checks a username/password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.logStorage("authenticate", err)
		return nil, err
	}
	if !s.creds.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.login(u)
}

// AuthenticateByVerifiedIdentity logs in the account whose email an external
// identity provider vouches for. Exactly one of the session and the
// registration signal is non-nil on success.
func (s *Service) AuthenticateByVerifiedIdentity(ctx context.Context, externalToken string) (*Session, *NeedsRegistration, error) {
	if s.identity == nil {
		return nil, nil, ErrIdentityUnverified
	}
	id, err := s.identity.Verify(ctx, externalToken)
	if err != nil {
		s.log.WithError(err).Warn("identity verification failed")
		return nil, nil, ErrIdentityUnverified
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, nil, ErrIdentityUnverified
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, &NeedsRegistration{Email: email, Name: id.Name, Picture: id.Picture}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.CanLogin() {
		return nil, nil, ErrNotApproved
	}
	if id.Picture != "" && u.Profile.Image == "" {
		updated, err := s.users.Update(ctx, u.ID, func(u *models.User) error {
			if u.Profile.Image == "" {
				u.Profile.Image = id.Picture
				u.UpdatedAt = s.now()
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		u = updated
	}
	sess, err := s.login(u)
	return sess, nil, err
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

// Approve marks a user as approved. Approving twice is a no-op.
func (s *Service) Approve(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	u, err := s.users.Update(ctx, userID, func(u *models.User) error {
		if !u.IsApproved {
			u.IsApproved = true
			u.UpdatedAt = s.now()
		}
		return nil
	})
	if err != nil {
		s.logStorage("approve user", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "actor_id": actor.ID}).Info("user approved")
	return u, nil
}

// SetRole overwrites a user's role. An admin may change their own role,
// including demoting the last admin.
func (s *Service) SetRole(ctx context.Context, actor models.Actor, userID string, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}
	u, err := s.users.Update(ctx, userID, func(u *models.User) error {
		u.Role = role
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logStorage("set role", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "actor_id": actor.ID, "role": role}).Info("user role changed")
	return u, nil
}

// RemoveUser deletes a user record and drops the user from every open task,
// so the remaining assignees can still complete it. Completed tasks keep
// their history.
func (s *Service) RemoveUser(ctx context.Context, actor models.Actor, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		s.logStorage("remove user", err)
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "actor_id": actor.ID}).Info("user removed")
	if err := s.unassignEverywhere(ctx, userID); err != nil {
		s.logStorage("unassign removed user", err)
		return err
	}
	return nil
}

func (s *Service) unassignEverywhere(ctx context.Context, userID string) error {
	events, err := s.events.List(ctx, EventFilter{})
	if err != nil {
		return err
	}
	for _, e := range events {
		if !hasOpenTaskFor(e, userID) {
			continue
		}
		_, err := s.events.Update(ctx, e.ID, func(e *models.Event) error {
			for i := range e.Tasks {
				if e.Tasks[i].Unassign(userID) {
					e.UpdatedAt = s.now()
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func hasOpenTaskFor(e *models.Event, userID string) bool {
	for _, t := range e.Tasks {
		if t.Status != models.TaskCompleted && t.IsAssigned(userID) {
			return true
		}
	}
	return false
}

// UpdateProfile applies a partial profile update to the actor's own record.
func (s *Service) UpdateProfile(ctx context.Context, actor models.Actor, patch models.ProfilePatch) (*models.User, error) {
	if patch.Contact != nil {
		c := strings.TrimSpace(*patch.Contact)
		if c != "" && !ValidPhone(c) {
			return nil, ErrInvalidPhoneFormat
		}
		patch.Contact = &c
	}
	u, err := s.users.Update(ctx, actor.ID, func(u *models.User) error {
		u.ApplyProfile(patch)
		u.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logStorage("update profile", err)
		return nil, err
	}
	return u, nil
}

// ListPendingUsers returns members still waiting for approval.
func (s *Service) ListPendingUsers(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	member, approved := models.RoleMember, false
	return s.users.List(ctx, UserFilter{Role: &member, Approved: &approved})
}

// ListTeam returns every approved user.
func (s *Service) ListTeam(ctx context.Context) ([]*models.User, error) {
	approved := true
	return s.users.List(ctx, UserFilter{Approved: &approved})
}
