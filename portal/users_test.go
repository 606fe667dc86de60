package portal_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-backend/models"
	"portal-backend/portal"
)

func TestRegisterFirstUserIsAdmin(t *testing.T) {
	svc := newService(t)

	alice := register(t, svc, "alice")
	assert.Equal(t, models.RoleAdmin, alice.Role)
	assert.True(t, alice.IsApproved)

	bob := register(t, svc, "bob")
	assert.Equal(t, models.RoleMember, bob.Role)
	assert.False(t, bob.IsApproved)
}

func TestRegisterConcurrentOnlyOneAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	users := make([]*models.User, 10)
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := svc.Register(ctx, portal.RegisterInput{
				Username: string(rune('a' + i)),
				Password: "pw",
			})
			assert.NoError(t, err)
			users[i] = u
		}()
	}
	wg.Wait()

	admins := 0
	for _, u := range users {
		require.NotNil(t, u)
		if u.Role == models.RoleAdmin {
			admins++
			assert.True(t, u.IsApproved)
		}
	}
	assert.Equal(t, 1, admins)
}

func TestRegisterDuplicates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	register(t, svc, "alice")

	_, err := svc.Register(ctx, portal.RegisterInput{Username: "alice", Password: "x"})
	assert.ErrorIs(t, err, portal.ErrDuplicateUsername)

	_, err = svc.Register(ctx, portal.RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "x"})
	assert.ErrorIs(t, err, portal.ErrDuplicateEmail)

	// Accounts without email never clash on it.
	_, err = svc.Register(ctx, portal.RegisterInput{Username: "carol", Password: "x"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, portal.RegisterInput{Username: "dave", Password: "x"})
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	_, err := svc.Register(context.Background(), portal.RegisterInput{Username: "  ", Password: "x"})
	assert.ErrorIs(t, err, portal.ErrInvalidInput)
	_, err = svc.Register(context.Background(), portal.RegisterInput{Username: "eve"})
	assert.ErrorIs(t, err, portal.ErrInvalidInput)
}

func TestApprovalScenario(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")

	_, err := svc.Authenticate(ctx, "bob", "pw-bob")
	assert.ErrorIs(t, err, portal.ErrNotApproved)

	_, err = svc.Approve(ctx, actorOf(alice), bob.ID)
	require.NoError(t, err)

	sess, err := svc.Authenticate(ctx, "bob", "pw-bob")
	require.NoError(t, err)
	assert.Equal(t, "token-"+bob.ID, sess.Token)
	assert.Equal(t, bob.ID, sess.User.ID)
}

func TestApproveIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")

	again, err := svc.Approve(ctx, actorOf(alice), bob.ID)
	require.NoError(t, err)
	assert.True(t, again.IsApproved)
}

func TestApproveRequiresAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")
	carol := register(t, svc, "carol")

	_, err := svc.Approve(ctx, actorOf(bob), carol.ID)
	assert.ErrorIs(t, err, portal.ErrForbidden)

	_, err = svc.Approve(ctx, actorOf(alice), "missing")
	assert.ErrorIs(t, err, portal.ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	register(t, svc, "alice")

	_, err := svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, portal.ErrInvalidCredentials)

	sess, err := svc.Authenticate(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func TestUnapprovedAdminCanLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")

	bob, err := svc.CreateUser(ctx, actorOf(alice), portal.CreateUserInput{
		RegisterInput: portal.RegisterInput{Username: "bob", Password: "pw-bob"},
		Role:          models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.False(t, bob.IsApproved)

	_, err = svc.Authenticate(ctx, "bob", "pw-bob")
	assert.NoError(t, err)
}

func TestCreateUser(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")

	u, err := svc.CreateUser(ctx, actorOf(alice), portal.CreateUserInput{
		RegisterInput: portal.RegisterInput{Username: "carol", Password: "pw"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, u.Role)
	assert.False(t, u.IsApproved)

	_, err = svc.CreateUser(ctx, actorOf(bob), portal.CreateUserInput{
		RegisterInput: portal.RegisterInput{Username: "dave", Password: "pw"},
	})
	assert.ErrorIs(t, err, portal.ErrForbidden)

	_, err = svc.CreateUser(ctx, actorOf(alice), portal.CreateUserInput{
		RegisterInput: portal.RegisterInput{Username: "dave", Password: "pw"},
		Role:          "owner",
	})
	assert.ErrorIs(t, err, portal.ErrInvalidInput)
}

func TestSeedAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	admin, err := svc.SeedAdmin(ctx, "root", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.IsApproved)
	assert.Equal(t, "Super Admin", admin.Profile.Name)

	_, err = svc.SeedAdmin(ctx, "root2", "pw")
	assert.ErrorIs(t, err, portal.ErrAdminExists)

	// The seeded admin counts as the first user.
	bob := register(t, svc, "bob")
	assert.Equal(t, models.RoleMember, bob.Role)
}

func TestSetRoleAndRemove(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")

	promoted, err := svc.SetRole(ctx, actorOf(alice), bob.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	_, err = svc.SetRole(ctx, actorOf(alice), bob.ID, "superuser")
	assert.ErrorIs(t, err, portal.ErrInvalidInput)

	// Self-demotion is allowed.
	demoted, err := svc.SetRole(ctx, actorOf(alice), alice.ID, models.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, demoted.Role)

	require.NoError(t, svc.RemoveUser(ctx, actorOf(promoted), alice.ID))
	_, err = svc.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, portal.ErrNotFound)

	assert.ErrorIs(t, svc.RemoveUser(ctx, actorOf(promoted), alice.ID), portal.ErrNotFound)
	assert.ErrorIs(t, svc.RemoveUser(ctx, actorOf(demoted), promoted.ID), portal.ErrForbidden)
}

func TestUpdateProfile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	name, bio := "Alice A.", "organiser"

	u, err := svc.UpdateProfile(ctx, actorOf(alice), models.ProfilePatch{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", u.Profile.Name)
	assert.Equal(t, "organiser", u.Profile.Bio)

	for _, phone := range []string{"0123456789", "+91 9876543210", "+1-5551234567", ""} {
		p := phone
		_, err := svc.UpdateProfile(ctx, actorOf(alice), models.ProfilePatch{Contact: &p})
		assert.NoError(t, err, phone)
	}

	for _, phone := range []string{"12345", "phone", "+12345 12345678901", "012-345-6789"} {
		p := phone
		_, err := svc.UpdateProfile(ctx, actorOf(alice), models.ProfilePatch{Contact: &p})
		assert.ErrorIs(t, err, portal.ErrInvalidPhoneFormat, phone)
	}

	got, err := svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.Profile.Name, "untouched fields keep their value")
	assert.Equal(t, "", got.Profile.Contact)
}

func TestListPendingAndTeam(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")
	carol := register(t, svc, "carol")

	pending, err := svc.ListPendingUsers(ctx, actorOf(alice))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, carol.ID, pending[0].ID)

	_, err = svc.ListPendingUsers(ctx, actorOf(bob))
	assert.ErrorIs(t, err, portal.ErrForbidden)

	team, err := svc.ListTeam(ctx)
	require.NoError(t, err)
	ids := []string{}
	for _, u := range team {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, ids)
}

func TestAuthenticateByVerifiedIdentity(t *testing.T) {
	verifier := fakeVerifier{
		"alice-token": {Email: "Alice@Example.com", Name: "Alice", Picture: "https://img/alice.png"},
		"new-token":   {Email: "newcomer@example.com", Name: "New", Picture: "https://img/new.png"},
		"bob-token":   {Email: "bob@example.com"},
	}
	svc := newService(t, portal.WithIdentityVerifier(verifier))
	ctx := context.Background()
	alice := register(t, svc, "alice")
	register(t, svc, "bob")

	t.Run("known account", func(t *testing.T) {
		sess, reg, err := svc.AuthenticateByVerifiedIdentity(ctx, "alice-token")
		require.NoError(t, err)
		assert.Nil(t, reg)
		require.NotNil(t, sess)
		assert.Equal(t, alice.ID, sess.User.ID)
		assert.Equal(t, "https://img/alice.png", sess.User.Profile.Image)
	})

	t.Run("unknown email", func(t *testing.T) {
		sess, reg, err := svc.AuthenticateByVerifiedIdentity(ctx, "new-token")
		require.NoError(t, err)
		assert.Nil(t, sess)
		require.NotNil(t, reg)
		assert.Equal(t, "newcomer@example.com", reg.Email)
		assert.Equal(t, "New", reg.Name)
	})

	t.Run("unapproved", func(t *testing.T) {
		_, _, err := svc.AuthenticateByVerifiedIdentity(ctx, "bob-token")
		assert.ErrorIs(t, err, portal.ErrNotApproved)
	})

	t.Run("bad token", func(t *testing.T) {
		_, _, err := svc.AuthenticateByVerifiedIdentity(ctx, "forged")
		assert.ErrorIs(t, err, portal.ErrIdentityUnverified)
	})

	t.Run("no verifier configured", func(t *testing.T) {
		_, _, err := newService(t).AuthenticateByVerifiedIdentity(ctx, "alice-token")
		assert.ErrorIs(t, err, portal.ErrIdentityUnverified)
	})
}

func TestValidPhone(t *testing.T) {
	assert.True(t, portal.ValidPhone("9876543210"))
	assert.True(t, portal.ValidPhone("+44 9876543210"))
	assert.False(t, portal.ValidPhone("98765"))
	assert.False(t, portal.ValidPhone("+44  9876543210"))
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, portal.RegisterInput{Username: "alice", Password: strings.Repeat("p", portal.MaxPasswordBytes+1)})
	assert.ErrorIs(t, err, portal.ErrInvalidInput)
	assert.Equal(t, "InvalidInput", portal.Code(err))

	u, err := svc.Register(ctx, portal.RegisterInput{Username: "alice", Password: strings.Repeat("p", portal.MaxPasswordBytes)})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestRemoveUserUnassignsOpenTasks(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")
	carol := member(t, svc, alice, "carol")
	e := propose(t, svc, alice, "Picnic")

	shared, err := svc.AddTask(ctx, actorOf(alice), e.ID, portal.TaskInput{Title: "Set up", AssignedTo: []string{bob.ID, carol.ID}})
	require.NoError(t, err)
	solo, err := svc.AddTask(ctx, actorOf(alice), e.ID, portal.TaskInput{Title: "Clean up", AssignedTo: []string{carol.ID}})
	require.NoError(t, err)
	finished, err := svc.AddTask(ctx, actorOf(alice), e.ID, portal.TaskInput{Title: "Book park", AssignedTo: []string{carol.ID}})
	require.NoError(t, err)
	_, err = svc.RecordCompletion(ctx, actorOf(carol), e.ID, finished.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveUser(ctx, actorOf(alice), carol.ID))

	got, err := svc.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, got.TaskByID(shared.ID).AssignedTo)
	assert.Empty(t, got.TaskByID(solo.ID).AssignedTo)
	assert.Equal(t, models.TaskPending, got.TaskByID(solo.ID).Status)
	assert.Equal(t, []string{carol.ID}, got.TaskByID(finished.ID).AssignedTo)
	assert.Equal(t, models.TaskCompleted, got.TaskByID(finished.ID).Status)

	task, err := svc.RecordCompletion(ctx, actorOf(bob), e.ID, shared.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)
}

func TestRemoveUserCompletesTaskOthersFinished(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := member(t, svc, alice, "bob")
	carol := member(t, svc, alice, "carol")
	e := propose(t, svc, alice, "Picnic")

	task, err := svc.AddTask(ctx, actorOf(alice), e.ID, portal.TaskInput{Title: "Set up", AssignedTo: []string{bob.ID, carol.ID}})
	require.NoError(t, err)
	_, err = svc.RecordCompletion(ctx, actorOf(bob), e.ID, task.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveUser(ctx, actorOf(alice), carol.ID))

	got, err := svc.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.TaskByID(task.ID).Status)
	assert.Equal(t, []string{bob.ID}, got.TaskByID(task.ID).CompletedBy)
}
