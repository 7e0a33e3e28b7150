package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"smrms-be/models"
	"smrms-be/repository"
	"smrms-be/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	obj   storage.Object
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.obj, f.err
}

func TestRegisterLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)

	p, err := svc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: " Ana@Campus.test ", Password: "secret123", StudentNumber: "2021-0001"})
	require.NoError(t, err)
	assert.Equal(t, "ana@campus.test", p.Actor.Email)
	assert.Equal(t, models.AuthLocal, p.Actor.Auth.Kind)
	assert.Equal(t, []string{models.RoleStudent}, p.Roles)

	profile, err := f.store.FindStudentProfile(ctx, p.Actor.ID)
	require.NoError(t, err)
	assert.Equal(t, "BSIT", profile.Department)
	assert.Equal(t, "2021-0001", profile.StudentNumber)

	_, err = svc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.RegisterLocal(ctx, RegisterInput{Name: "Bo", Email: "bo@campus.test", Password: "123"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RegisterLocal(ctx, RegisterInput{Name: "Bo", Email: "not-an-email", Password: "secret123"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticateLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)
	_, err := svc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123"})
	require.NoError(t, err)
	f.actor(t, "Ext", "ext@campus.test")

	p, err := svc.AuthenticateLocal(ctx, "ANA@campus.test", "secret123")
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleStudent}, p.Roles)

	_, wrongPassword := svc.AuthenticateLocal(ctx, "ana@campus.test", "nope")
	_, unknownEmail := svc.AuthenticateLocal(ctx, "ghost@campus.test", "secret123")
	_, external := svc.AuthenticateLocal(ctx, "ext@campus.test", "secret123")
	for _, err := range []error{wrongPassword, unknownEmail, external} {
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, "invalid email or password", err.Error())
	}
}

func TestCreateStaffReusesExistingActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)
	student, err := svc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123"})
	require.NoError(t, err)

	staff, err := svc.CreateStaff(ctx, StaffInput{Name: "Someone Else", Email: "ana@campus.test", StaffID: "MS-01"})
	require.NoError(t, err)
	assert.Equal(t, student.Actor.ID, staff.ActorID)
	assert.Equal(t, "Ana", staff.Name, "existing actor is not overwritten")

	_, err = svc.AuthenticateLocal(ctx, "ana@campus.test", "secret123")
	require.NoError(t, err, "original password still works")

	roles, err := f.store.ActorRoleNames(ctx, student.Actor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleMaintenanceStaff, models.RoleStudent}, roles)

	_, err = svc.CreateStaff(ctx, StaffInput{Email: "ana@campus.test", StaffID: "MS-09"})
	assert.ErrorIs(t, err, ErrConflict, "already maintenance staff")
}

func TestCreateStaffDefaultPasswordAndCollisionRollback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)

	_, err := svc.CreateStaff(ctx, StaffInput{Name: "Carl", Email: "carl@campus.test", StaffID: "MS-01"})
	require.NoError(t, err)
	_, err = svc.AuthenticateLocal(ctx, "carl@campus.test", "password123")
	require.NoError(t, err)

	_, err = svc.CreateStaff(ctx, StaffInput{Name: "Dina", Email: "dina@campus.test", StaffID: "MS-01"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.store.FindActorByEmail(ctx, "dina@campus.test")
	assert.ErrorIs(t, err, repository.ErrNotFound, "actor insert rolled back with the failed profile")
}

func TestFindOrCreateRoleConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			role, err := svc.FindOrCreateRole(ctx, "auditor")
			if assert.NoError(t, err) {
				ids[n] = role.ID.Hex()
			}
		}(n)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestEnsureRoleAssignmentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)
	a := f.actor(t, "Ana", "ana@campus.test")

	require.NoError(t, svc.EnsureRoleAssignment(ctx, a.ID, models.RoleAdmin))
	require.NoError(t, svc.EnsureRoleAssignment(ctx, a.ID, "admin"))

	roles, err := f.store.ActorRoleNames(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, roles)
}

func TestCreateProfileConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)
	a := f.actor(t, "Ana", "ana@campus.test")
	b := f.actor(t, "Ben", "ben@campus.test")

	_, err := svc.CreateProfile(ctx, a.ID, models.ProfileStudent, ProfileFields{})
	require.NoError(t, err)
	_, err = svc.CreateProfile(ctx, a.ID, models.ProfileStudent, ProfileFields{})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateProfile(ctx, a.ID, models.ProfileStaff, ProfileFields{StaffID: "MS-01"})
	require.NoError(t, err)
	_, err = svc.CreateProfile(ctx, b.ID, models.ProfileStaff, ProfileFields{StaffID: "MS-01"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateProfile(ctx, b.ID, models.ProfileKind("ALUMNI"), ProfileFields{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExternalLoginCreatesStudentAndMirrorsAvatarOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fetcher := &fakeFetcher{obj: storage.Object{Data: pngBytes, Filename: "photo"}}
	svc := f.identity(fetcher)
	in := ExternalLoginInput{Email: "new@campus.test", Name: "Newcomer", Provider: "google", AvatarURL: "https://cdn.example/p.png"}

	p, err := svc.ExternalLogin(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.AuthExternal, p.Actor.Auth.Kind)
	assert.Equal(t, "GOOGLE", p.Actor.Auth.Provider)
	assert.Equal(t, []string{models.RoleStudent}, p.Roles)
	require.NotNil(t, p.Actor.AvatarURL)
	assert.Contains(t, *p.Actor.AvatarURL, "memory://images/")

	profile, err := f.store.FindStudentProfile(ctx, p.Actor.ID)
	require.NoError(t, err)
	assert.Equal(t, "BSIT", profile.Department)

	again, err := svc.ExternalLogin(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, p.Actor.ID, again.Actor.ID)
	assert.Equal(t, *p.Actor.AvatarURL, *again.Actor.AvatarURL)
	assert.Equal(t, 1, fetcher.calls)
}

func TestExternalLoginAvatarFallsBackToProviderURL(t *testing.T) {
	f := newFixture(t)
	fetcher := &fakeFetcher{err: errors.New("dns failure")}

	p, err := f.identity(fetcher).ExternalLogin(context.Background(), ExternalLoginInput{
		Email: "new@campus.test", Provider: "google", AvatarURL: "https://cdn.example/p.png",
	})
	require.NoError(t, err)
	require.NotNil(t, p.Actor.AvatarURL)
	assert.Equal(t, "https://cdn.example/p.png", *p.Actor.AvatarURL)
	assert.Equal(t, "new", p.Actor.Name)
}

func TestExternalLoginKeepsLocalCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fetcher := &fakeFetcher{obj: storage.Object{Data: pngBytes}}
	svc := f.identity(fetcher)
	_, err := svc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123"})
	require.NoError(t, err)

	p, err := svc.ExternalLogin(ctx, ExternalLoginInput{Email: "ana@campus.test", Provider: "google", AvatarURL: "https://cdn.example/a.png"})
	require.NoError(t, err)
	assert.Equal(t, models.AuthLocal, p.Actor.Auth.Kind)
	require.NotNil(t, p.Actor.AvatarURL)

	_, err = svc.AuthenticateLocal(ctx, "ana@campus.test", "secret123")
	assert.NoError(t, err)

	stored, err := f.store.FindActorByEmail(ctx, "ana@campus.test")
	require.NoError(t, err)
	assert.Equal(t, *p.Actor.AvatarURL, *stored.AvatarURL)
}

func TestProfileView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)
	staff, err := svc.CreateStaff(ctx, StaffInput{Name: "Carl", Email: "carl@campus.test", StaffID: "MS-01"})
	require.NoError(t, err)

	view, err := svc.Profile(ctx, staff.ActorID)
	require.NoError(t, err)
	assert.Nil(t, view.Student)
	require.NotNil(t, view.Staff)
	assert.Equal(t, "MS-01", view.Staff.StaffID)
	assert.Equal(t, []string{models.RoleMaintenanceStaff}, view.Roles)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	fetcher := &fakeFetcher{obj: storage.Object{Data: pngBytes}}
	svc := f.identity(fetcher)
	p, err := svc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123"})
	require.NoError(t, err)

	stored, err := f.store.FindActorByID(ctx, p.Actor.ID)
	require.NoError(t, err)
	stored.Active = false
	require.NoError(t, f.store.UpdateActor(ctx, stored))

	_, err = svc.AuthenticateLocal(ctx, "ana@campus.test", "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.ExternalLogin(ctx, ExternalLoginInput{Email: "ana@campus.test", Provider: "google", AvatarURL: "https://cdn.example/a.png"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "account is disabled", err.Error())
	assert.Zero(t, fetcher.calls, "no avatar work for a disabled account")
}

// racingStore hides an existing actor from the first lookups and fails the
// insert the way an aborted mongo transaction does.
type racingStore struct {
	*repository.MemoryStore
	misses int
}

func (s *racingStore) FindActorByEmail(ctx context.Context, email string) (*models.Actor, error) {
	if s.misses > 0 {
		s.misses--
		return nil, repository.ErrNotFound
	}
	return s.MemoryStore.FindActorByEmail(ctx, email)
}

func (s *racingStore) InsertActor(ctx context.Context, a *models.Actor) error {
	return errors.New("(NoSuchTransaction) transaction has been aborted")
}

func TestExternalLoginRecoversFromLostCreateRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	winner := f.actor(t, "Ana", "ana@campus.test")

	store := &racingStore{MemoryStore: f.store, misses: 2}
	svc := NewIdentityService(store, f.guard, nil, IdentityConfig{}, zap.NewNop())

	p, err := svc.ExternalLogin(ctx, ExternalLoginInput{Email: "ana@campus.test", Provider: "google"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, p.Actor.ID)
}

func TestCreateStaffForActorAlreadyTaggedStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.identity(nil)
	a := f.actor(t, "Ben", "ben@campus.test")
	require.NoError(t, svc.EnsureRoleAssignment(ctx, a.ID, models.RoleMaintenanceStaff))

	staff, err := svc.CreateStaff(ctx, StaffInput{Email: "ben@campus.test", StaffID: "MS-07"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, staff.ActorID)

	roles, err := f.store.ActorRoleNames(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleMaintenanceStaff}, roles)
}
