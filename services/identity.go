package services

import (
	"context"
	"errors"
	"strings"

	"smrms-be/models"
	"smrms-be/repository"
	"smrms-be/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// AvatarFetcher downloads an identity provider's profile picture.
type AvatarFetcher interface {
	Fetch(ctx context.Context, url string) (storage.Object, error)
}

// ActorDefaults fill a new actor when FindOrCreateActor has to create one.
// They are ignored for an existing actor.
type ActorDefaults struct {
	Name         string
	MobileNumber string
	Auth         models.Credentials
	AvatarURL    *string
}

// ProfileFields holds the fields of either profile kind; only the ones for
// the requested kind are read.
type ProfileFields struct {
	Department    string
	StudentNumber string
	StaffID       string
}

type RegisterInput struct {
	Name          string
	Email         string
	Password      string
	MobileNumber  string
	Department    string
	StudentNumber string
}

type StaffInput struct {
	Name         string
	Email        string
	Password     string
	MobileNumber string
	StaffID      string
}

type ExternalLoginInput struct {
	Email     string
	Name      string
	Provider  string
	AvatarURL string
}

// Principal is an authenticated actor together with its role names.
type Principal struct {
	Actor *models.Actor
	Roles []string
}

type ProfileView struct {
	Actor   *models.Actor          `json:"actor"`
	Roles   []string               `json:"roles"`
	Student *models.StudentProfile `json:"student,omitempty"`
	Staff   *models.StaffProfile   `json:"staff,omitempty"`
}

type IdentityConfig struct {
	DefaultStaffPassword string
	DefaultDepartment    string
}

// IdentityService keeps actors, roles and profiles consistent across local
// registration, admin-created staff and external login.
type IdentityService struct {
	store    repository.Store
	uploader storage.Uploader
	fetcher  AvatarFetcher
	cfg      IdentityConfig
	log      *zap.Logger
	now      Clock
}

func NewIdentityService(store repository.Store, uploader storage.Uploader, fetcher AvatarFetcher, cfg IdentityConfig, log *zap.Logger) *IdentityService {
	if cfg.DefaultDepartment == "" {
		cfg.DefaultDepartment = "BSIT"
	}
	if cfg.DefaultStaffPassword == "" {
		cfg.DefaultStaffPassword = "password123"
	}
	return &IdentityService{
		store:    store,
		uploader: uploader,
		fetcher:  fetcher,
		cfg:      cfg,
		log:      log,
		now:      systemClock,
	}
}

// SetClock pins the time used for created/updated stamps.
func (s *IdentityService) SetClock(now Clock) { s.now = now }

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// FindOrCreateActor returns the actor with this email unchanged, or creates
// one from d. The bool reports whether a new actor was inserted.
func (s *IdentityService) FindOrCreateActor(ctx context.Context, email string, d ActorDefaults) (*models.Actor, bool, error) {
	email = models.NormalizeEmail(email)
	if !validEmail(email) {
		return nil, false, invalid("a valid email is required")
	}

	existing, err := s.store.FindActorByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fromStore(err, "actor")
	}

	if err := d.Auth.Validate(); err != nil {
		return nil, false, &Error{Kind: KindValidation, Message: "invalid credentials", Err: err}
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	now := s.now()
	a := &models.Actor{
		Name:         name,
		Email:        email,
		MobileNumber: strings.TrimSpace(d.MobileNumber),
		Auth:         d.Auth,
		Active:       true,
		AvatarURL:    d.AvatarURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertActor(ctx, a); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with another first login for the same email.
			if winner, findErr := s.store.FindActorByEmail(ctx, email); findErr == nil {
				return winner, false, nil
			}
		}
		return nil, false, fromStore(err, "actor")
	}
	return a, true, nil
}

func (s *IdentityService) FindOrCreateRole(ctx context.Context, name string) (*models.Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, invalid("role name is required")
	}
	role, err := s.store.UpsertRole(ctx, name, s.now())
	if err != nil {
		return nil, fromStore(err, "role")
	}
	return role, nil
}

// EnsureRoleAssignment tags the actor with the role; an existing tag is
// left as is.
func (s *IdentityService) EnsureRoleAssignment(ctx context.Context, actorID primitive.ObjectID, roleName string) error {
	role, err := s.FindOrCreateRole(ctx, roleName)
	if err != nil {
		return err
	}
	created, err := s.store.AssignRole(ctx, &models.RoleAssignment{
		ActorID:   actorID,
		RoleID:    role.ID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return fromStore(err, "role assignment")
	}
	if created {
		s.log.Debug("role assigned", zap.String("actor_id", actorID.Hex()), zap.String("role", role.Name))
	}
	return nil
}

// CreateProfile attaches a profile of the given kind and returns its id.
func (s *IdentityService) CreateProfile(ctx context.Context, actorID primitive.ObjectID, kind models.ProfileKind, f ProfileFields) (primitive.ObjectID, error) {
	now := s.now()
	switch kind {
	case models.ProfileStudent:
		if _, err := s.store.FindStudentProfile(ctx, actorID); err == nil {
			return primitive.NilObjectID, conflict("actor already has a student profile")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fromStore(err, "student profile")
		}
		department := strings.TrimSpace(f.Department)
		if department == "" {
			department = s.cfg.DefaultDepartment
		}
		p := &models.StudentProfile{
			ActorID:       actorID,
			Department:    department,
			StudentNumber: strings.TrimSpace(f.StudentNumber),
			CreatedAt:     now,
		}
		if err := s.store.InsertStudentProfile(ctx, p); err != nil {
			return primitive.NilObjectID, fromStore(err, "student profile")
		}
		return p.ID, nil

	case models.ProfileStaff:
		staffID := strings.TrimSpace(f.StaffID)
		if staffID == "" {
			return primitive.NilObjectID, invalid("staff id is required")
		}
		if _, err := s.store.FindStaffProfile(ctx, actorID); err == nil {
			return primitive.NilObjectID, conflict("actor is already maintenance staff")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, fromStore(err, "staff profile")
		}
		taken, err := s.store.StaffIDTaken(ctx, staffID)
		if err != nil {
			return primitive.NilObjectID, fromStore(err, "staff profile")
		}
		if taken {
			return primitive.NilObjectID, conflict("staff id %s is already in use", staffID)
		}
		p := &models.StaffProfile{ActorID: actorID, StaffID: staffID, CreatedAt: now}
		if err := s.store.InsertStaffProfile(ctx, p); err != nil {
			return primitive.NilObjectID, fromStore(err, "staff profile")
		}
		return p.ID, nil
	}
	return primitive.NilObjectID, invalid("unknown profile kind %q", kind)
}

// RegisterLocal creates a password account with the STUDENT role and a
// student profile.
func (s *IdentityService) RegisterLocal(ctx context.Context, in RegisterInput) (*Principal, error) {
	email := models.NormalizeEmail(in.Email)
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name is required")
	}
	if !validEmail(email) {
		return nil, invalid("a valid email is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}

	draft := &models.Actor{}
	if err := draft.SetPassword(in.Password); err != nil {
		return nil, err
	}

	var actor *models.Actor
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindActorByEmail(ctx, email); err == nil {
			return conflict("email %s is already registered", email)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		a, _, err := s.FindOrCreateActor(ctx, email, ActorDefaults{
			Name:         in.Name,
			MobileNumber: in.MobileNumber,
			Auth:         draft.Auth,
		})
		if err != nil {
			return err
		}
		if err := s.EnsureRoleAssignment(ctx, a.ID, models.RoleStudent); err != nil {
			return err
		}
		if _, err := s.CreateProfile(ctx, a.ID, models.ProfileStudent, ProfileFields{
			Department:    in.Department,
			StudentNumber: in.StudentNumber,
		}); err != nil {
			return err
		}
		actor = a
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "account")
	}
	s.log.Info("student registered", zap.String("actor_id", actor.ID.Hex()))
	return &Principal{Actor: actor, Roles: []string{models.RoleStudent}}, nil
}

// CreateStaff makes an actor maintenance staff. An existing actor with the
// email is reused as is; otherwise a local account is created with the
// given password, or the default one.
func (s *IdentityService) CreateStaff(ctx context.Context, in StaffInput) (*StaffView, error) {
	email := models.NormalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, invalid("a valid email is required")
	}
	if strings.TrimSpace(in.StaffID) == "" {
		return nil, invalid("staff id is required")
	}
	password := in.Password
	if password == "" {
		password = s.cfg.DefaultStaffPassword
	}
	draft := &models.Actor{}
	if err := draft.SetPassword(password); err != nil {
		return nil, err
	}

	var view StaffView
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		a, _, err := s.FindOrCreateActor(ctx, email, ActorDefaults{
			Name:         in.Name,
			MobileNumber: in.MobileNumber,
			Auth:         draft.Auth,
		})
		if err != nil {
			return err
		}
		profileID, err := s.CreateProfile(ctx, a.ID, models.ProfileStaff, ProfileFields{StaffID: in.StaffID})
		if err != nil {
			return err
		}
		if err := s.EnsureRoleAssignment(ctx, a.ID, models.RoleMaintenanceStaff); err != nil {
			return err
		}
		view = StaffView{
			ProfileID:    profileID,
			ActorID:      a.ID,
			StaffID:      strings.TrimSpace(in.StaffID),
			Name:         a.Name,
			Email:        a.Email,
			MobileNumber: a.MobileNumber,
			Active:       a.Active,
			AvatarURL:    a.AvatarURL,
		}
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "staff member")
	}
	s.log.Info("maintenance staff created", zap.String("actor_id", view.ActorID.Hex()), zap.String("staff_id", view.StaffID))
	return &view, nil
}

// ExternalLogin signs in an actor vouched for by an identity provider. New
// actors become students. An existing actor keeps its credentials; it only
// gains an avatar if it has none yet.
func (s *IdentityService) ExternalLogin(ctx context.Context, in ExternalLoginInput) (*Principal, error) {
	email := models.NormalizeEmail(in.Email)
	if !validEmail(email) {
		return nil, invalid("a valid email is required")
	}
	if strings.TrimSpace(in.Provider) == "" {
		return nil, invalid("provider is required")
	}

	existing, err := s.store.FindActorByEmail(ctx, email)
	switch {
	case err == nil:
		return s.externalExisting(ctx, existing, in.AvatarURL)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fromStore(err, "actor")
	}

	avatar := s.mirrorAvatar(ctx, in.AvatarURL)
	var actor *models.Actor
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		a, created, err := s.FindOrCreateActor(ctx, email, ActorDefaults{
			Name:      in.Name,
			Auth:      models.ExternalCredentials(in.Provider),
			AvatarURL: avatar,
		})
		if err != nil {
			return err
		}
		actor = a
		if !created {
			return nil
		}
		if err := s.EnsureRoleAssignment(ctx, a.ID, models.RoleStudent); err != nil {
			return err
		}
		_, err = s.CreateProfile(ctx, a.ID, models.ProfileStudent, ProfileFields{})
		return err
	})
	if err != nil {
		// A concurrent first login may have inserted the actor; on mongo its
		// duplicate key aborts our whole transaction, so re-read outside it.
		if winner, findErr := s.store.FindActorByEmail(ctx, email); findErr == nil {
			return s.externalExisting(ctx, winner, in.AvatarURL)
		}
		return nil, fromStore(err, "account")
	}
	s.log.Info("external login", zap.String("actor_id", actor.ID.Hex()), zap.String("provider", actor.Auth.Provider))
	return s.principal(ctx, actor)
}

func (s *IdentityService) externalExisting(ctx context.Context, a *models.Actor, avatarURL string) (*Principal, error) {
	if !a.Active {
		return nil, unauthorized("account is disabled")
	}
	actor, err := s.backfillAvatar(ctx, a, avatarURL)
	if err != nil {
		return nil, err
	}
	return s.principal(ctx, actor)
}

func (s *IdentityService) backfillAvatar(ctx context.Context, a *models.Actor, providerURL string) (*models.Actor, error) {
	if a.HasAvatar() || strings.TrimSpace(providerURL) == "" {
		return a, nil
	}
	a.AvatarURL = s.mirrorAvatar(ctx, providerURL)
	a.UpdatedAt = s.now()
	if err := s.store.UpdateActor(ctx, a); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			// Someone else updated the actor first; keep their version.
			s.log.Debug("avatar backfill skipped", zap.String("actor_id", a.ID.Hex()))
			fresh, findErr := s.store.FindActorByID(ctx, a.ID)
			if findErr != nil {
				return nil, fromStore(findErr, "actor")
			}
			return fresh, nil
		}
		return nil, fromStore(err, "actor")
	}
	return a, nil
}

// mirrorAvatar copies the provider image into our storage once. Any
// failure falls back to the provider URL instead of failing the login.
func (s *IdentityService) mirrorAvatar(ctx context.Context, providerURL string) *string {
	providerURL = strings.TrimSpace(providerURL)
	if providerURL == "" {
		return nil
	}
	fallback := &providerURL
	if s.fetcher == nil || s.uploader == nil {
		return fallback
	}
	obj, err := s.fetcher.Fetch(ctx, providerURL)
	if err != nil {
		s.log.Warn("avatar download failed, using provider url", zap.Error(err))
		return fallback
	}
	url, err := s.uploader.Upload(ctx, obj, storage.KindImage)
	if err != nil {
		s.log.Warn("avatar upload failed, using provider url", zap.Error(err))
		return fallback
	}
	return &url
}

// AuthenticateLocal checks an email and password. Every failure is the same
// Unauthorized error so callers cannot probe which emails exist.
func (s *IdentityService) AuthenticateLocal(ctx context.Context, email, password string) (*Principal, error) {
	a, err := s.store.FindActorByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, unauthorized("invalid email or password")
		}
		return nil, fromStore(err, "actor")
	}
	if err := a.ComparePassword(password); err != nil {
		return nil, unauthorized("invalid email or password")
	}
	if !a.Active {
		return nil, unauthorized("account is disabled")
	}
	return s.principal(ctx, a)
}

func (s *IdentityService) principal(ctx context.Context, a *models.Actor) (*Principal, error) {
	roles, err := s.store.ActorRoleNames(ctx, a.ID)
	if err != nil {
		return nil, fromStore(err, "roles")
	}
	return &Principal{Actor: a, Roles: roles}, nil
}

func (s *IdentityService) Profile(ctx context.Context, actorID primitive.ObjectID) (*ProfileView, error) {
	a, err := s.store.FindActorByID(ctx, actorID)
	if err != nil {
		return nil, fromStore(err, "actor")
	}
	roles, err := s.store.ActorRoleNames(ctx, a.ID)
	if err != nil {
		return nil, fromStore(err, "roles")
	}
	view := &ProfileView{Actor: a, Roles: roles}
	if p, err := s.store.FindStudentProfile(ctx, a.ID); err == nil {
		view.Student = p
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fromStore(err, "student profile")
	}
	if p, err := s.store.FindStaffProfile(ctx, a.ID); err == nil {
		view.Staff = p
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fromStore(err, "staff profile")
	}
	return view, nil
}
