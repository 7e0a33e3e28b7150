package repository

import (
	"context"
	"errors"
	"time"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate key")
	ErrStaleVersion = errors.New("record was modified concurrently")
)

// IssueFilter narrows issue listings and counts. Nil fields are ignored;
// CreatedFrom is inclusive and CreatedTo exclusive.
type IssueFilter struct {
	BuildingID  *primitive.ObjectID
	Status      *models.IssueStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type GroupField string

const (
	GroupByStatus   GroupField = "status"
	GroupByPriority GroupField = "priority"
)

// BuildingIssueCount is the per-building rollup used by the dashboard and
// the building cards.
type BuildingIssueCount struct {
	BuildingID primitive.ObjectID
	Total      int64
	Active     int64
	Fixed      int64
	High       int64
	Medium     int64
	Low        int64
}

// Transactor runs fn atomically. Store calls made with the ctx handed to fn
// take part in the transaction; an error from fn rolls everything back.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ActorStore interface {
	InsertActor(ctx context.Context, a *models.Actor) error
	// UpdateActor writes a only if the stored version still equals a.Version,
	// then bumps a.Version.
	UpdateActor(ctx context.Context, a *models.Actor) error
	FindActorByID(ctx context.Context, id primitive.ObjectID) (*models.Actor, error)
	FindActorByEmail(ctx context.Context, email string) (*models.Actor, error)
	FindActorsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Actor, error)
	DeleteActor(ctx context.Context, id primitive.ObjectID) error
}

type RoleStore interface {
	// UpsertRole returns the role with this name, creating it if needed.
	UpsertRole(ctx context.Context, name string, now time.Time) (*models.Role, error)
	// AssignRole stores the pair unless it already exists and reports
	// whether it was created. An existing pair is not an error.
	AssignRole(ctx context.Context, ra *models.RoleAssignment) (bool, error)
	ActorRoleNames(ctx context.Context, actorID primitive.ObjectID) ([]string, error)
	DeleteRoleAssignments(ctx context.Context, actorID primitive.ObjectID) (int64, error)
}

type ProfileStore interface {
	InsertStudentProfile(ctx context.Context, p *models.StudentProfile) error
	InsertStaffProfile(ctx context.Context, p *models.StaffProfile) error
	FindStudentProfile(ctx context.Context, actorID primitive.ObjectID) (*models.StudentProfile, error)
	FindStaffProfile(ctx context.Context, actorID primitive.ObjectID) (*models.StaffProfile, error)
	FindStudentProfileByID(ctx context.Context, id primitive.ObjectID) (*models.StudentProfile, error)
	FindStaffProfileByID(ctx context.Context, id primitive.ObjectID) (*models.StaffProfile, error)
	StaffIDTaken(ctx context.Context, staffID string) (bool, error)
	ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error)
	ListStaffProfiles(ctx context.Context) ([]models.StaffProfile, error)
	DeleteProfiles(ctx context.Context, actorID primitive.ObjectID) (int64, error)
}

type BuildingStore interface {
	InsertBuilding(ctx context.Context, b *models.Building) error
	UpdateBuilding(ctx context.Context, b *models.Building) error
	FindBuildingByID(ctx context.Context, id primitive.ObjectID) (*models.Building, error)
	FindBuildingByCode(ctx context.Context, code string) (*models.Building, error)
	FindBuildingsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Building, error)
	ListBuildings(ctx context.Context, activeOnly bool) ([]models.Building, error)
	// BuildingTaken reports whether code or name is used by a building other
	// than exclude (pass nil to check against every building).
	BuildingTaken(ctx context.Context, code, name string, exclude *primitive.ObjectID) (codeTaken, nameTaken bool, err error)
}

type IssueStore interface {
	InsertIssue(ctx context.Context, i *models.Issue) error
	// UpdateIssue is a compare-and-swap on i.Version and bumps it on success.
	UpdateIssue(ctx context.Context, i *models.Issue) error
	FindIssueByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id primitive.ObjectID) error
	// ListIssues returns matches ordered by createdAt descending.
	ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, error)
	ClearIssueReporter(ctx context.Context, actorID primitive.ObjectID) (int64, error)
	ClearIssueResolver(ctx context.Context, actorID primitive.ObjectID) (int64, error)
	CountIssues(ctx context.Context, f IssueFilter) (int64, error)
	CountIssuesBy(ctx context.Context, field GroupField) (map[string]int64, error)
	CountIssuesPerBuilding(ctx context.Context) (map[primitive.ObjectID]BuildingIssueCount, error)
}

// Store is the full persistence surface; MongoStore and MemoryStore both
// implement it.
type Store interface {
	Transactor
	ActorStore
	RoleStore
	ProfileStore
	BuildingStore
	IssueStore
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
