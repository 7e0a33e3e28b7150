package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smrms-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var t0 = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func seedIssue(t *testing.T, s *MemoryStore, building primitive.ObjectID, created time.Time) *models.Issue {
	t.Helper()
	i := &models.Issue{
		Title:      "Leak",
		Priority:   models.PriorityHigh,
		Status:     models.StatusActive,
		BuildingID: building,
		CreatedAt:  created,
	}
	require.NoError(t, s.InsertIssue(context.Background(), i))
	return i
}

func TestMemoryStore_ActorEmailIsUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertActor(ctx, &models.Actor{Name: "A", Email: "a@x.edu"}))
	err := s.InsertActor(ctx, &models.Actor{Name: "B", Email: " A@X.edu "})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.FindActorByEmail(ctx, "A@x.EDU")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}

func TestMemoryStore_UpdateActorVersionCheck(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := &models.Actor{Name: "A", Email: "a@x.edu"}
	require.NoError(t, s.InsertActor(ctx, a))

	first, _ := s.FindActorByID(ctx, a.ID)
	second, _ := s.FindActorByID(ctx, a.ID)

	first.Name = "first"
	require.NoError(t, s.UpdateActor(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	second.Name = "second"
	assert.ErrorIs(t, s.UpdateActor(ctx, second), ErrStaleVersion)
	assert.Equal(t, int64(0), second.Version)

	missing := &models.Actor{ID: primitive.NewObjectID()}
	assert.ErrorIs(t, s.UpdateActor(ctx, missing), ErrNotFound)
}

func TestMemoryStore_UpsertRoleIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]primitive.ObjectID, 8)
	for n := range ids {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r, err := s.UpsertRole(ctx, models.RoleStudent, t0)
			if err == nil {
				ids[n] = r.ID
			}
		}(n)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, s.data.roles, 1)
}

func TestMemoryStore_RoleAssignmentPairIsUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	actor := primitive.NewObjectID()
	role, err := s.UpsertRole(ctx, models.RoleAdmin, t0)
	require.NoError(t, err)

	created, err := s.AssignRole(ctx, &models.RoleAssignment{ActorID: actor, RoleID: role.ID})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.AssignRole(ctx, &models.RoleAssignment{ActorID: actor, RoleID: role.ID})
	require.NoError(t, err)
	assert.False(t, created)

	names, err := s.ActorRoleNames(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, []string{models.RoleAdmin}, names)
}

func TestMemoryStore_StaffProfileConstraints(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a1, a2 := primitive.NewObjectID(), primitive.NewObjectID()
	require.NoError(t, s.InsertStaffProfile(ctx, &models.StaffProfile{ActorID: a1, StaffID: "S-1"}))
	assert.ErrorIs(t, s.InsertStaffProfile(ctx, &models.StaffProfile{ActorID: a2, StaffID: "S-1"}), ErrDuplicate)
	assert.ErrorIs(t, s.InsertStaffProfile(ctx, &models.StaffProfile{ActorID: a1, StaffID: "S-2"}), ErrDuplicate)

	taken, err := s.StaffIDTaken(ctx, "S-1")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestMemoryStore_ListIssuesNewestFirstWithWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	b := primitive.NewObjectID()

	older := seedIssue(t, s, b, t0)
	newer := seedIssue(t, s, b, t0.Add(time.Hour))
	seedIssue(t, s, primitive.NewObjectID(), t0.Add(2*time.Hour))

	list, err := s.ListIssues(ctx, IssueFilter{BuildingID: &b})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)

	from, to := t0, t0.Add(time.Hour)
	n, err := s.CountIssues(ctx, IssueFilter{CreatedFrom: &from, CreatedTo: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "upper bound is exclusive")
}

func TestMemoryStore_ClearReferencesBumpsVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	actor := primitive.NewObjectID()
	i := seedIssue(t, s, primitive.NewObjectID(), t0)
	i.ReporterID = &actor
	i.Resolve(actor, t0, false)
	require.NoError(t, s.UpdateIssue(ctx, i))

	n, err := s.ClearIssueReporter(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.ClearIssueResolver(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.FindIssueByID(ctx, i.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReporterID)
	assert.Nil(t, got.ResolverID)
	assert.Equal(t, models.StatusFixed, got.Status)
	assert.Equal(t, int64(3), got.Version)

	// The caller's copy still holds the pre-clear version.
	assert.ErrorIs(t, s.UpdateIssue(ctx, i), ErrStaleVersion)
}

func TestMemoryStore_ReturnedIssuesAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	i := seedIssue(t, s, primitive.NewObjectID(), t0)
	url := "https://cdn/x.jpg"
	i.PhotoURL = &url
	require.NoError(t, s.UpdateIssue(ctx, i))

	url = "mutated"
	got, err := s.FindIssueByID(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.jpg", *got.PhotoURL)
}

func TestMemoryStore_TransactionRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := &models.Actor{Name: "A", Email: "a@x.edu"}
	require.NoError(t, s.InsertActor(ctx, a))

	boom := errors.New("boom")
	s.FailOn("DeleteActor", boom)

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.DeleteProfiles(ctx, a.ID); err != nil {
			return err
		}
		require.NoError(t, s.InsertBuilding(ctx, &models.Building{Code: "B1", Name: "One", Active: true}))
		return s.DeleteActor(ctx, a.ID)
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindActorByID(ctx, a.ID)
	assert.NoError(t, err)
	buildings, err := s.ListBuildings(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, buildings)
}

func TestMemoryStore_NestedTransactionJoinsOuter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("outer failed")

	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		inner := s.WithTransaction(ctx, func(ctx context.Context) error {
			return s.InsertBuilding(ctx, &models.Building{Code: "B1", Name: "One"})
		})
		require.NoError(t, inner)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	buildings, err := s.ListBuildings(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, buildings)
}

func TestMemoryStore_BuildingTakenExcludesSelf(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	b := &models.Building{Code: "ENG", Name: "Engineering", Active: true}
	require.NoError(t, s.InsertBuilding(ctx, b))

	codeTaken, nameTaken, err := s.BuildingTaken(ctx, "ENG", "Engineering", &b.ID)
	require.NoError(t, err)
	assert.False(t, codeTaken)
	assert.False(t, nameTaken)

	codeTaken, nameTaken, err = s.BuildingTaken(ctx, "ENG", "Other", nil)
	require.NoError(t, err)
	assert.True(t, codeTaken)
	assert.False(t, nameTaken)
}

func TestMemoryStore_CountsPerBuilding(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	b := primitive.NewObjectID()

	seedIssue(t, s, b, t0)
	fixed := seedIssue(t, s, b, t0)
	fixed.Priority = models.PriorityLow
	fixed.Resolve(primitive.NewObjectID(), t0, false)
	require.NoError(t, s.UpdateIssue(ctx, fixed))

	counts, err := s.CountIssuesPerBuilding(ctx)
	require.NoError(t, err)
	assert.Equal(t, BuildingIssueCount{BuildingID: b, Total: 2, Active: 1, Fixed: 1, High: 1, Low: 1}, counts[b])

	byStatus, err := s.CountIssuesBy(ctx, GroupByStatus)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"ACTIVE": 1, "FIXED": 1}, byStatus)
}
