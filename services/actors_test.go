package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"smrms-be/models"
	"smrms-be/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// seedReferences gives target two reported issues, one resolved issue and
// one issue it both reported and resolved, next to an unrelated issue.
func seedReferences(t *testing.T, f *fixture, target, other *models.Actor) []*models.Issue {
	t.Helper()
	ctx := context.Background()
	b := f.building(t, "ENG", "Engineering Hall")
	completed := fixedNow.Add(time.Hour)
	photo := "memory://images/a.png"

	specs := []struct {
		reporter *models.Actor
		resolver *models.Actor
	}{
		{reporter: target},
		{reporter: target},
		{reporter: other, resolver: target},
		{reporter: target, resolver: target},
		{reporter: other, resolver: other},
	}
	var out []*models.Issue
	for n, sp := range specs {
		i := &models.Issue{
			Title:       "issue",
			Description: "desc",
			Location:    b.Code,
			Priority:    models.PriorityMedium,
			Status:      models.StatusActive,
			BuildingID:  b.ID,
			PhotoURL:    &photo,
			CreatedAt:   fixedNow.Add(time.Duration(n) * time.Minute),
		}
		i.ReporterID = idPtr(sp.reporter.ID)
		if sp.resolver != nil {
			i.Status = models.StatusFixed
			i.ResolverID = idPtr(sp.resolver.ID)
			i.CompletedAt = &completed
		}
		require.NoError(t, f.store.InsertIssue(ctx, i))
		out = append(out, i)
	}
	return out
}

func TestDeleteActorDetachesEveryReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idsvc := f.identity(nil)

	student, err := idsvc.RegisterLocal(ctx, RegisterInput{
		Name: "Ana", Email: "ana@campus.test", Password: "secret123", StudentNumber: "2021-0001",
	})
	require.NoError(t, err)
	target := student.Actor
	require.NoError(t, idsvc.EnsureRoleAssignment(ctx, target.ID, models.RoleAdmin))
	other := f.actor(t, "Ben", "ben@campus.test")

	seeded := seedReferences(t, f, target, other)
	before := map[primitive.ObjectID]models.Issue{}
	for _, i := range seeded {
		stored, err := f.store.FindIssueByID(ctx, i.ID)
		require.NoError(t, err)
		before[i.ID] = *stored
	}

	report, err := f.actors().DeleteActor(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.ReportsCleared)
	assert.Equal(t, int64(2), report.ResolvesCleared)
	assert.Equal(t, int64(2), report.RolesRemoved)
	assert.Equal(t, int64(1), report.ProfilesRemoved)

	_, err = f.store.FindActorByID(ctx, target.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.store.FindStudentProfile(ctx, target.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	roles, err := f.store.ActorRoleNames(ctx, target.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)

	touched := 0
	for id, prev := range before {
		got, err := f.store.FindIssueByID(ctx, id)
		require.NoError(t, err, "issues survive actor deletion")

		changed := false
		if prev.ReporterID != nil && *prev.ReporterID == target.ID {
			assert.Nil(t, got.ReporterID)
			prev.ReporterID = nil
			changed = true
		}
		if prev.ResolverID != nil && *prev.ResolverID == target.ID {
			assert.Nil(t, got.ResolverID)
			prev.ResolverID = nil
			changed = true
		}
		if changed {
			touched++
		}
		prev.Version, got.Version = 0, 0
		assert.Equal(t, prev, *got, "only the deleted actor's fields change")
	}
	assert.Equal(t, 4, touched)
}

func TestDeleteActorRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.actor(t, "Ana", "ana@campus.test")
	other := f.actor(t, "Ben", "ben@campus.test")
	seeded := seedReferences(t, f, target, other)

	for _, step := range []string{"ClearIssueResolver", "DeleteRoleAssignments", "DeleteProfiles", "DeleteActor"} {
		t.Run(step, func(t *testing.T) {
			f.store.FailOn(step, errors.New("disk full"))

			_, err := f.actors().DeleteActor(ctx, target.ID)
			require.Error(t, err)

			_, err = f.store.FindActorByID(ctx, target.ID)
			require.NoError(t, err, "actor survives a failed deletion")
			first, err := f.store.FindIssueByID(ctx, seeded[0].ID)
			require.NoError(t, err)
			require.NotNil(t, first.ReporterID)
			assert.Equal(t, target.ID, *first.ReporterID)
			assert.Zero(t, first.Version)
		})
	}
}

func TestDeleteActorNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.actors().DeleteActor(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByProfileID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idsvc := f.identity(nil)

	staff, err := idsvc.CreateStaff(ctx, StaffInput{Name: "Carl", Email: "carl@campus.test", StaffID: "MS-01"})
	require.NoError(t, err)
	student, err := idsvc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123"})
	require.NoError(t, err)
	studentProfile, err := f.store.FindStudentProfile(ctx, student.Actor.ID)
	require.NoError(t, err)

	svc := f.actors()
	report, err := svc.DeleteStaff(ctx, staff.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, staff.ActorID, report.ActorID)

	report, err = svc.DeleteStudent(ctx, studentProfile.ID)
	require.NoError(t, err)
	assert.Equal(t, student.Actor.ID, report.ActorID)

	_, err = svc.DeleteStaff(ctx, staff.ProfileID)
	assert.ErrorIs(t, err, ErrNotFound)

	staffList, err := svc.ListStaff(ctx)
	require.NoError(t, err)
	assert.Empty(t, staffList)
}

func TestListStaffAndStudents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idsvc := f.identity(nil)

	_, err := idsvc.CreateStaff(ctx, StaffInput{Name: "Zed", Email: "zed@campus.test", StaffID: "MS-02"})
	require.NoError(t, err)
	_, err = idsvc.CreateStaff(ctx, StaffInput{Name: "Carl", Email: "carl@campus.test", StaffID: "MS-01"})
	require.NoError(t, err)
	_, err = idsvc.RegisterLocal(ctx, RegisterInput{Name: "Ana", Email: "ana@campus.test", Password: "secret123", Department: "BSCE"})
	require.NoError(t, err)

	svc := f.actors()
	staff, err := svc.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "MS-01", staff[0].StaffID)
	assert.Equal(t, "Carl", staff[0].Name)

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "BSCE", students[0].Department)
	assert.Equal(t, "ana@campus.test", students[0].Email)
}
