package services

import (
	"context"
	"testing"
	"time"

	"smrms-be/models"
	"smrms-be/repository"
	"smrms-be/storage"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	store   *repository.MemoryStore
	backend *storage.MemoryBackend
	guard   *storage.Guard
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := storage.NewMemoryBackend()
	return &fixture{
		store:   repository.NewMemoryStore(),
		backend: backend,
		guard:   storage.NewGuard(backend, time.Second, zap.NewNop(), nil),
		now:     fixedNow,
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) issues(opts ...IssueOption) *IssueService {
	opts = append([]IssueOption{WithIssueClock(f.clock)}, opts...)
	return NewIssueService(f.store, f.guard, nil, nil, zap.NewNop(), opts...)
}

func (f *fixture) actors() *ActorService {
	return NewActorService(f.store, nil, nil, zap.NewNop())
}

func (f *fixture) identity(fetcher AvatarFetcher) *IdentityService {
	s := NewIdentityService(f.store, f.guard, fetcher, IdentityConfig{}, zap.NewNop())
	s.SetClock(f.clock)
	return s
}

func (f *fixture) buildings() *BuildingService {
	s := NewBuildingService(f.store, f.guard, zap.NewNop())
	s.SetClock(f.clock)
	return s
}

func (f *fixture) building(t *testing.T, code, name string) *models.Building {
	t.Helper()
	b := &models.Building{Code: code, Name: name, Active: true, CreatedAt: f.now, UpdatedAt: f.now}
	require.NoError(t, f.store.InsertBuilding(context.Background(), b))
	return b
}

func (f *fixture) actor(t *testing.T, name, email string) *models.Actor {
	t.Helper()
	a := &models.Actor{
		Name:      name,
		Email:     email,
		Auth:      models.ExternalCredentials("google"),
		Active:    true,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	require.NoError(t, f.store.InsertActor(context.Background(), a))
	return a
}

// issueAt inserts an issue directly, bypassing the service clock.
func (f *fixture) issueAt(t *testing.T, b *models.Building, priority models.IssuePriority, createdAt time.Time) *models.Issue {
	t.Helper()
	i := &models.Issue{
		Title:      "leak",
		Location:   b.Code,
		Priority:   priority,
		Status:     models.StatusActive,
		BuildingID: b.ID,
		CreatedAt:  createdAt,
	}
	require.NoError(t, f.store.InsertIssue(context.Background(), i))
	return i
}

func strPtr(s string) *string { return &s }

func idPtr(id primitive.ObjectID) *primitive.ObjectID { return &id }

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

var pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
