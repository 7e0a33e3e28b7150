package services

import (
	"context"
	"strings"

	"smrms-be/models"
	"smrms-be/repository"
	"smrms-be/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type BuildingInput struct {
	Code  string
	Name  string
	Image *storage.Object
}

// BuildingPatch is a partial update; nil fields are left alone.
type BuildingPatch struct {
	Code   *string
	Name   *string
	Active *bool
}

type BuildingService struct {
	store    repository.Store
	uploader storage.Uploader
	log      *zap.Logger
	now      Clock
}

func NewBuildingService(store repository.Store, uploader storage.Uploader, log *zap.Logger) *BuildingService {
	return &BuildingService{store: store, uploader: uploader, log: log, now: systemClock}
}

func (s *BuildingService) SetClock(now Clock) { s.now = now }

func (s *BuildingService) checkUnique(ctx context.Context, code, name string, exclude *primitive.ObjectID) error {
	codeTaken, nameTaken, err := s.store.BuildingTaken(ctx, code, name, exclude)
	if err != nil {
		return fromStore(err, "building")
	}
	if codeTaken {
		return conflict("building code %s already exists", code)
	}
	if nameTaken {
		return conflict("building name %s already exists", name)
	}
	return nil
}

func (s *BuildingService) Create(ctx context.Context, in BuildingInput) (*models.Building, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, invalid("building code and name are required")
	}
	if err := s.checkUnique(ctx, code, name, nil); err != nil {
		return nil, err
	}

	now := s.now()
	b := &models.Building{Code: code, Name: name, Active: true, CreatedAt: now, UpdatedAt: now}
	if in.Image != nil {
		url, err := s.uploader.Upload(ctx, *in.Image, storage.KindImage)
		if err != nil {
			return nil, fromStorage(err)
		}
		b.ImageURL = &url
	}
	if err := s.store.InsertBuilding(ctx, b); err != nil {
		return nil, fromStore(err, "building")
	}
	s.log.Info("building created", zap.String("building_id", b.ID.Hex()), zap.String("code", code))
	return b, nil
}

// Update edits a building. The uniqueness check ignores the building being
// edited, so saving it with its own code and name is not a conflict.
func (s *BuildingService) Update(ctx context.Context, id primitive.ObjectID, patch BuildingPatch, image *storage.Object) (*models.Building, error) {
	b, err := s.store.FindBuildingByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "building")
	}
	if patch.Code != nil {
		b.Code = strings.ToUpper(strings.TrimSpace(*patch.Code))
	}
	if patch.Name != nil {
		b.Name = strings.TrimSpace(*patch.Name)
	}
	if b.Code == "" || b.Name == "" {
		return nil, invalid("building code and name cannot be blank")
	}
	if patch.Active != nil {
		b.Active = *patch.Active
	}
	if err := s.checkUnique(ctx, b.Code, b.Name, &b.ID); err != nil {
		return nil, err
	}
	if image != nil {
		url, err := s.uploader.Upload(ctx, *image, storage.KindImage)
		if err != nil {
			return nil, fromStorage(err)
		}
		b.ImageURL = &url
	}
	b.UpdatedAt = s.now()
	if err := s.store.UpdateBuilding(ctx, b); err != nil {
		return nil, fromStore(err, "building")
	}
	return b, nil
}

// Deactivate hides a building from reporters. Buildings are never removed
// because issues must keep pointing at one.
func (s *BuildingService) Deactivate(ctx context.Context, id primitive.ObjectID) (*models.Building, error) {
	inactive := false
	return s.Update(ctx, id, BuildingPatch{Active: &inactive}, nil)
}

func (s *BuildingService) ListActive(ctx context.Context) ([]models.Building, error) {
	buildings, err := s.store.ListBuildings(ctx, true)
	if err != nil {
		return nil, fromStore(err, "buildings")
	}
	return buildings, nil
}

// ListWithCounts returns every building, active or not, with its issue
// tally per priority.
func (s *BuildingService) ListWithCounts(ctx context.Context) ([]models.BuildingWithCounts, error) {
	buildings, err := s.store.ListBuildings(ctx, false)
	if err != nil {
		return nil, fromStore(err, "buildings")
	}
	counts, err := s.store.CountIssuesPerBuilding(ctx)
	if err != nil {
		return nil, fromStore(err, "issue counts")
	}
	out := make([]models.BuildingWithCounts, 0, len(buildings))
	for _, b := range buildings {
		c := counts[b.ID]
		out = append(out, models.BuildingWithCounts{
			Building:   b,
			IssueCount: models.PriorityCounts{High: c.High, Medium: c.Medium, Low: c.Low},
		})
	}
	return out, nil
}

func (s *BuildingService) GetByCode(ctx context.Context, code string) (*models.Building, error) {
	b, err := s.store.FindBuildingByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fromStore(err, "building")
	}
	return b, nil
}
