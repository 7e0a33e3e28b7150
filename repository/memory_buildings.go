package repository

import (
	"context"
	"sort"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *MemoryStore) buildingConflict(b *models.Building) bool {
	for id, existing := range s.data.buildings {
		if id == b.ID {
			continue
		}
		if existing.Code == b.Code || existing.Name == b.Name {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertBuilding(ctx context.Context, b *models.Building) error {
	if err := s.fault("InsertBuilding"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if _, ok := s.data.buildings[b.ID]; ok || s.buildingConflict(b) {
		return ErrDuplicate
	}
	s.data.buildings[b.ID] = cloneBuilding(*b)
	return nil
}

func (s *MemoryStore) UpdateBuilding(ctx context.Context, b *models.Building) error {
	if err := s.fault("UpdateBuilding"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.buildings[b.ID]; !ok {
		return ErrNotFound
	}
	if s.buildingConflict(b) {
		return ErrDuplicate
	}
	s.data.buildings[b.ID] = cloneBuilding(*b)
	return nil
}

func (s *MemoryStore) FindBuildingByID(ctx context.Context, id primitive.ObjectID) (*models.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data.buildings[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneBuilding(b)
	return &out, nil
}

func (s *MemoryStore) FindBuildingByCode(ctx context.Context, code string) (*models.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.data.buildings {
		if b.Code == code {
			out := cloneBuilding(b)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindBuildingsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[primitive.ObjectID]models.Building, len(ids))
	for _, id := range ids {
		if b, ok := s.data.buildings[id]; ok {
			out[id] = cloneBuilding(b)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListBuildings(ctx context.Context, activeOnly bool) ([]models.Building, error) {
	if err := s.fault("ListBuildings"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Building{}
	for _, b := range s.data.buildings {
		if activeOnly && !b.Active {
			continue
		}
		out = append(out, cloneBuilding(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) BuildingTaken(ctx context.Context, code, name string, exclude *primitive.ObjectID) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var codeTaken, nameTaken bool
	for id, b := range s.data.buildings {
		if exclude != nil && id == *exclude {
			continue
		}
		codeTaken = codeTaken || b.Code == code
		nameTaken = nameTaken || b.Name == name
	}
	return codeTaken, nameTaken, nil
}
