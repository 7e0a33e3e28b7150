package repository

import (
	"context"
	"sort"
	"strings"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (f IssueFilter) matches(i models.Issue) bool {
	if f.BuildingID != nil && i.BuildingID != *f.BuildingID {
		return false
	}
	if f.Status != nil && i.Status != *f.Status {
		return false
	}
	if f.CreatedFrom != nil && i.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !i.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	return true
}

func (s *MemoryStore) InsertIssue(ctx context.Context, i *models.Issue) error {
	if err := s.fault("InsertIssue"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	if _, ok := s.data.issues[i.ID]; ok {
		return ErrDuplicate
	}
	s.data.issues[i.ID] = cloneIssue(*i)
	return nil
}

func (s *MemoryStore) UpdateIssue(ctx context.Context, i *models.Issue) error {
	if err := s.fault("UpdateIssue"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.data.issues[i.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != i.Version {
		return ErrStaleVersion
	}
	i.Version++
	s.data.issues[i.ID] = cloneIssue(*i)
	return nil
}

func (s *MemoryStore) FindIssueByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	if err := s.fault("FindIssueByID"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.data.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneIssue(i)
	return &out, nil
}

func (s *MemoryStore) DeleteIssue(ctx context.Context, id primitive.ObjectID) error {
	if err := s.fault("DeleteIssue"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.issues[id]; !ok {
		return ErrNotFound
	}
	delete(s.data.issues, id)
	return nil
}

func (s *MemoryStore) ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, error) {
	if err := s.fault("ListIssues"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Issue{}
	for _, i := range s.data.issues {
		if f.matches(i) {
			out = append(out, cloneIssue(i))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID.Hex() > out[b].ID.Hex()
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) clearRef(method string, actorID primitive.ObjectID, ref func(*models.Issue) **primitive.ObjectID) (int64, error) {
	if err := s.fault(method); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, i := range s.data.issues {
		field := ref(&i)
		if *field == nil || **field != actorID {
			continue
		}
		*field = nil
		i.Version++
		s.data.issues[id] = i
		n++
	}
	return n, nil
}

func (s *MemoryStore) ClearIssueReporter(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	return s.clearRef("ClearIssueReporter", actorID, func(i *models.Issue) **primitive.ObjectID { return &i.ReporterID })
}

func (s *MemoryStore) ClearIssueResolver(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	return s.clearRef("ClearIssueResolver", actorID, func(i *models.Issue) **primitive.ObjectID { return &i.ResolverID })
}

func (s *MemoryStore) CountIssues(ctx context.Context, f IssueFilter) (int64, error) {
	if err := s.fault("CountIssues"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, i := range s.data.issues {
		if f.matches(i) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountIssuesBy(ctx context.Context, field GroupField) (map[string]int64, error) {
	if err := s.fault("CountIssuesBy"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]int64{}
	for _, i := range s.data.issues {
		var key string
		switch field {
		case GroupByStatus:
			key = string(i.Status)
		case GroupByPriority:
			key = string(i.Priority)
		default:
			continue
		}
		out[strings.ToUpper(key)]++
	}
	return out, nil
}

func (s *MemoryStore) CountIssuesPerBuilding(ctx context.Context) (map[primitive.ObjectID]BuildingIssueCount, error) {
	if err := s.fault("CountIssuesPerBuilding"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[primitive.ObjectID]BuildingIssueCount{}
	for _, i := range s.data.issues {
		c := out[i.BuildingID]
		c.BuildingID = i.BuildingID
		c.Total++
		switch i.Status {
		case models.StatusActive:
			c.Active++
		case models.StatusFixed:
			c.Fixed++
		}
		switch i.Priority {
		case models.PriorityHigh:
			c.High++
		case models.PriorityMedium:
			c.Medium++
		case models.PriorityLow:
			c.Low++
		}
		out[i.BuildingID] = c
	}
	return out, nil
}
