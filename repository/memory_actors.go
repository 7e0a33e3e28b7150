package repository

import (
	"context"
	"sort"
	"time"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *MemoryStore) InsertActor(ctx context.Context, a *models.Actor) error {
	if err := s.fault("InsertActor"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a.Email = models.NormalizeEmail(a.Email)
	for _, existing := range s.data.actors {
		if existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, ok := s.data.actors[a.ID]; ok {
		return ErrDuplicate
	}
	s.data.actors[a.ID] = cloneActor(*a)
	return nil
}

func (s *MemoryStore) UpdateActor(ctx context.Context, a *models.Actor) error {
	if err := s.fault("UpdateActor"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.data.actors[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != a.Version {
		return ErrStaleVersion
	}
	a.Email = models.NormalizeEmail(a.Email)
	for id, existing := range s.data.actors {
		if id != a.ID && existing.Email == a.Email {
			return ErrDuplicate
		}
	}
	a.Version++
	s.data.actors[a.ID] = cloneActor(*a)
	return nil
}

func (s *MemoryStore) FindActorByID(ctx context.Context, id primitive.ObjectID) (*models.Actor, error) {
	if err := s.fault("FindActorByID"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data.actors[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneActor(a)
	return &out, nil
}

func (s *MemoryStore) FindActorByEmail(ctx context.Context, email string) (*models.Actor, error) {
	if err := s.fault("FindActorByEmail"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = models.NormalizeEmail(email)
	for _, a := range s.data.actors {
		if a.Email == email {
			out := cloneActor(a)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindActorsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[primitive.ObjectID]models.Actor, len(ids))
	for _, id := range ids {
		if a, ok := s.data.actors[id]; ok {
			out[id] = cloneActor(a)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteActor(ctx context.Context, id primitive.ObjectID) error {
	if err := s.fault("DeleteActor"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.actors[id]; !ok {
		return ErrNotFound
	}
	delete(s.data.actors, id)
	return nil
}

func (s *MemoryStore) UpsertRole(ctx context.Context, name string, now time.Time) (*models.Role, error) {
	if err := s.fault("UpsertRole"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.data.roles {
		if r.Name == name {
			out := r
			return &out, nil
		}
	}
	r := models.Role{ID: primitive.NewObjectID(), Name: name, CreatedAt: now}
	s.data.roles[r.ID] = r
	return &r, nil
}

func (s *MemoryStore) AssignRole(ctx context.Context, ra *models.RoleAssignment) (bool, error) {
	if err := s.fault("AssignRole"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.assignments {
		if existing.ActorID == ra.ActorID && existing.RoleID == ra.RoleID {
			return false, nil
		}
	}
	if ra.ID.IsZero() {
		ra.ID = primitive.NewObjectID()
	}
	s.data.assignments[ra.ID] = *ra
	return true, nil
}

func (s *MemoryStore) ActorRoleNames(ctx context.Context, actorID primitive.ObjectID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := []string{}
	for _, ra := range s.data.assignments {
		if ra.ActorID != actorID {
			continue
		}
		if r, ok := s.data.roles[ra.RoleID]; ok {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) DeleteRoleAssignments(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	if err := s.fault("DeleteRoleAssignments"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, ra := range s.data.assignments {
		if ra.ActorID == actorID {
			delete(s.data.assignments, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) InsertStudentProfile(ctx context.Context, p *models.StudentProfile) error {
	if err := s.fault("InsertStudentProfile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.students {
		if existing.ActorID == p.ActorID {
			return ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.data.students[p.ID] = *p
	return nil
}

func (s *MemoryStore) InsertStaffProfile(ctx context.Context, p *models.StaffProfile) error {
	if err := s.fault("InsertStaffProfile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.staff {
		if existing.ActorID == p.ActorID || existing.StaffID == p.StaffID {
			return ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.data.staff[p.ID] = *p
	return nil
}

func (s *MemoryStore) FindStudentProfile(ctx context.Context, actorID primitive.ObjectID) (*models.StudentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data.students {
		if p.ActorID == actorID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindStaffProfile(ctx context.Context, actorID primitive.ObjectID) (*models.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data.staff {
		if p.ActorID == actorID {
			out := p
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindStudentProfileByID(ctx context.Context, id primitive.ObjectID) (*models.StudentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data.students[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindStaffProfileByID(ctx context.Context, id primitive.ObjectID) (*models.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) StaffIDTaken(ctx context.Context, staffID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data.staff {
		if p.StaffID == staffID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StudentProfile, 0, len(s.data.students))
	for _, p := range s.data.students {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListStaffProfiles(ctx context.Context) ([]models.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StaffProfile, 0, len(s.data.staff))
	for _, p := range s.data.staff {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

func (s *MemoryStore) DeleteProfiles(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	if err := s.fault("DeleteProfiles"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.data.students {
		if p.ActorID == actorID {
			delete(s.data.students, id)
			n++
		}
	}
	for id, p := range s.data.staff {
		if p.ActorID == actorID {
			delete(s.data.staff, id)
			n++
		}
	}
	return n, nil
}
