package repository

import (
	"context"
	"sync"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memData struct {
	actors      map[primitive.ObjectID]models.Actor
	roles       map[primitive.ObjectID]models.Role
	assignments map[primitive.ObjectID]models.RoleAssignment
	students    map[primitive.ObjectID]models.StudentProfile
	staff       map[primitive.ObjectID]models.StaffProfile
	buildings   map[primitive.ObjectID]models.Building
	issues      map[primitive.ObjectID]models.Issue
}

func newMemData() memData {
	return memData{
		actors:      map[primitive.ObjectID]models.Actor{},
		roles:       map[primitive.ObjectID]models.Role{},
		assignments: map[primitive.ObjectID]models.RoleAssignment{},
		students:    map[primitive.ObjectID]models.StudentProfile{},
		staff:       map[primitive.ObjectID]models.StaffProfile{},
		buildings:   map[primitive.ObjectID]models.Building{},
		issues:      map[primitive.ObjectID]models.Issue{},
	}
}

func (d memData) clone() memData {
	c := newMemData()
	for k, v := range d.actors {
		c.actors[k] = cloneActor(v)
	}
	for k, v := range d.roles {
		c.roles[k] = v
	}
	for k, v := range d.assignments {
		c.assignments[k] = v
	}
	for k, v := range d.students {
		c.students[k] = v
	}
	for k, v := range d.staff {
		c.staff[k] = v
	}
	for k, v := range d.buildings {
		c.buildings[k] = cloneBuilding(v)
	}
	for k, v := range d.issues {
		c.issues[k] = cloneIssue(v)
	}
	return c
}

type txKey struct{}

// MemoryStore is the DB-less twin of MongoStore. It enforces the same unique
// constraints and version checks. Transactions are serialized against each
// other and roll back by restoring a snapshot; writes made outside a
// transaction while one is running can be lost on rollback.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data memData

	faultMu sync.Mutex
	faults  map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData(), faults: map[string]error{}}
}

// FailOn makes the next call of the named store method return err. Used by
// tests to exercise rollback paths.
func (s *MemoryStore) FailOn(method string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[method] = err
}

func (s *MemoryStore) fault(method string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	err, ok := s.faults[method]
	if !ok {
		return nil
	}
	delete(s.faults, method)
	return err
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	restore := func() {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		restore()
	}
	return err
}

func cloneID(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneActor(a models.Actor) models.Actor {
	a.AvatarURL = cloneString(a.AvatarURL)
	return a
}

func cloneBuilding(b models.Building) models.Building {
	b.ImageURL = cloneString(b.ImageURL)
	return b
}

func cloneIssue(i models.Issue) models.Issue {
	i.ReporterID = cloneID(i.ReporterID)
	i.ResolverID = cloneID(i.ResolverID)
	i.PhotoURL = cloneString(i.PhotoURL)
	i.ReportDocumentURL = cloneString(i.ReportDocumentURL)
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		i.CompletedAt = &t
	}
	return i
}
