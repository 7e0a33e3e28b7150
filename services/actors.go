package services

import (
	"context"
	"strconv"

	"smrms-be/metrics"
	"smrms-be/models"
	"smrms-be/queue"
	"smrms-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DeletionReport says what an actor deletion touched.
type DeletionReport struct {
	ActorID         primitive.ObjectID `json:"actorId"`
	ReportsCleared  int64              `json:"reportsCleared"`
	ResolvesCleared int64              `json:"resolvesCleared"`
	RolesRemoved    int64              `json:"rolesRemoved"`
	ProfilesRemoved int64              `json:"profilesRemoved"`
}

type StaffView struct {
	ProfileID    primitive.ObjectID `json:"id"`
	ActorID      primitive.ObjectID `json:"actorId"`
	StaffID      string             `json:"staffId"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	MobileNumber string             `json:"mobileNumber,omitempty"`
	Active       bool               `json:"active"`
	AvatarURL    *string            `json:"avatarUrl,omitempty"`
}

type StudentView struct {
	ProfileID     primitive.ObjectID `json:"id"`
	ActorID       primitive.ObjectID `json:"actorId"`
	Department    string             `json:"department"`
	StudentNumber string             `json:"studentNumber"`
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	MobileNumber  string             `json:"mobileNumber,omitempty"`
	Active        bool               `json:"active"`
	AvatarURL     *string            `json:"avatarUrl,omitempty"`
}

// ActorService removes actors without leaving dangling issue references and
// lists the staff and student rosters.
type ActorService struct {
	store   repository.Store
	events  queue.Publisher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewActorService(store repository.Store, events queue.Publisher, m *metrics.Metrics, log *zap.Logger) *ActorService {
	if events == nil {
		events = queue.Nop{}
	}
	return &ActorService{store: store, events: events, metrics: m, log: log}
}

// DeleteActor detaches the actor from every issue it reported or resolved,
// then removes its role assignments, profile and the actor itself, all in
// one transaction.
func (s *ActorService) DeleteActor(ctx context.Context, id primitive.ObjectID) (*DeletionReport, error) {
	if _, err := s.store.FindActorByID(ctx, id); err != nil {
		return nil, fromStore(err, "actor")
	}

	report := &DeletionReport{ActorID: id}
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		*report = DeletionReport{ActorID: id}

		// Re-read inside the transaction; a concurrent delete may have won.
		if _, err := s.store.FindActorByID(ctx, id); err != nil {
			return err
		}
		var err error
		if report.ReportsCleared, err = s.store.ClearIssueReporter(ctx, id); err != nil {
			return err
		}
		if report.ResolvesCleared, err = s.store.ClearIssueResolver(ctx, id); err != nil {
			return err
		}
		if report.RolesRemoved, err = s.store.DeleteRoleAssignments(ctx, id); err != nil {
			return err
		}
		if report.ProfilesRemoved, err = s.store.DeleteProfiles(ctx, id); err != nil {
			return err
		}
		return s.store.DeleteActor(ctx, id)
	})
	if err != nil {
		s.metrics.ActorDeletion("failed")
		s.log.Error("actor deletion rolled back", zap.String("actor_id", id.Hex()), zap.Error(err))
		return nil, fromStore(err, "actor")
	}

	s.metrics.ActorDeletion("ok")
	s.log.Info("actor deleted",
		zap.String("actor_id", id.Hex()),
		zap.Int64("reports_cleared", report.ReportsCleared),
		zap.Int64("resolves_cleared", report.ResolvesCleared),
	)
	s.events.Publish(ctx, queue.Event{
		Type: queue.EventActorDeleted,
		Key:  id.Hex(),
		Data: map[string]string{
			"reportsCleared":  strconv.FormatInt(report.ReportsCleared, 10),
			"resolvesCleared": strconv.FormatInt(report.ResolvesCleared, 10),
		},
	})
	return report, nil
}

// DeleteStaff deletes the actor behind a maintenance staff profile.
func (s *ActorService) DeleteStaff(ctx context.Context, profileID primitive.ObjectID) (*DeletionReport, error) {
	p, err := s.store.FindStaffProfileByID(ctx, profileID)
	if err != nil {
		return nil, fromStore(err, "staff member")
	}
	return s.DeleteActor(ctx, p.ActorID)
}

// DeleteStudent deletes the actor behind a student profile.
func (s *ActorService) DeleteStudent(ctx context.Context, profileID primitive.ObjectID) (*DeletionReport, error) {
	p, err := s.store.FindStudentProfileByID(ctx, profileID)
	if err != nil {
		return nil, fromStore(err, "student")
	}
	return s.DeleteActor(ctx, p.ActorID)
}

func (s *ActorService) ListStaff(ctx context.Context) ([]StaffView, error) {
	profiles, err := s.store.ListStaffProfiles(ctx)
	if err != nil {
		return nil, fromStore(err, "staff")
	}
	ids := make([]primitive.ObjectID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ActorID)
	}
	actors, err := s.store.FindActorsByIDs(ctx, ids)
	if err != nil {
		return nil, fromStore(err, "actors")
	}

	out := make([]StaffView, 0, len(profiles))
	for _, p := range profiles {
		a, ok := actors[p.ActorID]
		if !ok {
			s.log.Warn("staff profile without actor", zap.String("profile_id", p.ID.Hex()))
			continue
		}
		out = append(out, StaffView{
			ProfileID:    p.ID,
			ActorID:      a.ID,
			StaffID:      p.StaffID,
			Name:         a.Name,
			Email:        a.Email,
			MobileNumber: a.MobileNumber,
			Active:       a.Active,
			AvatarURL:    a.AvatarURL,
		})
	}
	return out, nil
}

func (s *ActorService) ListStudents(ctx context.Context) ([]StudentView, error) {
	profiles, err := s.store.ListStudentProfiles(ctx)
	if err != nil {
		return nil, fromStore(err, "students")
	}
	ids := make([]primitive.ObjectID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ActorID)
	}
	actors, err := s.store.FindActorsByIDs(ctx, ids)
	if err != nil {
		return nil, fromStore(err, "actors")
	}

	out := make([]StudentView, 0, len(profiles))
	for _, p := range profiles {
		a, ok := actors[p.ActorID]
		if !ok {
			s.log.Warn("student profile without actor", zap.String("profile_id", p.ID.Hex()))
			continue
		}
		out = append(out, studentView(p, a))
	}
	return out, nil
}

func studentView(p models.StudentProfile, a models.Actor) StudentView {
	return StudentView{
		ProfileID:     p.ID,
		ActorID:       a.ID,
		Department:    p.Department,
		StudentNumber: p.StudentNumber,
		Name:          a.Name,
		Email:         a.Email,
		MobileNumber:  a.MobileNumber,
		Active:        a.Active,
		AvatarURL:     a.AvatarURL,
	}
}
