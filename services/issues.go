package services

import (
	"context"
	"strings"

	"smrms-be/metrics"
	"smrms-be/models"
	"smrms-be/queue"
	"smrms-be/repository"
	"smrms-be/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateIssueInput carries a new report. Photo and ReportFile are optional.
type CreateIssueInput struct {
	ReporterID    primitive.ObjectID
	BuildingID    primitive.ObjectID
	Title         string
	Description   string
	Location      string
	ExactLocation string
	Priority      string
	Photo         *storage.Object
	ReportFile    *storage.Object
}

// IssuePatch is a partial update; nil fields are left alone. Version, when
// set, must match the stored version.
type IssuePatch struct {
	Title         *string
	Description   *string
	Location      *string
	ExactLocation *string
	Priority      *string
	BuildingCode  *string
	Status        *string
	ResolverID    *primitive.ObjectID
	Version       *int64
}

type IssueOption func(*IssueService)

func WithIssueClock(now Clock) IssueOption {
	return func(s *IssueService) { s.now = now }
}

// WithStableCompletion keeps the first completedAt when an already FIXED
// issue is marked FIXED again. Off by default: every FIXED update stamps a
// new completion time.
func WithStableCompletion(keep bool) IssueOption {
	return func(s *IssueService) { s.keepCompletion = keep }
}

type IssueService struct {
	store          repository.Store
	uploader       storage.Uploader
	events         queue.Publisher
	metrics        *metrics.Metrics
	log            *zap.Logger
	now            Clock
	keepCompletion bool
}

func NewIssueService(store repository.Store, uploader storage.Uploader, events queue.Publisher, m *metrics.Metrics, log *zap.Logger, opts ...IssueOption) *IssueService {
	if events == nil {
		events = queue.Nop{}
	}
	s := &IssueService{
		store:    store,
		uploader: uploader,
		events:   events,
		metrics:  m,
		log:      log,
		now:      systemClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *IssueService) Create(ctx context.Context, in CreateIssueInput) (*models.IssueDetail, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid priority", Err: err}
	}

	building, err := s.store.FindBuildingByID(ctx, in.BuildingID)
	if err != nil {
		return nil, fromStore(err, "building")
	}
	if !building.Active {
		return nil, invalid("building %s is not accepting reports", building.Code)
	}
	if _, err := s.store.FindActorByID(ctx, in.ReporterID); err != nil {
		return nil, fromStore(err, "reporter")
	}

	issue := &models.Issue{
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Location:      strings.TrimSpace(in.Location),
		ExactLocation: strings.TrimSpace(in.ExactLocation),
		Priority:      priority,
		Status:        models.StatusActive,
		BuildingID:    building.ID,
		CreatedAt:     s.now(),
	}
	if issue.Location == "" {
		issue.Location = building.Code
	}
	reporter := in.ReporterID
	issue.ReporterID = &reporter

	if in.Photo != nil {
		url, err := s.uploader.Upload(ctx, *in.Photo, storage.KindImage)
		if err != nil {
			return nil, fromStorage(err)
		}
		issue.PhotoURL = &url
	}
	if in.ReportFile != nil {
		url, err := s.uploader.Upload(ctx, *in.ReportFile, storage.KindDocument)
		if err != nil {
			return nil, fromStorage(err)
		}
		issue.ReportDocumentURL = &url
	}

	if err := s.store.InsertIssue(ctx, issue); err != nil {
		return nil, fromStore(err, "issue")
	}
	s.log.Info("issue created",
		zap.String("issue_id", issue.ID.Hex()),
		zap.String("building", building.Code),
		zap.String("priority", string(priority)),
	)
	s.events.Publish(ctx, queue.Event{
		Type: queue.EventIssueCreated,
		Key:  issue.ID.Hex(),
		Data: map[string]string{"buildingId": building.ID.Hex(), "priority": string(priority)},
	})
	return s.detail(ctx, issue)
}

// Update applies patch in a fixed order: scalar fields, then the building
// reassignment, then the status transition. Every lookup and upload happens
// before the single persist call.
func (s *IssueService) Update(ctx context.Context, id primitive.ObjectID, patch IssuePatch, reportFile *storage.Object) (*models.IssueDetail, error) {
	var priority *models.IssuePriority
	if patch.Priority != nil {
		p, err := models.ParsePriority(*patch.Priority)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "invalid priority", Err: err}
		}
		priority = &p
	}
	var status *models.IssueStatus
	if patch.Status != nil {
		st, err := models.ParseStatus(*patch.Status)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "invalid status", Err: err}
		}
		status = &st
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, invalid("title cannot be blank")
	}

	issue, err := s.store.FindIssueByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "issue")
	}
	if patch.Version != nil && *patch.Version != issue.Version {
		return nil, conflict("issue was modified concurrently, reload and retry")
	}

	var building *models.Building
	if patch.BuildingCode != nil {
		building, err = s.store.FindBuildingByCode(ctx, strings.ToUpper(strings.TrimSpace(*patch.BuildingCode)))
		if err != nil {
			return nil, fromStore(err, "building")
		}
	}

	var resolver *models.Actor
	if status != nil && *status == models.StatusFixed {
		if patch.ResolverID == nil {
			return nil, invalid("resolver is required to mark an issue fixed")
		}
		resolver, err = s.store.FindActorByID(ctx, *patch.ResolverID)
		if err != nil {
			return nil, fromStore(err, "resolver")
		}
	}

	finalStatus := issue.Status
	if status != nil {
		finalStatus = *status
	}
	var reportURL *string
	if reportFile != nil {
		if finalStatus != models.StatusFixed {
			return nil, invalid("a report document can only be attached to a fixed issue")
		}
		url, err := s.uploader.Upload(ctx, *reportFile, storage.KindDocument)
		if err != nil {
			return nil, fromStorage(err)
		}
		reportURL = &url
	}

	if patch.Title != nil {
		issue.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		issue.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Location != nil {
		issue.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.ExactLocation != nil {
		issue.ExactLocation = strings.TrimSpace(*patch.ExactLocation)
	}
	if priority != nil {
		issue.Priority = *priority
	}

	// Location follows the building only on this path; a plain location
	// edit above does not re-derive it.
	if building != nil {
		issue.BuildingID = building.ID
		issue.Location = building.Code
	}

	previous := issue.Status
	if status != nil {
		switch *status {
		case models.StatusActive:
			issue.Reopen()
		case models.StatusFixed:
			issue.Resolve(resolver.ID, s.now(), s.keepCompletion)
		}
		if err := issue.CheckLifecycle(); err != nil {
			return nil, &Error{Kind: KindValidation, Message: "inconsistent issue state", Err: err}
		}
	}
	if reportURL != nil {
		issue.ReportDocumentURL = reportURL
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return nil, fromStore(err, "issue")
	}

	if status != nil {
		s.afterTransition(ctx, issue, previous)
	}
	return s.detail(ctx, issue)
}

func (s *IssueService) afterTransition(ctx context.Context, issue *models.Issue, previous models.IssueStatus) {
	if previous == issue.Status && issue.Status == models.StatusActive {
		return
	}
	s.metrics.IssueTransition(string(issue.Status))

	evt := queue.Event{Key: issue.ID.Hex(), Data: map[string]string{"from": string(previous)}}
	switch issue.Status {
	case models.StatusFixed:
		evt.Type = queue.EventIssueFixed
		evt.Data["resolverId"] = issue.ResolverID.Hex()
	case models.StatusActive:
		evt.Type = queue.EventIssueReopened
	}
	s.log.Info("issue status changed",
		zap.String("issue_id", issue.ID.Hex()),
		zap.String("from", string(previous)),
		zap.String("to", string(issue.Status)),
	)
	s.events.Publish(ctx, evt)
}

func (s *IssueService) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.store.DeleteIssue(ctx, id); err != nil {
		return fromStore(err, "issue")
	}
	s.log.Info("issue deleted", zap.String("issue_id", id.Hex()))
	s.events.Publish(ctx, queue.Event{Type: queue.EventIssueDeleted, Key: id.Hex()})
	return nil
}

func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (*models.IssueDetail, error) {
	issue, err := s.store.FindIssueByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "issue")
	}
	return s.detail(ctx, issue)
}

// List returns every issue, newest first.
func (s *IssueService) List(ctx context.Context) ([]models.IssueSummary, error) {
	issues, err := s.store.ListIssues(ctx, repository.IssueFilter{})
	if err != nil {
		return nil, fromStore(err, "issues")
	}
	return s.summaries(ctx, issues)
}

func (s *IssueService) ListByBuilding(ctx context.Context, buildingID primitive.ObjectID) ([]models.IssueSummary, error) {
	if _, err := s.store.FindBuildingByID(ctx, buildingID); err != nil {
		return nil, fromStore(err, "building")
	}
	issues, err := s.store.ListIssues(ctx, repository.IssueFilter{BuildingID: &buildingID})
	if err != nil {
		return nil, fromStore(err, "issues")
	}
	return s.summaries(ctx, issues)
}

func (s *IssueService) detail(ctx context.Context, issue *models.Issue) (*models.IssueDetail, error) {
	summaries, err := s.summaries(ctx, []models.Issue{*issue})
	if err != nil {
		return nil, err
	}
	return &models.IssueDetail{
		IssueSummary:  summaries[0],
		Description:   issue.Description,
		ExactLocation: issue.ExactLocation,
		CompletedAt:   issue.CompletedAt,
		Version:       issue.Version,
	}, nil
}

// summaries resolves building and actor names with one batched lookup each.
func (s *IssueService) summaries(ctx context.Context, issues []models.Issue) ([]models.IssueSummary, error) {
	buildingIDs := make([]primitive.ObjectID, 0, len(issues))
	actorIDs := make([]primitive.ObjectID, 0, len(issues))
	seenBuilding := map[primitive.ObjectID]bool{}
	seenActor := map[primitive.ObjectID]bool{}
	for _, i := range issues {
		if !seenBuilding[i.BuildingID] {
			seenBuilding[i.BuildingID] = true
			buildingIDs = append(buildingIDs, i.BuildingID)
		}
		for _, ref := range []*primitive.ObjectID{i.ReporterID, i.ResolverID} {
			if ref != nil && !seenActor[*ref] {
				seenActor[*ref] = true
				actorIDs = append(actorIDs, *ref)
			}
		}
	}

	buildings, err := s.store.FindBuildingsByIDs(ctx, buildingIDs)
	if err != nil {
		return nil, fromStore(err, "buildings")
	}
	actors, err := s.store.FindActorsByIDs(ctx, actorIDs)
	if err != nil {
		return nil, fromStore(err, "actors")
	}

	ref := func(id *primitive.ObjectID) *models.ActorRef {
		if id == nil {
			return nil
		}
		a, ok := actors[*id]
		if !ok {
			return nil
		}
		return &models.ActorRef{ID: a.ID, Name: a.Name}
	}

	out := make([]models.IssueSummary, 0, len(issues))
	for _, i := range issues {
		out = append(out, models.IssueSummary{
			ID:                i.ID,
			Title:             i.Title,
			Location:          i.Location,
			Priority:          i.Priority,
			Status:            i.Status,
			CreatedAt:         i.CreatedAt,
			BuildingID:        i.BuildingID,
			BuildingName:      buildings[i.BuildingID].Name,
			PhotoURL:          i.PhotoURL,
			ReportDocumentURL: i.ReportDocumentURL,
			ReportedBy:        ref(i.ReporterID),
			ResolvedBy:        ref(i.ResolverID),
		})
	}
	return out, nil
}
