package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssuePriority enum
type IssuePriority string

const (
	PriorityHigh   IssuePriority = "HIGH"
	PriorityMedium IssuePriority = "MEDIUM"
	PriorityLow    IssuePriority = "LOW"
)

var Priorities = []IssuePriority{PriorityHigh, PriorityMedium, PriorityLow}

// IssueStatus enum. FIXED is the only resolved spelling.
type IssueStatus string

const (
	StatusActive IssueStatus = "ACTIVE"
	StatusFixed  IssueStatus = "FIXED"
)

var Statuses = []IssueStatus{StatusActive, StatusFixed}

var ErrLifecycle = errors.New("issue lifecycle fields are inconsistent")

func ParsePriority(s string) (IssuePriority, error) {
	p := IssuePriority(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Priorities {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unrecognized priority %q", s)
}

func ParseStatus(s string) (IssueStatus, error) {
	st := IssueStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unrecognized status %q", s)
}

// Issue represents a maintenance report raised against a building.
// ReporterID and ResolverID are weak references: they become nil when the
// actor is deleted. BuildingID is required.
type Issue struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title             string              `bson:"title" json:"title"`
	Description       string              `bson:"description" json:"description"`
	Location          string              `bson:"location" json:"location"`
	ExactLocation     string              `bson:"exactLocation" json:"exactLocation"`
	Priority          IssuePriority       `bson:"priority" json:"priority"`
	Status            IssueStatus         `bson:"status" json:"status"`
	ReporterID        *primitive.ObjectID `bson:"reporterId" json:"reporterId"`
	ResolverID        *primitive.ObjectID `bson:"resolverId" json:"resolverId"`
	BuildingID        primitive.ObjectID  `bson:"buildingId" json:"buildingId"`
	PhotoURL          *string             `bson:"photoUrl" json:"photoUrl"`
	ReportDocumentURL *string             `bson:"reportDocumentUrl" json:"reportDocumentUrl"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	CompletedAt       *time.Time          `bson:"completedAt" json:"completedAt"`
	Version           int64               `bson:"version" json:"version"`
}

// CheckLifecycle enforces ACTIVE <=> no resolver and no completion time,
// FIXED <=> both set.
func (i *Issue) CheckLifecycle() error {
	switch i.Status {
	case StatusActive:
		if i.ResolverID != nil || i.CompletedAt != nil {
			return ErrLifecycle
		}
	case StatusFixed:
		if i.ResolverID == nil || i.CompletedAt == nil {
			return ErrLifecycle
		}
	default:
		return ErrLifecycle
	}
	return nil
}

// Reopen discards resolution evidence.
func (i *Issue) Reopen() {
	i.Status = StatusActive
	i.ResolverID = nil
	i.CompletedAt = nil
	i.ReportDocumentURL = nil
}

// Resolve credits resolver. When keepCompletion is set and the issue was
// already FIXED, the first completion time is kept.
func (i *Issue) Resolve(resolver primitive.ObjectID, now time.Time, keepCompletion bool) {
	wasFixed := i.Status == StatusFixed && i.CompletedAt != nil
	i.Status = StatusFixed
	r := resolver
	i.ResolverID = &r
	if keepCompletion && wasFixed {
		return
	}
	t := now
	i.CompletedAt = &t
}

// ActorRef is the denormalized name shown next to a reporter or resolver.
type ActorRef struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

// IssueSummary is the list projection; it omits description and exact location.
type IssueSummary struct {
	ID                primitive.ObjectID `json:"id"`
	Title             string             `json:"title"`
	Location          string             `json:"location"`
	Priority          IssuePriority      `json:"priority"`
	Status            IssueStatus        `json:"status"`
	CreatedAt         time.Time          `json:"createdAt"`
	BuildingID        primitive.ObjectID `json:"buildingId"`
	BuildingName      string             `json:"buildingName"`
	PhotoURL          *string            `json:"photoUrl"`
	ReportDocumentURL *string            `json:"reportDocumentUrl"`
	ReportedBy        *ActorRef          `json:"reportedBy"`
	ResolvedBy        *ActorRef          `json:"resolvedBy"`
}

// IssueDetail is the full single-issue projection.
type IssueDetail struct {
	IssueSummary
	Description   string     `json:"description"`
	ExactLocation string     `json:"exactLocation"`
	CompletedAt   *time.Time `json:"completedAt"`
	Version       int64      `json:"version"`
}
