package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Building is soft-deactivated, never removed, so issues keep their reference.
type Building struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code      string             `bson:"code" json:"code"`
	Name      string             `bson:"name" json:"name"`
	Active    bool               `bson:"active" json:"active"`
	ImageURL  *string            `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PriorityCounts is the per-priority issue tally shown on building cards.
type PriorityCounts struct {
	High   int64 `json:"high"`
	Medium int64 `json:"medium"`
	Low    int64 `json:"low"`
}

type BuildingWithCounts struct {
	Building
	IssueCount PriorityCounts `json:"issueCount"`
}
