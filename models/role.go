package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleStudent          = "STUDENT"
	RoleMaintenanceStaff = "MAINTENANCE_STAFF"
	RoleAdmin            = "ADMIN"
)

type Role struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// RoleAssignment joins an actor to a role. (actorId, roleId) is unique.
type RoleAssignment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID   primitive.ObjectID `bson:"actorId" json:"actorId"`
	RoleID    primitive.ObjectID `bson:"roleId" json:"roleId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ProfileKind names the extension profile attached to an actor.
type ProfileKind string

const (
	ProfileStudent ProfileKind = "STUDENT"
	ProfileStaff   ProfileKind = "MAINTENANCE_STAFF"
)

type StudentProfile struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID       primitive.ObjectID `bson:"actorId" json:"actorId"`
	Department    string             `bson:"department" json:"department"`
	StudentNumber string             `bson:"studentNumber,omitempty" json:"studentNumber,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

type StaffProfile struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID   primitive.ObjectID `bson:"actorId" json:"actorId"`
	StaffID   string             `bson:"staffId" json:"staffId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
