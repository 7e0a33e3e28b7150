package models

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionActors          = "actors"
	CollectionRoles           = "roles"
	CollectionRoleAssignments = "role_assignments"
	CollectionStudentProfiles = "student_profiles"
	CollectionStaffProfiles   = "staff_profiles"
	CollectionBuildings       = "buildings"
	CollectionIssues          = "issues"
)

type indexSpec struct {
	collection string
	model      mongo.IndexModel
}

func unique(collection string, keys bson.D) indexSpec {
	return indexSpec{
		collection: collection,
		model:      mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)},
	}
}

func plain(collection string, keys bson.D) indexSpec {
	return indexSpec{collection: collection, model: mongo.IndexModel{Keys: keys}}
}

// EnsureIndexes creates the unique constraints the lifecycle engine relies
// on plus the lookup indexes used by listings and the stats queries.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	specs := []indexSpec{
		unique(CollectionActors, bson.D{{Key: "email", Value: 1}}),
		unique(CollectionRoles, bson.D{{Key: "name", Value: 1}}),
		unique(CollectionRoleAssignments, bson.D{{Key: "actorId", Value: 1}, {Key: "roleId", Value: 1}}),
		unique(CollectionStudentProfiles, bson.D{{Key: "actorId", Value: 1}}),
		unique(CollectionStaffProfiles, bson.D{{Key: "actorId", Value: 1}}),
		unique(CollectionStaffProfiles, bson.D{{Key: "staffId", Value: 1}}),
		unique(CollectionBuildings, bson.D{{Key: "code", Value: 1}}),
		unique(CollectionBuildings, bson.D{{Key: "name", Value: 1}}),
		plain(CollectionIssues, bson.D{{Key: "buildingId", Value: 1}, {Key: "createdAt", Value: -1}}),
		plain(CollectionIssues, bson.D{{Key: "createdAt", Value: -1}}),
		plain(CollectionIssues, bson.D{{Key: "reporterId", Value: 1}}),
		plain(CollectionIssues, bson.D{{Key: "resolverId", Value: 1}}),
	}

	for _, s := range specs {
		if _, err := db.Collection(s.collection).Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("create index on %s: %w", s.collection, err)
		}
	}
	return nil
}
