package repository

import (
	"context"
	"errors"
	"fmt"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore persists every entity in MongoDB. Transactions need a replica
// set or sharded cluster.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger

	actors          *mongo.Collection
	roles           *mongo.Collection
	roleAssignments *mongo.Collection
	studentProfiles *mongo.Collection
	staffProfiles   *mongo.Collection
	buildings       *mongo.Collection
	issues          *mongo.Collection
}

func NewMongoStore(client *mongo.Client, db *mongo.Database, log *zap.Logger) *MongoStore {
	return &MongoStore{
		client:          client,
		db:              db,
		log:             log,
		actors:          db.Collection(models.CollectionActors),
		roles:           db.Collection(models.CollectionRoles),
		roleAssignments: db.Collection(models.CollectionRoleAssignments),
		studentProfiles: db.Collection(models.CollectionStudentProfiles),
		staffProfiles:   db.Collection(models.CollectionStaffProfiles),
		buildings:       db.Collection(models.CollectionBuildings),
		issues:          db.Collection(models.CollectionIssues),
	}
}

// EnsureIndexes creates the unique constraints; call once at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	return models.EnsureIndexes(ctx, s.db)
}

func (s *MongoStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// Already inside a session: join it.
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return s.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(txCtx mongo.SessionContext) (interface{}, error) {
			return nil, fn(txCtx)
		})
		return err
	})
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// casReplace swaps doc in when the stored version equals prev. It tells a
// missing document apart from a version mismatch.
func casReplace(ctx context.Context, coll *mongo.Collection, id interface{}, prev int64, doc interface{}) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": prev}, doc)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	count, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleVersion
}
