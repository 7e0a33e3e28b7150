package repository

import (
	"context"
	"time"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func (s *MongoStore) InsertActor(ctx context.Context, a *models.Actor) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.Email = models.NormalizeEmail(a.Email)
	_, err := s.actors.InsertOne(ctx, a)
	return mapErr(err)
}

func (s *MongoStore) UpdateActor(ctx context.Context, a *models.Actor) error {
	a.Email = models.NormalizeEmail(a.Email)
	prev := a.Version
	a.Version = prev + 1
	if err := casReplace(ctx, s.actors, a.ID, prev, a); err != nil {
		a.Version = prev
		return err
	}
	return nil
}

func (s *MongoStore) FindActorByID(ctx context.Context, id primitive.ObjectID) (*models.Actor, error) {
	return findOne[models.Actor](ctx, s.actors, bson.M{"_id": id})
}

func (s *MongoStore) FindActorByEmail(ctx context.Context, email string) (*models.Actor, error) {
	return findOne[models.Actor](ctx, s.actors, bson.M{"email": models.NormalizeEmail(email)})
}

func (s *MongoStore) FindActorsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Actor, error) {
	out := make(map[primitive.ObjectID]models.Actor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	actors, err := findAll[models.Actor](ctx, s.actors, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, a := range actors {
		out[a.ID] = a
	}
	return out, nil
}

func (s *MongoStore) DeleteActor(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.actors.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertRole relies on the unique index on roles.name. Two concurrent first
// upserts can both miss and one then fails with E11000; the retry finds the
// winner's row.
func (s *MongoStore) UpsertRole(ctx context.Context, name string, now time.Time) (*models.Role, error) {
	filter := bson.M{"name": name}
	update := bson.M{"$setOnInsert": bson.M{"createdAt": now}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var role models.Role
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.roles.FindOneAndUpdate(ctx, filter, update, opts).Decode(&role)
		if err == nil {
			return &role, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, mapErr(err)
		}
		s.log.Debug("role upsert raced, retrying", zap.String("role", name))
	}
	return nil, mapErr(err)
}

// AssignRole upserts on (actorId, roleId) so an existing pair never raises
// E11000, which would abort an enclosing transaction.
func (s *MongoStore) AssignRole(ctx context.Context, ra *models.RoleAssignment) (bool, error) {
	if ra.ID.IsZero() {
		ra.ID = primitive.NewObjectID()
	}
	filter := bson.M{"actorId": ra.ActorID, "roleId": ra.RoleID}
	update := bson.M{"$setOnInsert": bson.M{"_id": ra.ID, "createdAt": ra.CreatedAt}}
	res, err := s.roleAssignments.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, mapErr(err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *MongoStore) ActorRoleNames(ctx context.Context, actorID primitive.ObjectID) ([]string, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"actorId": actorID}},
		{"$lookup": bson.M{
			"from":         models.CollectionRoles,
			"localField":   "roleId",
			"foreignField": "_id",
			"as":           "role",
		}},
		{"$unwind": "$role"},
		{"$project": bson.M{"_id": 0, "name": "$role.name"}},
		{"$sort": bson.M{"name": 1}},
	}

	cursor, err := s.roleAssignments.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Name string `bson:"name"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}

func (s *MongoStore) DeleteRoleAssignments(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	res, err := s.roleAssignments.DeleteMany(ctx, bson.M{"actorId": actorID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) InsertStudentProfile(ctx context.Context, p *models.StudentProfile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.studentProfiles.InsertOne(ctx, p)
	return mapErr(err)
}

func (s *MongoStore) InsertStaffProfile(ctx context.Context, p *models.StaffProfile) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.staffProfiles.InsertOne(ctx, p)
	return mapErr(err)
}

func (s *MongoStore) FindStudentProfile(ctx context.Context, actorID primitive.ObjectID) (*models.StudentProfile, error) {
	return findOne[models.StudentProfile](ctx, s.studentProfiles, bson.M{"actorId": actorID})
}

func (s *MongoStore) FindStaffProfile(ctx context.Context, actorID primitive.ObjectID) (*models.StaffProfile, error) {
	return findOne[models.StaffProfile](ctx, s.staffProfiles, bson.M{"actorId": actorID})
}

func (s *MongoStore) FindStudentProfileByID(ctx context.Context, id primitive.ObjectID) (*models.StudentProfile, error) {
	return findOne[models.StudentProfile](ctx, s.studentProfiles, bson.M{"_id": id})
}

func (s *MongoStore) FindStaffProfileByID(ctx context.Context, id primitive.ObjectID) (*models.StaffProfile, error) {
	return findOne[models.StaffProfile](ctx, s.staffProfiles, bson.M{"_id": id})
}

func (s *MongoStore) StaffIDTaken(ctx context.Context, staffID string) (bool, error) {
	count, err := s.staffProfiles.CountDocuments(ctx, bson.M{"staffId": staffID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) ListStudentProfiles(ctx context.Context) ([]models.StudentProfile, error) {
	return findAll[models.StudentProfile](ctx, s.studentProfiles, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *MongoStore) ListStaffProfiles(ctx context.Context) ([]models.StaffProfile, error) {
	return findAll[models.StaffProfile](ctx, s.staffProfiles, bson.M{},
		options.Find().SetSort(bson.D{{Key: "staffId", Value: 1}}))
}

func (s *MongoStore) DeleteProfiles(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	var total int64
	for _, coll := range []*mongo.Collection{s.studentProfiles, s.staffProfiles} {
		res, err := coll.DeleteMany(ctx, bson.M{"actorId": actorID})
		if err != nil {
			return total, err
		}
		total += res.DeletedCount
	}
	return total, nil
}
