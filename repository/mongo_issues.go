package repository

import (
	"context"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (f IssueFilter) toBSON() bson.M {
	filter := bson.M{}
	if f.BuildingID != nil {
		filter["buildingId"] = *f.BuildingID
	}
	if f.Status != nil {
		filter["status"] = *f.Status
	}
	if f.CreatedFrom != nil || f.CreatedTo != nil {
		window := bson.M{}
		if f.CreatedFrom != nil {
			window["$gte"] = *f.CreatedFrom
		}
		if f.CreatedTo != nil {
			window["$lt"] = *f.CreatedTo
		}
		filter["createdAt"] = window
	}
	return filter
}

func (s *MongoStore) InsertIssue(ctx context.Context, i *models.Issue) error {
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	_, err := s.issues.InsertOne(ctx, i)
	return mapErr(err)
}

func (s *MongoStore) UpdateIssue(ctx context.Context, i *models.Issue) error {
	prev := i.Version
	i.Version = prev + 1
	if err := casReplace(ctx, s.issues, i.ID, prev, i); err != nil {
		i.Version = prev
		return err
	}
	return nil
}

func (s *MongoStore) FindIssueByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return findOne[models.Issue](ctx, s.issues, bson.M{"_id": id})
}

func (s *MongoStore) DeleteIssue(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.issues.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return findAll[models.Issue](ctx, s.issues, f.toBSON(), findOptions)
}

// clearRef nulls one weak reference on every issue pointing at actorID. The
// version bump makes in-flight edits that still carry the old reference fail
// their compare-and-swap instead of writing it back.
func (s *MongoStore) clearRef(ctx context.Context, field string, actorID primitive.ObjectID) (int64, error) {
	res, err := s.issues.UpdateMany(ctx,
		bson.M{field: actorID},
		bson.M{"$set": bson.M{field: nil}, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) ClearIssueReporter(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	return s.clearRef(ctx, "reporterId", actorID)
}

func (s *MongoStore) ClearIssueResolver(ctx context.Context, actorID primitive.ObjectID) (int64, error) {
	return s.clearRef(ctx, "resolverId", actorID)
}

func (s *MongoStore) CountIssues(ctx context.Context, f IssueFilter) (int64, error) {
	return s.issues.CountDocuments(ctx, f.toBSON())
}

func (s *MongoStore) CountIssuesBy(ctx context.Context, field GroupField) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$" + string(field), "count": bson.M{"$sum": 1}}},
	}
	cursor, err := s.issues.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}

func countWhere(field, value string) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$" + field, value}}, 1, 0}}}
}

func (s *MongoStore) CountIssuesPerBuilding(ctx context.Context) (map[primitive.ObjectID]BuildingIssueCount, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":    "$buildingId",
			"total":  bson.M{"$sum": 1},
			"active": countWhere("status", string(models.StatusActive)),
			"fixed":  countWhere("status", string(models.StatusFixed)),
			"high":   countWhere("priority", string(models.PriorityHigh)),
			"medium": countWhere("priority", string(models.PriorityMedium)),
			"low":    countWhere("priority", string(models.PriorityLow)),
		}},
	}
	cursor, err := s.issues.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		BuildingID primitive.ObjectID `bson:"_id"`
		Total      int64              `bson:"total"`
		Active     int64              `bson:"active"`
		Fixed      int64              `bson:"fixed"`
		High       int64              `bson:"high"`
		Medium     int64              `bson:"medium"`
		Low        int64              `bson:"low"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]BuildingIssueCount, len(rows))
	for _, r := range rows {
		out[r.BuildingID] = BuildingIssueCount{
			BuildingID: r.BuildingID,
			Total:      r.Total,
			Active:     r.Active,
			Fixed:      r.Fixed,
			High:       r.High,
			Medium:     r.Medium,
			Low:        r.Low,
		}
	}
	return out, nil
}
