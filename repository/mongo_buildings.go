package repository

import (
	"context"

	"smrms-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *MongoStore) InsertBuilding(ctx context.Context, b *models.Building) error {
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	_, err := s.buildings.InsertOne(ctx, b)
	return mapErr(err)
}

func (s *MongoStore) UpdateBuilding(ctx context.Context, b *models.Building) error {
	res, err := s.buildings.ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) FindBuildingByID(ctx context.Context, id primitive.ObjectID) (*models.Building, error) {
	return findOne[models.Building](ctx, s.buildings, bson.M{"_id": id})
}

func (s *MongoStore) FindBuildingByCode(ctx context.Context, code string) (*models.Building, error) {
	return findOne[models.Building](ctx, s.buildings, bson.M{"code": code})
}

func (s *MongoStore) FindBuildingsByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Building, error) {
	out := make(map[primitive.ObjectID]models.Building, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	buildings, err := findAll[models.Building](ctx, s.buildings, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, b := range buildings {
		out[b.ID] = b
	}
	return out, nil
}

func (s *MongoStore) ListBuildings(ctx context.Context, activeOnly bool) ([]models.Building, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return findAll[models.Building](ctx, s.buildings, filter,
		options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
}

func (s *MongoStore) BuildingTaken(ctx context.Context, code, name string, exclude *primitive.ObjectID) (bool, bool, error) {
	taken := func(field, value string) (bool, error) {
		filter := bson.M{field: value}
		if exclude != nil {
			filter["_id"] = bson.M{"$ne": *exclude}
		}
		count, err := s.buildings.CountDocuments(ctx, filter)
		return count > 0, err
	}
	codeTaken, err := taken("code", code)
	if err != nil {
		return false, false, err
	}
	nameTaken, err := taken("name", name)
	if err != nil {
		return false, false, err
	}
	return codeTaken, nameTaken, nil
}
