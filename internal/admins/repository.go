package admins

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	// InsertIfAbsent reports whether a new record was created.
	InsertIfAbsent(ctx context.Context, admin Admin) (bool, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) FindByUsername(ctx context.Context, username string) (*Admin, error) {
	var admin Admin
	err := r.col.FindOne(ctx, bson.M{"username": username}, options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&admin)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &admin, nil
}

func (r *MongoRepository) InsertIfAbsent(ctx context.Context, admin Admin) (bool, error) {
	update := bson.M{
		"$setOnInsert": bson.M{
			"id":            admin.ID,
			"username":      admin.Username,
			"password_hash": admin.PasswordHash,
			"created_at":    admin.CreatedAt,
		},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"username": admin.Username}, update, options.Update().SetUpsert(true))
	if err != nil {
		// Two instances seeding at once: the unique index rejects the loser.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}
