package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/pkg/database"
	"github.com/shashiranjanraj/saveur/pkg/metrics"
)

// UserRepository handles document store operations for User.
// "Not found" surfaces as mongo.ErrNoDocuments; duplicate email inserts
// surface as a driver duplicate-key error (unique index on email).
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository() *UserRepository {
	return &UserRepository{col: database.Collection("users")}
}

// FindByEmail looks up a user by their email address (case-sensitive).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var user models.User
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	return user, err
}

// FindByID looks up a user by primary key.
func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var user models.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	return user, err
}

// Create persists a new user record and fills in its id and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

// All returns every user, newest first.
func (r *UserRepository) All(ctx context.Context) ([]models.User, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetAdmin flips the admin flag and returns the updated record.
func (r *UserRepository) SetAdmin(ctx context.Context, id primitive.ObjectID, isAdmin bool) (models.User, error) {
	defer metrics.ObserveDBQuery("update", time.Now())

	var user models.User
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"isAdmin": isAdmin, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	return user, err
}

// Delete removes one user. Returns mongo.ErrNoDocuments when the id is unknown.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer metrics.ObserveDBQuery("delete", time.Now())

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteAllExcept removes every user except the given one and returns the
// number of deleted records.
func (r *UserRepository) DeleteAllExcept(ctx context.Context, keep primitive.ObjectID) (int64, error) {
	defer metrics.ObserveDBQuery("delete", time.Now())

	res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$ne": keep}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// AddFavorite adds recipeID to the user's favorites set.
func (r *UserRepository) AddFavorite(ctx context.Context, id, recipeID primitive.ObjectID) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"favorites": recipeID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	return err
}

// RemoveFavorite removes recipeID from the user's favorites set.
func (r *UserRepository) RemoveFavorite(ctx context.Context, id, recipeID primitive.ObjectID) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	_, err := r.col.UpdateByID(ctx, id, bson.M{
		"$pull": bson.M{"favorites": recipeID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	return err
}
