package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/pkg/database"
	"github.com/shashiranjanraj/saveur/pkg/metrics"
)

// RecipeRepository handles document store operations for Recipe, including
// the read-time author join (author id → {id, email}).
type RecipeRepository struct {
	col   *mongo.Collection
	users *mongo.Collection
}

func NewRecipeRepository() *RecipeRepository {
	return &RecipeRepository{
		col:   database.Collection("recipes"),
		users: database.Collection("users"),
	}
}

// Insert persists a new recipe and fills in its id and timestamps.
func (r *RecipeRepository) Insert(ctx context.Context, recipe *models.Recipe) error {
	defer metrics.ObserveDBQuery("insert", time.Now())

	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	res, err := r.col.InsertOne(ctx, recipe)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		recipe.ID = id
	}
	return nil
}

// InsertMany persists a batch of recipes in one operation. The insert is
// ordered; callers validate every item up front so a mid-batch failure only
// happens on store-level faults.
func (r *RecipeRepository) InsertMany(ctx context.Context, recipes []models.Recipe) ([]models.Recipe, error) {
	defer metrics.ObserveDBQuery("insert", time.Now())

	now := time.Now().UTC()
	docs := make([]interface{}, len(recipes))
	for i := range recipes {
		recipes[i].CreatedAt = now
		recipes[i].UpdatedAt = now
		docs[i] = recipes[i]
	}

	res, err := r.col.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}
	for i, raw := range res.InsertedIDs {
		if id, ok := raw.(primitive.ObjectID); ok && i < len(recipes) {
			recipes[i].ID = id
		}
	}
	return recipes, nil
}

// FindByID returns one recipe with its author joined.
func (r *RecipeRepository) FindByID(ctx context.Context, id primitive.ObjectID) (models.Recipe, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	var recipe models.Recipe
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&recipe); err != nil {
		return models.Recipe{}, err
	}

	r.joinAuthors(ctx, []*models.Recipe{&recipe})
	return recipe, nil
}

// FindByIDs returns the recipes whose ids are in ids, authors joined.
// Unknown ids are silently skipped.
func (r *RecipeRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Recipe, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	if len(ids) == 0 {
		return nil, nil
	}

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recipes []models.Recipe
	if err := cur.All(ctx, &recipes); err != nil {
		return nil, err
	}

	r.joinAll(ctx, recipes)
	return recipes, nil
}

// All returns every recipe in store order, authors joined.
func (r *RecipeRepository) All(ctx context.Context) ([]models.Recipe, error) {
	defer metrics.ObserveDBQuery("find", time.Now())

	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recipes []models.Recipe
	if err := cur.All(ctx, &recipes); err != nil {
		return nil, err
	}

	r.joinAll(ctx, recipes)
	return recipes, nil
}

// Update replaces the stored document with recipe. Last write wins; there is
// no optimistic-concurrency check.
func (r *RecipeRepository) Update(ctx context.Context, recipe *models.Recipe) error {
	defer metrics.ObserveDBQuery("update", time.Now())

	recipe.UpdatedAt = time.Now().UTC()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": recipe.ID}, recipe)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes one recipe. Returns mongo.ErrNoDocuments for unknown ids.
func (r *RecipeRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
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

// DeleteAll clears the collection and returns the number of deleted records.
func (r *RecipeRepository) DeleteAll(ctx context.Context) (int64, error) {
	defer metrics.ObserveDBQuery("delete", time.Now())

	res, err := r.col.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ── Author join ──────────────────────────────────────────────────────────────

func (r *RecipeRepository) joinAll(ctx context.Context, recipes []models.Recipe) {
	ptrs := make([]*models.Recipe, len(recipes))
	for i := range recipes {
		ptrs[i] = &recipes[i]
	}
	r.joinAuthors(ctx, ptrs)
}

// joinAuthors resolves author ids to {id, email} in one users query.
// A missing author (account deleted after the recipe was created) leaves the
// join empty rather than failing the read.
func (r *RecipeRepository) joinAuthors(ctx context.Context, recipes []*models.Recipe) {
	seen := map[primitive.ObjectID]struct{}{}
	var ids []primitive.ObjectID
	for _, rec := range recipes {
		if rec.AuthorID.IsZero() {
			continue
		}
		if _, ok := seen[rec.AuthorID]; !ok {
			seen[rec.AuthorID] = struct{}{}
			ids = append(ids, rec.AuthorID)
		}
	}
	if len(ids) == 0 {
		return
	}

	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return
	}
	defer cur.Close(ctx)

	emails := map[primitive.ObjectID]string{}
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			continue
		}
		emails[u.ID] = u.Email
	}

	for _, rec := range recipes {
		if email, ok := emails[rec.AuthorID]; ok {
			rec.Author = &models.AuthorRef{ID: rec.AuthorID, Email: email}
		}
	}
}
