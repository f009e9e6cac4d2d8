package services_test

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/app/services"
)

// duplicateKeyErr mimics the driver error for a unique index violation.
func duplicateKeyErr() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

// fakeUserStore is an in-memory UserStore.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (f *fakeUserStore) add(u models.User) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (f *fakeUserStore) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	return u, nil
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return duplicateKeyErr()
		}
	}
	user.ID = primitive.NewObjectID()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserStore) All(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeUserStore) SetAdmin(_ context.Context, id primitive.ObjectID, isAdmin bool) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	u.IsAdmin = isAdmin
	f.users[id] = u
	return u, nil
}

func (f *fakeUserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) DeleteAllExcept(_ context.Context, keep primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id := range f.users {
		if id != keep {
			delete(f.users, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeUserStore) AddFavorite(_ context.Context, id, recipeID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	if !u.HasFavorite(recipeID) {
		u.Favorites = append(u.Favorites, recipeID)
	}
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) RemoveFavorite(_ context.Context, id, recipeID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	kept := u.Favorites[:0]
	for _, fav := range u.Favorites {
		if fav != recipeID {
			kept = append(kept, fav)
		}
	}
	u.Favorites = kept
	f.users[id] = u
	return nil
}

// fakeRecipeStore is an in-memory RecipeStore and RecipeFinder.
type fakeRecipeStore struct {
	mu      sync.Mutex
	recipes map[primitive.ObjectID]models.Recipe
}

func newFakeRecipeStore() *fakeRecipeStore {
	return &fakeRecipeStore{recipes: make(map[primitive.ObjectID]models.Recipe)}
}

func (f *fakeRecipeStore) add(r models.Recipe) models.Recipe {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	f.recipes[r.ID] = r
	return r
}

func (f *fakeRecipeStore) Insert(_ context.Context, recipe *models.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	recipe.ID = primitive.NewObjectID()
	f.recipes[recipe.ID] = *recipe
	return nil
}

func (f *fakeRecipeStore) InsertMany(_ context.Context, recipes []models.Recipe) ([]models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Recipe, len(recipes))
	for i, r := range recipes {
		r.ID = primitive.NewObjectID()
		f.recipes[r.ID] = r
		out[i] = r
	}
	return out, nil
}

func (f *fakeRecipeStore) FindByID(_ context.Context, id primitive.ObjectID) (models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipes[id]
	if !ok {
		return models.Recipe{}, mongo.ErrNoDocuments
	}
	return r, nil
}

func (f *fakeRecipeStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Recipe, 0, len(ids))
	for _, id := range ids {
		if r, ok := f.recipes[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecipeStore) All(_ context.Context) ([]models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Recipe, 0, len(f.recipes))
	for _, r := range f.recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeRecipeStore) Update(_ context.Context, recipe *models.Recipe) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recipes[recipe.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	f.recipes[recipe.ID] = *recipe
	return nil
}

func (f *fakeRecipeStore) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.recipes[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(f.recipes, id)
	return nil
}

func (f *fakeRecipeStore) DeleteAll(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := int64(len(f.recipes))
	f.recipes = make(map[primitive.ObjectID]models.Recipe)
	return count, nil
}

// fakeAttachmentStore records stored and removed attachment names.
type fakeAttachmentStore struct {
	mu      sync.Mutex
	counter int
	stored  []string
	removed []string
	failOn  string // kind whose Store call should fail
}

func (f *fakeAttachmentStore) Store(kind, declaredName string, _ io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == f.failOn {
		return "", services.ErrUnsupportedFile
	}
	f.counter++
	name := fmt.Sprintf("%s-%d%s", kind, f.counter, path.Ext(declaredName))
	f.stored = append(f.stored, name)
	return name, nil
}

func (f *fakeAttachmentStore) Remove(storedName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, storedName)
}

func (f *fakeAttachmentStore) URL(storedName string) string {
	return "/uploads/" + storedName
}

func (f *fakeAttachmentStore) removedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}
