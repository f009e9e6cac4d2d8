package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/app/routes"
	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/pkg/router"
	"github.com/shashiranjanraj/saveur/pkg/storage"
	"github.com/shashiranjanraj/saveur/pkg/workerpool"
)

// ─── test server ──────────────────────────────────────────────────────────────

type testAPI struct {
	srv     *httptest.Server
	users   *memUsers
	recipes *memRecipes
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	users := newMemUsers()
	recipes := newMemRecipes(users)

	pool := workerpool.New(2)
	t.Cleanup(pool.Shutdown)

	disk := storage.NewLocal(t.TempDir(), "/uploads")
	attachmentSvc := services.NewAttachmentService(disk, pool, "uploads")
	authSvc := services.NewAuthService(users, recipes)
	recipeSvc := services.NewRecipeService(recipes, attachmentSvc)

	r := router.New()
	routes.Mount(r, authSvc, recipeSvc, attachmentSvc)

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, users: users, recipes: recipes}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var envelope map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", raw)
	}
	return resp, envelope
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return a.do(t, method, path, token, bytes.NewReader(body), "application/json")
}

func (a *testAPI) register(t *testing.T, email, password string, isAdmin bool) {
	t.Helper()
	resp, _ := a.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email": email, "password": password, "isAdmin": isAdmin,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, envelope := a.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope["data"].(map[string]interface{})
	return data["token"].(string)
}

type filePart struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// ─── scenarios ────────────────────────────────────────────────────────────────

func TestRegisterLoginCreateAndReadRecipe(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "chef@example.com", "secret123", false)
	token := api.login(t, "chef@example.com", "secret123")

	body, ct := multipartBody(t, map[string]string{
		"title":       "Omelette",
		"ingredients": `[{"name":"egg","quantity":"2"}]`,
		"steps":       `["beat","cook"]`,
		"prepTime":    "10",
	}, filePart{"photo", "omelette.jpg", "jpg-bytes"})

	resp, envelope := api.do(t, http.MethodPost, "/api/recipes", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", envelope)

	created := envelope["data"].(map[string]interface{})
	recipeID := created["id"].(string)
	require.NotEmpty(t, recipeID)

	resp, envelope = api.do(t, http.MethodGet, "/api/recipes/"+recipeID, "", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := envelope["data"].(map[string]interface{})
	assert.Equal(t, "Omelette", got["title"])
	ingredients := got["ingredients"].([]interface{})
	require.Len(t, ingredients, 1)
	assert.Equal(t, "egg", ingredients[0].(map[string]interface{})["name"])

	author := got["author"].(map[string]interface{})
	assert.Equal(t, "chef@example.com", author["email"])

	// The stored photo must be downloadable.
	photoURL := got["photoUrl"].(string)
	require.NotEmpty(t, photoURL)
	resp, _ = api.do(t, http.MethodGet, "/uploads/"+photoURL, "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "chef@example.com", "secret123", false)

	resp, _ := api.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "chef@example.com", "password": "other-pass",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	resp, envelope := api.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := envelope["errors"].(map[string]interface{})
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	// A missing required field is a 400 too, not a separate status class.
	resp, envelope = api.doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "chef@example.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errs = envelope["errors"].(map[string]interface{})
	assert.Contains(t, errs, "password")
}

func TestLoginFailuresShareOneMessage(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "chef@example.com", "secret123", false)

	resp1, env1 := api.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})
	resp2, env2 := api.doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "chef@example.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusBadRequest, resp1.StatusCode)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
	assert.Equal(t, env1["message"], env2["message"])
}

func TestWriteEndpointsRequireToken(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodPost, "/api/recipes", "", strings.NewReader(""), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, "/api/recipes/"+primitive.NewObjectID().Hex(), "garbage-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNonOwnerCannotDeleteRecipe(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "owner@example.com", "secret123", false)
	api.register(t, "other@example.com", "secret123", false)
	ownerToken := api.login(t, "owner@example.com", "secret123")
	otherToken := api.login(t, "other@example.com", "secret123")

	body, ct := multipartBody(t, map[string]string{
		"title":       "Mine",
		"ingredients": `[{"name":"flour","quantity":"200g"}]`,
		"steps":       `["mix","bake"]`,
	})
	resp, envelope := api.do(t, http.MethodPost, "/api/recipes", ownerToken, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	recipeID := envelope["data"].(map[string]interface{})["id"].(string)

	resp, _ = api.do(t, http.MethodDelete, "/api/recipes/"+recipeID, otherToken, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Record must still be readable.
	resp, _ = api.do(t, http.MethodGet, "/api/recipes/"+recipeID, "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminEndpointsRejectNonAdmin(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "plain@example.com", "secret123", false)
	token := api.login(t, "plain@example.com", "secret123")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth"},
		{http.MethodDelete, "/api/auth/all"},
		{http.MethodDelete, "/api/recipes/all"},
		{http.MethodPost, "/api/recipes/batch"},
	} {
		resp, _ := api.do(t, tc.method, tc.path, token, nil, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s", tc.method, tc.path)
	}
}

func TestAdminRosterExcludesPasswords(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	api.register(t, "plain@example.com", "secret123", false)
	token := api.login(t, "admin@example.com", "secret123")

	resp, envelope := api.do(t, http.MethodGet, "/api/auth", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	roster := envelope["data"].([]interface{})
	require.Len(t, roster, 2)
	for _, entry := range roster {
		assert.NotContains(t, entry.(map[string]interface{}), "password")
	}
}

func TestAdminSelfDemotionRefused(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	token := api.login(t, "admin@example.com", "secret123")

	admin, err := api.users.FindByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)

	resp, _ := api.do(t, http.MethodPatch, "/api/auth/"+admin.ID.Hex()+"/demote", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDemoteNonAdminRefused(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	api.register(t, "plain@example.com", "secret123", false)
	token := api.login(t, "admin@example.com", "secret123")

	plain, err := api.users.FindByEmail(context.Background(), "plain@example.com")
	require.NoError(t, err)

	resp, _ := api.do(t, http.MethodPatch, "/api/auth/"+plain.ID.Hex()+"/demote", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAdminAccountRefused(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	api.register(t, "boss@example.com", "secret123", true)
	token := api.login(t, "admin@example.com", "secret123")

	boss, err := api.users.FindByEmail(context.Background(), "boss@example.com")
	require.NoError(t, err)

	resp, _ := api.do(t, http.MethodDelete, "/api/auth/"+boss.ID.Hex(), token, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPromoteThenStaleTokenDenied(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	api.register(t, "user@example.com", "secret123", false)
	adminToken := api.login(t, "admin@example.com", "secret123")

	user, err := api.users.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)

	resp, _ := api.do(t, http.MethodPatch, "/api/auth/"+user.ID.Hex()+"/promote", adminToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A token minted before the promotion still carries is_admin=false and
	// must not pass the admin gate.
	oldToken := api.login(t, "user@example.com", "secret123")
	_ = oldToken // freshly logged in after promotion — this one is admin

	// Demote again, then reuse the admin-era token: the fresh policy check
	// must reject it even though the token claims admin.
	resp, _ = api.do(t, http.MethodPatch, "/api/auth/"+user.ID.Hex()+"/demote", adminToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/auth", oldToken, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBatchCreate(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	token := api.login(t, "admin@example.com", "secret123")

	payload := `[{"title":"Un","prepTime":5},{"title":"Deux"}]`
	body, ct := multipartBody(t, map[string]string{"recipes": payload},
		filePart{"photo_0", "un.jpg", "jpg-bytes"})

	resp, envelope := api.do(t, http.MethodPost, "/api/recipes/batch", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", envelope)

	created := envelope["data"].([]interface{})
	assert.Len(t, created, 2)
}

func TestBatchCreateBadPayloadInsertsNothing(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	token := api.login(t, "admin@example.com", "secret123")

	body, ct := multipartBody(t, map[string]string{"recipes": `[{"title":"Ok"},{"notitle":true}]`})
	resp, _ := api.do(t, http.MethodPost, "/api/recipes/batch", token, body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	all, err := api.recipes.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteAllUsersKeepsCaller(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "admin@example.com", "secret123", true)
	api.register(t, "a@example.com", "secret123", false)
	api.register(t, "b@example.com", "secret123", false)
	token := api.login(t, "admin@example.com", "secret123")

	resp, envelope := api.do(t, http.MethodDelete, "/api/auth/all", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, envelope["data"].(map[string]interface{})["deleted"])

	// The caller's token must still work.
	resp, _ = api.do(t, http.MethodGet, "/api/auth", token, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFavorites(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "chef@example.com", "secret123", false)
	token := api.login(t, "chef@example.com", "secret123")

	body, ct := multipartBody(t, map[string]string{
		"title":       "Quiche",
		"ingredients": `[{"name":"egg","quantity":"3"}]`,
		"steps":       `["whisk","bake"]`,
	})
	resp, envelope := api.do(t, http.MethodPost, "/api/recipes", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	recipeID := envelope["data"].(map[string]interface{})["id"].(string)

	resp, envelope = api.do(t, http.MethodPost, "/api/auth/favorites/"+recipeID, token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, envelope["data"].(map[string]interface{})["favorited"])

	resp, envelope = api.do(t, http.MethodGet, "/api/auth/favorites", token, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	favorites := envelope["data"].([]interface{})
	require.Len(t, favorites, 1)
	assert.Equal(t, "Quiche", favorites[0].(map[string]interface{})["title"])
}

func TestUnknownRecipeIDBehavesLikeMissing(t *testing.T) {
	api := newTestAPI(t)

	resp, _ := api.do(t, http.MethodGet, "/api/recipes/not-a-hex-id", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/recipes/"+primitive.NewObjectID().Hex(), "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)

	resp, envelope := api.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", envelope["data"].(map[string]interface{})["status"])
}

// ─── in-memory stores ─────────────────────────────────────────────────────────

type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[primitive.ObjectID]models.User)}
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, mongo.ErrNoDocuments
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	return u, nil
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
		}
	}
	user.ID = primitive.NewObjectID()
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) All(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) SetAdmin(_ context.Context, id primitive.ObjectID, isAdmin bool) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, mongo.ErrNoDocuments
	}
	u.IsAdmin = isAdmin
	m.users[id] = u
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) DeleteAllExcept(_ context.Context, keep primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id := range m.users {
		if id != keep {
			delete(m.users, id)
			count++
		}
	}
	return count, nil
}

func (m *memUsers) AddFavorite(_ context.Context, id, recipeID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	if !u.HasFavorite(recipeID) {
		u.Favorites = append(u.Favorites, recipeID)
	}
	m.users[id] = u
	return nil
}

func (m *memUsers) RemoveFavorite(_ context.Context, id, recipeID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	kept := u.Favorites[:0]
	for _, f := range u.Favorites {
		if f != recipeID {
			kept = append(kept, f)
		}
	}
	u.Favorites = kept
	m.users[id] = u
	return nil
}

// memRecipes mirrors the production repository, author join included.
type memRecipes struct {
	mu      sync.Mutex
	recipes map[primitive.ObjectID]models.Recipe
	users   *memUsers
}

func newMemRecipes(users *memUsers) *memRecipes {
	return &memRecipes{recipes: make(map[primitive.ObjectID]models.Recipe), users: users}
}

func (m *memRecipes) joined(r models.Recipe) models.Recipe {
	if m.users != nil {
		if author, err := m.users.FindByID(context.Background(), r.AuthorID); err == nil {
			r.Author = &models.AuthorRef{ID: author.ID, Email: author.Email}
		}
	}
	return r
}

func (m *memRecipes) Insert(_ context.Context, recipe *models.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	recipe.ID = primitive.NewObjectID()
	m.recipes[recipe.ID] = *recipe
	return nil
}

func (m *memRecipes) InsertMany(_ context.Context, recipes []models.Recipe) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Recipe, len(recipes))
	for i, r := range recipes {
		r.ID = primitive.NewObjectID()
		m.recipes[r.ID] = r
		out[i] = r
	}
	return out, nil
}

func (m *memRecipes) FindByID(_ context.Context, id primitive.ObjectID) (models.Recipe, error) {
	m.mu.Lock()
	r, ok := m.recipes[id]
	m.mu.Unlock()
	if !ok {
		return models.Recipe{}, mongo.ErrNoDocuments
	}
	return m.joined(r), nil
}

func (m *memRecipes) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Recipe, error) {
	m.mu.Lock()
	out := make([]models.Recipe, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.recipes[id]; ok {
			out = append(out, r)
		}
	}
	m.mu.Unlock()
	for i := range out {
		out[i] = m.joined(out[i])
	}
	return out, nil
}

func (m *memRecipes) All(_ context.Context) ([]models.Recipe, error) {
	m.mu.Lock()
	out := make([]models.Recipe, 0, len(m.recipes))
	for _, r := range m.recipes {
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	for i := range out {
		out[i] = m.joined(out[i])
	}
	return out, nil
}

func (m *memRecipes) Update(_ context.Context, recipe *models.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipes[recipe.ID]; !ok {
		return mongo.ErrNoDocuments
	}
	m.recipes[recipe.ID] = *recipe
	return nil
}

func (m *memRecipes) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipes[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.recipes, id)
	return nil
}

func (m *memRecipes) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(len(m.recipes))
	m.recipes = make(map[primitive.ObjectID]models.Recipe)
	return count, nil
}
