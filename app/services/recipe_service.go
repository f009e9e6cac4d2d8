package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/app/policy"
	"github.com/shashiranjanraj/saveur/pkg/cache"
	"github.com/shashiranjanraj/saveur/pkg/metrics"
)

const (
	listCacheKey = "recipes:list"
	listCacheTTL = 30 * time.Second
)

// RecipeStore is the slice of the recipe repository RecipeService needs.
type RecipeStore interface {
	Insert(ctx context.Context, recipe *models.Recipe) error
	InsertMany(ctx context.Context, recipes []models.Recipe) ([]models.Recipe, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Recipe, error)
	All(ctx context.Context) ([]models.Recipe, error)
	Update(ctx context.Context, recipe *models.Recipe) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// AttachmentStore stores and removes recipe attachments.
type AttachmentStore interface {
	Store(kind, declaredName string, r io.Reader) (string, error)
	Remove(storedName string)
	URL(storedName string) string
}

// FileUpload carries one multipart file into the service layer.
type FileUpload struct {
	Name string
	Data io.Reader
}

// RecipeForm holds the writable recipe fields as they arrive on the wire.
// Ingredients and Steps are JSON-encoded strings, matching the multipart
// convention used by the web client. Nil pointers mean "field absent".
type RecipeForm struct {
	Title       *string
	Description *string
	Category    *string
	PrepTime    *int
	Ingredients *string
	Steps       *string
}

// RecipeService owns the recipe lifecycle, including attachment handling
// and list caching.
type RecipeService struct {
	recipes     RecipeStore
	attachments AttachmentStore
}

func NewRecipeService(recipes RecipeStore, attachments AttachmentStore) *RecipeService {
	return &RecipeService{recipes: recipes, attachments: attachments}
}

// Create validates the form, stores the attachments and inserts the recipe.
// Payload parsing happens before any file is written so a malformed request
// leaves no orphan uploads behind.
func (s *RecipeService) Create(ctx context.Context, actor models.User, form RecipeForm, photo, pdf *FileUpload) (models.Recipe, error) {
	recipe := models.Recipe{AuthorID: actor.ID}
	if err := applyForm(&recipe, form); err != nil {
		return models.Recipe{}, err
	}
	if strings.TrimSpace(recipe.Title) == "" {
		return models.Recipe{}, fmt.Errorf("%w: title is required", ErrInvalidPayload)
	}
	// Unlike update, creation demands the structured fields up front.
	if form.Ingredients == nil || *form.Ingredients == "" {
		return models.Recipe{}, fmt.Errorf("%w: ingredients are required", ErrInvalidPayload)
	}
	if form.Steps == nil || *form.Steps == "" {
		return models.Recipe{}, fmt.Errorf("%w: steps are required", ErrInvalidPayload)
	}

	if err := s.attach(&recipe, photo, pdf); err != nil {
		return models.Recipe{}, err
	}

	if err := s.recipes.Insert(ctx, &recipe); err != nil {
		s.removeAttachments(recipe.PhotoURL, recipe.PDFURL)
		return models.Recipe{}, fmt.Errorf("insert recipe: %w", err)
	}

	metrics.RecipesCreated.WithLabelValues("single").Inc()
	s.invalidateList()
	recipe.Author = &models.AuthorRef{ID: actor.ID, Email: actor.Email}
	return recipe, nil
}

// Get returns one recipe with its author joined in.
func (s *RecipeService) Get(ctx context.Context, id primitive.ObjectID) (models.Recipe, error) {
	recipe, err := s.recipes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Recipe{}, ErrNotFound
		}
		return models.Recipe{}, fmt.Errorf("find recipe: %w", err)
	}
	return recipe, nil
}

// List returns every recipe, newest first, served from cache when warm.
func (s *RecipeService) List(ctx context.Context) ([]models.Recipe, error) {
	var cached []models.Recipe
	if cache.Get(listCacheKey, &cached) {
		metrics.CacheHits.WithLabelValues(listCacheKey).Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues(listCacheKey).Inc()

	recipes, err := s.recipes.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	cache.Set(listCacheKey, recipes, listCacheTTL) //nolint:errcheck
	return recipes, nil
}

// Update applies the present form fields and swaps any replaced attachment.
// Empty form fields are treated as absent, so clients can resubmit a partial
// form without clearing data.
func (s *RecipeService) Update(ctx context.Context, actor models.User, id primitive.ObjectID, form RecipeForm, photo, pdf *FileUpload) (models.Recipe, error) {
	recipe, err := s.Get(ctx, id)
	if err != nil {
		return models.Recipe{}, err
	}
	if !policy.CanModifyRecipe(actor, recipe) {
		return models.Recipe{}, ErrForbidden
	}

	if err := applyForm(&recipe, form); err != nil {
		return models.Recipe{}, err
	}

	oldPhoto, oldPDF := recipe.PhotoURL, recipe.PDFURL
	if photo != nil {
		name, err := s.attachments.Store(KindPhoto, photo.Name, photo.Data)
		if err != nil {
			return models.Recipe{}, err
		}
		recipe.PhotoURL = name
	}
	if pdf != nil {
		name, err := s.attachments.Store(KindPDF, pdf.Name, pdf.Data)
		if err != nil {
			if photo != nil {
				s.attachments.Remove(recipe.PhotoURL)
			}
			return models.Recipe{}, err
		}
		recipe.PDFURL = name
	}

	if err := s.recipes.Update(ctx, &recipe); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Recipe{}, ErrNotFound
		}
		return models.Recipe{}, fmt.Errorf("update recipe: %w", err)
	}

	// Old files go only after the record points at the new ones.
	if photo != nil && oldPhoto != "" {
		s.attachments.Remove(oldPhoto)
	}
	if pdf != nil && oldPDF != "" {
		s.attachments.Remove(oldPDF)
	}

	s.invalidateList()
	return recipe, nil
}

// Delete removes the recipe record and its attachments.
func (s *RecipeService) Delete(ctx context.Context, actor models.User, id primitive.ObjectID) error {
	recipe, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanModifyRecipe(actor, recipe) {
		return ErrForbidden
	}

	if err := s.recipes.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("delete recipe: %w", err)
	}

	s.removeAttachments(recipe.PhotoURL, recipe.PDFURL)
	s.invalidateList()
	return nil
}

// DeleteAll wipes every recipe and attachment. Admin only.
func (s *RecipeService) DeleteAll(ctx context.Context, actor models.User) (int64, error) {
	if !policy.CanManageRecipes(actor) {
		return 0, ErrForbidden
	}

	recipes, err := s.recipes.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list recipes: %w", err)
	}

	count, err := s.recipes.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete recipes: %w", err)
	}

	for _, r := range recipes {
		s.removeAttachments(r.PhotoURL, r.PDFURL)
	}
	s.invalidateList()
	return count, nil
}

// batchRecipe is the per-item shape of the batch payload. There is no author
// field: every created recipe belongs to the caller.
type batchRecipe struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Ingredients []models.Ingredient `json:"ingredients"`
	Steps       []string            `json:"steps"`
	PrepTime    int                 `json:"prepTime"`
	Category    string              `json:"category"`
}

// CreateBatch inserts several recipes at once from a JSON array, with files
// keyed photo_<i> and pdf_<i>. The whole payload is validated before any
// file or record is written: a bad item fails the batch with zero inserts.
func (s *RecipeService) CreateBatch(ctx context.Context, actor models.User, payload string, files map[string]*FileUpload) ([]models.Recipe, error) {
	if !policy.CanManageRecipes(actor) {
		return nil, ErrForbidden
	}

	var items []batchRecipe
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("%w: recipes must be a JSON array", ErrInvalidPayload)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: recipes array is empty", ErrInvalidPayload)
	}
	for i, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			return nil, fmt.Errorf("%w: recipe %d is missing a title", ErrInvalidPayload, i)
		}
		if item.PrepTime < 0 {
			return nil, fmt.Errorf("%w: recipe %d has a negative prep time", ErrInvalidPayload, i)
		}
	}

	recipes := make([]models.Recipe, 0, len(items))
	var stored []string
	rollback := func() {
		for _, name := range stored {
			s.attachments.Remove(name)
		}
	}

	for i, item := range items {
		recipe := models.Recipe{
			Title:       item.Title,
			Description: item.Description,
			Ingredients: item.Ingredients,
			Steps:       item.Steps,
			PrepTime:    item.PrepTime,
			Category:    item.Category,
			AuthorID:    actor.ID,
		}
		if f := files[fmt.Sprintf("photo_%d", i)]; f != nil {
			name, err := s.attachments.Store(KindPhoto, f.Name, f.Data)
			if err != nil {
				rollback()
				return nil, err
			}
			stored = append(stored, name)
			recipe.PhotoURL = name
		}
		if f := files[fmt.Sprintf("pdf_%d", i)]; f != nil {
			name, err := s.attachments.Store(KindPDF, f.Name, f.Data)
			if err != nil {
				rollback()
				return nil, err
			}
			stored = append(stored, name)
			recipe.PDFURL = name
		}
		recipes = append(recipes, recipe)
	}

	inserted, err := s.recipes.InsertMany(ctx, recipes)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("insert recipes: %w", err)
	}

	metrics.RecipesCreated.WithLabelValues("batch").Add(float64(len(inserted)))
	s.invalidateList()
	for i := range inserted {
		inserted[i].Author = &models.AuthorRef{ID: actor.ID, Email: actor.Email}
	}
	return inserted, nil
}

// AttachmentURL exposes the public URL for a stored attachment name.
func (s *RecipeService) AttachmentURL(name string) string {
	if name == "" {
		return ""
	}
	return s.attachments.URL(name)
}

func (s *RecipeService) attach(recipe *models.Recipe, photo, pdf *FileUpload) error {
	if photo != nil {
		name, err := s.attachments.Store(KindPhoto, photo.Name, photo.Data)
		if err != nil {
			return err
		}
		recipe.PhotoURL = name
	}
	if pdf != nil {
		name, err := s.attachments.Store(KindPDF, pdf.Name, pdf.Data)
		if err != nil {
			s.attachments.Remove(recipe.PhotoURL)
			return err
		}
		recipe.PDFURL = name
	}
	return nil
}

func (s *RecipeService) removeAttachments(names ...string) {
	for _, name := range names {
		if name != "" {
			s.attachments.Remove(name)
		}
	}
}

func (s *RecipeService) invalidateList() {
	cache.Del(listCacheKey) //nolint:errcheck
}

// applyForm copies the present, non-empty fields of the form onto the
// recipe. Ingredients and steps arrive JSON-encoded and are parsed here.
func applyForm(recipe *models.Recipe, form RecipeForm) error {
	if form.Title != nil && *form.Title != "" {
		recipe.Title = *form.Title
	}
	if form.Description != nil && *form.Description != "" {
		recipe.Description = *form.Description
	}
	if form.Category != nil && *form.Category != "" {
		recipe.Category = *form.Category
	}
	if form.PrepTime != nil {
		if *form.PrepTime < 0 {
			return fmt.Errorf("%w: prep time cannot be negative", ErrInvalidPayload)
		}
		recipe.PrepTime = *form.PrepTime
	}
	if form.Ingredients != nil && *form.Ingredients != "" {
		var ingredients []models.Ingredient
		if err := json.Unmarshal([]byte(*form.Ingredients), &ingredients); err != nil {
			return fmt.Errorf("%w: ingredients must be a JSON array", ErrInvalidPayload)
		}
		recipe.Ingredients = ingredients
	}
	if form.Steps != nil && *form.Steps != "" {
		var steps []string
		if err := json.Unmarshal([]byte(*form.Steps), &steps); err != nil {
			return fmt.Errorf("%w: steps must be a JSON array of strings", ErrInvalidPayload)
		}
		recipe.Steps = steps
	}
	return nil
}
