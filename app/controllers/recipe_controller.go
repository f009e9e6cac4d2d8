package controllers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/pkg/middleware"
	"github.com/shashiranjanraj/saveur/pkg/response"
)

// maxUploadBytes caps the in-memory part of a multipart form. Larger file
// parts spill to temp files, so this is a buffer size, not a hard limit.
const maxUploadBytes = 32 << 20 // 32 MB

// RecipeController handles the recipe CRUD surface.
type RecipeController struct {
	recipes *services.RecipeService
	auth    *services.AuthService
}

func NewRecipeController(recipes *services.RecipeService, auth *services.AuthService) *RecipeController {
	return &RecipeController{recipes: recipes, auth: auth}
}

// Index lists every recipe, newest first. Public.
func (c *RecipeController) Index(w http.ResponseWriter, r *http.Request) {
	recipes, err := c.recipes.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, recipes)
}

// Show returns one recipe. Public.
func (c *RecipeController) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDParam(r)
	if !ok {
		response.NotFound(w)
		return
	}
	recipe, err := c.recipes.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, recipe)
}

// Store creates a recipe from a multipart form with optional photo and
// pdf file parts.
func (c *RecipeController) Store(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	form, photo, pdf, err := parseRecipeForm(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeUploads(photo, pdf)

	recipe, err := c.recipes.Create(r.Context(), actor, form, photo.upload(), pdf.upload())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Created(w, recipe)
}

// Update applies the present form fields. Only the author or an admin may
// edit a recipe.
func (c *RecipeController) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	id, ok := objectIDParam(r)
	if !ok {
		response.NotFound(w)
		return
	}

	form, photo, pdf, err := parseRecipeForm(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	defer closeUploads(photo, pdf)

	recipe, err := c.recipes.Update(r.Context(), actor, id, form, photo.upload(), pdf.upload())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, recipe)
}

// Destroy deletes one recipe and its attachments.
func (c *RecipeController) Destroy(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	id, ok := objectIDParam(r)
	if !ok {
		response.NotFound(w)
		return
	}
	if err := c.recipes.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, map[string]string{"message": "Recipe deleted"})
}

// DestroyAll wipes every recipe. Admin only.
func (c *RecipeController) DestroyAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	count, err := c.recipes.DeleteAll(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, map[string]int64{"deleted": count})
}

// StoreBatch creates several recipes in one request. The form carries a
// `recipes` JSON array plus photo_<i> / pdf_<i> file parts. Admin only.
func (c *RecipeController) StoreBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	payload := r.FormValue("recipes")
	if payload == "" {
		response.Error(w, http.StatusBadRequest, "recipes field is required")
		return
	}

	files := make(map[string]*services.FileUpload)
	var open []multipart.File
	defer func() {
		for _, f := range open {
			f.Close()
		}
	}()
	if r.MultipartForm != nil {
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "could not read uploaded file")
				return
			}
			open = append(open, f)
			files[field] = &services.FileUpload{Name: headers[0].Filename, Data: f}
		}
	}

	recipes, err := c.recipes.CreateBatch(r.Context(), actor, payload, files)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Created(w, recipes)
}

func (c *RecipeController) actor(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	idHex, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		response.Unauthorized(w)
		return models.User{}, false
	}
	actor, err := c.auth.CurrentUser(r.Context(), idHex)
	if err != nil {
		response.Unauthorized(w)
		return models.User{}, false
	}
	return actor, true
}

// formFile wraps an optional multipart file part.
type formFile struct {
	file   multipart.File
	header *multipart.FileHeader
}

func (f *formFile) upload() *services.FileUpload {
	if f == nil {
		return nil
	}
	return &services.FileUpload{Name: f.header.Filename, Data: f.file}
}

func closeUploads(files ...*formFile) {
	for _, f := range files {
		if f != nil {
			f.file.Close()
		}
	}
}

// parseRecipeForm reads the multipart recipe form. Absent fields come back
// as nil pointers so updates can distinguish "not sent" from "sent empty".
func parseRecipeForm(r *http.Request) (services.RecipeForm, *formFile, *formFile, error) {
	var form services.RecipeForm

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return form, nil, nil, err
	}

	strField := func(name string) *string {
		if vs, ok := r.MultipartForm.Value[name]; ok && len(vs) > 0 {
			return &vs[0]
		}
		return nil
	}
	form.Title = strField("title")
	form.Description = strField("description")
	form.Category = strField("category")
	form.Ingredients = strField("ingredients")
	form.Steps = strField("steps")

	if v := strField("prepTime"); v != nil && *v != "" {
		n, err := strconv.Atoi(*v)
		if err != nil {
			return form, nil, nil, errInvalidPrepTime
		}
		form.PrepTime = &n
	}

	photo, err := optionalFile(r, "photo")
	if err != nil {
		return form, nil, nil, err
	}
	pdf, err := optionalFile(r, "pdf")
	if err != nil {
		closeUploads(photo)
		return form, nil, nil, err
	}
	return form, photo, pdf, nil
}

func optionalFile(r *http.Request, field string) (*formFile, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &formFile{file: file, header: header}, nil
}
