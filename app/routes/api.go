// Package routes wires repositories, services and controllers onto the router.
package routes

import (
	"net/http"

	"github.com/shashiranjanraj/saveur/app/controllers"
	"github.com/shashiranjanraj/saveur/app/repositories"
	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/config"
	"github.com/shashiranjanraj/saveur/pkg/middleware"
	"github.com/shashiranjanraj/saveur/pkg/response"
	"github.com/shashiranjanraj/saveur/pkg/router"
	"github.com/shashiranjanraj/saveur/pkg/storage"
	"github.com/shashiranjanraj/saveur/pkg/workerpool"
)

// RegisterAPI builds the production dependency graph (Mongo-backed
// repositories, the configured storage disk) and mounts the API on r.
func RegisterAPI(r *router.Router, pool *workerpool.Pool) {
	users := repositories.NewUserRepository()
	recipes := repositories.NewRecipeRepository()

	attachmentSvc := services.NewAttachmentService(storage.Default(), pool, config.UploadDir())
	authSvc := services.NewAuthService(users, recipes)
	recipeSvc := services.NewRecipeService(recipes, attachmentSvc)

	Mount(r, authSvc, recipeSvc, attachmentSvc)
}

// Mount registers every API route against the given services.
func Mount(r *router.Router, authSvc *services.AuthService, recipeSvc *services.RecipeService, attachmentSvc *services.AttachmentService) {
	authCtl := controllers.NewAuthController(authSvc)
	recipeCtl := controllers.NewRecipeController(recipeSvc, authSvc)
	uploadCtl := controllers.NewUploadController(attachmentSvc)

	api := r.Group("/api")

	// Account endpoints. The static /all routes are registered before the
	// {id} routes, which chi also guarantees by matching static segments
	// ahead of parameters.
	auth := api.Group("/auth")
	auth.Post("/register", "auth.register", authCtl.Register)
	auth.Post("/login", "auth.login", authCtl.Login)

	member := auth.Group("", middleware.Auth)
	member.Get("/favorites", "auth.favorites", authCtl.Favorites)
	member.Post("/favorites/{id}", "auth.favorites.toggle", authCtl.ToggleFavorite)

	roster := auth.Group("", middleware.Auth, middleware.Admin)
	roster.Get("", "auth.index", authCtl.Index)
	roster.Delete("/all", "auth.destroy_all", authCtl.DestroyAll)
	roster.Patch("/{id}/promote", "auth.promote", authCtl.Promote)
	roster.Patch("/{id}/demote", "auth.demote", authCtl.Demote)
	roster.Delete("/{id}", "auth.destroy", authCtl.Destroy)

	// Recipe endpoints. Reads are public, writes need a token.
	rec := api.Group("/recipes")
	rec.Get("", "recipes.index", recipeCtl.Index)
	rec.Get("/{id}", "recipes.show", recipeCtl.Show)
	rec.Post("", "recipes.store", recipeCtl.Store, middleware.Auth)
	rec.Put("/{id}", "recipes.update", recipeCtl.Update, middleware.Auth)
	rec.Delete("/{id}", "recipes.destroy", recipeCtl.Destroy, middleware.Auth)
	rec.Delete("/all", "recipes.destroy_all", recipeCtl.DestroyAll, middleware.Auth, middleware.Admin)
	rec.Post("/batch", "recipes.batch", recipeCtl.StoreBatch, middleware.Auth, middleware.Admin)

	// Stored attachments.
	r.Get("/uploads/{filename}", "uploads.show", uploadCtl.Show)

	r.Get("/healthz", "healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})
}
