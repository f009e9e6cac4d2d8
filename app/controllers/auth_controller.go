package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/pkg/bind"
	"github.com/shashiranjanraj/saveur/pkg/middleware"
	"github.com/shashiranjanraj/saveur/pkg/response"
)

// AuthController handles registration, login and the admin user roster.
type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	IsAdmin  bool   `json:"isAdmin"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Token   string `json:"token"`
	IsAdmin bool   `json:"isAdmin"`
}

// Register creates a new account.
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if errs, err := bind.JSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	user, err := c.auth.Register(r.Context(), req.Email, req.Password, req.IsAdmin)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Created(w, user)
}

// Login checks credentials and returns a bearer token.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if errs, err := bind.JSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	user, token, err := c.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, loginResponse{
		ID:      user.ID.Hex(),
		Email:   user.Email,
		Token:   token,
		IsAdmin: user.IsAdmin,
	})
}

// Index lists every account. Admin only.
func (c *AuthController) Index(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	users, err := c.auth.Users(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, users)
}

// Promote grants the admin flag to one account.
func (c *AuthController) Promote(w http.ResponseWriter, r *http.Request) {
	c.setAdmin(w, r, true)
}

// Demote revokes the admin flag from one account.
func (c *AuthController) Demote(w http.ResponseWriter, r *http.Request) {
	c.setAdmin(w, r, false)
}

func (c *AuthController) setAdmin(w http.ResponseWriter, r *http.Request, promote bool) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	id, ok := objectIDParam(r)
	if !ok {
		response.NotFound(w)
		return
	}

	var (
		user models.User
		err  error
	)
	if promote {
		user, err = c.auth.Promote(r.Context(), actor, id)
	} else {
		user, err = c.auth.Demote(r.Context(), actor, id)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, user)
}

// Destroy deletes one account. Admin targets are refused.
func (c *AuthController) Destroy(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	id, ok := objectIDParam(r)
	if !ok {
		response.NotFound(w)
		return
	}
	if err := c.auth.DeleteUser(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, map[string]string{"message": "User deleted"})
}

// DestroyAll deletes every account except the caller's own.
func (c *AuthController) DestroyAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	count, err := c.auth.DeleteAllUsers(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, map[string]int64{"deleted": count})
}

// ToggleFavorite flips a recipe in and out of the caller's favorites.
func (c *AuthController) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	id, ok := objectIDParam(r)
	if !ok {
		response.NotFound(w)
		return
	}
	favorited, err := c.auth.ToggleFavorite(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, map[string]bool{"favorited": favorited})
}

// Favorites lists the caller's favorite recipes.
func (c *AuthController) Favorites(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.actor(w, r)
	if !ok {
		return
	}
	recipes, err := c.auth.Favorites(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Success(w, recipes)
}

// actor loads the fresh user record for the authenticated token subject.
// A token whose account no longer exists is rejected.
func (c *AuthController) actor(w http.ResponseWriter, r *http.Request) (models.User, bool) {
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
