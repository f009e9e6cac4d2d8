// Package controllers holds the HTTP handlers for the Saveur API.
package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/pkg/logger"
	"github.com/shashiranjanraj/saveur/pkg/response"
)

var errInvalidPrepTime = errors.New("prepTime must be an integer number of minutes")

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognised becomes a logged 500 with a generic body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateEmail):
		response.Error(w, http.StatusBadRequest, "Email already in use")
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(w, http.StatusBadRequest, "Invalid email or password")
	case errors.Is(err, services.ErrInvalidPayload):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnsupportedFile):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTargetNotAdmin):
		response.Error(w, http.StatusBadRequest, "User is not an admin")
	case errors.Is(err, services.ErrSelfDemotion):
		response.Error(w, http.StatusBadRequest, "You cannot demote yourself")
	case errors.Is(err, services.ErrForbidden):
		response.Forbidden(w)
	case errors.Is(err, services.ErrNotFound):
		response.NotFound(w)
	default:
		logger.WithCtx(r.Context()).Error("unhandled service error", "error", err)
		response.ServerError(w)
	}
}

// objectIDParam parses the {id} route param. A malformed hex id behaves
// like an unknown record.
func objectIDParam(r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
