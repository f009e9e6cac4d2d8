package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shashiranjanraj/saveur/app/models"
	"github.com/shashiranjanraj/saveur/app/policy"
	"github.com/shashiranjanraj/saveur/pkg/auth"
)

// UserStore is the slice of the user repository AuthService needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	Create(ctx context.Context, user *models.User) error
	All(ctx context.Context) ([]models.User, error)
	SetAdmin(ctx context.Context, id primitive.ObjectID, isAdmin bool) (models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteAllExcept(ctx context.Context, keep primitive.ObjectID) (int64, error)
	AddFavorite(ctx context.Context, id, recipeID primitive.ObjectID) error
	RemoveFavorite(ctx context.Context, id, recipeID primitive.ObjectID) error
}

// RecipeFinder resolves recipe ids for the favorites feature.
type RecipeFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Recipe, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Recipe, error)
}

// AuthService is the credential store and account roster manager.
type AuthService struct {
	users   UserStore
	recipes RecipeFinder
}

func NewAuthService(users UserStore, recipes RecipeFinder) *AuthService {
	return &AuthService{users: users, recipes: recipes}
}

// Register creates an account with a bcrypt-hashed secret.
// The raw password never reaches the store.
func (s *AuthService) Register(ctx context.Context, email, password string, isAdmin bool) (models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Email: email, Password: hash, IsAdmin: isAdmin}
	if err := s.users.Create(ctx, &user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and issues a bearer token.
// Unknown email and wrong password return the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, "", ErrInvalidCredentials
		}
		return models.User{}, "", fmt.Errorf("find user: %w", err)
	}

	if !auth.CheckPassword(user.Password, password) {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID.Hex(), user.IsAdmin)
	if err != nil {
		return models.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// CurrentUser resolves a token subject to a fresh user record, so role
// changes take effect without waiting for token expiry.
func (s *AuthService) CurrentUser(ctx context.Context, idHex string) (models.User, error) {
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return models.User{}, ErrNotFound
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// Users returns the full roster (password hashes stay unserialised).
func (s *AuthService) Users(ctx context.Context, actor models.User) ([]models.User, error) {
	if !policy.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	return s.users.All(ctx)
}

// Promote grants the admin flag to the target account.
func (s *AuthService) Promote(ctx context.Context, actor models.User, targetID primitive.ObjectID) (models.User, error) {
	target, err := s.findUser(ctx, targetID)
	if err != nil {
		return models.User{}, err
	}
	if !policy.CanPromote(actor, target) {
		return models.User{}, ErrForbidden
	}
	return s.setAdmin(ctx, targetID, true)
}

// Demote revokes the admin flag. Fails when the target is not an admin or
// when an admin aims at their own account.
func (s *AuthService) Demote(ctx context.Context, actor models.User, targetID primitive.ObjectID) (models.User, error) {
	target, err := s.findUser(ctx, targetID)
	if err != nil {
		return models.User{}, err
	}
	if !target.IsAdmin {
		return models.User{}, ErrTargetNotAdmin
	}
	if actor.ID == targetID {
		return models.User{}, ErrSelfDemotion
	}
	if !policy.CanDemote(actor, target) {
		return models.User{}, ErrForbidden
	}
	return s.setAdmin(ctx, targetID, false)
}

// DeleteUser removes one account. Admin targets are refused: demote first,
// then delete. The target's recipes are left in place (no cascade).
func (s *AuthService) DeleteUser(ctx context.Context, actor models.User, targetID primitive.ObjectID) error {
	target, err := s.findUser(ctx, targetID)
	if err != nil {
		return err
	}
	if !policy.CanDeleteUser(actor, target) {
		return ErrForbidden
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// DeleteAllUsers removes every account except the caller's own.
func (s *AuthService) DeleteAllUsers(ctx context.Context, actor models.User) (int64, error) {
	if !policy.CanManageUsers(actor) {
		return 0, ErrForbidden
	}
	count, err := s.users.DeleteAllExcept(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return count, nil
}

// ToggleFavorite adds the recipe to the actor's favorites, or removes it if
// already present. Returns true when the recipe ended up favorited.
func (s *AuthService) ToggleFavorite(ctx context.Context, actor models.User, recipeID primitive.ObjectID) (bool, error) {
	if _, err := s.recipes.FindByID(ctx, recipeID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("find recipe: %w", err)
	}

	if actor.HasFavorite(recipeID) {
		if err := s.users.RemoveFavorite(ctx, actor.ID, recipeID); err != nil {
			return false, fmt.Errorf("remove favorite: %w", err)
		}
		return false, nil
	}

	if err := s.users.AddFavorite(ctx, actor.ID, recipeID); err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

// Favorites returns the actor's favorite recipes. Favorites pointing at
// deleted recipes are skipped.
func (s *AuthService) Favorites(ctx context.Context, actor models.User) ([]models.Recipe, error) {
	if len(actor.Favorites) == 0 {
		return []models.Recipe{}, nil
	}
	recipes, err := s.recipes.FindByIDs(ctx, actor.Favorites)
	if err != nil {
		return nil, fmt.Errorf("find favorites: %w", err)
	}
	return recipes, nil
}

func (s *AuthService) findUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) setAdmin(ctx context.Context, id primitive.ObjectID, isAdmin bool) (models.User, error) {
	user, err := s.users.SetAdmin(ctx, id, isAdmin)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("set admin: %w", err)
	}
	return user, nil
}
