// Package policy holds the access-control decisions for Saveur.
//
// Every function here is pure: it takes the acting user and the target and
// answers allow/deny. No transport, no storage, no side effects — handlers
// and services call in with records they have already loaded.
package policy

import "github.com/shashiranjanraj/saveur/app/models"

// CanModifyRecipe reports whether actor may update or delete recipe.
// True for the recipe's author and for any admin.
func CanModifyRecipe(actor models.User, recipe models.Recipe) bool {
	return actor.IsAdmin || actor.ID == recipe.AuthorID
}

// CanManageUsers reports whether actor may list users, promote, demote,
// or delete accounts. Admin only.
func CanManageUsers(actor models.User) bool {
	return actor.IsAdmin
}

// CanManageRecipes reports whether actor may run bulk recipe operations
// (batch create, delete all). Admin only.
func CanManageRecipes(actor models.User) bool {
	return actor.IsAdmin
}

// CanPromote reports whether actor may grant target the admin flag.
func CanPromote(actor models.User, target models.User) bool {
	return actor.IsAdmin
}

// CanDemote reports whether actor may revoke target's admin flag.
// Self-demotion is refused; demoting the last remaining other admin is not
// guarded, so a roster can end up with a single admin but never zero by
// this path alone.
func CanDemote(actor models.User, target models.User) bool {
	if !actor.IsAdmin {
		return false
	}
	return actor.ID != target.ID
}

// CanDeleteUser reports whether actor may delete target through the
// single-user path. Admin accounts are refused regardless of caller:
// an admin must be demoted before it can be deleted.
func CanDeleteUser(actor models.User, target models.User) bool {
	if !actor.IsAdmin {
		return false
	}
	return !target.IsAdmin
}
