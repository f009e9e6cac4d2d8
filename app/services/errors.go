package services

import "errors"

// Sentinel errors the controllers translate into HTTP status codes.
var (
	// ErrDuplicateEmail — registration hit the unique email index.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both unknown email and wrong password,
	// so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidPayload — malformed structured input (unparseable
	// ingredients/steps, bad batch JSON, missing required fields).
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotFound — unknown record id.
	ErrNotFound = errors.New("not found")

	// ErrForbidden — authenticated but not allowed by policy.
	ErrForbidden = errors.New("forbidden")

	// ErrTargetNotAdmin — demotion aimed at a non-admin account.
	ErrTargetNotAdmin = errors.New("target user is not an admin")

	// ErrSelfDemotion — an admin tried to demote their own account.
	ErrSelfDemotion = errors.New("cannot demote your own account")

	// ErrUnsupportedFile — upload extension outside the accept-list.
	ErrUnsupportedFile = errors.New("unsupported file type")
)
