// Package auth holds the access-control predicates: is the caller an
// authenticated, active principal, and is that principal an admin.
// They are independent of how the credential arrived; the server layer
// hands in a resolved user id from whatever transport it accepted.
package auth

import (
	"context"
	"errors"
	"fmt"

	"taskdeck/internal/domain"
	"taskdeck/internal/repo"
)

// UnauthenticatedError indicates no usable principal. Disabled accounts
// map here too: a structurally valid credential for an inactive user is
// still not an authenticated caller.
type UnauthenticatedError struct {
	Reason string
}

func (e UnauthenticatedError) Error() string {
	if e.Reason == "" {
		return "authentication required"
	}
	return e.Reason
}

// ForbiddenError indicates an authenticated principal without admin rights.
type ForbiddenError struct {
	UserID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("administrator access required for %s", e.UserID)
}

// Service evaluates the two predicates against the user store.
type Service struct {
	Repo repo.Repo
}

// ResolvePrincipal maps a user id to an active principal or fails with
// UnauthenticatedError. Pure read; no retries, no side effects.
func (s Service) ResolvePrincipal(ctx context.Context, userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, UnauthenticatedError{}
	}
	u, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, UnauthenticatedError{Reason: "unknown principal"}
		}
		return domain.User{}, err
	}
	if !u.IsActive {
		return domain.User{}, UnauthenticatedError{Reason: "account disabled"}
	}
	return u, nil
}

// RequireAdmin gates mutating operations on the admin flag.
func RequireAdmin(u domain.User) error {
	if !u.IsAdmin {
		return ForbiddenError{UserID: u.ID}
	}
	return nil
}
