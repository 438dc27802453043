package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taskdeck/internal/domain"
	"taskdeck/internal/repo"
)

// UserCreateOptions are parameters for registering a team member.
type UserCreateOptions struct {
	Name    string
	Title   string
	Role    string
	Email   string
	IsAdmin bool
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.User{}, ValidationError{Field: "name", Reason: "required"}
	}
	u := domain.User{
		ID:        uuid.New().String(),
		Name:      opts.Name,
		Title:     opts.Title,
		Role:      opts.Role,
		Email:     opts.Email,
		IsAdmin:   opts.IsAdmin,
		IsActive:  true,
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

func (e Engine) SetUserActive(ctx context.Context, id string, active bool) error {
	return e.Repo.SetUserActive(ctx, id, active)
}

// CreateAPIKey mints a key for a user and returns the plaintext once.
// Only the hash is stored; there is no way to recover a lost key.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "tdk_" + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, userID)
}

func (e Engine) RevokeAPIKey(ctx context.Context, id string) error {
	return e.Repo.DeleteAPIKey(ctx, id)
}

// SeedAdmin creates a first administrator account when the user table
// is empty, so a fresh workspace has a principal to log in with.
func (e Engine) SeedAdmin(ctx context.Context, name string) (domain.User, bool, error) {
	n, err := e.Repo.CountUsers(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	if n > 0 {
		return domain.User{}, false, nil
	}
	u, err := e.CreateUser(ctx, UserCreateOptions{Name: name, Title: "Administrator", Role: "admin", IsAdmin: true})
	if err != nil {
		return domain.User{}, false, fmt.Errorf("seed admin: %w", err)
	}
	return u, true, nil
}
