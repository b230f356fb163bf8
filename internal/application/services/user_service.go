package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
)

// UserAPI is the part of the backend client the user service uses.
type UserAPI interface {
	CreateUser(ctx context.Context, req quoting.CreateUserRequest) (*quoting.User, error)
	GetUser(ctx context.Context, id string) (*quoting.User, error)
	UpdateUser(ctx context.Context, id string, req quoting.CreateUserRequest) (*quoting.User, error)
	FindUserByEmail(ctx context.Context, email string) (*quoting.User, error)
}

// UserService manages the person behind a quotation.
type UserService struct {
	api UserAPI
}

// NewUserService creates the user service.
func NewUserService(api UserAPI) *UserService {
	return &UserService{api: api}
}

func (s *UserService) CreateUser(ctx context.Context, req quoting.CreateUserRequest) (*quoting.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	u, err := s.api.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*quoting.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id cannot be empty", ErrInvalidInput)
	}
	u, err := s.api.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return u, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, req quoting.CreateUserRequest) (*quoting.User, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id cannot be empty", ErrInvalidInput)
	}
	u, err := s.api.UpdateUser(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", id, err)
	}
	return u, nil
}

// FindByEmail returns the user registered with email. No match wraps
// backend.ErrNotFound.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*quoting.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}
	u, err := s.api.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// Ensure returns the user registered with req.Email, creating it first
// when there is none.
func (s *UserService) Ensure(ctx context.Context, req quoting.CreateUserRequest) (*quoting.User, error) {
	u, err := s.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, backend.ErrNotFound):
		return s.CreateUser(ctx, req)
	default:
		return nil, err
	}
}
