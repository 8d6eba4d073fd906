package admins

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tivrox-backend/internal/auth"
	"tivrox-backend/internal/metrics"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("admin not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service struct {
	repo    Repository
	manager *auth.Manager
	log     *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, manager *auth.Manager, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		manager: manager,
		log:     log,
		now:     time.Now,
	}
}

// Seed creates the admin account unless one with that username already exists.
// An existing password is never overwritten.
func (s *Service) Seed(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, errors.New("seed admin: empty username")
	}
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("seed admin: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	created, err := s.repo.InsertIfAbsent(ctx, Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return created, nil
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	admin, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.IncAdminLogin("rejected")
			return LoginResult{}, ErrInvalidCredentials
		}
		metrics.IncAdminLogin("error")
		return LoginResult{}, err
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		metrics.IncAdminLogin("rejected")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, _, err := s.manager.NewToken(admin.Username)
	if err != nil {
		metrics.IncAdminLogin("error")
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	metrics.IncAdminLogin("ok")
	return LoginResult{Token: token, Username: admin.Username}, nil
}
