package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pbtracker/pbtracker-server/internal/auth"
	"github.com/pbtracker/pbtracker-server/internal/domain"
	domainerrors "github.com/pbtracker/pbtracker-server/internal/errors"
	"github.com/pbtracker/pbtracker-server/internal/id"
	"github.com/pbtracker/pbtracker-server/internal/normalize"
	"github.com/pbtracker/pbtracker-server/internal/store"
)

// AuthService registers runners, issues their bearer tokens and resolves a
// token back to the current user.
type AuthService struct {
	store        store.Store
	tokenService *auth.TokenService
	logger       *slog.Logger
	now          func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store store.Store, tokenService *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:        store,
		tokenService: tokenService,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateUser registers a runner. Usernames follow the same charset as game
// names and must be unique after folding.
func (s *AuthService) CreateUser(ctx context.Context, username string, isMod bool) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if normalize.Code(username) == "" || !normalize.ValidName(username) {
		return nil, domainerrors.Validationf("invalid username %q", username)
	}

	userID, err := id.NewUserID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate user id")
	}

	user := &domain.User{
		ID:        userID,
		Username:  username,
		IsMod:     isMod,
		CreatedAt: s.now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflictf("username %q is taken", username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "is_mod", isMod)
	return user, nil
}

// IssueToken returns a fresh access token for the named runner.
func (s *AuthService) IssueToken(ctx context.Context, username string) (string, *domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, domainerrors.NotFoundf("no runner named %q", username)
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}

	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return "", nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate token")
	}
	return token, user, nil
}

// Authenticate resolves a bearer token to its user. The user is re-read so
// that a removed account or a changed moderator flag takes effect at once.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("invalid or expired token")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
