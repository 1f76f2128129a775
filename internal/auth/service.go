package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ayush/library-lending/backend/internal/apperr"
	"github.com/ayush/library-lending/backend/internal/models"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	EnsureAdmin(ctx context.Context, email, name, hashedPassword string) (*models.User, error)
}

// RefreshStore tracks live refresh tokens by jti.
type RefreshStore interface {
	Register(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	Consume(ctx context.Context, jti string) (int64, error)
	Revoke(ctx context.Context, jti string) error
}

// Service implements registration, login and token refresh.
type Service struct {
	users   UserStore
	tokens  *TokenIssuer
	refresh RefreshStore
}

func NewService(users UserStore, tokens *TokenIssuer, refresh RefreshStore) *Service {
	return &Service{users: users, tokens: tokens, refresh: refresh}
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, TokenPair, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRegistration(req); err != nil {
		return nil, TokenPair{}, err
	}

	hashed, err := HashPassword(req.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user, err := s.users.CreateUser(ctx, &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashed,
		Address:  strings.TrimSpace(req.Address),
		Phone:    strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return nil, TokenPair{}, err
	}
	user.Password = ""

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, TokenPair{}, apperr.Authentication("Invalid email or password")
	}
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !CheckPassword(req.Password, user.Password) {
		return nil, TokenPair{}, apperr.Authentication("Invalid email or password")
	}
	user.Password = ""

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token
// is consumed, so replaying it fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, apperr.Authentication("No refresh token found")
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, apperr.Authentication("Invalid refresh token")
	}
	owner, err := s.refresh.Consume(ctx, claims.ID)
	if errors.Is(err, ErrRefreshRevoked) {
		slog.WarnContext(ctx, "refresh token reuse or revoked", "user_id", claims.UserID)
		return TokenPair{}, apperr.Authentication("Invalid refresh token")
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if owner != claims.UserID {
		return TokenPair{}, apperr.Authentication("Invalid refresh token")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return TokenPair{}, apperr.Authentication("User not found")
	}
	if err != nil {
		return TokenPair{}, err
	}
	return s.issue(ctx, user)
}

// Logout revokes the refresh token if it is still valid. It always succeeds;
// a failed revoke is logged and the token expires on its own.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return
	}
	if err := s.refresh.Revoke(ctx, claims.ID); err != nil {
		slog.ErrorContext(ctx, "revoke refresh token", "user_id", claims.UserID, "error", err)
	}
}

// CurrentUser returns the user behind an authenticated request.
func (s *Service) CurrentUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// BootstrapAdmin makes sure an administrator account exists for email.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) (*models.User, error) {
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.users.EnsureAdmin(ctx, strings.TrimSpace(email), "Administrator", hashed)
}

// RefreshTTL is how long the refresh cookie lives.
func (s *Service) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

func (s *Service) issue(ctx context.Context, user *models.User) (TokenPair, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.refresh.Register(ctx, pair.RefreshID, user.ID, pair.RefreshExpiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("register refresh token: %w", err)
	}
	return pair, nil
}

func validateRegistration(req models.RegisterRequest) error {
	if len(req.Name) < 2 {
		return apperr.Validation("Name must be at least 2 characters")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return apperr.Validation("Must provide a valid email")
	}
	if len(req.Password) < 6 {
		return apperr.Validation("Password must be at least 6 characters")
	}
	if len(req.Password) > MaxPasswordBytes {
		return apperr.Validation("Password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}
