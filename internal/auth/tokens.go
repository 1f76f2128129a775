package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ayush/library-lending/backend/internal/middleware"
	"github.com/ayush/library-lending/backend/internal/models"
)

const (
	defaultIssuer = "library-lending"
	tokenLeeway   = 30 * time.Second

	useAccess  = "access"
	useRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of both token kinds.
type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin,omitempty"`
	Use    string `json:"use"`
	jwt.RegisteredClaims
}

// TokenPair is what login, register and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshID        string
	RefreshExpiresAt time.Time
}

// TokenIssuer signs and verifies access and refresh tokens. The two kinds use
// distinct secrets so that one can never be accepted as the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        defaultIssuer,
		now:           time.Now,
	}
}

// RefreshTTL is the lifetime of refresh tokens and their cookie.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssuePair signs a fresh access token and refresh token for user.
func (t *TokenIssuer) IssuePair(user *models.User) (TokenPair, error) {
	now := t.now().UTC()
	access, _, err := t.sign(user, useAccess, t.accessSecret, now, t.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, jti, err := t.sign(user, useRefresh, t.refreshSecret, now, t.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshID:        jti,
		RefreshExpiresAt: now.Add(t.refreshTTL),
	}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (t *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return t.verify(token, useAccess, t.accessSecret)
}

// VerifyRefresh validates a refresh token against the refresh secret.
func (t *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return t.verify(token, useRefresh, t.refreshSecret)
}

func (t *TokenIssuer) sign(user *models.User, use string, secret []byte, now time.Time, ttl time.Duration) (string, string, error) {
	jti := uuid.NewString()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Admin:  user.IsAdmin,
		Use:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (t *TokenIssuer) verify(token, use string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Use != use || claims.UserID <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate verifies an access token for the auth middleware.
func (t *TokenIssuer) Authenticate(token string) (middleware.Principal, error) {
	claims, err := t.VerifyAccess(token)
	if err != nil {
		return middleware.Principal{}, err
	}
	return middleware.Principal{UserID: claims.UserID, Email: claims.Email, IsAdmin: claims.Admin}, nil
}
