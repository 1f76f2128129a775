package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RefreshCookie = "refreshToken"
	refreshPrefix = "refresh:"
)

// ErrRefreshRevoked means the refresh token was logged out, already rotated
// or never registered.
var ErrRefreshRevoked = errors.New("refresh token revoked")

// RefreshRegistry wraps Redis to track which refresh tokens are still live.
// A token is live while its jti key exists; rotation consumes the key so a
// refresh token can be used once.
type RefreshRegistry struct {
	rdb *redis.Client
}

func NewRefreshRegistry(rdb *redis.Client) *RefreshRegistry {
	return &RefreshRegistry{rdb: rdb}
}

// Register marks jti as live for userID until expiresAt.
func (r *RefreshRegistry) Register(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, refreshPrefix+jti, userID, ttl).Err()
}

// Consume atomically removes jti and returns the user it belonged to.
func (r *RefreshRegistry) Consume(ctx context.Context, jti string) (int64, error) {
	val, err := r.rdb.GetDel(ctx, refreshPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrRefreshRevoked
	}
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ErrRefreshRevoked
	}
	return userID, nil
}

// Revoke removes jti. Revoking an unknown token is not an error.
func (r *RefreshRegistry) Revoke(ctx context.Context, jti string) error {
	return r.rdb.Del(ctx, refreshPrefix+jti).Err()
}
