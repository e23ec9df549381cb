package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/planfit/planfit/pkg"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultTTL       = 24 * 7 * time.Hour
	sessionKeyPrefix = "planfit-session||"

	// GuestUserID is the fallback identity for tokenless requests; guest data
	// is namespaced like any other user and wiped on login.
	GuestUserID = "guest"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Service resolves the currently active user. Sessions live in redis with a
// TTL, value is the user id the token belongs to.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewService(ttl time.Duration, redisClient *redis.Client) *Service {
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

func (s *Service) Login(ctx context.Context, userID string) (string, error) {
	token, err := s.RandStringFunc(35)
	if err != nil {
		return "", err
	}

	sessionKey := sessionKeyPrefix + token
	if err := s.redisClient.Set(ctx, sessionKey, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	sessionKey := sessionKeyPrefix + token
	deleted, err := s.redisClient.Del(ctx, sessionKey).Result()
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	if deleted == 0 {
		return ErrNotLoggedIn
	}
	return nil
}

// ActiveUserID resolves the user behind the given session token. An empty
// token resolves to the guest user instead of an error, the app works in
// guest mode before signup.
func (s *Service) ActiveUserID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return GuestUserID, nil
	}

	cmd := s.redisClient.Get(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotLoggedIn
		}
		return "", fmt.Errorf("get session: %w", err)
	}

	userID := cmd.Val()
	if userID == "" {
		return "", ErrNotLoggedIn
	}
	return userID, nil
}
