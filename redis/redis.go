// Package redis stores one-time login tokens in Redis.
//
// A token lives under its own key with a TTL, so expiry needs no sweeper, and
// redemption uses GETDEL, so a token can be redeemed at most once.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"channelboard/api"
)

const (
	tokenPrefix = "login_token"
	tokenTTL    = 10 * time.Minute
)

// Redis provides one-time login token storage in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings it to ensure the connection
// is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

// Issue creates a token for the Telegram account, valid for ten minutes.
func (r *Redis) Issue(ctx context.Context, telegramID int64) (string, error) {
	token := uuid.NewString()
	key := fmt.Sprintf("%s:%s", tokenPrefix, token)
	if err := r.cli.Set(ctx, key, telegramID, tokenTTL).Err(); err != nil {
		return "", fmt.Errorf("set token: %w", err)
	}
	return token, nil
}

// Redeem consumes a token and returns the Telegram account it was issued
// for. Unknown, expired and already redeemed tokens all yield
// api.ErrTokenNotFound.
func (r *Redis) Redeem(ctx context.Context, token string) (int64, error) {
	key := fmt.Sprintf("%s:%s", tokenPrefix, token)
	telegramID, err := r.cli.GetDel(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, api.ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getdel token: %w", err)
	}
	return telegramID, nil
}
